package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/tilegrad/internal/array"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes the Arrays to a SafeTensors file at path.
// Only values are written; gradients are not part of a checkpoint.
func WriteSafeTensors(path string, tensors map[string]*array.Array, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close file")
		}
	}()

	w := bufio.NewWriter(file)
	if err := Encode(w, tensors, metadata); err != nil {
		return errors.WithMessagef(err, "write %s", path)
	}
	return errors.Wrap(w.Flush(), "failed to flush file")
}

// Encode writes the SafeTensors encoding of tensors to w.
// Tensors are written in alphabetical order by name.
func Encode(w io.Writer, tensors map[string]*array.Array, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	for _, name := range names {
		a := tensors[name]
		begin := int64(data.Len())
		dtype, err := encodeValues(&data, a)
		if err != nil {
			return errors.WithMessagef(err, "tensor %q", name)
		}
		shape := make([]int64, len(a.Shape()))
		for i, d := range a.Shape() {
			shape[i] = int64(d)
		}
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{begin, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	sum := ComputeChecksum(data.Bytes())
	meta[metadataChecksum] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write tensor data")
	}
	return nil
}

func encodeValues(buf *bytes.Buffer, a *array.Array) (string, error) {
	var scratch [8]byte
	switch a.DType() {
	case array.Float32:
		for _, v := range a.Float32s() {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(v))
			buf.Write(scratch[:4])
		}
		return "F32", nil
	case array.Float64:
		for _, v := range a.Float64s() {
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
			buf.Write(scratch[:])
		}
		return "F64", nil
	case array.Float16:
		for _, v := range a.Float32s() {
			binary.LittleEndian.PutUint16(scratch[:2], float16.Fromfloat32(v).Bits())
			buf.Write(scratch[:2])
		}
		return "F16", nil
	default:
		return "", errors.Wrapf(ErrUnsupportedDType, "%s", a.DType())
	}
}
