package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/tilegrad/internal/array"
)

// ReadSafeTensors reads every tensor of a SafeTensors file into a new Array
// and returns them with the file metadata.
func ReadSafeTensors(path string, opts ...array.Option) (map[string]*array.Array, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = file.Close() }()

	tensors, metadata, err := Decode(file, opts...)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "read %s", path)
	}
	return tensors, metadata, nil
}

// Decode reads a SafeTensors encoding from r.
func Decode(r io.Reader, opts ...array.Option) (map[string]*array.Array, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header")
	}

	metadata := map[string]string{}
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, errors.Wrap(err, "failed to parse metadata")
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse header of tensor %q", name)
		}
		shape := make([]int, len(h.Shape))
		for i, d := range h.Shape {
			shape[i] = int(d)
		}
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  h.DType,
			Shape:  shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, nil, err
	}
	if stored, ok := metadata[metadataChecksum]; ok {
		if err := ValidateChecksum(data, stored); err != nil {
			return nil, nil, err
		}
		delete(metadata, metadataChecksum)
	}

	tensors := make(map[string]*array.Array, len(metas))
	for _, m := range metas {
		a, err := decodeTensor(m, data[m.Offset:m.Offset+m.Size], opts)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q", m.Name)
		}
		tensors[m.Name] = a
	}
	return tensors, metadata, nil
}

func decodeTensor(m TensorMeta, b []byte, opts []array.Option) (*array.Array, error) {
	shape := array.Shape(m.Shape)
	n := shape.NumElements()
	var width int
	switch m.DType {
	case "F32":
		width = 4
	case "F64":
		width = 8
	case "F16":
		width = 2
	default:
		return nil, errors.Wrapf(ErrUnsupportedDType, "%q", m.DType)
	}
	if int64(n*width) != m.Size {
		return nil, &ValidationError{
			Err:     ErrOutOfBounds,
			Tensor:  m.Name,
			Details: "size does not match shape and dtype",
		}
	}

	switch m.DType {
	case "F64":
		values := make([]float64, n)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
		return array.FromFloat64s(values, shape, array.Float64, opts...)
	case "F16":
		values := make([]float32, n)
		for i := range values {
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
		return array.FromSlice(values, shape, array.Float16, opts...)
	default:
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return array.FromSlice(values, shape, array.Float32, opts...)
	}
}
