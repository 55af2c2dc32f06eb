package serialization

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilegrad/internal/array"
)

func testTensors(t *testing.T) map[string]*array.Array {
	t.Helper()
	w, err := array.FromSlice([]float32{1, -2, 3.5, 4, 5, 6}, array.Shape{2, 3}, array.Float32, array.RequiresGrad())
	require.NoError(t, err)
	b, err := array.FromFloat64s([]float64{0.1, 0.2, 0.3}, array.Shape{3, 1}, array.Float64)
	require.NoError(t, err)
	h, err := array.FromSlice([]float32{0.5, 0.25}, array.Shape{2}, array.Float16)
	require.NoError(t, err)
	return map[string]*array.Array{"layer0.weight": w, "layer0.bias": b, "reference": h}
}

func TestSafeTensors_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.safetensors")
	tensors := testTensors(t)
	require.NoError(t, WriteSafeTensors(path, tensors, map[string]string{"iterations": "200"}))

	got, metadata, err := ReadSafeTensors(path, array.RequiresGrad())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"iterations": "200"}, metadata, "checksum entry is consumed")
	require.Len(t, got, 3)
	for name, want := range tensors {
		a := got[name]
		require.NotNil(t, a, name)
		assert.Equal(t, want.DType(), a.DType(), name)
		assert.True(t, want.Shape().Equal(a.Shape()), name)
		assert.Equal(t, want.Float64s(), a.Float64s(), name)
		assert.True(t, a.RequiresGrad())
	}
}

func TestSafeTensors_HeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testTensors(t), nil))

	raw := buf.Bytes()
	n := binary.LittleEndian.Uint64(raw[:8])
	header := string(raw[8 : 8+n])
	assert.Contains(t, header, `"layer0.bias":{"dtype":"F64","shape":[3,1],"data_offsets":[0,24]}`)
	assert.Contains(t, header, `"layer0.weight":{"dtype":"F32","shape":[2,3],"data_offsets":[24,48]}`)
	assert.Contains(t, header, `"reference":{"dtype":"F16","shape":[2],"data_offsets":[48,52]}`)
	assert.Len(t, raw, 8+int(n)+52)
}

func TestSafeTensors_CorruptData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testTensors(t), nil))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff

	_, _, err := Decode(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	_, _, err = Decode(bytes.NewReader(raw[:len(raw)-4]))
	assert.True(t, errors.Is(err, ErrOutOfBounds), "truncated data section")
}

func TestSafeTensors_RejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, map[string]*array.Array{"../w": testTensors(t)["reference"]}, nil)
	assert.True(t, errors.Is(err, ErrInvalidTensorName))

	var huge [8]byte
	binary.LittleEndian.PutUint64(huge[:], MaxHeaderSize+1)
	_, _, err = Decode(bytes.NewReader(huge[:]))
	assert.True(t, errors.Is(err, ErrHeaderTooLarge))

	header := []byte(`{"w":{"dtype":"I8","shape":[1],"data_offsets":[0,1]}}`)
	var in bytes.Buffer
	require.NoError(t, binary.Write(&in, binary.LittleEndian, uint64(len(header))))
	in.Write(header)
	in.WriteByte(7)
	_, _, err = Decode(&in)
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}
