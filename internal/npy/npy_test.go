package npy

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEncode_HeaderLayout(t *testing.T) {
	data, err := Marshal(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)

	assert.Equal(t, magic, string(data[:6]))
	assert.Equal(t, []byte{1, 0}, data[6:8])

	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	assert.Zero(t, (10+headerLen)%64, "data must start on a 64-byte boundary")
	assert.Equal(t, byte('\n'), data[10+headerLen-1])
	assert.Contains(t, string(data[10:10+headerLen]), "'shape': (2, 3)")
	assert.Len(t, data, 10+headerLen+6*8)

	first := math.Float64frombits(binary.LittleEndian.Uint64(data[10+headerLen:]))
	assert.Equal(t, 1.0, first)
}

func TestDecode_ParsesNumpyHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
		descr  string
		shape  []int
		body   []byte
		want   []float64
	}{
		{
			name:   "float32 matrix",
			header: "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2), }",
			body:   append(le32(math.Float32bits(1.5)), le32(math.Float32bits(-2))...),
			shape:  []int{1, 2},
			want:   []float64{1.5, -2},
		},
		{
			name:   "int64 vector",
			header: "{'descr': '<i8', 'fortran_order': False, 'shape': (3,), }",
			body:   append(append(le64(7), le64(uint64(1<<63|1))...), le64(0)...),
			shape:  []int{3},
			want:   []float64{7, float64(math.MinInt64 + 1), 0},
		},
		{
			name:   "int32 vector",
			header: "{'descr': '<i4', 'fortran_order': False, 'shape': (2,), }",
			body:   append(le32(uint32(0xffffffff)), le32(4)...),
			shape:  []int{2},
			want:   []float64{-1, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rawNpy(tt.header, tt.body)
			h, _, err := ParseHeader(data)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, h.Shape)

			m, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.RawMatrix().Data)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("not numpy"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode(rawNpy("{'descr': '>f8', 'fortran_order': False, 'shape': (1,), }", le64(0)))
	assert.ErrorIs(t, err, ErrUnsupportedDType)

	_, err = Decode(rawNpy("{'descr': '<f8', 'fortran_order': True, 'shape': (1, 1), }", le64(0)))
	assert.ErrorIs(t, err, ErrFortranOrder)

	_, err = Decode(rawNpy("{'descr': '<f8', 'fortran_order': False, 'shape': (4,), }", le64(0)))
	assert.Error(t, err)

	_, err = Decode(rawNpy("{'descr': '<f8', 'fortran_order': False, 'shape': (1, 1, 1), }", le64(0)))
	assert.Error(t, err)
}

func TestDecode_RejectsBadShapes(t *testing.T) {
	for _, shape := range []string{"(-5, 1)", "(1, -5)", "(-3,)", "(0, 2)", "(9223372036854775807, 2)", "(4611686018427387904, 4611686018427387904)"} {
		header := "{'descr': '<f8', 'fortran_order': False, 'shape': " + shape + ", }"
		assert.NotPanics(t, func() {
			_, err := Decode(rawNpy(header, le64(0)))
			assert.Error(t, err, shape)
		}, shape)
	}
}

func TestWriteFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dist.npy")
	want := mat.NewDense(3, 3, []float64{0, 1, 2, 1, 0, 3, 2, 3, 0})

	require.NoError(t, WriteFile(path, want))
	got, err := ReadFile(path)
	require.NoError(t, err)

	assert.True(t, mat.Equal(want, got))
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.npy"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.npy")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestCompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pca.npy"+CompressedExt)
	want := mat.NewDense(4, 2, []float64{1.25, -3, 0, 8, 2, 2, -0.5, 1e-9})

	require.NoError(t, WriteCompressedFile(path, want))
	got, err := ReadCompressedFile(path)
	require.NoError(t, err)

	assert.True(t, mat.Equal(want, got))
}

func rawNpy(header string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{1, 0})
	header += "\n"
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(body)
	return buf.Bytes()
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
