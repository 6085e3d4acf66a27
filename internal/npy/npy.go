// Package npy reads and writes NumPy .npy array files so the generated
// matrices stay loadable with numpy.load.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	magic       = "\x93NUMPY"
	headerAlign = 64
)

var (
	// ErrBadMagic is returned for data that is not an .npy file.
	ErrBadMagic = errors.New("npy: missing magic string")
	// ErrUnsupportedDType is returned for dtypes other than little-endian
	// float64, float32, int64 and int32.
	ErrUnsupportedDType = errors.New("npy: unsupported dtype")
	// ErrFortranOrder is returned for column-major arrays.
	ErrFortranOrder = errors.New("npy: fortran order arrays are not supported")
)

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// Header describes an array stored in an .npy file.
type Header struct {
	Descr        string
	FortranOrder bool
	Shape        []int
}

// Rows returns the number of matrix rows the array maps to.
func (h Header) Rows() int {
	if len(h.Shape) == 0 {
		return 1
	}
	return h.Shape[0]
}

// Cols returns the number of matrix columns; 1-D arrays are a single column.
func (h Header) Cols() int {
	if len(h.Shape) < 2 {
		return 1
	}
	return h.Shape[1]
}

func (h Header) itemSize() (int, error) {
	switch h.Descr {
	case "<f8", "<i8":
		return 8, nil
	case "<f4", "<i4":
		return 4, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, h.Descr)
}

// Encode writes m as a version 1.0, little-endian float64, C-ordered array.
func Encode(w io.Writer, m mat.Matrix) error {
	r, c := m.Dims()
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", r, c)

	// magic(6) + version(2) + header length(2) + header + '\n' is padded
	// to a multiple of 64 bytes.
	prefix := len(magic) + 2 + 2
	pad := headerAlign - (prefix+len(header)+1)%headerAlign
	if pad == headerAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.WriteString(magic)
	bw.Write([]byte{1, 0})
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return fmt.Errorf("npy: write header length: %w", err)
	}
	bw.WriteString(header)

	buf := make([]byte, 8)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(m.At(i, j)))
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("npy: write data: %w", err)
			}
		}
	}
	return bw.Flush()
}

// Marshal returns the .npy encoding of m.
func Marshal(m mat.Matrix) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseHeader decodes the header of an .npy file and returns it together
// with the offset at which array data starts.
func ParseHeader(data []byte) (Header, int, error) {
	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return Header{}, 0, ErrBadMagic
	}
	major := data[len(magic)]
	offset := len(magic) + 2

	var headerLen int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	case 2, 3:
		if len(data) < offset+4 {
			return Header{}, 0, fmt.Errorf("npy: truncated header")
		}
		headerLen = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
	default:
		return Header{}, 0, fmt.Errorf("npy: unsupported format version %d", major)
	}
	if len(data) < offset+headerLen {
		return Header{}, 0, fmt.Errorf("npy: truncated header")
	}
	raw := string(data[offset : offset+headerLen])
	offset += headerLen

	var h Header
	m := descrRe.FindStringSubmatch(raw)
	if m == nil {
		return Header{}, 0, fmt.Errorf("npy: header has no descr: %q", raw)
	}
	h.Descr = m[1]

	if m = fortranRe.FindStringSubmatch(raw); m != nil {
		h.FortranOrder = m[1] == "True"
	}

	m = shapeRe.FindStringSubmatch(raw)
	if m == nil {
		return Header{}, 0, fmt.Errorf("npy: header has no shape: %q", raw)
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return Header{}, 0, fmt.Errorf("npy: bad shape %q: %w", m[1], err)
		}
		if dim < 1 {
			return Header{}, 0, fmt.Errorf("npy: bad shape %q: dimensions must be positive", m[1])
		}
		h.Shape = append(h.Shape, dim)
	}
	if len(h.Shape) > 2 {
		return Header{}, 0, fmt.Errorf("npy: %d-dimensional arrays are not supported", len(h.Shape))
	}
	return h, offset, nil
}

// Decode parses an in-memory .npy file into a matrix. 1-D arrays become a
// single column.
func Decode(data []byte) (*mat.Dense, error) {
	h, offset, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.FortranOrder {
		return nil, ErrFortranOrder
	}
	size, err := h.itemSize()
	if err != nil {
		return nil, err
	}
	r, c := h.Rows(), h.Cols()
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("npy: empty array with shape %v", h.Shape)
	}
	if r > math.MaxInt/c/size {
		return nil, fmt.Errorf("npy: shape %v is too large", h.Shape)
	}
	body := data[offset:]
	if len(body) < r*c*size {
		return nil, fmt.Errorf("npy: expected %d data bytes, found %d", r*c*size, len(body))
	}

	values := make([]float64, r*c)
	for i := range values {
		chunk := body[i*size:]
		switch h.Descr {
		case "<f8":
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case "<f4":
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case "<i8":
			values[i] = float64(int64(binary.LittleEndian.Uint64(chunk)))
		case "<i4":
			values[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		}
	}
	return mat.NewDense(r, c, values), nil
}
