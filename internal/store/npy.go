package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumPy .npy format, versions 1.0-3.0. Only 2-D little-endian float arrays
// are supported, which is all the index build ever writes.

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNpy decodes a 2-D '<f4' or '<f8' array into a float32 matrix.
func ReadNpy(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	preamble := make([]byte, 8)
	if _, err := io.ReadFull(br, preamble); err != nil {
		return nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(preamble[:6], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}

	var headerLen int
	switch major := preamble[6]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}

	descr, fortran, shape, err := parseNpyHeader(string(header))
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy array must be 2-D, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	n := rows * cols

	m := &Matrix{Rows: rows, Cols: cols, Data: make([]float32, n)}
	switch descr {
	case "<f4":
		if err := binary.Read(br, binary.LittleEndian, m.Data); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
	case "<f8":
		buf := make([]float64, n)
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i, v := range buf {
			m.Data[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr)
	}

	if fortran {
		m.Data = transpose(m.Data, cols, rows)
	}
	return m, nil
}

func parseNpyHeader(h string) (descr string, fortran bool, shape []int, err error) {
	dm := npyDescrRe.FindStringSubmatch(h)
	if dm == nil {
		return "", false, nil, fmt.Errorf("npy header missing descr")
	}
	descr = dm[1]
	if descr == "|f4" || descr == "=f4" {
		descr = "<f4"
	}

	if fm := npyFortranRe.FindStringSubmatch(h); fm != nil {
		fortran = fm[1] == "True"
	}

	sm := npyShapeRe.FindStringSubmatch(h)
	if sm == nil {
		return "", false, nil, fmt.Errorf("npy header missing shape")
	}
	for _, part := range strings.Split(sm[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, convErr := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if convErr != nil || v < 0 {
			return "", false, nil, fmt.Errorf("bad npy shape %q", sm[1])
		}
		shape = append(shape, v)
	}
	return descr, fortran, shape, nil
}

// transpose converts an r x c row-major buffer into c x r.
func transpose(data []float32, r, c int) []float32 {
	out := make([]float32, len(data))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[j*r+i] = data[i*c+j]
		}
	}
	return out
}

// WriteNpy encodes m as a version 1.0 '<f4' C-order array.
func WriteNpy(w io.Writer, m *Matrix) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", m.Rows, m.Cols)
	// magic(6) + version(2) + len(2) + header + '\n' must be a multiple of 64.
	total := 10 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy header too long")
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.Data); err != nil {
		return fmt.Errorf("write npy data: %w", err)
	}
	return bw.Flush()
}
