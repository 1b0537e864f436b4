package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

// Transformed matrices are stored as NumPy .npz archives holding a single
// float64 array named arr_0, so they can be opened with numpy.load as well.

const matrixKey = "arr_0"

var npyMagic = []byte("\x93NUMPY")

var ErrBadMatrixFile = errors.New("unsupported matrix file")

// SaveNPZ writes m as an .npz archive, creating parent directories
func SaveNPZ(path string, m *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := w.Write(matrixKey, m); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadNPZ reads the first array of an .npz archive. A bare .npy file is
// accepted too.
func LoadNPZ(path string) (*mat.Dense, error) {
	isNPY, err := hasNPYMagic(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m mat.Dense
	if isNPY {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer f.Close()
		if err := npyio.Read(f, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadMatrixFile, path, err)
		}
		return &m, nil
	}

	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadMatrixFile, path, err)
	}
	defer r.Close()
	keys := r.Keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s has no .npy entry", ErrBadMatrixFile, path)
	}
	if err := r.Read(keys[0], &m); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrBadMatrixFile, path, keys[0], err)
	}
	return &m, nil
}

func hasNPYMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, npyMagic), nil
}

// SplitTarget separates the last column of m as the target
func SplitTarget(m *mat.Dense) (features [][]float64, target []float64) {
	r, c := m.Dims()
	features = make([][]float64, r)
	target = make([]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c-1)
		for j := 0; j < c-1; j++ {
			row[j] = m.At(i, j)
		}
		features[i] = row
		target[i] = m.At(i, c-1)
	}
	return features, target
}

// WithTarget builds a matrix from feature rows with target appended as the last column
func WithTarget(features [][]float64, target []float64) (*mat.Dense, error) {
	if len(features) != len(target) {
		return nil, fmt.Errorf("%d feature rows but %d targets", len(features), len(target))
	}
	if len(features) == 0 {
		return nil, ErrEmptyTable
	}
	c := len(features[0]) + 1
	data := make([]float64, 0, len(features)*c)
	for i, row := range features {
		if len(row) != c-1 {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), c-1)
		}
		data = append(data, row...)
		data = append(data, target[i])
	}
	return mat.NewDense(len(features), c, data), nil
}
