// Package preprocess turns the raw shipment columns into a numeric feature
// matrix: one-hot and binary encoding for categorical columns, standard
// scaling for numerical ones. Every step is fitted on the training partition
// only and serialises to JSON so the same transform runs at prediction time.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/shipcost/shipcost/pkg/dataset"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrNotFitted       = errors.New("transformer is not fitted")
)

const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// OneHotEncoder emits one indicator column per category seen during fit
type OneHotEncoder struct {
	Columns       []string   `json:"columns"`
	Categories    [][]string `json:"categories"`
	HandleUnknown string     `json:"handle_unknown"`
}

// Fit records the sorted categories of each column
func (e *OneHotEncoder) Fit(t *dataset.Table) error {
	e.Categories = make([][]string, len(e.Columns))
	for i, c := range e.Columns {
		vals, err := t.Column(c)
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, v := range vals {
			if !seen[v] {
				seen[v] = true
				e.Categories[i] = append(e.Categories[i], v)
			}
		}
		sort.Strings(e.Categories[i])
	}
	return nil
}

// Width is the number of output columns
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	return w
}

// FeatureNames returns column_category names
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for i, c := range e.Columns {
		for _, cat := range e.Categories[i] {
			names = append(names, c+"_"+cat)
		}
	}
	return names
}

// Transform writes the indicator block for every row. An unseen category
// yields an all-zero block unless HandleUnknown is "error".
func (e *OneHotEncoder) Transform(t *dataset.Table) ([][]float64, error) {
	if e.Categories == nil && len(e.Columns) > 0 {
		return nil, ErrNotFitted
	}
	out := newRows(t.Len(), e.Width())
	offset := 0
	for i, c := range e.Columns {
		vals, err := t.Column(c)
		if err != nil {
			return nil, err
		}
		cats := e.Categories[i]
		for r, v := range vals {
			k := sort.SearchStrings(cats, v)
			if k < len(cats) && cats[k] == v {
				out[r][offset+k] = 1
			} else if e.HandleUnknown == HandleUnknownError {
				return nil, fmt.Errorf("%w: %q in column %q", ErrUnknownCategory, v, c)
			}
		}
		offset += len(cats)
	}
	return out, nil
}

// BinaryEncoder maps each category to its ordinal (1-based, in order of
// first appearance) written in base 2, most significant bit first. Ordinal 0
// is reserved for unseen categories.
type BinaryEncoder struct {
	Columns       []string         `json:"columns"`
	Mappings      []map[string]int `json:"mappings"`
	Widths        []int            `json:"widths"`
	HandleUnknown string           `json:"handle_unknown"`
}

// Fit assigns ordinals and bit widths
func (e *BinaryEncoder) Fit(t *dataset.Table) error {
	e.Mappings = make([]map[string]int, len(e.Columns))
	e.Widths = make([]int, len(e.Columns))
	for i, c := range e.Columns {
		vals, err := t.Column(c)
		if err != nil {
			return err
		}
		m := map[string]int{}
		for _, v := range vals {
			if _, ok := m[v]; !ok {
				m[v] = len(m) + 1
			}
		}
		e.Mappings[i] = m
		e.Widths[i] = bits.Len(uint(len(m)))
	}
	return nil
}

// Width is the number of output columns
func (e *BinaryEncoder) Width() int {
	w := 0
	for _, n := range e.Widths {
		w += n
	}
	return w
}

// FeatureNames returns column_bit names
func (e *BinaryEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for i, c := range e.Columns {
		for b := 0; b < e.Widths[i]; b++ {
			names = append(names, fmt.Sprintf("%s_%d", c, b))
		}
	}
	return names
}

// Transform writes the bit block for every row
func (e *BinaryEncoder) Transform(t *dataset.Table) ([][]float64, error) {
	if e.Mappings == nil && len(e.Columns) > 0 {
		return nil, ErrNotFitted
	}
	out := newRows(t.Len(), e.Width())
	offset := 0
	for i, c := range e.Columns {
		vals, err := t.Column(c)
		if err != nil {
			return nil, err
		}
		w := e.Widths[i]
		for r, v := range vals {
			ord, ok := e.Mappings[i][v]
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return nil, fmt.Errorf("%w: %q in column %q", ErrUnknownCategory, v, c)
				}
				continue
			}
			for b := 0; b < w; b++ {
				if ord&(1<<(w-1-b)) != 0 {
					out[r][offset+b] = 1
				}
			}
		}
		offset += w
	}
	return out, nil
}

// StandardScaler centres each column on its training mean and divides by
// the population standard deviation. Missing values are skipped when fitting
// and stay NaN.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// Fit computes mean and scale per column
func (s *StandardScaler) Fit(t *dataset.Table) error {
	s.Means = make([]float64, len(s.Columns))
	s.Scales = make([]float64, len(s.Columns))
	for i, c := range s.Columns {
		vals, err := t.Floats(c)
		if err != nil {
			return err
		}
		vals = dropNaN(vals)
		if len(vals) == 0 {
			return fmt.Errorf("column %q has no values to fit", c)
		}
		mean, std := stat.PopMeanStdDev(vals, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Means[i], s.Scales[i] = mean, std
	}
	return nil
}

// Width is the number of output columns
func (s *StandardScaler) Width() int { return len(s.Columns) }

// Transform scales each column
func (s *StandardScaler) Transform(t *dataset.Table) ([][]float64, error) {
	if s.Means == nil && len(s.Columns) > 0 {
		return nil, ErrNotFitted
	}
	out := newRows(t.Len(), len(s.Columns))
	for i, c := range s.Columns {
		vals, err := t.Floats(c)
		if err != nil {
			return nil, err
		}
		for r, v := range vals {
			out[r][i] = (v - s.Means[i]) / s.Scales[i]
		}
	}
	return out, nil
}

// OutlierCapper clips numerical columns to [Q1 - 1.5 IQR, Q3 + 1.5 IQR]
// computed on the training partition.
type OutlierCapper struct {
	Columns []string  `json:"columns"`
	Lower   []float64 `json:"lower"`
	Upper   []float64 `json:"upper"`
}

// Fit computes the limits
func (o *OutlierCapper) Fit(t *dataset.Table) error {
	o.Lower = make([]float64, len(o.Columns))
	o.Upper = make([]float64, len(o.Columns))
	for i, c := range o.Columns {
		vals, err := t.Floats(c)
		if err != nil {
			return err
		}
		vals = dropNaN(vals)
		if len(vals) == 0 {
			return fmt.Errorf("column %q has no values to fit", c)
		}
		sort.Float64s(vals)
		q1 := stat.Quantile(0.25, stat.LinInterp, vals, nil)
		q3 := stat.Quantile(0.75, stat.LinInterp, vals, nil)
		iqr := q3 - q1
		o.Lower[i], o.Upper[i] = q1-1.5*iqr, q3+1.5*iqr
	}
	return nil
}

// Apply returns a copy of t with the capped columns clipped
func (o *OutlierCapper) Apply(t *dataset.Table) (*dataset.Table, error) {
	if len(o.Columns) == 0 {
		return t, nil
	}
	if o.Lower == nil {
		return nil, ErrNotFitted
	}
	rows := make([][]string, t.Len())
	for i, r := range t.Rows {
		rows[i] = append([]string(nil), r...)
	}
	out, err := dataset.NewTable(append([]string(nil), t.Columns...), rows)
	if err != nil {
		return nil, err
	}
	for i, c := range o.Columns {
		vals, err := t.Floats(c)
		if err != nil {
			return nil, err
		}
		j := indexOf(t.Columns, c)
		for r, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			if v < o.Lower[i] {
				rows[r][j] = dataset.FormatFloat(o.Lower[i])
			} else if v > o.Upper[i] {
				rows[r][j] = dataset.FormatFloat(o.Upper[i])
			}
		}
	}
	return out, nil
}

func newRows(n, w int) [][]float64 {
	flat := make([]float64, n*w)
	out := make([][]float64, n)
	for i := range out {
		out[i] = flat[i*w : (i+1)*w : (i+1)*w]
	}
	return out
}

func dropNaN(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}
