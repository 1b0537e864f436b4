package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shipcost/shipcost/pkg/dataset"
)

// Options selects the columns each encoder handles
type Options struct {
	OneHotColumns    []string
	BinaryColumns    []string
	NumericalColumns []string
	OutlierColumns   []string
	HandleUnknown    string
}

// Preprocessor applies the encoders side by side and concatenates their
// output: one-hot block, binary block, scaled numerical block. Columns not
// named in Options are ignored.
type Preprocessor struct {
	OneHot *OneHotEncoder  `json:"onehot"`
	Binary *BinaryEncoder  `json:"binary"`
	Scaler *StandardScaler `json:"scaler"`
	Capper *OutlierCapper  `json:"capper,omitempty"`
	Fitted bool            `json:"fitted"`
}

// New creates an unfitted preprocessor
func New(opts Options) *Preprocessor {
	unknown := opts.HandleUnknown
	if unknown == "" {
		unknown = HandleUnknownIgnore
	}
	p := &Preprocessor{
		OneHot: &OneHotEncoder{Columns: opts.OneHotColumns, HandleUnknown: unknown},
		Binary: &BinaryEncoder{Columns: opts.BinaryColumns, HandleUnknown: unknown},
		Scaler: &StandardScaler{Columns: opts.NumericalColumns},
	}
	if len(opts.OutlierColumns) > 0 {
		p.Capper = &OutlierCapper{Columns: opts.OutlierColumns}
	}
	return p
}

// InputColumns lists every column the preprocessor reads
func (p *Preprocessor) InputColumns() []string {
	cols := make([]string, 0, len(p.OneHot.Columns)+len(p.Binary.Columns)+len(p.Scaler.Columns))
	cols = append(cols, p.OneHot.Columns...)
	cols = append(cols, p.Binary.Columns...)
	return append(cols, p.Scaler.Columns...)
}

// Fit fits every encoder on t
func (p *Preprocessor) Fit(t *dataset.Table) error {
	if missing := t.Missing(p.InputColumns()...); len(missing) > 0 {
		return fmt.Errorf("%w: %v", dataset.ErrColumnNotFound, missing)
	}
	if t.Len() == 0 {
		return dataset.ErrEmptyTable
	}
	if p.Capper != nil {
		if err := p.Capper.Fit(t); err != nil {
			return fmt.Errorf("outlier capping: %w", err)
		}
		capped, err := p.Capper.Apply(t)
		if err != nil {
			return err
		}
		t = capped
	}
	if err := p.OneHot.Fit(t); err != nil {
		return fmt.Errorf("one-hot encoder: %w", err)
	}
	if err := p.Binary.Fit(t); err != nil {
		return fmt.Errorf("binary encoder: %w", err)
	}
	if err := p.Scaler.Fit(t); err != nil {
		return fmt.Errorf("standard scaler: %w", err)
	}
	p.Fitted = true
	return nil
}

// Transform encodes t with the fitted encoders
func (p *Preprocessor) Transform(t *dataset.Table) ([][]float64, error) {
	if !p.Fitted {
		return nil, ErrNotFitted
	}
	if missing := t.Missing(p.InputColumns()...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", dataset.ErrColumnNotFound, missing)
	}
	if p.Capper != nil {
		capped, err := p.Capper.Apply(t)
		if err != nil {
			return nil, err
		}
		t = capped
	}

	oh, err := p.OneHot.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("one-hot encoder: %w", err)
	}
	bin, err := p.Binary.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("binary encoder: %w", err)
	}
	num, err := p.Scaler.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("standard scaler: %w", err)
	}

	out := make([][]float64, t.Len())
	for i := range out {
		row := make([]float64, 0, p.Width())
		row = append(row, oh[i]...)
		row = append(row, bin[i]...)
		out[i] = append(row, num[i]...)
	}
	return out, nil
}

// FitTransform fits on t and transforms it
func (p *Preprocessor) FitTransform(t *dataset.Table) ([][]float64, error) {
	if err := p.Fit(t); err != nil {
		return nil, err
	}
	return p.Transform(t)
}

// Width is the number of output features
func (p *Preprocessor) Width() int {
	return p.OneHot.Width() + p.Binary.Width() + p.Scaler.Width()
}

// FeatureNames names the output columns in order
func (p *Preprocessor) FeatureNames() []string {
	names := append([]string{}, p.OneHot.FeatureNames()...)
	names = append(names, p.Binary.FeatureNames()...)
	return append(names, p.Scaler.Columns...)
}

// Save writes the fitted preprocessor as JSON
func (p *Preprocessor) Save(path string) error {
	if !p.Fitted {
		return ErrNotFitted
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preprocessor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preprocessor: %w", err)
	}
	return nil
}

// Load reads a preprocessor written by Save
func Load(path string) (*Preprocessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessor: %w", err)
	}
	var p Preprocessor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode preprocessor: %w", err)
	}
	if !p.Fitted || p.OneHot == nil || p.Binary == nil || p.Scaler == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFitted)
	}
	return &p, nil
}
