// Package drift compares a reference table with a current table column by
// column and decides whether the dataset as a whole has drifted.
//
// Numerical columns use the two-sample Kolmogorov-Smirnov test, categorical
// columns a chi-square goodness-of-fit test of the current category counts
// against the reference proportions. A column drifts when the test's p-value
// falls below the threshold; the dataset drifts when the share of drifted
// columns reaches DriftShare.
package drift

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/shipcost/shipcost/pkg/dataset"
)

const (
	DefaultThreshold  = 0.05
	DefaultDriftShare = 0.5

	StatTestKS        = "ks"
	StatTestChiSquare = "chisquare"

	ColumnTypeNumerical   = "num"
	ColumnTypeCategorical = "cat"
)

// Detector holds the decision thresholds
type Detector struct {
	// Threshold is the p-value below which a column counts as drifted.
	Threshold float64
	// DriftShare is the share of drifted columns at which the dataset drifts.
	DriftShare float64
	// Categorical forces columns to be treated as categorical even when
	// their values parse as numbers.
	Categorical map[string]bool
}

// NewDetector returns a detector with the default thresholds
func NewDetector() *Detector {
	return &Detector{Threshold: DefaultThreshold, DriftShare: DefaultDriftShare}
}

// Report is the drift report persisted next to the validation artefact
type Report struct {
	GeneratedAt            time.Time      `yaml:"generated_at"`
	NumberOfColumns        int            `yaml:"number_of_columns"`
	NumberOfDriftedColumns int            `yaml:"number_of_drifted_columns"`
	ShareOfDriftedColumns  float64        `yaml:"share_of_drifted_columns"`
	DatasetDrift           bool           `yaml:"dataset_drift"`
	DriftShareThreshold    float64        `yaml:"drift_share_threshold"`
	Columns                []ColumnReport `yaml:"drift_by_columns"`
}

// ColumnReport is the per-column test outcome
type ColumnReport struct {
	Column        string   `yaml:"column_name"`
	ColumnType    string   `yaml:"column_type"`
	StatTest      string   `yaml:"stattest_name"`
	Statistic     float64  `yaml:"statistic"`
	PValue        float64  `yaml:"drift_score"`
	Threshold     float64  `yaml:"stattest_threshold"`
	DriftDetected bool     `yaml:"drift_detected"`
	Reference     *Summary `yaml:"reference,omitempty"`
	Current       *Summary `yaml:"current,omitempty"`
}

// Summary describes the non-missing values of a numerical column
type Summary struct {
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std"`
	Min    float64 `yaml:"min"`
	Median float64 `yaml:"median"`
	Max    float64 `yaml:"max"`
}

// Compute runs the per-column tests over the columns both tables share
func (d *Detector) Compute(reference, current *dataset.Table) (*Report, error) {
	if reference.Len() == 0 || current.Len() == 0 {
		return nil, fmt.Errorf("drift needs non-empty tables: reference %d rows, current %d rows", reference.Len(), current.Len())
	}

	report := &Report{
		GeneratedAt:         time.Now().UTC(),
		DriftShareThreshold: d.DriftShare,
	}

	for _, col := range reference.Columns {
		if !current.Has(col) {
			continue
		}
		var (
			cr  ColumnReport
			err error
		)
		if !d.Categorical[col] && reference.IsNumeric(col) && current.IsNumeric(col) {
			cr, err = d.numerical(col, reference, current)
		} else {
			cr, err = d.categorical(col, reference, current)
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		report.Columns = append(report.Columns, cr)
		if cr.DriftDetected {
			report.NumberOfDriftedColumns++
		}
	}

	report.NumberOfColumns = len(report.Columns)
	if report.NumberOfColumns > 0 {
		report.ShareOfDriftedColumns = float64(report.NumberOfDriftedColumns) / float64(report.NumberOfColumns)
		report.DatasetDrift = report.ShareOfDriftedColumns >= d.DriftShare
	}
	return report, nil
}

func (d *Detector) numerical(col string, reference, current *dataset.Table) (ColumnReport, error) {
	ref, err := nonMissingFloats(reference, col)
	if err != nil {
		return ColumnReport{}, err
	}
	cur, err := nonMissingFloats(current, col)
	if err != nil {
		return ColumnReport{}, err
	}

	cr := ColumnReport{
		Column:     col,
		ColumnType: ColumnTypeNumerical,
		StatTest:   StatTestKS,
		Threshold:  d.Threshold,
		PValue:     1,
		Reference:  summarize(ref),
		Current:    summarize(cur),
	}
	if len(ref) == 0 || len(cur) == 0 {
		return cr, nil
	}

	sort.Float64s(ref)
	sort.Float64s(cur)
	cr.Statistic = stat.KolmogorovSmirnov(ref, nil, cur, nil)
	cr.PValue = ksPValue(cr.Statistic, len(ref), len(cur))
	cr.DriftDetected = cr.PValue < d.Threshold
	return cr, nil
}

func (d *Detector) categorical(col string, reference, current *dataset.Table) (ColumnReport, error) {
	ref, err := reference.Column(col)
	if err != nil {
		return ColumnReport{}, err
	}
	cur, err := current.Column(col)
	if err != nil {
		return ColumnReport{}, err
	}

	cr := ColumnReport{
		Column:     col,
		ColumnType: ColumnTypeCategorical,
		StatTest:   StatTestChiSquare,
		Threshold:  d.Threshold,
		PValue:     1,
	}

	refCounts, refN := countCategories(ref)
	curCounts, curN := countCategories(cur)
	if refN == 0 || curN == 0 {
		return cr, nil
	}

	keys := make([]string, 0, len(refCounts)+len(curCounts))
	for k := range refCounts {
		keys = append(keys, k)
	}
	for k := range curCounts {
		if _, ok := refCounts[k]; !ok {
			keys = append(keys, k)
		}
	}
	if len(keys) < 2 {
		return cr, nil
	}
	sort.Strings(keys)

	// Categories never seen in the reference get a small expected count so
	// their appearance shows up as drift instead of dividing by zero.
	const eps = 1e-4
	obs := make([]float64, len(keys))
	exp := make([]float64, len(keys))
	var expTotal float64
	for i, k := range keys {
		obs[i] = float64(curCounts[k])
		p := float64(refCounts[k]) / float64(refN)
		if p == 0 {
			p = eps
		}
		exp[i] = p
		expTotal += p
	}
	for i := range exp {
		exp[i] = exp[i] / expTotal * float64(curN)
	}

	cr.Statistic = stat.ChiSquare(obs, exp)
	cr.PValue = distuv.ChiSquared{K: float64(len(keys) - 1)}.Survival(cr.Statistic)
	cr.DriftDetected = cr.PValue < d.Threshold
	return cr, nil
}

// ksPValue is the asymptotic two-sample Kolmogorov-Smirnov p-value
func ksPValue(dstat float64, n, m int) float64 {
	en := math.Sqrt(float64(n*m) / float64(n+m))
	lambda := (en + 0.12 + 0.11/en) * dstat
	if lambda < 1e-3 {
		return 1
	}
	var sum, sign float64 = 0, 1
	for j := 1; j <= 100; j++ {
		term := sign * 2 * math.Exp(-2*float64(j*j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	return math.Min(1, math.Max(0, sum))
}

func nonMissingFloats(t *dataset.Table, col string) ([]float64, error) {
	vals, err := t.Floats(col)
	if err != nil {
		return nil, err
	}
	out := vals[:0]
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func countCategories(values []string) (map[string]int, int) {
	counts := make(map[string]int)
	n := 0
	for _, v := range values {
		if dataset.IsMissing(v) {
			continue
		}
		counts[v]++
		n++
	}
	return counts, n
}

func summarize(values []float64) *Summary {
	s := &Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	data := stats.Float64Data(values)
	s.Mean, _ = stats.Mean(data)
	s.StdDev, _ = stats.StandardDeviation(data)
	s.Min, _ = stats.Min(data)
	s.Median, _ = stats.Median(data)
	s.Max, _ = stats.Max(data)
	return s
}

// WriteReport persists a report as YAML, creating parent directories
func WriteReport(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode drift report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write drift report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode drift report: %w", err)
	}
	return &r, nil
}
