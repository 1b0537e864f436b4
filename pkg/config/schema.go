package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema describes the shipment table as declared in schema.yaml
type Schema struct {
	Columns            ColumnList `yaml:"columns"`
	DropColumns        []string   `yaml:"drop_columns"`
	NumericalColumns   []string   `yaml:"numerical_columns"`
	CategoricalColumns []string   `yaml:"categorical_columns"`
	OneHotColumns      []string   `yaml:"onehot_columns"`
	BinaryColumns      []string   `yaml:"binary_columns"`
	OutlierColumns     []string   `yaml:"outlier_capping_columns,omitempty"`
	TargetColumn       string     `yaml:"target_column"`
	HandleUnknown      string     `yaml:"handle_unknown"`
}

// Column is one declared column. DType is informational.
type Column struct {
	Name  string
	DType string
}

// ColumnList accepts either plain names or single-entry {name: dtype} maps:
//
//	columns:
//	  - Customer Id: category
//	  - Height
type ColumnList []Column

func (l *ColumnList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: columns must be a list", value.Line)
	}
	out := make(ColumnList, 0, len(value.Content))
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Column{Name: item.Value})
		case yaml.MappingNode:
			for i := 0; i+1 < len(item.Content); i += 2 {
				out = append(out, Column{Name: item.Content[i].Value, DType: item.Content[i+1].Value})
			}
		default:
			return fmt.Errorf("line %d: unsupported column entry", item.Line)
		}
	}
	*l = out
	return nil
}

// Names returns the declared column names in order
func (l ColumnList) Names() []string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.Name
	}
	return names
}

// LoadSchema reads and validates a schema file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema parses schema YAML and fills defaults
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if s.TargetColumn == "" {
		s.TargetColumn = "Cost"
	}
	if s.HandleUnknown == "" {
		s.HandleUnknown = "ignore"
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate validates the schema
// KeptColumns returns the declared column names minus drop_columns
func (s *Schema) KeptColumns() []string {
	drop := make(map[string]bool, len(s.DropColumns))
	for _, c := range s.DropColumns {
		drop[c] = true
	}
	var kept []string
	for _, c := range s.Columns {
		if !drop[c.Name] {
			kept = append(kept, c.Name)
		}
	}
	return kept
}

func (s *Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema columns are required")
	}
	if s.HandleUnknown != "ignore" && s.HandleUnknown != "error" {
		return fmt.Errorf("handle_unknown must be ignore or error, got %q", s.HandleUnknown)
	}
	seen := make(map[string]string)
	for _, group := range []struct {
		name string
		cols []string
	}{
		{"onehot_columns", s.OneHotColumns},
		{"binary_columns", s.BinaryColumns},
		{"numerical_columns", s.NumericalColumns},
	} {
		for _, c := range group.cols {
			if prev, ok := seen[c]; ok {
				return fmt.Errorf("column %q listed in both %s and %s", c, prev, group.name)
			}
			seen[c] = group.name
		}
	}
	if _, ok := seen[s.TargetColumn]; ok {
		return fmt.Errorf("target column %q must not be a feature", s.TargetColumn)
	}
	return nil
}

// ModelConfig is the parsed model.yaml
type ModelConfig struct {
	BaseModelScore float64       `yaml:"base_model_score"`
	CVFolds        int           `yaml:"cv_folds"`
	Candidates     CandidateList `yaml:"train_model"`
}

// Candidate is one model family with its hyperparameter grid
type Candidate struct {
	Name string
	Grid []GridParam
}

// GridParam is one hyperparameter and the values to try, in file order
type GridParam struct {
	Name   string
	Values []any
}

// CandidateList keeps train_model entries in the order they are declared
type CandidateList []Candidate

func (l *CandidateList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: train_model must be a mapping", value.Line)
	}
	out := make(CandidateList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		c := Candidate{Name: value.Content[i].Value}
		params := value.Content[i+1]
		switch params.Kind {
		case yaml.MappingNode:
			for j := 0; j+1 < len(params.Content); j += 2 {
				p := GridParam{Name: params.Content[j].Value}
				vals := params.Content[j+1]
				if vals.Kind == yaml.SequenceNode {
					if err := vals.Decode(&p.Values); err != nil {
						return fmt.Errorf("%s.%s: %w", c.Name, p.Name, err)
					}
				} else {
					var v any
					if err := vals.Decode(&v); err != nil {
						return fmt.Errorf("%s.%s: %w", c.Name, p.Name, err)
					}
					p.Values = []any{v}
				}
				if len(p.Values) == 0 {
					return fmt.Errorf("%s.%s: empty value list", c.Name, p.Name)
				}
				c.Grid = append(c.Grid, p)
			}
		case yaml.ScalarNode:
			// "LinearRegression:" with no grid
			if params.Tag != "!!null" && params.Value != "" {
				return fmt.Errorf("line %d: %s must map to a parameter grid", params.Line, c.Name)
			}
		default:
			return fmt.Errorf("line %d: %s must map to a parameter grid", params.Line, c.Name)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

// LoadModelConfig reads and validates model.yaml
func LoadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	return ParseModelConfig(data)
}

// ParseModelConfig parses model YAML
func ParseModelConfig(data []byte) (*ModelConfig, error) {
	var mc ModelConfig
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	if mc.CVFolds == 0 {
		mc.CVFolds = 2
	}
	if mc.CVFolds < 2 {
		return nil, fmt.Errorf("cv_folds must be at least 2, got %d", mc.CVFolds)
	}
	if len(mc.Candidates) == 0 {
		return nil, fmt.Errorf("train_model must list at least one model")
	}
	return &mc, nil
}
