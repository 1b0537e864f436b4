package training

import (
	"fmt"
	"math"
)

func toInt(key string, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, fmt.Errorf("parameter %s: %v is not an integer", key, v)
}

// toOptionalInt maps nil to 0, used for "no limit"
func toOptionalInt(key string, v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	return toInt(key, v)
}

func toFloat(key string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("parameter %s: %v is not a number", key, v)
}

func toBool(key string, v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("parameter %s: %v is not a boolean", key, v)
}

func toString(key string, v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("parameter %s: %v is not a string", key, v)
}

func toSeed(key string, v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toInt(key, v)
	if err != nil {
		return nil, err
	}
	s := int64(n)
	return &s, nil
}

func unknownParam(model, key string) error {
	return fmt.Errorf("invalid parameter %q for estimator %s", key, model)
}

// MaxFeatures is the number of features a tree considers per split. It is
// stored as given ("sqrt", "log2", a fraction, or a count) and resolved
// against the feature count at fit time.
type MaxFeatures struct {
	Mode     string  `json:"mode,omitempty"` // "", "sqrt", "log2"
	Fraction float64 `json:"fraction,omitempty"`
	Count    int     `json:"count,omitempty"`
}

func parseMaxFeatures(key string, v any) (MaxFeatures, error) {
	switch x := v.(type) {
	case nil:
		return MaxFeatures{}, nil
	case string:
		if x == "sqrt" || x == "log2" {
			return MaxFeatures{Mode: x}, nil
		}
		if x == "auto" {
			return MaxFeatures{}, nil
		}
	case int:
		if x > 0 {
			return MaxFeatures{Count: x}, nil
		}
	case float64:
		if x > 0 && x <= 1 {
			return MaxFeatures{Fraction: x}, nil
		}
	}
	return MaxFeatures{}, fmt.Errorf("parameter %s: unsupported value %v", key, v)
}

// Resolve returns how many of p features to try
func (m MaxFeatures) Resolve(p int) int {
	k := p
	switch {
	case m.Mode == "sqrt":
		k = int(math.Sqrt(float64(p)))
	case m.Mode == "log2":
		k = int(math.Log2(float64(p)))
	case m.Fraction > 0:
		k = int(m.Fraction * float64(p))
	case m.Count > 0:
		k = m.Count
	}
	if k < 1 {
		k = 1
	}
	if k > p {
		k = p
	}
	return k
}
