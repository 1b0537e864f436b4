package models

import "fmt"

// AcceptancePolicy decides whether a candidate model replaces the published one
type AcceptancePolicy string

const (
	// AcceptAlways accepts every candidate regardless of the baseline.
	AcceptAlways AcceptancePolicy = "always"
	// AcceptIfBetter accepts a candidate that strictly beats the baseline.
	AcceptIfBetter AcceptancePolicy = "if_better"
	// AcceptWithinTolerance accepts a candidate no worse than baseline minus a tolerance.
	AcceptWithinTolerance AcceptancePolicy = "within_tolerance"
)

// ParseAcceptancePolicy maps a config string onto a policy
func ParseAcceptancePolicy(s string) (AcceptancePolicy, error) {
	switch p := AcceptancePolicy(s); p {
	case AcceptAlways, AcceptIfBetter, AcceptWithinTolerance:
		return p, nil
	case "":
		return AcceptAlways, nil
	}
	return "", fmt.Errorf("unknown acceptance policy: %q", s)
}

// Accept applies the policy. A missing baseline is always accepted.
func (p AcceptancePolicy) Accept(candidate float64, baseline *float64, tolerance float64) bool {
	if baseline == nil {
		return true
	}
	switch p {
	case AcceptIfBetter:
		return candidate > *baseline
	case AcceptWithinTolerance:
		return candidate >= *baseline-tolerance
	}
	return true
}

// SplitSource selects which frame ingestion partitions
type SplitSource string

const (
	// SplitRaw splits the table as fetched, before column drops and NA removal.
	SplitRaw SplitSource = "raw"
	// SplitCleaned splits the table after column drops and NA removal.
	SplitCleaned SplitSource = "cleaned"
)

// ParseSplitSource maps a config string onto a split source
func ParseSplitSource(s string) (SplitSource, error) {
	switch src := SplitSource(s); src {
	case SplitRaw, SplitCleaned:
		return src, nil
	case "":
		return SplitRaw, nil
	}
	return "", fmt.Errorf("unknown split source: %q", s)
}
