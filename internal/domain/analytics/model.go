package analytics

import "errors"

// ErrNoObservations rejects survival estimation over an empty sample.
var ErrNoObservations = errors.New("no observations")

// SurvivalCurve is a step curve over event times, seeded at month 0 with
// probability 1.
type SurvivalCurve struct {
	Months              []float64 `json:"months"`
	Probabilities       []float64 `json:"probabilities"`
	LowerConfidenceBand []float64 `json:"lowerConfidenceBand"`
	UpperConfidenceBand []float64 `json:"upperConfidenceBand"`
}

// PFSBucket groups the progression-free survival values of one therapy-line
// cohort slice, keyed by drug combination or therapy classification.
type PFSBucket struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	// Censored counts lines in the bucket without an observed progression.
	Censored int `json:"censored"`
}

// Therapy classifications derived from a line's medications and attached
// radiotherapies.
const (
	ClassChemotherapy       = "Chemotherapy"
	ClassImmunotherapy      = "Immunotherapy"
	ClassChemoimmunotherapy = "Chemoimmunotherapy"
	ClassRadiotherapy       = "Radiotherapy"
	ClassOther              = "Other"
)

// ResponseShare is one slice of a treatment-response distribution.
type ResponseShare struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GeneCount is one bar of a cohort's variant-gene histogram.
type GeneCount struct {
	Gene  string `json:"gene"`
	Count int    `json:"count"`
}
