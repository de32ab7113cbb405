package cohorts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Cohort struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       uuid.UUID       `json:"project"`
	Name            string          `json:"name"`
	IncludeCriteria json.RawMessage `json:"includeCriteria,omitempty"`
	ExcludeCriteria json.RawMessage `json:"excludeCriteria,omitempty"`
	ManualChoices   []uuid.UUID     `json:"manualChoices,omitempty"`
	FrozenSet       []uuid.UUID     `json:"frozenSet,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Cases      []uuid.UUID `json:"cases,omitempty"`
	Population int         `json:"population"`
}

// NumericSummary is the descriptive statistics block traits report for a
// numeric field of the member cases.
type NumericSummary struct {
	Count         int      `json:"count"`
	Mean          *float64 `json:"mean,omitempty"`
	StdDev        *float64 `json:"stdDev,omitempty"`
	Median        *float64 `json:"median,omitempty"`
	LowerQuartile *float64 `json:"lowerQuartile,omitempty"`
	UpperQuartile *float64 `json:"upperQuartile,omitempty"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Traits summarizes the member cases of a cohort.
type Traits struct {
	Population          int            `json:"population"`
	ValidConsentCases   int            `json:"validConsentCases"`
	Age                 NumericSummary `json:"age"`
	GenderDistribution  []ValueCount   `json:"genderDistribution"`
	ConsentDistribution []ValueCount   `json:"consentDistribution"`
	PrimarySites        []ValueCount   `json:"primarySites"`
	DeceasedCases       int            `json:"deceasedCases"`
}
