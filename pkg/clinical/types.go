package clinical

import (
	"fmt"
	"time"
)

// CodedConcept is a terminology-bound value drawn from an external codesystem.
type CodedConcept struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// Measure is a numeric value in a declared unit.
type Measure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Period is a half-open date range [Start, End). A nil End means ongoing.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Overlaps reports whether two periods share at least one day. Open ends are
// treated as unbounded.
func (p Period) Overlaps(other Period) bool {
	if p.Start != nil && other.End != nil && !p.Start.Before(*other.End) {
		return false
	}
	if other.Start != nil && p.End != nil && !other.Start.Before(*p.End) {
		return false
	}
	return true
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if p.Start != nil && t.Before(*p.Start) {
		return false
	}
	if p.End != nil && !t.Before(*p.End) {
		return false
	}
	return true
}

// Union extends the period to cover other. Open bounds win.
func (p Period) Union(other Period) Period {
	out := p
	if other.Start == nil || (out.Start != nil && other.Start.Before(*out.Start)) {
		out.Start = other.Start
	}
	if other.End == nil || (out.End != nil && other.End.After(*out.End)) {
		out.End = other.End
	}
	return out
}

// String renders the period as an ISO-8601 half-open range.
func (p Period) String() string {
	format := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return fmt.Sprintf("[%s, %s)", format(p.Start), format(p.End))
}

// MonthsBetween returns the number of whole months from a to b.
func MonthsBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24 / 30.4375
}
