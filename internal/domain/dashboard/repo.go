package dashboard

import (
	"context"

	"github.com/oncore/oncore/pkg/clinical"
)

// SiteSample is one distinct primary topography with its case count, before
// terminology grouping.
type SiteSample struct {
	Topography clinical.CodedConcept
	Count      int
}

type Repository interface {
	Counts(ctx context.Context) (cases, projects, cohorts, users int, err error)
	// CompletionRates returns one completion fraction in [0,1] per case.
	CompletionRates(ctx context.Context) ([]float64, error)
	PrimarySites(ctx context.Context) ([]SiteSample, error)
	CasesByMonth(ctx context.Context) ([]MonthCount, error)
}
