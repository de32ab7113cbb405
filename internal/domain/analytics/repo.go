package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LineSample is one therapy line of a cohort member with everything the
// bucketing needs: progression timing, medication drugs and categories, and
// whether a radiotherapy is attached.
type LineSample struct {
	LineID           uuid.UUID
	CaseID           uuid.UUID
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	FirstProgression *time.Time
	Drugs            []string
	Categories       []string
	HasRadiotherapy  bool
}

type Repository interface {
	// SurvivalDurations returns months from first neoplasm assertion to
	// death per case; nil for cases still alive or without an assertion.
	SurvivalDurations(ctx context.Context, caseIDs []uuid.UUID) ([]*float64, error)
	// LineSamples returns the therapy lines of the given intent and ordinal
	// across the cases.
	LineSamples(ctx context.Context, caseIDs []uuid.UUID, intent string, ordinal int) ([]*LineSample, error)
	// ResponseCategories returns the recist display of every treatment
	// response dated within a therapy attached to a matching line.
	ResponseCategories(ctx context.Context, caseIDs []uuid.UUID, intent string, ordinal int) ([]string, error)
	// GeneCounts aggregates genomic variants by gene display.
	GeneCounts(ctx context.Context, caseIDs []uuid.UUID) ([]GeneCount, error)
}
