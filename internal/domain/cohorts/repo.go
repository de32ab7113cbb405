package cohorts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TraitRow is the per-case slice of fields the traits summary reads.
type TraitRow struct {
	CaseID          uuid.UUID
	Gender          *string
	ConsentStatus   *string
	DateOfBirth     *time.Time
	DateOfDeath     *time.Time
	HasCauseOfDeath bool
}

type CohortRepository interface {
	Create(ctx context.Context, c *Cohort) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cohort, error)
	Update(ctx context.Context, c *Cohort) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Cohort, int, error)

	// Members reads the materialized membership.
	Members(ctx context.Context, cohortID uuid.UUID) ([]uuid.UUID, error)
	// ReplaceMembers rewrites the materialized membership atomically.
	ReplaceMembers(ctx context.Context, cohortID uuid.UUID, caseIDs []uuid.UUID) error

	// FindCaseIDs evaluates a compiled predicate over patient_cases under
	// the alias "pc".
	FindCaseIDs(ctx context.Context, predicate string, args []interface{}) ([]uuid.UUID, error)

	TraitRows(ctx context.Context, caseIDs []uuid.UUID) ([]TraitRow, error)
	PrimarySiteCounts(ctx context.Context, caseIDs []uuid.UUID) ([]ValueCount, error)
}
