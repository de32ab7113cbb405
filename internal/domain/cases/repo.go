package cases

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientCaseRepository interface {
	Create(ctx context.Context, pc *PatientCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientCase, error)
	GetByPseudoidentifier(ctx context.Context, pseudoidentifier string) (*PatientCase, error)
	GetByClinicalIdentifier(ctx context.Context, clinicalIdentifier, clinicalCenter string) (*PatientCase, error)
	Update(ctx context.Context, pc *PatientCase) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*PatientCase, int, error)

	// ListWhere lists cases matching a compiled SQL predicate over the
	// cases table aliased "pc", ordered by a validated column clause.
	ListWhere(ctx context.Context, where string, args []interface{}, orderBy string, limit, offset int) ([]*PatientCase, int, error)

	// FirstNeoplasmAssertion returns the earliest neoplastic-entity
	// assertion date of the case, or nil when none is recorded.
	FirstNeoplasmAssertion(ctx context.Context, caseID uuid.UUID) (*time.Time, error)

	// OwnedResources enumerates every child clinical record of the case,
	// typed by model name.
	OwnedResources(ctx context.Context, caseID uuid.UUID) ([]OwnedResource, error)

	ListCompletions(ctx context.Context, caseID uuid.UUID) ([]*DataCompletion, error)
	AddCompletion(ctx context.Context, dc *DataCompletion) error
	RemoveCompletion(ctx context.Context, caseID uuid.UUID, category string) error
}
