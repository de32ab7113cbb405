package datasets

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/cohorts"
	"github.com/oncore/oncore/internal/domain/interop"
)

var (
	ErrUnknownResource  = errors.New("unknown resource")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidTransform = errors.New("invalid transform")
	ErrNoRules          = errors.New("a dataset needs at least one rule")
)

// Rule selects one field of one resource for projection. The transform
// defaults per field type: coded concepts emit their display, measures their
// value, dates their day.
type Rule struct {
	Resource  string `json:"resource"`
	Field     string `json:"field"`
	Transform string `json:"transform,omitempty"`
}

// Dataset is a named, reusable projection rule list owned by a project.
type Dataset struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project"`
	Name      string    `json:"name"`
	Rules     []Rule    `json:"rules"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record is one projected case: the requested case fields at the top level
// plus, per requested resource, a list of partial child records.
type Record map[string]interface{}

// ExportedDataset is the sealed result of projecting a dataset over a
// cohort.
type ExportedDataset struct {
	Dataset  *Dataset                `json:"dataset"`
	CohortID uuid.UUID               `json:"cohort"`
	Records  []Record                `json:"records"`
	Metadata *interop.ExportMetadata `json:"metadata"`
}

// ExportedCohortDefinition carries a cohort's rule definition (not its
// member data) to another system.
type ExportedCohortDefinition struct {
	Cohort   *cohorts.Cohort         `json:"cohort"`
	Metadata *interop.ExportMetadata `json:"metadata"`
}
