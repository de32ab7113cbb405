package terminology

import (
	"context"

	"github.com/oncore/oncore/pkg/clinical"
)

// Concept is one row of a codesystem, with an optional parent forming the
// subsumption tree the descendsFrom operator walks.
type Concept struct {
	System     string `db:"system" json:"system"`
	Code       string `db:"code" json:"code"`
	Display    string `db:"display" json:"display"`
	ParentCode string `db:"parent_code" json:"parentCode,omitempty"`
}

// Coded returns the concept as a wire-level CodedConcept.
func (c Concept) Coded() clinical.CodedConcept {
	return clinical.CodedConcept{System: c.System, Code: c.Code, Display: c.Display}
}

type Repository interface {
	Get(ctx context.Context, system, code string) (*Concept, error)
	// Descendants returns the transitive closure under parent of the given
	// code, including the code itself.
	Descendants(ctx context.Context, system, code string) ([]string, error)
	// Group returns the concept of the grouping codesystem whose code is the
	// given prefix, used for topography groups.
	Group(ctx context.Context, system, codePrefix string) (*Concept, error)
}
