package projects

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// Project lifecycle statuses.
const (
	StatusPlanned   = "planned"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

var validStatuses = map[string]bool{
	StatusPlanned:   true,
	StatusOngoing:   true,
	StatusCompleted: true,
	StatusAborted:   true,
}

type Project struct {
	ID                   uuid.UUID       `json:"id"`
	Title                string          `json:"title"`
	Summary              *string         `json:"summary"`
	Status               string          `json:"status"`
	LeaderID             uuid.UUID       `json:"leader"`
	ClinicalCenters      []string        `json:"clinicalCenters"`
	EthicsApprovalNumber *string         `json:"ethicsApprovalNumber"`
	DataConstraints      json.RawMessage `json:"dataConstraints,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`

	Members []uuid.UUID `json:"members,omitempty"`
}

type ProjectMembership struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project"`
	UserID    uuid.UUID `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectDataManagerGrant gives a user data-manager rights on a project for
// a bounded period. Grants are revoked, never deleted.
type ProjectDataManagerGrant struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"project"`
	UserID         uuid.UUID       `json:"user"`
	ValidityPeriod clinical.Period `json:"validityPeriod"`
	Revoked        bool            `json:"revoked"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	IsValid bool `json:"isValid"`
}

func (g *ProjectDataManagerGrant) decorate(now time.Time) {
	g.IsValid = !g.Revoked && g.ValidityPeriod.Contains(now)
}
