package neoplasms

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// Relationship values of a neoplastic entity to the disease.
const (
	RelationshipPrimary            = "primary"
	RelationshipMetastatic         = "metastatic"
	RelationshipLocalRecurrence    = "local_recurrence"
	RelationshipRegionalRecurrence = "regional_recurrence"
)

var validRelationships = map[string]bool{
	RelationshipPrimary: true, RelationshipMetastatic: true,
	RelationshipLocalRecurrence: true, RelationshipRegionalRecurrence: true,
}

// NeoplasticEntity is a tumor assertion on a case. A primary entity never
// points at a related primary.
type NeoplasticEntity struct {
	ID               uuid.UUID              `json:"id"`
	CaseID           uuid.UUID              `json:"case"`
	Relationship     string                 `json:"relationship"`
	RelatedPrimaryID *uuid.UUID             `json:"relatedPrimary"`
	AssertionDate    *time.Time             `json:"assertionDate"`
	Topography       clinical.CodedConcept  `json:"topography"`
	Morphology       clinical.CodedConcept  `json:"morphology"`
	Differentiation  *clinical.CodedConcept `json:"differentiation"`
	Laterality       *clinical.CodedConcept `json:"laterality"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`

	// Derived from the first three characters of the topography code.
	TopographyGroup *clinical.CodedConcept `json:"topographyGroup"`
}

// Staging domains. Each staging row carries its domain tag plus the
// domain's own fields in Details.
var validStagingDomains = map[string]bool{
	"TNM": true, "FIGO": true, "Binet": true, "Rai": true, "Breslow": true,
	"Clark": true, "ISS": true, "RISS": true, "INSS": true, "INRGSS": true,
	"Gleason": true, "Wilms": true, "Rhabdo": true, "Lymphoma": true,
}

type Staging struct {
	ID                 uuid.UUID              `json:"id"`
	CaseID             uuid.UUID              `json:"case"`
	NeoplasticEntityID *uuid.UUID             `json:"neoplasticEntity"`
	Domain             string                 `json:"domain"`
	StagingDate        *time.Time             `json:"stagingDate"`
	Stage              *clinical.CodedConcept `json:"stage"`
	Details            map[string]interface{} `json:"details"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

type TumorMarker struct {
	ID             uuid.UUID              `json:"id"`
	CaseID         uuid.UUID              `json:"case"`
	Date           *time.Time             `json:"date"`
	Analyte        clinical.CodedConcept  `json:"analyte"`
	Value          *clinical.Measure      `json:"value"`
	Interpretation *clinical.CodedConcept `json:"interpretation"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type RiskAssessment struct {
	ID          uuid.UUID              `json:"id"`
	CaseID      uuid.UUID              `json:"case"`
	Date        *time.Time             `json:"date"`
	Methodology clinical.CodedConcept  `json:"methodology"`
	Result      *clinical.CodedConcept `json:"result"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Tumor board kinds.
const (
	BoardUnspecified = "unspecified"
	BoardMolecular   = "molecular"
)

var validBoardKinds = map[string]bool{BoardUnspecified: true, BoardMolecular: true}

// TumorBoard is a board review of a case. Only molecular boards carry
// therapeutic recommendations.
type TumorBoard struct {
	ID                         uuid.UUID               `json:"id"`
	CaseID                     uuid.UUID               `json:"case"`
	Kind                       string                  `json:"kind"`
	Date                       *time.Time              `json:"date"`
	TherapeuticRecommendations []clinical.CodedConcept `json:"therapeuticRecommendations,omitempty"`
	CreatedAt                  time.Time               `json:"createdAt"`
	UpdatedAt                  time.Time               `json:"updatedAt"`
}
