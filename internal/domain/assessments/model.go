package assessments

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// RECIST code marking progressive disease.
const ProgressionCode = "LA28370-7"

// AdverseEvent is a CTCAE-graded event observed during treatment.
type AdverseEvent struct {
	ID        uuid.UUID              `json:"id"`
	CaseID    uuid.UUID              `json:"case"`
	Date      *time.Time             `json:"date"`
	Event     clinical.CodedConcept  `json:"event"`
	Grade     *int                   `json:"grade"`
	Outcome   *clinical.CodedConcept `json:"outcome"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`

	SuspectedCauses []*SuspectedCause `json:"suspectedCauses,omitempty"`
	Mitigations     []*Mitigation     `json:"mitigations,omitempty"`
}

// SuspectedCause links an adverse event to the therapy or agent suspected
// of causing it.
type SuspectedCause struct {
	ID             uuid.UUID              `json:"id"`
	AdverseEventID uuid.UUID              `json:"adverseEvent"`
	Cause          clinical.CodedConcept  `json:"cause"`
	Causality      *clinical.CodedConcept `json:"causality"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type Mitigation struct {
	ID             uuid.UUID             `json:"id"`
	AdverseEventID uuid.UUID             `json:"adverseEvent"`
	Action         clinical.CodedConcept `json:"action"`
	Note           *string               `json:"note"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// TreatmentResponse is a RECIST response assessment at a point in time.
type TreatmentResponse struct {
	ID        uuid.UUID              `json:"id"`
	CaseID    uuid.UUID              `json:"case"`
	Date      *time.Time             `json:"date"`
	Recist    clinical.CodedConcept  `json:"recist"`
	Method    *clinical.CodedConcept `json:"method"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// PerformanceStatus carries ECOG and/or Karnofsky scores at a date.
type PerformanceStatus struct {
	ID        uuid.UUID  `json:"id"`
	CaseID    uuid.UUID  `json:"case"`
	Date      *time.Time `json:"date"`
	Ecog      *int       `json:"ecog"`
	Karnofsky *int       `json:"karnofsky"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ComorbiditiesAssessment records the comorbidity panel applied and the
// conditions found.
type ComorbiditiesAssessment struct {
	ID            uuid.UUID               `json:"id"`
	CaseID        uuid.UUID               `json:"case"`
	Date          *time.Time              `json:"date"`
	Panel         string                  `json:"panel"`
	Category      *string                 `json:"category"`
	Comorbidities []clinical.CodedConcept `json:"comorbidities"`
	Score         *int                    `json:"score"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

type Vitals struct {
	ID        uuid.UUID         `json:"id"`
	CaseID    uuid.UUID         `json:"case"`
	Date      *time.Time        `json:"date"`
	Height    *clinical.Measure `json:"height"`
	Weight    *clinical.Measure `json:"weight"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`

	BodyMassIndex *float64 `json:"bodyMassIndex"`
}

// decorate derives BMI when height (cm) and weight (kg) are both present.
func (v *Vitals) decorate() {
	if v.Height == nil || v.Weight == nil || v.Height.Value <= 0 {
		return
	}
	meters := v.Height.Value / 100
	bmi := v.Weight.Value / (meters * meters)
	v.BodyMassIndex = &bmi
}

type Lifestyle struct {
	ID            uuid.UUID              `json:"id"`
	CaseID        uuid.UUID              `json:"case"`
	Date          *time.Time             `json:"date"`
	SmokingStatus *clinical.CodedConcept `json:"smokingStatus"`
	PackYears     *float64               `json:"packYears"`
	AlcoholUse    *clinical.CodedConcept `json:"alcoholUse"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

type FamilyHistory struct {
	ID           uuid.UUID              `json:"id"`
	CaseID       uuid.UUID              `json:"case"`
	Relationship clinical.CodedConcept  `json:"relationship"`
	Condition    *clinical.CodedConcept `json:"condition"`
	AgeAtOnset   *int                   `json:"ageAtOnset"`
	Deceased     *bool                  `json:"deceased"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}
