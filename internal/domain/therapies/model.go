package therapies

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// Therapy intents.
const (
	IntentCurative   = "curative"
	IntentPalliative = "palliative"
)

var validIntents = map[string]bool{IntentCurative: true, IntentPalliative: true}

// SystemicTherapy is one administered drug regimen on a case.
type SystemicTherapy struct {
	ID                uuid.UUID              `json:"id"`
	CaseID            uuid.UUID              `json:"case"`
	TherapyLineID     *uuid.UUID             `json:"therapyLine"`
	Period            clinical.Period        `json:"period"`
	Cycles            *int                   `json:"cycles"`
	Intent            *string                `json:"intent"`
	AdjunctiveRole    *clinical.CodedConcept `json:"adjunctiveRole"`
	TerminationReason *clinical.CodedConcept `json:"terminationReason"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`

	IsAdjunctive bool `json:"isAdjunctive"`

	Medications []*SystemicTherapyMedication `json:"medications,omitempty"`
}

func (t *SystemicTherapy) decorate() {
	t.IsAdjunctive = t.AdjunctiveRole != nil
}

// SystemicTherapyMedication is one drug within a systemic therapy. Exactly
// one of the dosage fields may be set; they differ only in dimension.
type SystemicTherapyMedication struct {
	ID              uuid.UUID              `json:"id"`
	TherapyID       uuid.UUID              `json:"systemicTherapy"`
	Drug            clinical.CodedConcept  `json:"drug"`
	TherapyCategory *clinical.CodedConcept `json:"therapyCategory"`
	Route           *clinical.CodedConcept `json:"route"`
	UsedOffLabel    bool                   `json:"usedOffLabel"`
	WithinSoc       bool                   `json:"withinSoc"`

	AbsoluteDose     *clinical.Measure `json:"absoluteDose"`
	DosePerKg        *clinical.Measure `json:"dosePerKg"`
	DosePerM2        *clinical.Measure `json:"dosePerM2"`
	DosePerDay       *clinical.Measure `json:"dosePerDay"`
	RatePerHour      *clinical.Measure `json:"ratePerHour"`
	RatePerKgPerHour *clinical.Measure `json:"ratePerKgPerHour"`
	RatePerM2PerHour *clinical.Measure `json:"ratePerM2PerHour"`
	CumulativeDose   *clinical.Measure `json:"cumulativeDose"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *SystemicTherapyMedication) validateDosage() error {
	set := 0
	for _, d := range []*clinical.Measure{
		m.AbsoluteDose, m.DosePerKg, m.DosePerM2, m.DosePerDay,
		m.RatePerHour, m.RatePerKgPerHour, m.RatePerM2PerHour, m.CumulativeDose,
	} {
		if d != nil {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("dosage fields are mutually exclusive, %d set", set)
	}
	return nil
}

// Radiotherapy with its dosage and setting children.
type Radiotherapy struct {
	ID                uuid.UUID              `json:"id"`
	CaseID            uuid.UUID              `json:"case"`
	TherapyLineID     *uuid.UUID             `json:"therapyLine"`
	Period            clinical.Period        `json:"period"`
	Sessions          *int                   `json:"sessions"`
	Intent            *string                `json:"intent"`
	TerminationReason *clinical.CodedConcept `json:"terminationReason"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`

	Dosages  []*RadiotherapyDosage  `json:"dosages,omitempty"`
	Settings []*RadiotherapySetting `json:"settings,omitempty"`
}

type RadiotherapyDosage struct {
	ID               uuid.UUID              `json:"id"`
	RadiotherapyID   uuid.UUID              `json:"radiotherapy"`
	Dose             *clinical.Measure      `json:"dose"`
	Fractions        *int                   `json:"fractions"`
	IrradiatedVolume *clinical.CodedConcept `json:"irradiatedVolume"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

type RadiotherapySetting struct {
	ID             uuid.UUID              `json:"id"`
	RadiotherapyID uuid.UUID              `json:"radiotherapy"`
	Modality       *clinical.CodedConcept `json:"modality"`
	Technique      *clinical.CodedConcept `json:"technique"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type Surgery struct {
	ID            uuid.UUID              `json:"id"`
	CaseID        uuid.UUID              `json:"case"`
	TherapyLineID *uuid.UUID             `json:"therapyLine"`
	Date          *time.Time             `json:"date"`
	Intent        *string                `json:"intent"`
	Procedure     *clinical.CodedConcept `json:"procedure"`
	Location      *clinical.CodedConcept `json:"location"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// TherapyLine is derived: lines are recomputed from the case's therapies
// and never edited directly.
type TherapyLine struct {
	ID      uuid.UUID       `json:"id"`
	CaseID  uuid.UUID       `json:"case"`
	Ordinal int             `json:"ordinal"`
	Intent  string          `json:"intent"`
	Period  clinical.Period `json:"period"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Label                   string   `json:"label"`
	ProgressionFreeSurvival *float64 `json:"progressionFreeSurvival"`
}

// LineLabel is "C" or "P" + "LoT" + ordinal, e.g. CLoT1, PLoT2.
func LineLabel(intent string, ordinal int) string {
	prefix := "C"
	if intent == IntentPalliative {
		prefix = "P"
	}
	return fmt.Sprintf("%sLoT%d", prefix, ordinal)
}

func (l *TherapyLine) decorate() {
	l.Label = LineLabel(l.Intent, l.Ordinal)
}

// ParseLineLabel is the inverse of LineLabel.
func ParseLineLabel(label string) (intent string, ordinal int, err error) {
	var prefix string
	if _, err := fmt.Sscanf(label, "%1sLoT%d", &prefix, &ordinal); err != nil {
		return "", 0, fmt.Errorf("malformed therapy line label %q", label)
	}
	switch prefix {
	case "C":
		intent = IntentCurative
	case "P":
		intent = IntentPalliative
	default:
		return "", 0, fmt.Errorf("malformed therapy line label %q", label)
	}
	if ordinal < 1 {
		return "", 0, fmt.Errorf("malformed therapy line label %q", label)
	}
	return intent, ordinal, nil
}
