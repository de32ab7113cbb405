package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// PatientCase is the root entity every clinical record hangs off.
// DateOfBirth and DateOfDeath are stored month-precise: the day is
// always the first of the month.
type PatientCase struct {
	ID                 uuid.UUID              `json:"id"`
	Pseudoidentifier   string                 `json:"pseudoidentifier"`
	ClinicalIdentifier *string                `json:"clinicalIdentifier"`
	ClinicalCenter     *string                `json:"clinicalCenter"`
	Gender             *clinical.CodedConcept `json:"gender"`
	Race               *clinical.CodedConcept `json:"race"`
	SexAtBirth         *clinical.CodedConcept `json:"sexAtBirth"`
	GenderIdentity     *clinical.CodedConcept `json:"genderIdentity"`
	DateOfBirth        *time.Time             `json:"dateOfBirth"`
	DateOfDeath        *time.Time             `json:"dateOfDeath"`
	CauseOfDeath       *clinical.CodedConcept `json:"causeOfDeath"`
	ConsentStatus      string                 `json:"consentStatus"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`

	// Derived on read.
	Age                *int     `json:"age"`
	IsDeceased         bool     `json:"isDeceased"`
	DataCompletionRate float64  `json:"dataCompletionRate"`
	OverallSurvival    *float64 `json:"overallSurvival"`
	Contributors       []string `json:"contributors"`
	Anonymized         bool     `json:"anonymized"`
}

// Consent statuses accepted on write.
var validConsentStatuses = map[string]bool{
	"valid": true, "expired": true, "revoked": true, "pending": true, "unknown": true,
}

// DataCompletion marks one documentation category of a case as complete.
type DataCompletion struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// CompletionCategories is the closed set of documentation categories the
// completion rate is measured against.
var CompletionCategories = []string{
	"demographics",
	"neoplastic_entities",
	"stagings",
	"tumor_markers",
	"risk_assessments",
	"genomic_variants",
	"genomic_signatures",
	"tumor_boards",
	"systemic_therapies",
	"radiotherapies",
	"surgeries",
	"adverse_events",
	"treatment_responses",
	"performance_status",
	"comorbidities",
	"vitals",
	"lifestyle",
	"family_history",
}

func validCategory(category string) bool {
	for _, c := range CompletionCategories {
		if c == category {
			return true
		}
	}
	return false
}

// OwnedResource identifies one child record of a case, typed by its
// model name as used in the event log.
type OwnedResource struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// firstOfMonth reports whether t is truncated to month precision.
func firstOfMonth(t *time.Time) bool {
	return t == nil || t.Day() == 1
}

// ageAt returns full years between dob and the reference date.
func ageAt(dob, ref time.Time) int {
	years := ref.Year() - dob.Year()
	if ref.Month() < dob.Month() || (ref.Month() == dob.Month() && ref.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
