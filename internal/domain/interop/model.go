package interop

import (
	"errors"
	"time"

	"github.com/oncore/oncore/internal/domain/assessments"
	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/internal/domain/genomics"
	"github.com/oncore/oncore/internal/domain/neoplasms"
	"github.com/oncore/oncore/internal/domain/therapies"
	"github.com/oncore/oncore/internal/platform/anonymize"
)

// ExportVersion is recorded in every envelope so importers can detect
// format drift.
const ExportVersion = "1"

// Conflict resolutions accepted on import.
const (
	ConflictOverwrite = "overwrite"
	ConflictReassign  = "reassign"
)

var (
	// ErrConflictingCase signals a bundle whose pseudoidentifier already
	// exists and no conflict resolution was requested.
	ErrConflictingCase = cases.ErrConflictingCase
	// ErrConflictingClinicalIdentifier signals a clinical identifier that is
	// already bound to another case in the same clinical center.
	ErrConflictingClinicalIdentifier = cases.ErrConflictingClinicalIdentifier

	// ErrUnknownConflictResolution rejects conflict parameters other than
	// overwrite and reassign.
	ErrUnknownConflictResolution = errors.New("unknown conflict resolution")
)

// ExportMetadata travels with every exported envelope. The checksum is an
// md5 over the sort-keyed canonical JSON of the payload without metadata.
type ExportMetadata struct {
	ExportedAt    time.Time `json:"exportedAt"`
	ExportedBy    string    `json:"exportedBy"`
	ExportVersion string    `json:"exportVersion"`
	Checksum      string    `json:"checksum"`
}

// CompletionMarker carries a data-completion category across systems along
// with the username that originally marked it.
type CompletionMarker struct {
	Category string `json:"category"`
	Author   string `json:"author,omitempty"`
}

// PatientCaseBundle is the envelope a case travels in: the case plus every
// owned child record, the contributor roster, and export metadata.
type PatientCaseBundle struct {
	Case *cases.PatientCase `json:"case"`

	NeoplasticEntities []*neoplasms.NeoplasticEntity `json:"neoplasticEntities,omitempty"`
	Stagings           []*neoplasms.Staging          `json:"stagings,omitempty"`
	TumorMarkers       []*neoplasms.TumorMarker      `json:"tumorMarkers,omitempty"`
	RiskAssessments    []*neoplasms.RiskAssessment   `json:"riskAssessments,omitempty"`
	TumorBoards        []*neoplasms.TumorBoard       `json:"tumorBoards,omitempty"`

	GenomicVariants   []*genomics.GenomicVariant   `json:"genomicVariants,omitempty"`
	GenomicSignatures []*genomics.GenomicSignature `json:"genomicSignatures,omitempty"`

	TherapyLines      []*therapies.TherapyLine     `json:"therapyLines,omitempty"`
	SystemicTherapies []*therapies.SystemicTherapy `json:"systemicTherapies,omitempty"`
	Radiotherapies    []*therapies.Radiotherapy    `json:"radiotherapies,omitempty"`
	Surgeries         []*therapies.Surgery         `json:"surgeries,omitempty"`

	AdverseEvents            []*assessments.AdverseEvent            `json:"adverseEvents,omitempty"`
	TreatmentResponses       []*assessments.TreatmentResponse       `json:"treatmentResponses,omitempty"`
	PerformanceStatuses      []*assessments.PerformanceStatus       `json:"performanceStatuses,omitempty"`
	ComorbiditiesAssessments []*assessments.ComorbiditiesAssessment `json:"comorbiditiesAssessments,omitempty"`
	Vitals                   []*assessments.Vitals                  `json:"vitals,omitempty"`
	Lifestyles               []*assessments.Lifestyle               `json:"lifestyles,omitempty"`
	FamilyHistories          []*assessments.FamilyHistory           `json:"familyHistories,omitempty"`

	Completions  []CompletionMarker      `json:"completions,omitempty"`
	Contributors []anonymize.Contributor `json:"contributors,omitempty"`

	Metadata *ExportMetadata `json:"metadata,omitempty"`
}

// ExportedResource wraps a single exported resource with its metadata.
type ExportedResource struct {
	ResourceType string          `json:"resourceType"`
	Resource     interface{}     `json:"resource"`
	Metadata     *ExportMetadata `json:"metadata"`
}
