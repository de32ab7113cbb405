package interop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/assessments"
	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/internal/domain/genomics"
	"github.com/oncore/oncore/internal/domain/identity"
	"github.com/oncore/oncore/internal/domain/neoplasms"
	"github.com/oncore/oncore/internal/domain/therapies"
	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/canonical"
	"github.com/oncore/oncore/internal/platform/events"
)

// exportLimit caps child-collection reads during bundle assembly. A single
// case never approaches it.
const exportLimit = 10000

// TxRunner wraps a function in a database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service assembles, exports and imports patient case bundles. It sits on
// top of the domain services so every import write produces its events and
// honors the domain validations.
type Service struct {
	cases       *cases.Service
	neoplasms   *neoplasms.Service
	genomics    *genomics.Service
	therapies   *therapies.Service
	assessments *assessments.Service
	users       *identity.Service
	events      *events.Service
	tx          TxRunner
	now         func() time.Time
}

func NewService(
	caseSvc *cases.Service,
	neoplasmSvc *neoplasms.Service,
	genomicSvc *genomics.Service,
	therapySvc *therapies.Service,
	assessmentSvc *assessments.Service,
	userSvc *identity.Service,
	eventSvc *events.Service,
	tx TxRunner,
) *Service {
	return &Service{
		cases:       caseSvc,
		neoplasms:   neoplasmSvc,
		genomics:    genomicSvc,
		therapies:   therapySvc,
		assessments: assessmentSvc,
		users:       userSvc,
		events:      eventSvc,
		tx:          tx,
		now:         time.Now,
	}
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

// AssembleBundle loads a case and every owned child record into one
// envelope, without metadata or anonymization.
func (s *Service) AssembleBundle(ctx context.Context, caseID uuid.UUID) (*PatientCaseBundle, error) {
	pc, err := s.cases.GetCase(ctx, caseID, false)
	if err != nil {
		return nil, err
	}
	b := &PatientCaseBundle{Case: pc}

	if b.NeoplasticEntities, _, err = s.neoplasms.ListEntities(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.Stagings, _, err = s.neoplasms.ListStagings(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.TumorMarkers, _, err = s.neoplasms.ListTumorMarkers(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.RiskAssessments, _, err = s.neoplasms.ListRiskAssessments(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.TumorBoards, _, err = s.neoplasms.ListTumorBoards(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.GenomicVariants, _, err = s.genomics.ListVariants(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.GenomicSignatures, _, err = s.genomics.ListSignatures(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.TherapyLines, _, err = s.therapies.ListTherapyLines(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.SystemicTherapies, _, err = s.therapies.ListSystemicTherapies(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	for _, st := range b.SystemicTherapies {
		if st.Medications, err = s.therapies.ListMedications(ctx, st.ID); err != nil {
			return nil, err
		}
	}
	if b.Radiotherapies, _, err = s.therapies.ListRadiotherapies(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	for _, rt := range b.Radiotherapies {
		if rt.Dosages, err = s.therapies.ListDosages(ctx, rt.ID); err != nil {
			return nil, err
		}
		if rt.Settings, err = s.therapies.ListSettings(ctx, rt.ID); err != nil {
			return nil, err
		}
	}
	if b.Surgeries, _, err = s.therapies.ListSurgeries(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.AdverseEvents, _, err = s.assessments.ListAdverseEvents(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	for _, ae := range b.AdverseEvents {
		if ae.SuspectedCauses, err = s.assessments.ListSuspectedCauses(ctx, ae.ID); err != nil {
			return nil, err
		}
		if ae.Mitigations, err = s.assessments.ListMitigations(ctx, ae.ID); err != nil {
			return nil, err
		}
	}
	if b.TreatmentResponses, _, err = s.assessments.ListTreatmentResponses(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.PerformanceStatuses, _, err = s.assessments.ListPerformanceStatuses(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.ComorbiditiesAssessments, _, err = s.assessments.ListComorbiditiesAssessments(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.Vitals, _, err = s.assessments.ListVitals(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.Lifestyles, _, err = s.assessments.ListLifestyles(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}
	if b.FamilyHistories, _, err = s.assessments.ListFamilyHistories(ctx, caseID, exportLimit, 0); err != nil {
		return nil, err
	}

	completions, err := s.cases.ListCompletions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, dc := range completions {
		marker := CompletionMarker{Category: dc.Category}
		if meta, err := s.events.Meta(ctx, "PatientCaseDataCompletion", dc.ID); err == nil && meta != nil {
			marker.Author = meta.CreatedBy
		}
		b.Completions = append(b.Completions, marker)
	}
	return b, nil
}

// ExportBundle assembles the case, anonymizes non-shareable contributors,
// seals the envelope with metadata and records export events on every
// top-level included resource.
func (s *Service) ExportBundle(ctx context.Context, caseID uuid.UUID, exportedBy string) (*PatientCaseBundle, error) {
	b, err := s.AssembleBundle(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.anonymizeContributors(ctx, b); err != nil {
		return nil, err
	}
	meta, err := s.seal(b, exportedBy)
	if err != nil {
		return nil, err
	}
	b.Metadata = meta

	evtContext := map[string]interface{}{
		"checksum":      meta.Checksum,
		"exportVersion": meta.ExportVersion,
	}
	for resourceType, ids := range bundleResourceIDs(b) {
		for _, id := range ids {
			if _, err := s.events.Record(ctx, resourceType, id, events.LabelExport, nil, evtContext); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// ExportResource wraps a single resource with export metadata and records
// an export event on it.
func (s *Service) ExportResource(ctx context.Context, resourceType string, resourceID uuid.UUID, resource interface{}, exportedBy string) (*ExportedResource, error) {
	checksum, err := canonical.Checksum(resource)
	if err != nil {
		return nil, err
	}
	meta := &ExportMetadata{
		ExportedAt:    s.now().UTC(),
		ExportedBy:    exportedBy,
		ExportVersion: ExportVersion,
		Checksum:      checksum,
	}
	evtContext := map[string]interface{}{
		"checksum":      meta.Checksum,
		"exportVersion": meta.ExportVersion,
	}
	if _, err := s.events.Record(ctx, resourceType, resourceID, events.LabelExport, nil, evtContext); err != nil {
		return nil, err
	}
	return &ExportedResource{ResourceType: resourceType, Resource: resource, Metadata: meta}, nil
}

// FetchResource loads a single resource by type and id for standalone
// export. Unknown types return an error.
func (s *Service) FetchResource(ctx context.Context, resourceType string, id uuid.UUID) (interface{}, error) {
	switch resourceType {
	case "PatientCase":
		return s.cases.GetCase(ctx, id, false)
	case "NeoplasticEntity":
		return s.neoplasms.GetEntity(ctx, id)
	case "Staging":
		return s.neoplasms.GetStaging(ctx, id)
	case "TumorMarker":
		return s.neoplasms.GetTumorMarker(ctx, id)
	case "RiskAssessment":
		return s.neoplasms.GetRiskAssessment(ctx, id)
	case "TumorBoard":
		return s.neoplasms.GetTumorBoard(ctx, id)
	case "GenomicVariant":
		return s.genomics.GetVariant(ctx, id)
	case "GenomicSignature":
		return s.genomics.GetSignature(ctx, id)
	case "TherapyLine":
		return s.therapies.GetTherapyLine(ctx, id)
	case "SystemicTherapy":
		return s.therapies.GetSystemicTherapy(ctx, id)
	case "SystemicTherapyMedication":
		return s.therapies.GetMedication(ctx, id)
	case "Radiotherapy":
		return s.therapies.GetRadiotherapy(ctx, id)
	case "RadiotherapyDosage":
		return s.therapies.GetDosage(ctx, id)
	case "RadiotherapySetting":
		return s.therapies.GetSetting(ctx, id)
	case "Surgery":
		return s.therapies.GetSurgery(ctx, id)
	case "AdverseEvent":
		return s.assessments.GetAdverseEvent(ctx, id)
	case "TreatmentResponse":
		return s.assessments.GetTreatmentResponse(ctx, id)
	case "PerformanceStatus":
		return s.assessments.GetPerformanceStatus(ctx, id)
	case "ComorbiditiesAssessment":
		return s.assessments.GetComorbiditiesAssessment(ctx, id)
	case "Vitals":
		return s.assessments.GetVitals(ctx, id)
	case "Lifestyle":
		return s.assessments.GetLifestyle(ctx, id)
	case "FamilyHistory":
		return s.assessments.GetFamilyHistory(ctx, id)
	default:
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}
}

// seal computes the checksum over the canonical payload and returns the
// metadata block. The checksum never covers the metadata itself.
func (s *Service) seal(b *PatientCaseBundle, exportedBy string) (*ExportMetadata, error) {
	b.Metadata = nil
	checksum, err := canonical.Checksum(b)
	if err != nil {
		return nil, err
	}
	return &ExportMetadata{
		ExportedAt:    s.now().UTC(),
		ExportedBy:    exportedBy,
		ExportVersion: ExportVersion,
		Checksum:      checksum,
	}, nil
}

// anonymizeContributors replaces the identity of non-shareable contributors
// and rewrites every occurrence of their original username in the bundle.
func (s *Service) anonymizeContributors(ctx context.Context, b *PatientCaseBundle) error {
	replacements := map[string]string{}
	var roster []anonymize.Contributor
	for _, username := range b.Case.Contributors {
		u, err := s.users.UserByUsername(ctx, username)
		if err != nil {
			// Contributor accounts can be gone; keep the raw username.
			roster = append(roster, anonymize.Contributor{Username: username, Shareable: true})
			continue
		}
		c := anonymize.Contributor{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Shareable: u.Shareable,
		}
		anonymized, replacement := anonymize.AnonymizeContributor(c)
		roster = append(roster, anonymized)
		if replacement != username {
			replacements[username] = replacement
		}
	}
	b.Contributors = roster
	if len(replacements) == 0 {
		return nil
	}
	return rewriteUsernames(b, replacements)
}

// rewriteUsernames textually replaces original usernames across the whole
// serialized bundle, so references in contributor lists, completion markers
// and free-form context all change together.
func rewriteUsernames(b *PatientCaseBundle, replacements map[string]string) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}
	text := string(doc)
	for original, replacement := range replacements {
		text = strings.ReplaceAll(text, `"`+original+`"`, `"`+replacement+`"`)
	}
	return json.Unmarshal([]byte(text), b)
}

// bundleResourceIDs lists the top-level resources an export touches.
func bundleResourceIDs(b *PatientCaseBundle) map[string][]uuid.UUID {
	out := map[string][]uuid.UUID{
		"PatientCase": {b.Case.ID},
	}
	add := func(resourceType string, id uuid.UUID) {
		out[resourceType] = append(out[resourceType], id)
	}
	for _, v := range b.NeoplasticEntities {
		add("NeoplasticEntity", v.ID)
	}
	for _, v := range b.Stagings {
		add("Staging", v.ID)
	}
	for _, v := range b.TumorMarkers {
		add("TumorMarker", v.ID)
	}
	for _, v := range b.RiskAssessments {
		add("RiskAssessment", v.ID)
	}
	for _, v := range b.TumorBoards {
		add("TumorBoard", v.ID)
	}
	for _, v := range b.GenomicVariants {
		add("GenomicVariant", v.ID)
	}
	for _, v := range b.GenomicSignatures {
		add("GenomicSignature", v.ID)
	}
	for _, v := range b.TherapyLines {
		add("TherapyLine", v.ID)
	}
	for _, v := range b.SystemicTherapies {
		add("SystemicTherapy", v.ID)
	}
	for _, v := range b.Radiotherapies {
		add("Radiotherapy", v.ID)
	}
	for _, v := range b.Surgeries {
		add("Surgery", v.ID)
	}
	for _, v := range b.AdverseEvents {
		add("AdverseEvent", v.ID)
	}
	for _, v := range b.TreatmentResponses {
		add("TreatmentResponse", v.ID)
	}
	for _, v := range b.PerformanceStatuses {
		add("PerformanceStatus", v.ID)
	}
	for _, v := range b.ComorbiditiesAssessments {
		add("ComorbiditiesAssessment", v.ID)
	}
	for _, v := range b.Vitals {
		add("Vitals", v.ID)
	}
	for _, v := range b.Lifestyles {
		add("Lifestyle", v.ID)
	}
	for _, v := range b.FamilyHistories {
		add("FamilyHistory", v.ID)
	}
	return out
}
