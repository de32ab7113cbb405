package interop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/internal/domain/neoplasms"
	"github.com/oncore/oncore/internal/platform/events"
)

// ImportBundle writes a bundle into this system as a new case. Every
// record receives a fresh identifier and references between records are
// remapped along the way, so a bundle can be imported repeatedly or into a
// system that already holds unrelated data. The whole import is one
// transaction: a failing record rolls everything back.
//
// A pseudoidentifier that already exists is a conflict. Without a
// resolution the import is rejected; "overwrite" replaces the existing
// case (keeping its id), "reassign" imports the bundle as an entirely new
// case with a freshly drawn pseudoidentifier.
func (s *Service) ImportBundle(ctx context.Context, src *PatientCaseBundle, conflict string) (*cases.PatientCase, error) {
	if src == nil || src.Case == nil {
		return nil, fmt.Errorf("bundle has no case")
	}
	switch conflict {
	case "", ConflictOverwrite, ConflictReassign:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownConflictResolution, conflict)
	}

	// Work on a copy: the import rewrites ids in place.
	b, err := cloneBundle(src)
	if err != nil {
		return nil, err
	}

	var imported *cases.PatientCase
	err = s.run(ctx, func(ctx context.Context) error {
		pc, remap, err := s.importCase(ctx, b, conflict)
		if err != nil {
			return err
		}
		if err := s.importChildren(ctx, b, pc.ID, remap); err != nil {
			return err
		}
		if err := s.importCompletions(ctx, b, pc.ID); err != nil {
			return err
		}

		evtContext := map[string]interface{}{}
		if conflict != "" {
			evtContext["conflict"] = conflict
		}
		if b.Metadata != nil {
			evtContext["checksum"] = b.Metadata.Checksum
			evtContext["exportVersion"] = b.Metadata.ExportVersion
		}
		if _, err := s.events.Record(ctx, "PatientCase", pc.ID, events.LabelImport, pc, evtContext); err != nil {
			return err
		}
		imported = pc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imported, nil
}

// importCase resolves identifier conflicts and creates the case. It seeds
// the remap table with the bundle's case id.
func (s *Service) importCase(ctx context.Context, b *PatientCaseBundle, conflict string) (*cases.PatientCase, map[uuid.UUID]uuid.UUID, error) {
	pc := b.Case
	externalID := pc.ID
	pc.ID = uuid.Nil
	pc.Contributors = nil
	pc.Anonymized = false

	if pc.Pseudoidentifier != "" {
		if existing, err := s.cases.Repo().GetByPseudoidentifier(ctx, pc.Pseudoidentifier); err == nil {
			switch conflict {
			case ConflictOverwrite:
				if err := s.cases.DeleteCase(ctx, existing.ID); err != nil {
					return nil, nil, err
				}
				pc.ID = existing.ID
			case ConflictReassign:
				// Drop the identifier so the create draws a fresh one.
				pc.Pseudoidentifier = ""
			default:
				return nil, nil, ErrConflictingCase
			}
		}
	}

	// CreateCase still rejects a clinical identifier bound to another case
	// in the same center; no resolution mode covers that.
	if err := s.cases.CreateCase(ctx, pc); err != nil {
		return nil, nil, err
	}
	return pc, map[uuid.UUID]uuid.UUID{externalID: pc.ID}, nil
}

// importChildren creates every child record under the new case, in
// dependency order so references resolve against already-imported rows:
// neoplastic entities before stagings, therapy lines before the therapies
// that point at them, adverse events before their causes and mitigations.
func (s *Service) importChildren(ctx context.Context, b *PatientCaseBundle, caseID uuid.UUID, remap map[uuid.UUID]uuid.UUID) error {
	// Primaries first so relatedPrimary references resolve.
	entities := append([]*neoplasms.NeoplasticEntity(nil), b.NeoplasticEntities...)
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].RelatedPrimaryID == nil && entities[j].RelatedPrimaryID != nil
	})
	for _, ne := range entities {
		external := ne.ID
		ne.ID = uuid.Nil
		ne.CaseID = caseID
		ne.RelatedPrimaryID = remapRef(remap, ne.RelatedPrimaryID)
		if err := s.neoplasms.CreateEntity(ctx, ne); err != nil {
			return err
		}
		remap[external] = ne.ID
	}
	for _, st := range b.Stagings {
		st.ID = uuid.Nil
		st.CaseID = caseID
		st.NeoplasticEntityID = remapRef(remap, st.NeoplasticEntityID)
		if err := s.neoplasms.CreateStaging(ctx, st); err != nil {
			return err
		}
	}
	for _, tm := range b.TumorMarkers {
		tm.ID = uuid.Nil
		tm.CaseID = caseID
		if err := s.neoplasms.CreateTumorMarker(ctx, tm); err != nil {
			return err
		}
	}
	for _, ra := range b.RiskAssessments {
		ra.ID = uuid.Nil
		ra.CaseID = caseID
		if err := s.neoplasms.CreateRiskAssessment(ctx, ra); err != nil {
			return err
		}
	}
	for _, tb := range b.TumorBoards {
		tb.ID = uuid.Nil
		tb.CaseID = caseID
		if err := s.neoplasms.CreateTumorBoard(ctx, tb); err != nil {
			return err
		}
	}
	for _, gv := range b.GenomicVariants {
		gv.ID = uuid.Nil
		gv.CaseID = caseID
		if err := s.genomics.CreateVariant(ctx, gv); err != nil {
			return err
		}
	}
	for _, gs := range b.GenomicSignatures {
		gs.ID = uuid.Nil
		gs.CaseID = caseID
		if err := s.genomics.CreateSignature(ctx, gs); err != nil {
			return err
		}
	}

	// Therapies go through the repositories directly: the bundle already
	// carries the line assignment, and the service-level creates would
	// recompute lines and throw the remapped ids away mid-import.
	for _, tl := range b.TherapyLines {
		external := tl.ID
		tl.ID = uuid.Nil
		tl.CaseID = caseID
		if err := s.therapies.LineRepo().Create(ctx, tl); err != nil {
			return err
		}
		remap[external] = tl.ID
	}
	for _, st := range b.SystemicTherapies {
		medications := st.Medications
		st.Medications = nil
		st.ID = uuid.Nil
		st.CaseID = caseID
		st.TherapyLineID = remapRef(remap, st.TherapyLineID)
		if err := s.therapies.SystemicRepo().Create(ctx, st); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, "SystemicTherapy", st.ID, events.LabelCreate, st, nil); err != nil {
			return err
		}
		for _, m := range medications {
			m.ID = uuid.Nil
			m.TherapyID = st.ID
			if err := s.therapies.SystemicRepo().CreateMedication(ctx, m); err != nil {
				return err
			}
			if _, err := s.events.Record(ctx, "SystemicTherapyMedication", m.ID, events.LabelCreate, m, nil); err != nil {
				return err
			}
		}
		st.Medications = medications
	}
	for _, rt := range b.Radiotherapies {
		dosages, settings := rt.Dosages, rt.Settings
		rt.Dosages, rt.Settings = nil, nil
		rt.ID = uuid.Nil
		rt.CaseID = caseID
		rt.TherapyLineID = remapRef(remap, rt.TherapyLineID)
		if err := s.therapies.RadiotherapyRepo().Create(ctx, rt); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, "Radiotherapy", rt.ID, events.LabelCreate, rt, nil); err != nil {
			return err
		}
		for _, d := range dosages {
			d.ID = uuid.Nil
			d.RadiotherapyID = rt.ID
			if err := s.therapies.RadiotherapyRepo().CreateDosage(ctx, d); err != nil {
				return err
			}
			if _, err := s.events.Record(ctx, "RadiotherapyDosage", d.ID, events.LabelCreate, d, nil); err != nil {
				return err
			}
		}
		for _, set := range settings {
			set.ID = uuid.Nil
			set.RadiotherapyID = rt.ID
			if err := s.therapies.RadiotherapyRepo().CreateSetting(ctx, set); err != nil {
				return err
			}
			if _, err := s.events.Record(ctx, "RadiotherapySetting", set.ID, events.LabelCreate, set, nil); err != nil {
				return err
			}
		}
		rt.Dosages, rt.Settings = dosages, settings
	}
	for _, sg := range b.Surgeries {
		sg.ID = uuid.Nil
		sg.CaseID = caseID
		sg.TherapyLineID = remapRef(remap, sg.TherapyLineID)
		if err := s.therapies.SurgeryRepo().Create(ctx, sg); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, "Surgery", sg.ID, events.LabelCreate, sg, nil); err != nil {
			return err
		}
	}

	for _, ae := range b.AdverseEvents {
		causes, mitigations := ae.SuspectedCauses, ae.Mitigations
		ae.SuspectedCauses, ae.Mitigations = nil, nil
		ae.ID = uuid.Nil
		ae.CaseID = caseID
		if err := s.assessments.CreateAdverseEvent(ctx, ae); err != nil {
			return err
		}
		for _, sc := range causes {
			sc.ID = uuid.Nil
			sc.AdverseEventID = ae.ID
			if err := s.assessments.CreateSuspectedCause(ctx, sc); err != nil {
				return err
			}
		}
		for _, m := range mitigations {
			m.ID = uuid.Nil
			m.AdverseEventID = ae.ID
			if err := s.assessments.CreateMitigation(ctx, m); err != nil {
				return err
			}
		}
		ae.SuspectedCauses, ae.Mitigations = causes, mitigations
	}
	for _, tr := range b.TreatmentResponses {
		tr.ID = uuid.Nil
		tr.CaseID = caseID
		if err := s.assessments.CreateTreatmentResponse(ctx, tr); err != nil {
			return err
		}
	}
	for _, ps := range b.PerformanceStatuses {
		ps.ID = uuid.Nil
		ps.CaseID = caseID
		if err := s.assessments.CreatePerformanceStatus(ctx, ps); err != nil {
			return err
		}
	}
	for _, ca := range b.ComorbiditiesAssessments {
		ca.ID = uuid.Nil
		ca.CaseID = caseID
		if err := s.assessments.CreateComorbiditiesAssessment(ctx, ca); err != nil {
			return err
		}
	}
	for _, v := range b.Vitals {
		v.ID = uuid.Nil
		v.CaseID = caseID
		if err := s.assessments.CreateVitals(ctx, v); err != nil {
			return err
		}
	}
	for _, l := range b.Lifestyles {
		l.ID = uuid.Nil
		l.CaseID = caseID
		if err := s.assessments.CreateLifestyle(ctx, l); err != nil {
			return err
		}
	}
	for _, fh := range b.FamilyHistories {
		fh.ID = uuid.Nil
		fh.CaseID = caseID
		if err := s.assessments.CreateFamilyHistory(ctx, fh); err != nil {
			return err
		}
	}
	return nil
}

// importCompletions recreates the completion markers. The event carries the
// exporting system's author so the provenance of the marker survives the
// transfer even though the importing user recorded it here.
func (s *Service) importCompletions(ctx context.Context, b *PatientCaseBundle, caseID uuid.UUID) error {
	for _, marker := range b.Completions {
		dc := &cases.DataCompletion{CaseID: caseID, Category: marker.Category}
		if err := s.cases.Repo().AddCompletion(ctx, dc); err != nil {
			return err
		}
		var evtContext map[string]interface{}
		if marker.Author != "" {
			evtContext = map[string]interface{}{"username": marker.Author}
		}
		if _, err := s.events.Record(ctx, "PatientCaseDataCompletion", dc.ID, events.LabelCreate, dc, evtContext); err != nil {
			return err
		}
	}
	return nil
}

func remapRef(remap map[uuid.UUID]uuid.UUID, id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	if mapped, ok := remap[*id]; ok {
		v := mapped
		return &v
	}
	// Dangling reference into a record the bundle does not carry.
	return nil
}

func cloneBundle(src *PatientCaseBundle) (*PatientCaseBundle, error) {
	doc, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var b PatientCaseBundle
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
