package neoplasms

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
)

// SetAnonymizer wires the case-keyed date shifter applied to anonymized
// reads. Without one, reads return stored dates untouched.
func (s *Service) SetAnonymizer(anon *anonymize.Anonymizer) { s.anon = anon }

func (s *Service) shiftDate(d *time.Time, caseID uuid.UUID) {
	if s.anon == nil || d == nil {
		return
	}
	*d = s.anon.ShiftDate(*d, caseID.String())
}

func (s *Service) anonymizeEntity(ne *NeoplasticEntity) {
	s.shiftDate(ne.AssertionDate, ne.CaseID)
}

func (s *Service) anonymizeEntities(items []*NeoplasticEntity) {
	for _, ne := range items {
		s.anonymizeEntity(ne)
	}
}

func (s *Service) anonymizeStaging(st *Staging) {
	s.shiftDate(st.StagingDate, st.CaseID)
}

func (s *Service) anonymizeStagings(items []*Staging) {
	for _, st := range items {
		s.anonymizeStaging(st)
	}
}

func (s *Service) anonymizeTumorMarker(tm *TumorMarker) {
	s.shiftDate(tm.Date, tm.CaseID)
}

func (s *Service) anonymizeTumorMarkers(items []*TumorMarker) {
	for _, tm := range items {
		s.anonymizeTumorMarker(tm)
	}
}

func (s *Service) anonymizeRiskAssessment(ra *RiskAssessment) {
	s.shiftDate(ra.Date, ra.CaseID)
}

func (s *Service) anonymizeRiskAssessments(items []*RiskAssessment) {
	for _, ra := range items {
		s.anonymizeRiskAssessment(ra)
	}
}

func (s *Service) anonymizeTumorBoard(tb *TumorBoard) {
	s.shiftDate(tb.Date, tb.CaseID)
}

func (s *Service) anonymizeTumorBoards(items []*TumorBoard) {
	for _, tb := range items {
		s.anonymizeTumorBoard(tb)
	}
}
