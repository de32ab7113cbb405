package assessments

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
)

// SetAnonymizer wires the case-keyed date shifter applied to anonymized
// reads. Without one, reads return stored dates and notes untouched.
func (s *Service) SetAnonymizer(anon *anonymize.Anonymizer) { s.anon = anon }

func (s *Service) shiftDate(d *time.Time, caseID uuid.UUID) {
	if s.anon == nil || d == nil {
		return
	}
	*d = s.anon.ShiftDate(*d, caseID.String())
}

func (s *Service) anonymizeAdverseEvent(ae *AdverseEvent) {
	s.shiftDate(ae.Date, ae.CaseID)
	for _, m := range ae.Mitigations {
		s.anonymizeMitigation(m)
	}
}

func (s *Service) anonymizeAdverseEvents(items []*AdverseEvent) {
	for _, ae := range items {
		s.anonymizeAdverseEvent(ae)
	}
}

// anonymizeMitigation redacts the free-text note; mitigation carries no
// dates of its own.
func (s *Service) anonymizeMitigation(m *Mitigation) {
	if s.anon == nil || m.Note == nil {
		return
	}
	redacted := anonymize.Redact(*m.Note)
	m.Note = &redacted
}

func (s *Service) anonymizeMitigations(items []*Mitigation) {
	for _, m := range items {
		s.anonymizeMitigation(m)
	}
}

func (s *Service) anonymizeTreatmentResponse(tr *TreatmentResponse) {
	s.shiftDate(tr.Date, tr.CaseID)
}

func (s *Service) anonymizeTreatmentResponses(items []*TreatmentResponse) {
	for _, tr := range items {
		s.anonymizeTreatmentResponse(tr)
	}
}

func (s *Service) anonymizePerformanceStatus(ps *PerformanceStatus) {
	s.shiftDate(ps.Date, ps.CaseID)
}

func (s *Service) anonymizePerformanceStatuses(items []*PerformanceStatus) {
	for _, ps := range items {
		s.anonymizePerformanceStatus(ps)
	}
}

func (s *Service) anonymizeComorbiditiesAssessment(ca *ComorbiditiesAssessment) {
	s.shiftDate(ca.Date, ca.CaseID)
}

func (s *Service) anonymizeComorbiditiesAssessments(items []*ComorbiditiesAssessment) {
	for _, ca := range items {
		s.anonymizeComorbiditiesAssessment(ca)
	}
}

func (s *Service) anonymizeVitals(v *Vitals) {
	s.shiftDate(v.Date, v.CaseID)
}

func (s *Service) anonymizeVitalsList(items []*Vitals) {
	for _, v := range items {
		s.anonymizeVitals(v)
	}
}

func (s *Service) anonymizeLifestyle(l *Lifestyle) {
	s.shiftDate(l.Date, l.CaseID)
}

func (s *Service) anonymizeLifestyles(items []*Lifestyle) {
	for _, l := range items {
		s.anonymizeLifestyle(l)
	}
}
