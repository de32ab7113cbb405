package therapies

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
)

// SetAnonymizer wires the case-keyed date shifter applied to anonymized
// reads. Without one, reads return stored dates and periods untouched.
func (s *Service) SetAnonymizer(anon *anonymize.Anonymizer) { s.anon = anon }

func (s *Service) shiftDate(d *time.Time, caseID uuid.UUID) {
	if s.anon == nil || d == nil {
		return
	}
	*d = s.anon.ShiftDate(*d, caseID.String())
}

func (s *Service) anonymizeSystemicTherapy(st *SystemicTherapy) {
	if s.anon == nil {
		return
	}
	st.Period = s.anon.ShiftPeriod(st.Period, st.CaseID.String())
}

func (s *Service) anonymizeSystemicTherapies(items []*SystemicTherapy) {
	for _, st := range items {
		s.anonymizeSystemicTherapy(st)
	}
}

func (s *Service) anonymizeRadiotherapy(rt *Radiotherapy) {
	if s.anon == nil {
		return
	}
	rt.Period = s.anon.ShiftPeriod(rt.Period, rt.CaseID.String())
}

func (s *Service) anonymizeRadiotherapies(items []*Radiotherapy) {
	for _, rt := range items {
		s.anonymizeRadiotherapy(rt)
	}
}

func (s *Service) anonymizeSurgery(sg *Surgery) {
	s.shiftDate(sg.Date, sg.CaseID)
}

func (s *Service) anonymizeSurgeries(items []*Surgery) {
	for _, sg := range items {
		s.anonymizeSurgery(sg)
	}
}

func (s *Service) anonymizeTherapyLine(tl *TherapyLine) {
	if s.anon == nil {
		return
	}
	tl.Period = s.anon.ShiftPeriod(tl.Period, tl.CaseID.String())
}

func (s *Service) anonymizeTherapyLines(items []*TherapyLine) {
	for _, tl := range items {
		s.anonymizeTherapyLine(tl)
	}
}
