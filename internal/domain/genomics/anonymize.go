package genomics

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

func (s *Service) anonymizeVariant(gv *GenomicVariant) {
	s.shiftDate(gv.Date, gv.CaseID)
}

func (s *Service) anonymizeVariants(items []*GenomicVariant) {
	for _, gv := range items {
		s.anonymizeVariant(gv)
	}
}

func (s *Service) anonymizeSignature(gs *GenomicSignature) {
	s.shiftDate(gs.Date, gs.CaseID)
}

func (s *Service) anonymizeSignatures(items []*GenomicSignature) {
	for _, gs := range items {
		s.anonymizeSignature(gs)
	}
}
