package assessments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/events"
)

const (
	adverseEventResourceType      = "AdverseEvent"
	suspectedCauseResourceType    = "AdverseEventSuspectedCause"
	mitigationResourceType        = "AdverseEventMitigation"
	treatmentResponseResourceType = "TreatmentResponse"
	performanceStatusResourceType = "PerformanceStatus"
	comorbiditiesResourceType     = "ComorbiditiesAssessment"
	vitalsResourceType            = "Vitals"
	lifestyleResourceType         = "Lifestyle"
	familyHistoryResourceType     = "FamilyHistory"
)

// EventLog is the slice of the event service this package records through.
// Satisfied by *events.Service.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

type Service struct {
	adverse       AdverseEventRepository
	responses     TreatmentResponseRepository
	performance   PerformanceStatusRepository
	comorbidities ComorbiditiesRepository
	vitals        VitalsRepository
	lifestyles    LifestyleRepository
	families      FamilyHistoryRepository
	events        EventLog
	anon          *anonymize.Anonymizer
}

func NewService(
	adverse AdverseEventRepository,
	responses TreatmentResponseRepository,
	performance PerformanceStatusRepository,
	comorbidities ComorbiditiesRepository,
	vitals VitalsRepository,
	lifestyles LifestyleRepository,
	families FamilyHistoryRepository,
	eventLog EventLog,
) *Service {
	return &Service{
		adverse:       adverse,
		responses:     responses,
		performance:   performance,
		comorbidities: comorbidities,
		vitals:        vitals,
		lifestyles:    lifestyles,
		families:      families,
		events:        eventLog,
	}
}

func (s *Service) ResponseRepo() TreatmentResponseRepository { return s.responses }

// ProgressionDates satisfies the therapy-line engine's response source.
func (s *Service) ProgressionDates(ctx context.Context, caseID uuid.UUID) ([]time.Time, error) {
	return s.responses.ProgressionDates(ctx, caseID)
}

// -- AdverseEvent --

func validateAdverseEvent(ae *AdverseEvent) error {
	if ae.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if ae.Event.Code == "" {
		return fmt.Errorf("event is required")
	}
	if ae.Grade != nil && (*ae.Grade < 1 || *ae.Grade > 5) {
		return fmt.Errorf("grade %d outside CTCAE range 1..5", *ae.Grade)
	}
	return nil
}

func (s *Service) CreateAdverseEvent(ctx context.Context, ae *AdverseEvent) error {
	if err := validateAdverseEvent(ae); err != nil {
		return err
	}
	if err := s.adverse.Create(ctx, ae); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, adverseEventResourceType, ae.ID, events.LabelCreate, ae, nil)
	return err
}

func (s *Service) GetAdverseEvent(ctx context.Context, id uuid.UUID) (*AdverseEvent, error) {
	return s.adverse.GetByID(ctx, id)
}

func (s *Service) UpdateAdverseEvent(ctx context.Context, ae *AdverseEvent) error {
	current, err := s.adverse.GetByID(ctx, ae.ID)
	if err != nil {
		return err
	}
	ae.CaseID = current.CaseID
	if err := validateAdverseEvent(ae); err != nil {
		return err
	}
	if err := s.adverse.Update(ctx, ae); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, adverseEventResourceType, ae.ID, events.LabelUpdate, ae, nil)
	return err
}

func (s *Service) DeleteAdverseEvent(ctx context.Context, id uuid.UUID) error {
	ae, err := s.adverse.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.adverse.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, adverseEventResourceType, id, events.LabelDelete, ae, nil)
	return err
}

func (s *Service) ListAdverseEvents(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*AdverseEvent, int, error) {
	return s.adverse.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) CreateSuspectedCause(ctx context.Context, sc *SuspectedCause) error {
	if sc.Cause.Code == "" {
		return fmt.Errorf("cause is required")
	}
	if _, err := s.adverse.GetByID(ctx, sc.AdverseEventID); err != nil {
		return err
	}
	if err := s.adverse.CreateCause(ctx, sc); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, suspectedCauseResourceType, sc.ID, events.LabelCreate, sc, nil)
	return err
}

func (s *Service) GetSuspectedCause(ctx context.Context, id uuid.UUID) (*SuspectedCause, error) {
	return s.adverse.GetCause(ctx, id)
}

func (s *Service) UpdateSuspectedCause(ctx context.Context, sc *SuspectedCause) error {
	current, err := s.adverse.GetCause(ctx, sc.ID)
	if err != nil {
		return err
	}
	sc.AdverseEventID = current.AdverseEventID
	if sc.Cause.Code == "" {
		return fmt.Errorf("cause is required")
	}
	if err := s.adverse.UpdateCause(ctx, sc); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, suspectedCauseResourceType, sc.ID, events.LabelUpdate, sc, nil)
	return err
}

func (s *Service) DeleteSuspectedCause(ctx context.Context, id uuid.UUID) error {
	sc, err := s.adverse.GetCause(ctx, id)
	if err != nil {
		return err
	}
	if err := s.adverse.DeleteCause(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, suspectedCauseResourceType, id, events.LabelDelete, sc, nil)
	return err
}

func (s *Service) ListSuspectedCauses(ctx context.Context, adverseEventID uuid.UUID) ([]*SuspectedCause, error) {
	return s.adverse.ListCauses(ctx, adverseEventID)
}

func (s *Service) CreateMitigation(ctx context.Context, m *Mitigation) error {
	if m.Action.Code == "" {
		return fmt.Errorf("action is required")
	}
	if _, err := s.adverse.GetByID(ctx, m.AdverseEventID); err != nil {
		return err
	}
	if err := s.adverse.CreateMitigation(ctx, m); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, mitigationResourceType, m.ID, events.LabelCreate, m, nil)
	return err
}

func (s *Service) GetMitigation(ctx context.Context, id uuid.UUID) (*Mitigation, error) {
	return s.adverse.GetMitigation(ctx, id)
}

func (s *Service) UpdateMitigation(ctx context.Context, m *Mitigation) error {
	current, err := s.adverse.GetMitigation(ctx, m.ID)
	if err != nil {
		return err
	}
	m.AdverseEventID = current.AdverseEventID
	if m.Action.Code == "" {
		return fmt.Errorf("action is required")
	}
	if err := s.adverse.UpdateMitigation(ctx, m); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, mitigationResourceType, m.ID, events.LabelUpdate, m, nil)
	return err
}

func (s *Service) DeleteMitigation(ctx context.Context, id uuid.UUID) error {
	m, err := s.adverse.GetMitigation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.adverse.DeleteMitigation(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, mitigationResourceType, id, events.LabelDelete, m, nil)
	return err
}

func (s *Service) ListMitigations(ctx context.Context, adverseEventID uuid.UUID) ([]*Mitigation, error) {
	return s.adverse.ListMitigations(ctx, adverseEventID)
}

// -- TreatmentResponse --

func validateTreatmentResponse(tr *TreatmentResponse) error {
	if tr.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if tr.Recist.Code == "" {
		return fmt.Errorf("recist assessment is required")
	}
	return nil
}

func (s *Service) CreateTreatmentResponse(ctx context.Context, tr *TreatmentResponse) error {
	if err := validateTreatmentResponse(tr); err != nil {
		return err
	}
	if err := s.responses.Create(ctx, tr); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, treatmentResponseResourceType, tr.ID, events.LabelCreate, tr, nil)
	return err
}

func (s *Service) GetTreatmentResponse(ctx context.Context, id uuid.UUID) (*TreatmentResponse, error) {
	return s.responses.GetByID(ctx, id)
}

func (s *Service) UpdateTreatmentResponse(ctx context.Context, tr *TreatmentResponse) error {
	current, err := s.responses.GetByID(ctx, tr.ID)
	if err != nil {
		return err
	}
	tr.CaseID = current.CaseID
	if err := validateTreatmentResponse(tr); err != nil {
		return err
	}
	if err := s.responses.Update(ctx, tr); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, treatmentResponseResourceType, tr.ID, events.LabelUpdate, tr, nil)
	return err
}

func (s *Service) DeleteTreatmentResponse(ctx context.Context, id uuid.UUID) error {
	tr, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.responses.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, treatmentResponseResourceType, id, events.LabelDelete, tr, nil)
	return err
}

func (s *Service) ListTreatmentResponses(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TreatmentResponse, int, error) {
	return s.responses.ListByCase(ctx, caseID, limit, offset)
}

// -- PerformanceStatus --

func validatePerformanceStatus(ps *PerformanceStatus) error {
	if ps.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if ps.Ecog == nil && ps.Karnofsky == nil {
		return fmt.Errorf("ecog or karnofsky score is required")
	}
	if ps.Ecog != nil && (*ps.Ecog < 0 || *ps.Ecog > 5) {
		return fmt.Errorf("ecog %d outside range 0..5", *ps.Ecog)
	}
	if ps.Karnofsky != nil && (*ps.Karnofsky < 0 || *ps.Karnofsky > 100) {
		return fmt.Errorf("karnofsky %d outside range 0..100", *ps.Karnofsky)
	}
	return nil
}

func (s *Service) CreatePerformanceStatus(ctx context.Context, ps *PerformanceStatus) error {
	if err := validatePerformanceStatus(ps); err != nil {
		return err
	}
	if err := s.performance.Create(ctx, ps); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, performanceStatusResourceType, ps.ID, events.LabelCreate, ps, nil)
	return err
}

func (s *Service) GetPerformanceStatus(ctx context.Context, id uuid.UUID) (*PerformanceStatus, error) {
	return s.performance.GetByID(ctx, id)
}

func (s *Service) UpdatePerformanceStatus(ctx context.Context, ps *PerformanceStatus) error {
	current, err := s.performance.GetByID(ctx, ps.ID)
	if err != nil {
		return err
	}
	ps.CaseID = current.CaseID
	if err := validatePerformanceStatus(ps); err != nil {
		return err
	}
	if err := s.performance.Update(ctx, ps); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, performanceStatusResourceType, ps.ID, events.LabelUpdate, ps, nil)
	return err
}

func (s *Service) DeletePerformanceStatus(ctx context.Context, id uuid.UUID) error {
	ps, err := s.performance.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.performance.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, performanceStatusResourceType, id, events.LabelDelete, ps, nil)
	return err
}

func (s *Service) ListPerformanceStatuses(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*PerformanceStatus, int, error) {
	return s.performance.ListByCase(ctx, caseID, limit, offset)
}

// -- ComorbiditiesAssessment --

func (s *Service) CreateComorbiditiesAssessment(ctx context.Context, ca *ComorbiditiesAssessment) error {
	if ca.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if ca.Panel == "" {
		return fmt.Errorf("panel is required")
	}
	if err := s.comorbidities.Create(ctx, ca); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, comorbiditiesResourceType, ca.ID, events.LabelCreate, ca, nil)
	return err
}

func (s *Service) GetComorbiditiesAssessment(ctx context.Context, id uuid.UUID) (*ComorbiditiesAssessment, error) {
	return s.comorbidities.GetByID(ctx, id)
}

func (s *Service) UpdateComorbiditiesAssessment(ctx context.Context, ca *ComorbiditiesAssessment) error {
	current, err := s.comorbidities.GetByID(ctx, ca.ID)
	if err != nil {
		return err
	}
	ca.CaseID = current.CaseID
	if ca.Panel == "" {
		return fmt.Errorf("panel is required")
	}
	if err := s.comorbidities.Update(ctx, ca); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, comorbiditiesResourceType, ca.ID, events.LabelUpdate, ca, nil)
	return err
}

func (s *Service) DeleteComorbiditiesAssessment(ctx context.Context, id uuid.UUID) error {
	ca, err := s.comorbidities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.comorbidities.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, comorbiditiesResourceType, id, events.LabelDelete, ca, nil)
	return err
}

func (s *Service) ListComorbiditiesAssessments(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*ComorbiditiesAssessment, int, error) {
	return s.comorbidities.ListByCase(ctx, caseID, limit, offset)
}

// -- Vitals --

func (s *Service) CreateVitals(ctx context.Context, v *Vitals) error {
	if v.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if err := s.vitals.Create(ctx, v); err != nil {
		return err
	}
	v.decorate()
	_, err := s.events.Record(ctx, vitalsResourceType, v.ID, events.LabelCreate, v, nil)
	return err
}

func (s *Service) GetVitals(ctx context.Context, id uuid.UUID) (*Vitals, error) {
	v, err := s.vitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v.decorate()
	return v, nil
}

func (s *Service) UpdateVitals(ctx context.Context, v *Vitals) error {
	current, err := s.vitals.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	v.CaseID = current.CaseID
	if err := s.vitals.Update(ctx, v); err != nil {
		return err
	}
	v.decorate()
	_, err = s.events.Record(ctx, vitalsResourceType, v.ID, events.LabelUpdate, v, nil)
	return err
}

func (s *Service) DeleteVitals(ctx context.Context, id uuid.UUID) error {
	v, err := s.vitals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.vitals.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, vitalsResourceType, id, events.LabelDelete, v, nil)
	return err
}

func (s *Service) ListVitals(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Vitals, int, error) {
	items, total, err := s.vitals.ListByCase(ctx, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, v := range items {
		v.decorate()
	}
	return items, total, nil
}

// -- Lifestyle --

func (s *Service) CreateLifestyle(ctx context.Context, l *Lifestyle) error {
	if l.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if err := s.lifestyles.Create(ctx, l); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, lifestyleResourceType, l.ID, events.LabelCreate, l, nil)
	return err
}

func (s *Service) GetLifestyle(ctx context.Context, id uuid.UUID) (*Lifestyle, error) {
	return s.lifestyles.GetByID(ctx, id)
}

func (s *Service) UpdateLifestyle(ctx context.Context, l *Lifestyle) error {
	current, err := s.lifestyles.GetByID(ctx, l.ID)
	if err != nil {
		return err
	}
	l.CaseID = current.CaseID
	if err := s.lifestyles.Update(ctx, l); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, lifestyleResourceType, l.ID, events.LabelUpdate, l, nil)
	return err
}

func (s *Service) DeleteLifestyle(ctx context.Context, id uuid.UUID) error {
	l, err := s.lifestyles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.lifestyles.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, lifestyleResourceType, id, events.LabelDelete, l, nil)
	return err
}

func (s *Service) ListLifestyles(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Lifestyle, int, error) {
	return s.lifestyles.ListByCase(ctx, caseID, limit, offset)
}

// -- FamilyHistory --

func (s *Service) CreateFamilyHistory(ctx context.Context, fh *FamilyHistory) error {
	if fh.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if fh.Relationship.Code == "" {
		return fmt.Errorf("relationship is required")
	}
	if err := s.families.Create(ctx, fh); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, familyHistoryResourceType, fh.ID, events.LabelCreate, fh, nil)
	return err
}

func (s *Service) GetFamilyHistory(ctx context.Context, id uuid.UUID) (*FamilyHistory, error) {
	return s.families.GetByID(ctx, id)
}

func (s *Service) UpdateFamilyHistory(ctx context.Context, fh *FamilyHistory) error {
	current, err := s.families.GetByID(ctx, fh.ID)
	if err != nil {
		return err
	}
	fh.CaseID = current.CaseID
	if fh.Relationship.Code == "" {
		return fmt.Errorf("relationship is required")
	}
	if err := s.families.Update(ctx, fh); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, familyHistoryResourceType, fh.ID, events.LabelUpdate, fh, nil)
	return err
}

func (s *Service) DeleteFamilyHistory(ctx context.Context, id uuid.UUID) error {
	fh, err := s.families.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.families.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, familyHistoryResourceType, id, events.LabelDelete, fh, nil)
	return err
}

func (s *Service) ListFamilyHistories(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*FamilyHistory, int, error) {
	return s.families.ListByCase(ctx, caseID, limit, offset)
}

// -- reverts --

func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(adverseEventResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var ae AdverseEvent
		if err := json.Unmarshal(snapshot, &ae); err != nil {
			return err
		}
		ae.ID = id
		return s.UpdateAdverseEvent(ctx, &ae)
	}))
	reg.RegisterReverter(treatmentResponseResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var tr TreatmentResponse
		if err := json.Unmarshal(snapshot, &tr); err != nil {
			return err
		}
		tr.ID = id
		return s.UpdateTreatmentResponse(ctx, &tr)
	}))
	reg.RegisterReverter(performanceStatusResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var ps PerformanceStatus
		if err := json.Unmarshal(snapshot, &ps); err != nil {
			return err
		}
		ps.ID = id
		return s.UpdatePerformanceStatus(ctx, &ps)
	}))
	reg.RegisterReverter(comorbiditiesResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var ca ComorbiditiesAssessment
		if err := json.Unmarshal(snapshot, &ca); err != nil {
			return err
		}
		ca.ID = id
		return s.UpdateComorbiditiesAssessment(ctx, &ca)
	}))
	reg.RegisterReverter(vitalsResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var v Vitals
		if err := json.Unmarshal(snapshot, &v); err != nil {
			return err
		}
		v.ID = id
		return s.UpdateVitals(ctx, &v)
	}))
	reg.RegisterReverter(lifestyleResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var l Lifestyle
		if err := json.Unmarshal(snapshot, &l); err != nil {
			return err
		}
		l.ID = id
		return s.UpdateLifestyle(ctx, &l)
	}))
	reg.RegisterReverter(familyHistoryResourceType, events.ReverterFunc(func(ctx context.Context, id uuid.UUID, snapshot json.RawMessage) error {
		var fh FamilyHistory
		if err := json.Unmarshal(snapshot, &fh); err != nil {
			return err
		}
		fh.ID = id
		return s.UpdateFamilyHistory(ctx, &fh)
	}))
}
