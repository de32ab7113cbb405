package therapies

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/events"
)

// Resource types as recorded in the event log.
const (
	systemicResourceType     = "SystemicTherapy"
	medicationResourceType   = "SystemicTherapyMedication"
	radiotherapyResourceType = "Radiotherapy"
	dosageResourceType       = "RadiotherapyDosage"
	settingResourceType      = "RadiotherapySetting"
	surgeryResourceType      = "Surgery"
)

// EventLog is the slice of the event service this package records through.
// Satisfied by *events.Service.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

// ResponseSource yields the dates of progressive-disease treatment responses
// of a case. Satisfied by the assessments service.
type ResponseSource interface {
	ProgressionDates(ctx context.Context, caseID uuid.UUID) ([]time.Time, error)
}

// MetastasisSource reports whether a case carries any metastatic neoplastic
// entity. Satisfied by the neoplasms service.
type MetastasisSource interface {
	HasMetastatic(ctx context.Context, caseID uuid.UUID) (bool, error)
}

// TxRunner executes fn inside a single transaction. Line assignment and the
// mutation that triggered it commit or roll back together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	systemic   SystemicTherapyRepository
	radio      RadiotherapyRepository
	surgeries  SurgeryRepository
	lines      TherapyLineRepository
	responses  ResponseSource
	metastases MetastasisSource
	events     EventLog
	tx         TxRunner
	anon       *anonymize.Anonymizer
}

func NewService(
	systemic SystemicTherapyRepository,
	radio RadiotherapyRepository,
	surgeries SurgeryRepository,
	lines TherapyLineRepository,
	responses ResponseSource,
	metastases MetastasisSource,
	eventLog EventLog,
	tx TxRunner,
) *Service {
	return &Service{
		systemic:   systemic,
		radio:      radio,
		surgeries:  surgeries,
		lines:      lines,
		responses:  responses,
		metastases: metastases,
		events:     eventLog,
		tx:         tx,
	}
}

func (s *Service) SystemicRepo() SystemicTherapyRepository { return s.systemic }
func (s *Service) RadiotherapyRepo() RadiotherapyRepository {
	return s.radio
}
func (s *Service) SurgeryRepo() SurgeryRepository  { return s.surgeries }
func (s *Service) LineRepo() TherapyLineRepository { return s.lines }

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

func validIntentPtr(intent *string) error {
	if intent != nil && !validIntents[*intent] {
		return fmt.Errorf("invalid intent %q", *intent)
	}
	return nil
}

// -- SystemicTherapy --

func (s *Service) CreateSystemicTherapy(ctx context.Context, st *SystemicTherapy) error {
	if st.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if err := validIntentPtr(st.Intent); err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.Create(ctx, st); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, systemicResourceType, st.ID, events.LabelCreate, st, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, st.CaseID)
	})
}

func (s *Service) GetSystemicTherapy(ctx context.Context, id uuid.UUID) (*SystemicTherapy, error) {
	st, err := s.systemic.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st.decorate()
	return st, nil
}

func (s *Service) UpdateSystemicTherapy(ctx context.Context, st *SystemicTherapy) error {
	if err := validIntentPtr(st.Intent); err != nil {
		return err
	}
	current, err := s.systemic.GetByID(ctx, st.ID)
	if err != nil {
		return err
	}
	st.CaseID = current.CaseID
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.Update(ctx, st); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, systemicResourceType, st.ID, events.LabelUpdate, st, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, st.CaseID)
	})
}

func (s *Service) DeleteSystemicTherapy(ctx context.Context, id uuid.UUID) error {
	st, err := s.systemic.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.Delete(ctx, id); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, systemicResourceType, id, events.LabelDelete, st, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, st.CaseID)
	})
}

func (s *Service) ListSystemicTherapies(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*SystemicTherapy, int, error) {
	items, total, err := s.systemic.ListByCase(ctx, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, st := range items {
		st.decorate()
	}
	return items, total, nil
}

// -- SystemicTherapyMedication --

func (s *Service) validateMedication(m *SystemicTherapyMedication) error {
	if m.Drug.Code == "" {
		return fmt.Errorf("drug is required")
	}
	return m.validateDosage()
}

func (s *Service) CreateMedication(ctx context.Context, m *SystemicTherapyMedication) error {
	if err := s.validateMedication(m); err != nil {
		return err
	}
	parent, err := s.systemic.GetByID(ctx, m.TherapyID)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.CreateMedication(ctx, m); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, medicationResourceType, m.ID, events.LabelCreate, m, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, parent.CaseID)
	})
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*SystemicTherapyMedication, error) {
	return s.systemic.GetMedication(ctx, id)
}

func (s *Service) UpdateMedication(ctx context.Context, m *SystemicTherapyMedication) error {
	if err := s.validateMedication(m); err != nil {
		return err
	}
	current, err := s.systemic.GetMedication(ctx, m.ID)
	if err != nil {
		return err
	}
	m.TherapyID = current.TherapyID
	parent, err := s.systemic.GetByID(ctx, m.TherapyID)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.UpdateMedication(ctx, m); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, medicationResourceType, m.ID, events.LabelUpdate, m, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, parent.CaseID)
	})
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	m, err := s.systemic.GetMedication(ctx, id)
	if err != nil {
		return err
	}
	parent, err := s.systemic.GetByID(ctx, m.TherapyID)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.systemic.DeleteMedication(ctx, id); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, medicationResourceType, id, events.LabelDelete, m, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, parent.CaseID)
	})
}

func (s *Service) ListMedications(ctx context.Context, therapyID uuid.UUID) ([]*SystemicTherapyMedication, error) {
	return s.systemic.ListMedications(ctx, therapyID)
}

// -- Radiotherapy --

func (s *Service) CreateRadiotherapy(ctx context.Context, rt *Radiotherapy) error {
	if rt.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if err := validIntentPtr(rt.Intent); err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.radio.Create(ctx, rt); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, radiotherapyResourceType, rt.ID, events.LabelCreate, rt, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, rt.CaseID)
	})
}

func (s *Service) GetRadiotherapy(ctx context.Context, id uuid.UUID) (*Radiotherapy, error) {
	return s.radio.GetByID(ctx, id)
}

func (s *Service) UpdateRadiotherapy(ctx context.Context, rt *Radiotherapy) error {
	if err := validIntentPtr(rt.Intent); err != nil {
		return err
	}
	current, err := s.radio.GetByID(ctx, rt.ID)
	if err != nil {
		return err
	}
	rt.CaseID = current.CaseID
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.radio.Update(ctx, rt); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, radiotherapyResourceType, rt.ID, events.LabelUpdate, rt, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, rt.CaseID)
	})
}

func (s *Service) DeleteRadiotherapy(ctx context.Context, id uuid.UUID) error {
	rt, err := s.radio.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.radio.Delete(ctx, id); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, radiotherapyResourceType, id, events.LabelDelete, rt, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, rt.CaseID)
	})
}

func (s *Service) ListRadiotherapies(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Radiotherapy, int, error) {
	return s.radio.ListByCase(ctx, caseID, limit, offset)
}

// Dosages and settings carry no dates, so their mutations do not re-run
// line assignment.

func (s *Service) CreateDosage(ctx context.Context, d *RadiotherapyDosage) error {
	if _, err := s.radio.GetByID(ctx, d.RadiotherapyID); err != nil {
		return err
	}
	if err := s.radio.CreateDosage(ctx, d); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, dosageResourceType, d.ID, events.LabelCreate, d, nil)
	return err
}

func (s *Service) GetDosage(ctx context.Context, id uuid.UUID) (*RadiotherapyDosage, error) {
	return s.radio.GetDosage(ctx, id)
}

func (s *Service) UpdateDosage(ctx context.Context, d *RadiotherapyDosage) error {
	current, err := s.radio.GetDosage(ctx, d.ID)
	if err != nil {
		return err
	}
	d.RadiotherapyID = current.RadiotherapyID
	if err := s.radio.UpdateDosage(ctx, d); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, dosageResourceType, d.ID, events.LabelUpdate, d, nil)
	return err
}

func (s *Service) DeleteDosage(ctx context.Context, id uuid.UUID) error {
	d, err := s.radio.GetDosage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.radio.DeleteDosage(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, dosageResourceType, id, events.LabelDelete, d, nil)
	return err
}

func (s *Service) ListDosages(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapyDosage, error) {
	return s.radio.ListDosages(ctx, radiotherapyID)
}

func (s *Service) CreateSetting(ctx context.Context, st *RadiotherapySetting) error {
	if _, err := s.radio.GetByID(ctx, st.RadiotherapyID); err != nil {
		return err
	}
	if err := s.radio.CreateSetting(ctx, st); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, settingResourceType, st.ID, events.LabelCreate, st, nil)
	return err
}

func (s *Service) GetSetting(ctx context.Context, id uuid.UUID) (*RadiotherapySetting, error) {
	return s.radio.GetSetting(ctx, id)
}

func (s *Service) UpdateSetting(ctx context.Context, st *RadiotherapySetting) error {
	current, err := s.radio.GetSetting(ctx, st.ID)
	if err != nil {
		return err
	}
	st.RadiotherapyID = current.RadiotherapyID
	if err := s.radio.UpdateSetting(ctx, st); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, settingResourceType, st.ID, events.LabelUpdate, st, nil)
	return err
}

func (s *Service) DeleteSetting(ctx context.Context, id uuid.UUID) error {
	st, err := s.radio.GetSetting(ctx, id)
	if err != nil {
		return err
	}
	if err := s.radio.DeleteSetting(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, settingResourceType, id, events.LabelDelete, st, nil)
	return err
}

func (s *Service) ListSettings(ctx context.Context, radiotherapyID uuid.UUID) ([]*RadiotherapySetting, error) {
	return s.radio.ListSettings(ctx, radiotherapyID)
}

// -- Surgery --

func (s *Service) CreateSurgery(ctx context.Context, sg *Surgery) error {
	if sg.CaseID == uuid.Nil {
		return fmt.Errorf("case is required")
	}
	if err := validIntentPtr(sg.Intent); err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.surgeries.Create(ctx, sg); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, surgeryResourceType, sg.ID, events.LabelCreate, sg, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, sg.CaseID)
	})
}

func (s *Service) GetSurgery(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return s.surgeries.GetByID(ctx, id)
}

func (s *Service) UpdateSurgery(ctx context.Context, sg *Surgery) error {
	if err := validIntentPtr(sg.Intent); err != nil {
		return err
	}
	current, err := s.surgeries.GetByID(ctx, sg.ID)
	if err != nil {
		return err
	}
	sg.CaseID = current.CaseID
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.surgeries.Update(ctx, sg); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, surgeryResourceType, sg.ID, events.LabelUpdate, sg, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, sg.CaseID)
	})
}

func (s *Service) DeleteSurgery(ctx context.Context, id uuid.UUID) error {
	sg, err := s.surgeries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.surgeries.Delete(ctx, id); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, surgeryResourceType, id, events.LabelDelete, sg, nil); err != nil {
			return err
		}
		return s.assignTherapyLines(ctx, sg.CaseID)
	})
}

func (s *Service) ListSurgeries(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Surgery, int, error) {
	return s.surgeries.ListByCase(ctx, caseID, limit, offset)
}

// -- TherapyLine --

func (s *Service) GetTherapyLine(ctx context.Context, id uuid.UUID) (*TherapyLine, error) {
	line, err := s.lines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	progressions, err := s.responses.ProgressionDates(ctx, line.CaseID)
	if err != nil {
		return nil, err
	}
	decorateLine(line, progressions)
	return line, nil
}

func (s *Service) ListTherapyLines(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TherapyLine, int, error) {
	items, total, err := s.lines.ListByCase(ctx, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if len(items) > 0 {
		progressions, err := s.responses.ProgressionDates(ctx, caseID)
		if err != nil {
			return nil, 0, err
		}
		for _, line := range items {
			decorateLine(line, progressions)
		}
	}
	return items, total, nil
}

// -- reverts --

func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(systemicResourceType, events.ReverterFunc(s.revertSystemicTherapy))
	reg.RegisterReverter(medicationResourceType, events.ReverterFunc(s.revertMedication))
	reg.RegisterReverter(radiotherapyResourceType, events.ReverterFunc(s.revertRadiotherapy))
	reg.RegisterReverter(dosageResourceType, events.ReverterFunc(s.revertDosage))
	reg.RegisterReverter(settingResourceType, events.ReverterFunc(s.revertSetting))
	reg.RegisterReverter(surgeryResourceType, events.ReverterFunc(s.revertSurgery))
}

func (s *Service) revertSystemicTherapy(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var st SystemicTherapy
	if err := json.Unmarshal(snapshot, &st); err != nil {
		return err
	}
	st.ID = resourceID
	return s.UpdateSystemicTherapy(ctx, &st)
}

func (s *Service) revertMedication(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var m SystemicTherapyMedication
	if err := json.Unmarshal(snapshot, &m); err != nil {
		return err
	}
	m.ID = resourceID
	return s.UpdateMedication(ctx, &m)
}

func (s *Service) revertRadiotherapy(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var rt Radiotherapy
	if err := json.Unmarshal(snapshot, &rt); err != nil {
		return err
	}
	rt.ID = resourceID
	return s.UpdateRadiotherapy(ctx, &rt)
}

func (s *Service) revertDosage(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var d RadiotherapyDosage
	if err := json.Unmarshal(snapshot, &d); err != nil {
		return err
	}
	d.ID = resourceID
	return s.UpdateDosage(ctx, &d)
}

func (s *Service) revertSetting(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var st RadiotherapySetting
	if err := json.Unmarshal(snapshot, &st); err != nil {
		return err
	}
	st.ID = resourceID
	return s.UpdateSetting(ctx, &st)
}

func (s *Service) revertSurgery(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var sg Surgery
	if err := json.Unmarshal(snapshot, &sg); err != nil {
		return err
	}
	sg.ID = resourceID
	return s.UpdateSurgery(ctx, &sg)
}
