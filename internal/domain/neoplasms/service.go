package neoplasms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

var (
	ErrPrimaryWithRelatedPrimary = errors.New("a primary neoplastic entity cannot reference a related primary")
	ErrRecommendationsOnBoard    = errors.New("therapeutic recommendations are only valid on molecular tumor boards")
)

// EventLog is the slice of the event service this package records through.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

// TopographyResolver resolves a topography code to its three-character
// group concept. Satisfied by *terminology.Service.
type TopographyResolver interface {
	GroupOf(ctx context.Context, system, code string) (*clinical.CodedConcept, error)
}

type Service struct {
	entities    NeoplasticEntityRepository
	stagings    StagingRepository
	markers     TumorMarkerRepository
	risks       RiskAssessmentRepository
	boards      TumorBoardRepository
	events      EventLog
	terminology TopographyResolver
	anon        *anonymize.Anonymizer
}

func NewService(
	entities NeoplasticEntityRepository,
	stagings StagingRepository,
	markers TumorMarkerRepository,
	risks RiskAssessmentRepository,
	boards TumorBoardRepository,
	eventLog EventLog,
	terminology TopographyResolver,
) *Service {
	return &Service{
		entities:    entities,
		stagings:    stagings,
		markers:     markers,
		risks:       risks,
		boards:      boards,
		events:      eventLog,
		terminology: terminology,
	}
}

// EntityRepo exposes the neoplastic-entity repository to sibling services.
func (s *Service) EntityRepo() NeoplasticEntityRepository { return s.entities }

// RegisterReverters wires every tracked type into the event service.
func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter("NeoplasticEntity", events.ReverterFunc(s.revertEntity))
	reg.RegisterReverter("Staging", events.ReverterFunc(s.revertStaging))
	reg.RegisterReverter("TumorMarker", events.ReverterFunc(s.revertTumorMarker))
	reg.RegisterReverter("RiskAssessment", events.ReverterFunc(s.revertRiskAssessment))
	reg.RegisterReverter("TumorBoard", events.ReverterFunc(s.revertTumorBoard))
}

// -- NeoplasticEntity --

func (s *Service) validateEntity(ne *NeoplasticEntity) error {
	if !validRelationships[ne.Relationship] {
		return fmt.Errorf("invalid relationship: %s", ne.Relationship)
	}
	if ne.Relationship == RelationshipPrimary && ne.RelatedPrimaryID != nil {
		return ErrPrimaryWithRelatedPrimary
	}
	return nil
}

func (s *Service) decorateEntity(ctx context.Context, ne *NeoplasticEntity) {
	if ne.Topography.Code == "" {
		return
	}
	group, err := s.terminology.GroupOf(ctx, ne.Topography.System, ne.Topography.Code)
	if err == nil {
		ne.TopographyGroup = group
	}
}

func (s *Service) CreateEntity(ctx context.Context, ne *NeoplasticEntity) error {
	if err := s.validateEntity(ne); err != nil {
		return err
	}
	if err := s.entities.Create(ctx, ne); err != nil {
		return err
	}
	s.decorateEntity(ctx, ne)
	_, err := s.events.Record(ctx, "NeoplasticEntity", ne.ID, events.LabelCreate, ne, nil)
	return err
}

func (s *Service) GetEntity(ctx context.Context, id uuid.UUID) (*NeoplasticEntity, error) {
	ne, err := s.entities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorateEntity(ctx, ne)
	return ne, nil
}

func (s *Service) UpdateEntity(ctx context.Context, ne *NeoplasticEntity) error {
	if err := s.validateEntity(ne); err != nil {
		return err
	}
	current, err := s.entities.GetByID(ctx, ne.ID)
	if err != nil {
		return err
	}
	ne.CaseID = current.CaseID
	if err := s.entities.Update(ctx, ne); err != nil {
		return err
	}
	s.decorateEntity(ctx, ne)
	_, err = s.events.Record(ctx, "NeoplasticEntity", ne.ID, events.LabelUpdate, ne, nil)
	return err
}

func (s *Service) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	ne, err := s.entities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.entities.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "NeoplasticEntity", id, events.LabelDelete, ne, nil)
	return err
}

func (s *Service) ListEntities(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*NeoplasticEntity, int, error) {
	items, total, err := s.entities.ListByCase(ctx, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, ne := range items {
		s.decorateEntity(ctx, ne)
	}
	return items, total, nil
}

func (s *Service) revertEntity(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var ne NeoplasticEntity
	if err := json.Unmarshal(snapshot, &ne); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	ne.ID = resourceID
	return s.UpdateEntity(ctx, &ne)
}

// -- Staging --

func (s *Service) validateStaging(st *Staging) error {
	if !validStagingDomains[st.Domain] {
		return fmt.Errorf("invalid staging domain: %s", st.Domain)
	}
	return nil
}

func (s *Service) CreateStaging(ctx context.Context, st *Staging) error {
	if err := s.validateStaging(st); err != nil {
		return err
	}
	if err := s.stagings.Create(ctx, st); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "Staging", st.ID, events.LabelCreate, st, nil)
	return err
}

func (s *Service) GetStaging(ctx context.Context, id uuid.UUID) (*Staging, error) {
	return s.stagings.GetByID(ctx, id)
}

func (s *Service) UpdateStaging(ctx context.Context, st *Staging) error {
	if err := s.validateStaging(st); err != nil {
		return err
	}
	current, err := s.stagings.GetByID(ctx, st.ID)
	if err != nil {
		return err
	}
	st.CaseID = current.CaseID
	if err := s.stagings.Update(ctx, st); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "Staging", st.ID, events.LabelUpdate, st, nil)
	return err
}

func (s *Service) DeleteStaging(ctx context.Context, id uuid.UUID) error {
	st, err := s.stagings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.stagings.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "Staging", id, events.LabelDelete, st, nil)
	return err
}

func (s *Service) ListStagings(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Staging, int, error) {
	return s.stagings.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertStaging(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var st Staging
	if err := json.Unmarshal(snapshot, &st); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	st.ID = resourceID
	return s.UpdateStaging(ctx, &st)
}

// -- TumorMarker --

func (s *Service) CreateTumorMarker(ctx context.Context, tm *TumorMarker) error {
	if err := s.markers.Create(ctx, tm); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "TumorMarker", tm.ID, events.LabelCreate, tm, nil)
	return err
}

func (s *Service) GetTumorMarker(ctx context.Context, id uuid.UUID) (*TumorMarker, error) {
	return s.markers.GetByID(ctx, id)
}

func (s *Service) UpdateTumorMarker(ctx context.Context, tm *TumorMarker) error {
	current, err := s.markers.GetByID(ctx, tm.ID)
	if err != nil {
		return err
	}
	tm.CaseID = current.CaseID
	if err := s.markers.Update(ctx, tm); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "TumorMarker", tm.ID, events.LabelUpdate, tm, nil)
	return err
}

func (s *Service) DeleteTumorMarker(ctx context.Context, id uuid.UUID) error {
	tm, err := s.markers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.markers.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "TumorMarker", id, events.LabelDelete, tm, nil)
	return err
}

func (s *Service) ListTumorMarkers(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorMarker, int, error) {
	return s.markers.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertTumorMarker(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var tm TumorMarker
	if err := json.Unmarshal(snapshot, &tm); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	tm.ID = resourceID
	return s.UpdateTumorMarker(ctx, &tm)
}

// -- RiskAssessment --

func (s *Service) CreateRiskAssessment(ctx context.Context, ra *RiskAssessment) error {
	if err := s.risks.Create(ctx, ra); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "RiskAssessment", ra.ID, events.LabelCreate, ra, nil)
	return err
}

func (s *Service) GetRiskAssessment(ctx context.Context, id uuid.UUID) (*RiskAssessment, error) {
	return s.risks.GetByID(ctx, id)
}

func (s *Service) UpdateRiskAssessment(ctx context.Context, ra *RiskAssessment) error {
	current, err := s.risks.GetByID(ctx, ra.ID)
	if err != nil {
		return err
	}
	ra.CaseID = current.CaseID
	if err := s.risks.Update(ctx, ra); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "RiskAssessment", ra.ID, events.LabelUpdate, ra, nil)
	return err
}

func (s *Service) DeleteRiskAssessment(ctx context.Context, id uuid.UUID) error {
	ra, err := s.risks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.risks.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "RiskAssessment", id, events.LabelDelete, ra, nil)
	return err
}

func (s *Service) ListRiskAssessments(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error) {
	return s.risks.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertRiskAssessment(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var ra RiskAssessment
	if err := json.Unmarshal(snapshot, &ra); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	ra.ID = resourceID
	return s.UpdateRiskAssessment(ctx, &ra)
}

// -- TumorBoard --

func (s *Service) validateBoard(tb *TumorBoard) error {
	if tb.Kind == "" {
		tb.Kind = BoardUnspecified
	}
	if !validBoardKinds[tb.Kind] {
		return fmt.Errorf("invalid tumor board kind: %s", tb.Kind)
	}
	if tb.Kind != BoardMolecular && len(tb.TherapeuticRecommendations) > 0 {
		return ErrRecommendationsOnBoard
	}
	return nil
}

func (s *Service) CreateTumorBoard(ctx context.Context, tb *TumorBoard) error {
	if err := s.validateBoard(tb); err != nil {
		return err
	}
	if err := s.boards.Create(ctx, tb); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "TumorBoard", tb.ID, events.LabelCreate, tb, nil)
	return err
}

func (s *Service) GetTumorBoard(ctx context.Context, id uuid.UUID) (*TumorBoard, error) {
	return s.boards.GetByID(ctx, id)
}

func (s *Service) UpdateTumorBoard(ctx context.Context, tb *TumorBoard) error {
	if err := s.validateBoard(tb); err != nil {
		return err
	}
	current, err := s.boards.GetByID(ctx, tb.ID)
	if err != nil {
		return err
	}
	tb.CaseID = current.CaseID
	if err := s.boards.Update(ctx, tb); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "TumorBoard", tb.ID, events.LabelUpdate, tb, nil)
	return err
}

func (s *Service) DeleteTumorBoard(ctx context.Context, id uuid.UUID) error {
	tb, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.boards.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "TumorBoard", id, events.LabelDelete, tb, nil)
	return err
}

func (s *Service) ListTumorBoards(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorBoard, int, error) {
	return s.boards.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertTumorBoard(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var tb TumorBoard
	if err := json.Unmarshal(snapshot, &tb); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	tb.ID = resourceID
	return s.UpdateTumorBoard(ctx, &tb)
}
