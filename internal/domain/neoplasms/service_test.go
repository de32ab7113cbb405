package neoplasms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

type mockEntityRepo struct {
	items map[uuid.UUID]*NeoplasticEntity
}

func (m *mockEntityRepo) Create(_ context.Context, ne *NeoplasticEntity) error {
	if ne.ID == uuid.Nil {
		ne.ID = uuid.New()
	}
	cp := *ne
	m.items[ne.ID] = &cp
	return nil
}

func (m *mockEntityRepo) GetByID(_ context.Context, id uuid.UUID) (*NeoplasticEntity, error) {
	ne, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *ne
	return &cp, nil
}

func (m *mockEntityRepo) Update(_ context.Context, ne *NeoplasticEntity) error {
	if _, ok := m.items[ne.ID]; !ok {
		return errors.New("not found")
	}
	cp := *ne
	m.items[ne.ID] = &cp
	return nil
}

func (m *mockEntityRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockEntityRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*NeoplasticEntity, int, error) {
	var items []*NeoplasticEntity
	for _, ne := range m.items {
		if ne.CaseID == caseID {
			cp := *ne
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *mockEntityRepo) HasMetastatic(_ context.Context, caseID uuid.UUID) (bool, error) {
	for _, ne := range m.items {
		if ne.CaseID == caseID && ne.Relationship == RelationshipMetastatic {
			return true, nil
		}
	}
	return false, nil
}

type mockBoardRepo struct {
	items map[uuid.UUID]*TumorBoard
}

func (m *mockBoardRepo) Create(_ context.Context, tb *TumorBoard) error {
	if tb.ID == uuid.Nil {
		tb.ID = uuid.New()
	}
	cp := *tb
	m.items[tb.ID] = &cp
	return nil
}

func (m *mockBoardRepo) GetByID(_ context.Context, id uuid.UUID) (*TumorBoard, error) {
	tb, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *tb
	return &cp, nil
}

func (m *mockBoardRepo) Update(_ context.Context, tb *TumorBoard) error {
	cp := *tb
	m.items[tb.ID] = &cp
	return nil
}

func (m *mockBoardRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockBoardRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorBoard, int, error) {
	var items []*TumorBoard
	for _, tb := range m.items {
		if tb.CaseID == caseID {
			cp := *tb
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type mockStagingRepo struct {
	items map[uuid.UUID]*Staging
}

func (m *mockStagingRepo) Create(_ context.Context, st *Staging) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	cp := *st
	m.items[st.ID] = &cp
	return nil
}

func (m *mockStagingRepo) GetByID(_ context.Context, id uuid.UUID) (*Staging, error) {
	st, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *st
	return &cp, nil
}

func (m *mockStagingRepo) Update(_ context.Context, st *Staging) error {
	cp := *st
	m.items[st.ID] = &cp
	return nil
}

func (m *mockStagingRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockStagingRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*Staging, int, error) {
	return nil, 0, nil
}

type recordingLog struct {
	labels []events.Label
}

func (l *recordingLog) Record(_ context.Context, _ string, _ uuid.UUID, label events.Label, _ interface{}, _ map[string]interface{}) (uuid.UUID, error) {
	l.labels = append(l.labels, label)
	return uuid.New(), nil
}

type stubTopography struct{}

func (stubTopography) GroupOf(_ context.Context, system, code string) (*clinical.CodedConcept, error) {
	if len(code) < 3 {
		return nil, errors.New("unknown code")
	}
	return &clinical.CodedConcept{System: system, Code: code[:3], Display: "group " + code[:3]}, nil
}

func newTestService() (*Service, *mockEntityRepo, *mockBoardRepo, *recordingLog) {
	entities := &mockEntityRepo{items: make(map[uuid.UUID]*NeoplasticEntity)}
	boards := &mockBoardRepo{items: make(map[uuid.UUID]*TumorBoard)}
	stagings := &mockStagingRepo{items: make(map[uuid.UUID]*Staging)}
	log := &recordingLog{}
	svc := NewService(entities, stagings, nil, nil, boards, log, stubTopography{})
	return svc, entities, boards, log
}

func TestPrimaryEntityRejectsRelatedPrimary(t *testing.T) {
	svc, _, _, _ := newTestService()
	other := uuid.New()
	ne := &NeoplasticEntity{
		CaseID:           uuid.New(),
		Relationship:     RelationshipPrimary,
		RelatedPrimaryID: &other,
	}
	if err := svc.CreateEntity(context.Background(), ne); !errors.Is(err, ErrPrimaryWithRelatedPrimary) {
		t.Errorf("err = %v, want ErrPrimaryWithRelatedPrimary", err)
	}
}

func TestEntityTopographyGroupDerived(t *testing.T) {
	svc, _, _, log := newTestService()
	ne := &NeoplasticEntity{
		CaseID:       uuid.New(),
		Relationship: RelationshipPrimary,
		Topography:   clinical.CodedConcept{System: "ICD-O-3", Code: "C50.2"},
	}
	if err := svc.CreateEntity(context.Background(), ne); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if ne.TopographyGroup == nil || ne.TopographyGroup.Code != "C50" {
		t.Errorf("topographyGroup = %+v, want C50", ne.TopographyGroup)
	}
	if len(log.labels) != 1 || log.labels[0] != events.LabelCreate {
		t.Errorf("recorded %v, want one create", log.labels)
	}
}

func TestStagingDomainValidated(t *testing.T) {
	svc, _, _, _ := newTestService()
	st := &Staging{CaseID: uuid.New(), Domain: "Kardashev"}
	if err := svc.CreateStaging(context.Background(), st); err == nil {
		t.Error("expected error for unknown staging domain")
	}
	st.Domain = "TNM"
	if err := svc.CreateStaging(context.Background(), st); err != nil {
		t.Errorf("CreateStaging(TNM): %v", err)
	}
}

func TestBoardRecommendationsRequireMolecular(t *testing.T) {
	svc, _, _, _ := newTestService()
	tb := &TumorBoard{
		CaseID: uuid.New(),
		Kind:   BoardUnspecified,
		TherapeuticRecommendations: []clinical.CodedConcept{
			{System: "ATC", Code: "L01XE"},
		},
	}
	if err := svc.CreateTumorBoard(context.Background(), tb); !errors.Is(err, ErrRecommendationsOnBoard) {
		t.Errorf("err = %v, want ErrRecommendationsOnBoard", err)
	}
	tb.Kind = BoardMolecular
	if err := svc.CreateTumorBoard(context.Background(), tb); err != nil {
		t.Errorf("CreateTumorBoard(molecular): %v", err)
	}
}

func TestRevertEntityAppliesSnapshot(t *testing.T) {
	svc, entities, _, log := newTestService()
	ne := &NeoplasticEntity{
		CaseID:       uuid.New(),
		Relationship: RelationshipPrimary,
		Topography:   clinical.CodedConcept{System: "ICD-O-3", Code: "C50.2"},
	}
	if err := svc.CreateEntity(context.Background(), ne); err != nil {
		t.Fatal(err)
	}
	snapshot, _ := json.Marshal(ne)

	changed := *ne
	changed.Topography = clinical.CodedConcept{System: "ICD-O-3", Code: "C34.1"}
	if err := svc.UpdateEntity(context.Background(), &changed); err != nil {
		t.Fatal(err)
	}

	if err := svc.revertEntity(context.Background(), ne.ID, snapshot); err != nil {
		t.Fatalf("revertEntity: %v", err)
	}
	stored, _ := entities.GetByID(context.Background(), ne.ID)
	if stored.Topography.Code != "C50.2" {
		t.Errorf("topography after revert = %s, want C50.2", stored.Topography.Code)
	}
	// create + update + revert-update
	if len(log.labels) != 3 || log.labels[2] != events.LabelUpdate {
		t.Errorf("labels = %v, want revert recorded as update", log.labels)
	}
}
