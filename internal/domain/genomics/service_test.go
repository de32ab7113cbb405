package genomics

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

type mockSignatureRepo struct {
	items map[uuid.UUID]*GenomicSignature
}

func (m *mockSignatureRepo) Create(_ context.Context, gs *GenomicSignature) error {
	if gs.ID == uuid.Nil {
		gs.ID = uuid.New()
	}
	cp := *gs
	m.items[gs.ID] = &cp
	return nil
}

func (m *mockSignatureRepo) GetByID(_ context.Context, id uuid.UUID) (*GenomicSignature, error) {
	gs, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *gs
	return &cp, nil
}

func (m *mockSignatureRepo) Update(_ context.Context, gs *GenomicSignature) error {
	cp := *gs
	m.items[gs.ID] = &cp
	return nil
}

func (m *mockSignatureRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockSignatureRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicSignature, int, error) {
	return nil, 0, nil
}

func (m *mockSignatureRepo) ListByCases(_ context.Context, caseIDs []uuid.UUID) ([]*GenomicSignature, error) {
	return nil, nil
}

type recordingLog struct{ labels []events.Label }

func (l *recordingLog) Record(_ context.Context, _ string, _ uuid.UUID, label events.Label, _ interface{}, _ map[string]interface{}) (uuid.UUID, error) {
	l.labels = append(l.labels, label)
	return uuid.New(), nil
}

func TestSignatureKindValidated(t *testing.T) {
	repo := &mockSignatureRepo{items: make(map[uuid.UUID]*GenomicSignature)}
	svc := NewService(nil, repo, &recordingLog{})

	gs := &GenomicSignature{CaseID: uuid.New(), Kind: "GC-content"}
	if err := svc.CreateSignature(context.Background(), gs); err == nil {
		t.Error("expected error for unknown signature kind")
	}

	gs.Kind = SignatureTMB
	gs.Value = &clinical.Measure{Value: 12.5, Unit: "mutations/Mb"}
	if err := svc.CreateSignature(context.Background(), gs); err != nil {
		t.Errorf("CreateSignature(TMB): %v", err)
	}
}

func TestVariantRequiresGene(t *testing.T) {
	log := &recordingLog{}
	svc := NewService(&mockVariantRepo{items: make(map[uuid.UUID]*GenomicVariant)}, nil, log)

	if err := svc.CreateVariant(context.Background(), &GenomicVariant{CaseID: uuid.New()}); err == nil {
		t.Error("expected error for missing gene")
	}

	gv := &GenomicVariant{
		CaseID: uuid.New(),
		Gene:   clinical.CodedConcept{System: "HGNC", Code: "1100", Display: "BRCA1"},
	}
	if err := svc.CreateVariant(context.Background(), gv); err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}
	if len(log.labels) != 1 || log.labels[0] != events.LabelCreate {
		t.Errorf("labels = %v, want one create", log.labels)
	}
}

type mockVariantRepo struct {
	items map[uuid.UUID]*GenomicVariant
}

func (m *mockVariantRepo) Create(_ context.Context, gv *GenomicVariant) error {
	if gv.ID == uuid.Nil {
		gv.ID = uuid.New()
	}
	cp := *gv
	m.items[gv.ID] = &cp
	return nil
}

func (m *mockVariantRepo) GetByID(_ context.Context, id uuid.UUID) (*GenomicVariant, error) {
	gv, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *gv
	return &cp, nil
}

func (m *mockVariantRepo) Update(_ context.Context, gv *GenomicVariant) error {
	cp := *gv
	m.items[gv.ID] = &cp
	return nil
}

func (m *mockVariantRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockVariantRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicVariant, int, error) {
	return nil, 0, nil
}

func (m *mockVariantRepo) ListByCases(_ context.Context, caseIDs []uuid.UUID) ([]*GenomicVariant, error) {
	return nil, nil
}
