package genomics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/events"
)

type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

type Service struct {
	variants   GenomicVariantRepository
	signatures GenomicSignatureRepository
	events     EventLog
	anon       *anonymize.Anonymizer
}

func NewService(variants GenomicVariantRepository, signatures GenomicSignatureRepository, eventLog EventLog) *Service {
	return &Service{variants: variants, signatures: signatures, events: eventLog}
}

func (s *Service) VariantRepo() GenomicVariantRepository     { return s.variants }
func (s *Service) SignatureRepo() GenomicSignatureRepository { return s.signatures }

func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter("GenomicVariant", events.ReverterFunc(s.revertVariant))
	reg.RegisterReverter("GenomicSignature", events.ReverterFunc(s.revertSignature))
}

// -- GenomicVariant --

func (s *Service) CreateVariant(ctx context.Context, gv *GenomicVariant) error {
	if gv.Gene.Code == "" {
		return fmt.Errorf("gene is required")
	}
	if err := s.variants.Create(ctx, gv); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "GenomicVariant", gv.ID, events.LabelCreate, gv, nil)
	return err
}

func (s *Service) GetVariant(ctx context.Context, id uuid.UUID) (*GenomicVariant, error) {
	return s.variants.GetByID(ctx, id)
}

func (s *Service) UpdateVariant(ctx context.Context, gv *GenomicVariant) error {
	current, err := s.variants.GetByID(ctx, gv.ID)
	if err != nil {
		return err
	}
	gv.CaseID = current.CaseID
	if err := s.variants.Update(ctx, gv); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "GenomicVariant", gv.ID, events.LabelUpdate, gv, nil)
	return err
}

func (s *Service) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	gv, err := s.variants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.variants.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "GenomicVariant", id, events.LabelDelete, gv, nil)
	return err
}

func (s *Service) ListVariants(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicVariant, int, error) {
	return s.variants.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertVariant(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var gv GenomicVariant
	if err := json.Unmarshal(snapshot, &gv); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	gv.ID = resourceID
	return s.UpdateVariant(ctx, &gv)
}

// -- GenomicSignature --

func (s *Service) CreateSignature(ctx context.Context, gs *GenomicSignature) error {
	if !validSignatureKinds[gs.Kind] {
		return fmt.Errorf("invalid signature kind: %s", gs.Kind)
	}
	if err := s.signatures.Create(ctx, gs); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, "GenomicSignature", gs.ID, events.LabelCreate, gs, nil)
	return err
}

func (s *Service) GetSignature(ctx context.Context, id uuid.UUID) (*GenomicSignature, error) {
	return s.signatures.GetByID(ctx, id)
}

func (s *Service) UpdateSignature(ctx context.Context, gs *GenomicSignature) error {
	if !validSignatureKinds[gs.Kind] {
		return fmt.Errorf("invalid signature kind: %s", gs.Kind)
	}
	current, err := s.signatures.GetByID(ctx, gs.ID)
	if err != nil {
		return err
	}
	gs.CaseID = current.CaseID
	if err := s.signatures.Update(ctx, gs); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "GenomicSignature", gs.ID, events.LabelUpdate, gs, nil)
	return err
}

func (s *Service) DeleteSignature(ctx context.Context, id uuid.UUID) error {
	gs, err := s.signatures.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.signatures.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, "GenomicSignature", id, events.LabelDelete, gs, nil)
	return err
}

func (s *Service) ListSignatures(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicSignature, int, error) {
	return s.signatures.ListByCase(ctx, caseID, limit, offset)
}

func (s *Service) revertSignature(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var gs GenomicSignature
	if err := json.Unmarshal(snapshot, &gs); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	gs.ID = resourceID
	return s.UpdateSignature(ctx, &gs)
}
