package genomics

import (
	"context"

	"github.com/google/uuid"
)

type GenomicVariantRepository interface {
	Create(ctx context.Context, gv *GenomicVariant) error
	GetByID(ctx context.Context, id uuid.UUID) (*GenomicVariant, error)
	Update(ctx context.Context, gv *GenomicVariant) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicVariant, int, error)
	ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*GenomicVariant, error)
}

type GenomicSignatureRepository interface {
	Create(ctx context.Context, gs *GenomicSignature) error
	GetByID(ctx context.Context, id uuid.UUID) (*GenomicSignature, error)
	Update(ctx context.Context, gs *GenomicSignature) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*GenomicSignature, int, error)
	ListByCases(ctx context.Context, caseIDs []uuid.UUID) ([]*GenomicSignature, error)
}
