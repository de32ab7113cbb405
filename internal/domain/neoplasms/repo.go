package neoplasms

import (
	"context"

	"github.com/google/uuid"
)

type NeoplasticEntityRepository interface {
	Create(ctx context.Context, ne *NeoplasticEntity) error
	GetByID(ctx context.Context, id uuid.UUID) (*NeoplasticEntity, error)
	Update(ctx context.Context, ne *NeoplasticEntity) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*NeoplasticEntity, int, error)
	HasMetastatic(ctx context.Context, caseID uuid.UUID) (bool, error)
}

type StagingRepository interface {
	Create(ctx context.Context, st *Staging) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staging, error)
	Update(ctx context.Context, st *Staging) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Staging, int, error)
}

type TumorMarkerRepository interface {
	Create(ctx context.Context, tm *TumorMarker) error
	GetByID(ctx context.Context, id uuid.UUID) (*TumorMarker, error)
	Update(ctx context.Context, tm *TumorMarker) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorMarker, int, error)
}

type RiskAssessmentRepository interface {
	Create(ctx context.Context, ra *RiskAssessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*RiskAssessment, error)
	Update(ctx context.Context, ra *RiskAssessment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*RiskAssessment, int, error)
}

type TumorBoardRepository interface {
	Create(ctx context.Context, tb *TumorBoard) error
	GetByID(ctx context.Context, id uuid.UUID) (*TumorBoard, error)
	Update(ctx context.Context, tb *TumorBoard) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*TumorBoard, int, error)
}
