package datasets

import (
	"context"

	"github.com/google/uuid"
)

type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dataset, error)
	Update(ctx context.Context, d *Dataset) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Dataset, int, error)
}
