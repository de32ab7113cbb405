package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, e *Event) error
	ListBySubject(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Event, int, error)
	GetByID(ctx context.Context, resourceType string, resourceID, eventID uuid.UUID) (*Event, error)
	LatestSnapshot(ctx context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, error)
	MetaFor(ctx context.Context, resourceType string, resourceID uuid.UUID) (*Meta, error)
	ContributorsFor(ctx context.Context, resourceTypes []string, resourceIDs []uuid.UUID) ([]string, error)
}
