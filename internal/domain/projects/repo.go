package projects

import (
	"context"

	"github.com/google/uuid"
)

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByTitle(ctx context.Context, title string) (*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Project, int, error)
	// ListForUser returns projects where the user is leader or member.
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Project, int, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *ProjectMembership) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProjectMembership, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ProjectMembership, error)
	Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

type GrantRepository interface {
	Create(ctx context.Context, g *ProjectDataManagerGrant) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProjectDataManagerGrant, error)
	Update(ctx context.Context, g *ProjectDataManagerGrant) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ProjectDataManagerGrant, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ProjectDataManagerGrant, error)
}
