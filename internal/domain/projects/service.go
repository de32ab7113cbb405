package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
)

const (
	projectResourceType    = "Project"
	membershipResourceType = "ProjectMembership"
	grantResourceType      = "ProjectDataManagerGrant"
)

// EventLog is the slice of the event service this package records through.
// Satisfied by *events.Service.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

type Service struct {
	projects    ProjectRepository
	memberships MembershipRepository
	grants      GrantRepository
	events      EventLog
	now         func() time.Time
}

func NewService(projects ProjectRepository, memberships MembershipRepository, grants GrantRepository, eventLog EventLog) *Service {
	return &Service{
		projects:    projects,
		memberships: memberships,
		grants:      grants,
		events:      eventLog,
		now:         time.Now,
	}
}

func (s *Service) ProjectRepo() ProjectRepository       { return s.projects }
func (s *Service) MembershipRepo() MembershipRepository { return s.memberships }
func (s *Service) GrantRepo() GrantRepository           { return s.grants }

func validateProject(p *Project) error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	if p.LeaderID == uuid.Nil {
		return fmt.Errorf("leader is required")
	}
	return nil
}

// titleTaken reports whether another project already uses the title.
func (s *Service) titleTaken(ctx context.Context, title string, self uuid.UUID) bool {
	existing, err := s.projects.GetByTitle(ctx, title)
	if err != nil {
		return false
	}
	return existing.ID != self
}

func (s *Service) CreateProject(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	if s.titleTaken(ctx, p.Title, uuid.Nil) {
		return fmt.Errorf("project title %q is already in use", p.Title)
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, projectResourceType, p.ID, events.LabelCreate, p, nil)
	return err
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadMembers(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, p *Project) error {
	if err := validateProject(p); err != nil {
		return err
	}
	current, err := s.projects.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if s.titleTaken(ctx, p.Title, p.ID) {
		return fmt.Errorf("project title %q is already in use", p.Title)
	}
	p.CreatedAt = current.CreatedAt
	if err := s.projects.Update(ctx, p); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, projectResourceType, p.ID, events.LabelUpdate, p, nil)
	return err
}

func (s *Service) DeleteProject(ctx context.Context, id uuid.UUID) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, projectResourceType, id, events.LabelDelete, p, nil)
	return err
}

func (s *Service) ListProjects(ctx context.Context, limit, offset int) ([]*Project, int, error) {
	items, total, err := s.projects.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		if err := s.loadMembers(ctx, p); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *Service) ListProjectsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Project, int, error) {
	items, total, err := s.projects.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		if err := s.loadMembers(ctx, p); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *Service) loadMembers(ctx context.Context, p *Project) error {
	memberships, err := s.memberships.ListByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Members = make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		p.Members = append(p.Members, m.UserID)
	}
	return nil
}

// IsMember reports whether the user belongs to the project as member or leader.
func (s *Service) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return false, err
	}
	if p.LeaderID == userID {
		return true, nil
	}
	return s.memberships.Exists(ctx, projectID, userID)
}

// -- ProjectMembership --

func (s *Service) AddMember(ctx context.Context, m *ProjectMembership) error {
	if m.UserID == uuid.Nil {
		return fmt.Errorf("user is required")
	}
	p, err := s.projects.GetByID(ctx, m.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found")
	}
	if p.LeaderID == m.UserID {
		return fmt.Errorf("the project leader cannot also be a member")
	}
	exists, err := s.memberships.Exists(ctx, m.ProjectID, m.UserID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("user is already a member of the project")
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, membershipResourceType, m.ID, events.LabelCreate, m, nil)
	return err
}

func (s *Service) GetMembership(ctx context.Context, id uuid.UUID) (*ProjectMembership, error) {
	return s.memberships.GetByID(ctx, id)
}

func (s *Service) RemoveMember(ctx context.Context, id uuid.UUID) error {
	m, err := s.memberships.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.memberships.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, membershipResourceType, id, events.LabelDelete, m, nil)
	return err
}

func (s *Service) ListMemberships(ctx context.Context, projectID uuid.UUID) ([]*ProjectMembership, error) {
	return s.memberships.ListByProject(ctx, projectID)
}

// -- ProjectDataManagerGrant --

func (s *Service) CreateGrant(ctx context.Context, g *ProjectDataManagerGrant) error {
	if g.UserID == uuid.Nil {
		return fmt.Errorf("user is required")
	}
	if g.ValidityPeriod.Start == nil {
		return fmt.Errorf("validity period start is required")
	}
	if _, err := s.projects.GetByID(ctx, g.ProjectID); err != nil {
		return fmt.Errorf("project not found")
	}
	g.Revoked = false
	if err := s.grants.Create(ctx, g); err != nil {
		return err
	}
	g.decorate(s.now())
	_, err := s.events.Record(ctx, grantResourceType, g.ID, events.LabelCreate, g, nil)
	return err
}

func (s *Service) GetGrant(ctx context.Context, id uuid.UUID) (*ProjectDataManagerGrant, error) {
	g, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	g.decorate(s.now())
	return g, nil
}

// RevokeGrant marks the grant revoked. Grants stay on record so past
// data-manager activity remains attributable.
func (s *Service) RevokeGrant(ctx context.Context, id uuid.UUID) (*ProjectDataManagerGrant, error) {
	g, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Revoked = true
	if err := s.grants.Update(ctx, g); err != nil {
		return nil, err
	}
	g.decorate(s.now())
	if _, err := s.events.Record(ctx, grantResourceType, g.ID, events.LabelUpdate, g, nil); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) ListGrants(ctx context.Context, projectID uuid.UUID) ([]*ProjectDataManagerGrant, error) {
	items, err := s.grants.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, g := range items {
		g.decorate(now)
	}
	return items, nil
}

// HasValidGrant reports whether the user holds a currently valid
// data-manager grant on the project.
func (s *Service) HasValidGrant(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	items, err := s.grants.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, g := range items {
		g.decorate(now)
		if g.ProjectID == projectID && g.IsValid {
			return true, nil
		}
	}
	return false, nil
}

// RegisterReverters wires event reversion for project resources. Grants are
// reverted by restoring the snapshot, which undoes a revocation.
func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(projectResourceType, events.ReverterFunc(func(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
		var p Project
		if err := json.Unmarshal(snapshot, &p); err != nil {
			return err
		}
		p.ID = resourceID
		return s.UpdateProject(ctx, &p)
	}))
	reg.RegisterReverter(grantResourceType, events.ReverterFunc(func(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
		var g ProjectDataManagerGrant
		if err := json.Unmarshal(snapshot, &g); err != nil {
			return err
		}
		g.ID = resourceID
		if err := s.grants.Update(ctx, &g); err != nil {
			return err
		}
		_, err := s.events.Record(ctx, grantResourceType, g.ID, events.LabelUpdate, &g, nil)
		return err
	}))
}
