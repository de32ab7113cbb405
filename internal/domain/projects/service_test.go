package projects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

var errNotFound = errors.New("not found")

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, uuid.UUID, events.Label, interface{}, map[string]interface{}) (uuid.UUID, error) {
	return uuid.New(), nil
}

type mockProjectRepo struct {
	items map[uuid.UUID]*Project
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{items: map[uuid.UUID]*Project{}}
}

func (r *mockProjectRepo) Create(_ context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *mockProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*Project, error) {
	p, ok := r.items[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *mockProjectRepo) GetByTitle(_ context.Context, title string) (*Project, error) {
	for _, p := range r.items {
		if p.Title == title {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (r *mockProjectRepo) Update(_ context.Context, p *Project) error {
	if _, ok := r.items[p.ID]; !ok {
		return errNotFound
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *mockProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

func (r *mockProjectRepo) List(_ context.Context, limit, offset int) ([]*Project, int, error) {
	var out []*Project
	for _, p := range r.items {
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *mockProjectRepo) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Project, int, error) {
	var out []*Project
	for _, p := range r.items {
		if p.LeaderID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type mockMembershipRepo struct {
	items map[uuid.UUID]*ProjectMembership
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{items: map[uuid.UUID]*ProjectMembership{}}
}

func (r *mockMembershipRepo) Create(_ context.Context, m *ProjectMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *mockMembershipRepo) GetByID(_ context.Context, id uuid.UUID) (*ProjectMembership, error) {
	m, ok := r.items[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *mockMembershipRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

func (r *mockMembershipRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*ProjectMembership, error) {
	var out []*ProjectMembership
	for _, m := range r.items {
		if m.ProjectID == projectID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockMembershipRepo) Exists(_ context.Context, projectID, userID uuid.UUID) (bool, error) {
	for _, m := range r.items {
		if m.ProjectID == projectID && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type mockGrantRepo struct {
	items map[uuid.UUID]*ProjectDataManagerGrant
}

func newMockGrantRepo() *mockGrantRepo {
	return &mockGrantRepo{items: map[uuid.UUID]*ProjectDataManagerGrant{}}
}

func (r *mockGrantRepo) Create(_ context.Context, g *ProjectDataManagerGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	cp := *g
	r.items[g.ID] = &cp
	return nil
}

func (r *mockGrantRepo) GetByID(_ context.Context, id uuid.UUID) (*ProjectDataManagerGrant, error) {
	g, ok := r.items[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *mockGrantRepo) Update(_ context.Context, g *ProjectDataManagerGrant) error {
	if _, ok := r.items[g.ID]; !ok {
		return errNotFound
	}
	cp := *g
	r.items[g.ID] = &cp
	return nil
}

func (r *mockGrantRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*ProjectDataManagerGrant, error) {
	var out []*ProjectDataManagerGrant
	for _, g := range r.items {
		if g.ProjectID == projectID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockGrantRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*ProjectDataManagerGrant, error) {
	var out []*ProjectDataManagerGrant
	for _, g := range r.items {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTestService() (*Service, *mockProjectRepo, *mockMembershipRepo, *mockGrantRepo) {
	projects := newMockProjectRepo()
	memberships := newMockMembershipRepo()
	grants := newMockGrantRepo()
	svc := NewService(projects, memberships, grants, nopRecorder{})
	return svc, projects, memberships, grants
}

func seedProject(t *testing.T, svc *Service, title string, leader uuid.UUID) *Project {
	t.Helper()
	p := &Project{Title: title, Status: StatusOngoing, LeaderID: leader}
	if err := svc.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestCreateProjectRejectsDuplicateTitle(t *testing.T) {
	svc, _, _, _ := newTestService()
	leader := uuid.New()
	seedProject(t, svc, "NSCLC Registry", leader)

	err := svc.CreateProject(context.Background(), &Project{
		Title: "NSCLC Registry", Status: StatusPlanned, LeaderID: leader,
	})
	if err == nil {
		t.Fatal("expected duplicate title to be rejected")
	}
}

func TestUpdateProjectAllowsKeepingOwnTitle(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedProject(t, svc, "NSCLC Registry", uuid.New())

	p.Status = StatusCompleted
	if err := svc.UpdateProject(context.Background(), p); err != nil {
		t.Fatalf("update with unchanged title: %v", err)
	}
}

func TestCreateProjectRejectsInvalidStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.CreateProject(context.Background(), &Project{
		Title: "X", Status: "archived", LeaderID: uuid.New(),
	})
	if err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
}

func TestAddMemberRejectsLeader(t *testing.T) {
	svc, _, _, _ := newTestService()
	leader := uuid.New()
	p := seedProject(t, svc, "NSCLC Registry", leader)

	err := svc.AddMember(context.Background(), &ProjectMembership{ProjectID: p.ID, UserID: leader})
	if err == nil {
		t.Fatal("expected leader membership to be rejected")
	}
}

func TestAddMemberRejectsDuplicate(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedProject(t, svc, "NSCLC Registry", uuid.New())
	user := uuid.New()

	if err := svc.AddMember(context.Background(), &ProjectMembership{ProjectID: p.ID, UserID: user}); err != nil {
		t.Fatalf("first membership: %v", err)
	}
	if err := svc.AddMember(context.Background(), &ProjectMembership{ProjectID: p.ID, UserID: user}); err == nil {
		t.Fatal("expected duplicate membership to be rejected")
	}
}

func TestIsMemberIncludesLeader(t *testing.T) {
	svc, _, _, _ := newTestService()
	leader := uuid.New()
	p := seedProject(t, svc, "NSCLC Registry", leader)

	ok, err := svc.IsMember(context.Background(), p.ID, leader)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !ok {
		t.Fatal("leader should count as project member")
	}
}

func TestGetProjectLoadsMembers(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedProject(t, svc, "NSCLC Registry", uuid.New())
	user := uuid.New()
	if err := svc.AddMember(context.Background(), &ProjectMembership{ProjectID: p.ID, UserID: user}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	got, err := svc.GetProject(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0] != user {
		t.Fatalf("members = %v, want [%s]", got.Members, user)
	}
}

func TestRevokeGrantKeepsRecord(t *testing.T) {
	svc, _, _, grants := newTestService()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p := seedProject(t, svc, "NSCLC Registry", uuid.New())
	start := now.AddDate(0, -1, 0)
	end := now.AddDate(0, 1, 0)
	g := &ProjectDataManagerGrant{
		ProjectID:      p.ID,
		UserID:         uuid.New(),
		ValidityPeriod: clinical.Period{Start: &start, End: &end},
	}
	if err := svc.CreateGrant(context.Background(), g); err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if !g.IsValid {
		t.Fatal("fresh in-window grant should be valid")
	}

	revoked, err := svc.RevokeGrant(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("revoke grant: %v", err)
	}
	if !revoked.Revoked || revoked.IsValid {
		t.Fatalf("revoked grant: revoked=%v valid=%v", revoked.Revoked, revoked.IsValid)
	}
	if _, ok := grants.items[g.ID]; !ok {
		t.Fatal("revocation must not delete the grant record")
	}
}

func TestGrantValidityRespectsWindow(t *testing.T) {
	svc, _, _, _ := newTestService()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p := seedProject(t, svc, "NSCLC Registry", uuid.New())
	user := uuid.New()
	start := now.AddDate(-1, 0, 0)
	end := now.AddDate(0, -6, 0)
	g := &ProjectDataManagerGrant{
		ProjectID:      p.ID,
		UserID:         user,
		ValidityPeriod: clinical.Period{Start: &start, End: &end},
	}
	if err := svc.CreateGrant(context.Background(), g); err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if g.IsValid {
		t.Fatal("expired grant should not be valid")
	}

	ok, err := svc.HasValidGrant(context.Background(), p.ID, user)
	if err != nil {
		t.Fatalf("has valid grant: %v", err)
	}
	if ok {
		t.Fatal("expired grant must not confer data-manager rights")
	}
}
