package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/events"
)

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return errors.New("duplicate username")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockUserRepo) GetByOIDCSubject(_ context.Context, subject string) (*User, error) {
	for _, u := range m.users {
		if u.OIDCSubject == subject && subject != "" {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockUserRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return errors.New("not found")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var items []*User
	for _, u := range m.users {
		cp := *u
		items = append(items, &cp)
	}
	return items, len(m.users), nil
}

type nopRecorder struct{ labels []events.Label }

func (r *nopRecorder) Record(_ context.Context, _ string, _ uuid.UUID, label events.Label, _ interface{}, _ map[string]interface{}) (uuid.UUID, error) {
	r.labels = append(r.labels, label)
	return uuid.New(), nil
}

type stubVerifier struct {
	ident *auth.ProviderIdentity
	err   error
}

func (v *stubVerifier) Verify(string) (*auth.ProviderIdentity, error) { return v.ident, v.err }

func newTestService(repo UserRepository) *Service {
	issuer := auth.NewSessionIssuer("test-secret", time.Hour)
	return NewService(repo, issuer, &nopRecorder{})
}

func seedUser(t *testing.T, repo *mockUserRepo, username, password string, level auth.AccessLevel) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &User{Username: username, AccessLevel: level, PasswordHash: string(hash)}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLoginIssuesSession(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "doc", "hunter2pass", auth.LevelDataContributor)
	svc := newTestService(repo)

	session, err := svc.Login(context.Background(), "doc", "hunter2pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !session.IsAuthenticated || session.SessionToken == "" {
		t.Errorf("got %+v, want authenticated session with token", session)
	}
	if session.User.Role != "DataContributor" {
		t.Errorf("role = %q, want DataContributor", session.User.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "doc", "hunter2pass", auth.LevelViewer)
	svc := newTestService(repo)

	if _, err := svc.Login(context.Background(), "doc", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginNoPasswordSet(t *testing.T) {
	repo := newMockUserRepo()
	u := &User{Username: "sso-only", AccessLevel: auth.LevelViewer}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(repo)
	if _, err := svc.Login(context.Background(), "sso-only", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestProviderLoginProvisionsExternal(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestService(repo)
	svc.SetProviderVerifier(&stubVerifier{ident: &auth.ProviderIdentity{
		Subject:  "sub-123",
		Username: "jane.roe",
		Email:    "jane@example.org",
		Name:     "Jane Roe",
	}})

	session, err := svc.ProviderLogin(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("ProviderLogin: %v", err)
	}
	if session.User.AccessLevel != auth.LevelExternal {
		t.Errorf("access level = %d, want external", session.User.AccessLevel)
	}
	if session.User.FirstName != "Jane" || session.User.LastName != "Roe" {
		t.Errorf("name = %q %q", session.User.FirstName, session.User.LastName)
	}

	// Second login resolves the same account.
	again, err := svc.ProviderLogin(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("second ProviderLogin: %v", err)
	}
	if again.User.ID != session.User.ID {
		t.Error("provider login created a duplicate account")
	}
}

func TestProviderLoginLinksExistingUsername(t *testing.T) {
	repo := newMockUserRepo()
	seeded := seedUser(t, repo, "jane.roe", "pw-irrelevant", auth.LevelDataAnalyst)
	svc := newTestService(repo)
	svc.SetProviderVerifier(&stubVerifier{ident: &auth.ProviderIdentity{
		Subject:  "sub-456",
		Username: "jane.roe",
	}})

	session, err := svc.ProviderLogin(context.Background(), "raw-token")
	if err != nil {
		t.Fatalf("ProviderLogin: %v", err)
	}
	if session.User.ID != seeded.ID {
		t.Error("expected existing account to be linked, got a new one")
	}
	if session.User.AccessLevel != auth.LevelDataAnalyst {
		t.Errorf("access level = %d, want analyst preserved", session.User.AccessLevel)
	}
}

func TestProviderLoginRejectsBadToken(t *testing.T) {
	svc := newTestService(newMockUserRepo())
	svc.SetProviderVerifier(&stubVerifier{err: errors.New("bad signature")})
	if _, err := svc.ProviderLogin(context.Background(), "raw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc := newTestService(newMockUserRepo())

	if err := svc.CreateUser(context.Background(), &User{Username: "  "}, ""); err == nil {
		t.Error("expected error for blank username")
	}
	if err := svc.CreateUser(context.Background(), &User{Username: "x", AccessLevel: 9}, ""); err == nil {
		t.Error("expected error for out-of-range access level")
	}
	u := &User{Username: "x", AccessLevel: auth.LevelViewer}
	if err := svc.CreateUser(context.Background(), u, "secretpass"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != "Viewer" {
		t.Errorf("role = %q, want Viewer", u.Role)
	}
}

func TestUpdateUserPreservesCredentials(t *testing.T) {
	repo := newMockUserRepo()
	seeded := seedUser(t, repo, "doc", "originalpass", auth.LevelViewer)
	svc := newTestService(repo)

	update := &User{ID: seeded.ID, Username: "renamed", AccessLevel: auth.LevelDataAnalyst, Email: "doc@example.org"}
	if err := svc.UpdateUser(context.Background(), update); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), seeded.ID)
	if stored.Username != "doc" {
		t.Errorf("username changed to %q, want immutable", stored.Username)
	}
	if stored.PasswordHash == "" {
		t.Error("password hash lost on update")
	}
	if stored.AccessLevel != auth.LevelDataAnalyst {
		t.Errorf("access level = %d, want analyst", stored.AccessLevel)
	}
}

func TestDeleteUserRecordsEvent(t *testing.T) {
	repo := newMockUserRepo()
	seeded := seedUser(t, repo, "doc", "pw", auth.LevelViewer)
	rec := &nopRecorder{}
	svc := NewService(repo, auth.NewSessionIssuer("s", time.Hour), rec)

	if err := svc.DeleteUser(context.Background(), seeded.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(rec.labels) != 1 || rec.labels[0] != events.LabelDelete {
		t.Errorf("recorded labels = %v, want [delete]", rec.labels)
	}
	if _, err := repo.GetByID(context.Background(), seeded.ID); err == nil {
		t.Error("user still present after delete")
	}
}
