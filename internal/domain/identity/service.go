package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/events"
)

const resourceType = "User"

var ErrInvalidCredentials = errors.New("invalid credentials")

// ProviderTokenVerifier validates an external OIDC id_token and returns
// the identity claims it carries.
type ProviderTokenVerifier interface {
	Verify(rawIDToken string) (*auth.ProviderIdentity, error)
}

type Service struct {
	repo     UserRepository
	sessions *auth.SessionIssuer
	verifier ProviderTokenVerifier
	recorder events.Recorder
}

func NewService(repo UserRepository, sessions *auth.SessionIssuer, recorder events.Recorder) *Service {
	return &Service{repo: repo, sessions: sessions, recorder: recorder}
}

// SetProviderVerifier enables the OIDC token exchange. Without it the
// provider session endpoint rejects every token.
func (s *Service) SetProviderVerifier(v ProviderTokenVerifier) { s.verifier = v }

// RegisterReverters wires user snapshots back into the event service.
// UpdateUser pins username and password hash, so a reverted snapshot never
// resets credentials.
func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(resourceType, events.ReverterFunc(func(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
		var u User
		if err := json.Unmarshal(snapshot, &u); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		u.ID = resourceID
		return s.UpdateUser(ctx, &u)
	}))
}

// UserByUsername resolves a user by their unique username.
func (s *Service) UserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueSession(u)
}

// ProviderLogin exchanges a verified OIDC id_token for a platform session.
// Unknown subjects are provisioned as external, non-shareable accounts.
func (s *Service) ProviderLogin(ctx context.Context, rawIDToken string) (*Session, error) {
	if s.verifier == nil {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.verifier.Verify(rawIDToken)
	if err != nil || ident.Subject == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByOIDCSubject(ctx, ident.Subject)
	if err != nil {
		u, err = s.provisionExternal(ctx, ident)
		if err != nil {
			return nil, err
		}
	}
	return s.issueSession(u)
}

func (s *Service) provisionExternal(ctx context.Context, ident *auth.ProviderIdentity) (*User, error) {
	// A pre-created account with the provider username gets linked instead
	// of duplicated.
	if existing, err := s.repo.GetByUsername(ctx, ident.Username); err == nil {
		existing.OIDCSubject = ident.Subject
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	first, last := splitName(ident.Name)
	u := &User{
		Username:    ident.Username,
		FirstName:   first,
		LastName:    last,
		Email:       ident.Email,
		AccessLevel: auth.LevelExternal,
		OIDCSubject: ident.Subject,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	_, _ = s.recorder.Record(ctx, resourceType, u.ID, events.LabelCreate, u, nil)
	return u, nil
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (s *Service) issueSession(u *User) (*Session, error) {
	token, err := s.sessions.Issue(u.Principal())
	if err != nil {
		return nil, err
	}
	u.Decorate()
	return &Session{
		SessionToken:    token,
		IsAuthenticated: true,
		ExpiresAt:       time.Now().Add(s.sessions.TTL()),
		User:            u,
	}, nil
}

func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if !u.AccessLevel.Valid() {
		return fmt.Errorf("invalid access level: %d", u.AccessLevel)
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	u.Decorate()
	_, err := s.recorder.Record(ctx, resourceType, u.ID, events.LabelCreate, u, nil)
	return err
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Decorate()
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if !u.AccessLevel.Valid() {
		return fmt.Errorf("invalid access level: %d", u.AccessLevel)
	}
	current, err := s.repo.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	u.Username = current.Username
	u.PasswordHash = current.PasswordHash
	if u.OIDCSubject == "" {
		u.OIDCSubject = current.OIDCSubject
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	u.Decorate()
	_, err = s.recorder.Record(ctx, resourceType, u.ID, events.LabelUpdate, u, nil)
	return err
}

func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.repo.Update(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.recorder.Record(ctx, resourceType, id, events.LabelDelete, u, nil)
	return err
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, u := range items {
		u.Decorate()
	}
	return items, total, nil
}
