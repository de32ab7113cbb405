package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/canonical"
)

var (
	// ErrNotFound is returned for unknown subjects or event ids.
	ErrNotFound = errors.New("event not found")
	// ErrConflict is returned when reverting a subject that has been deleted.
	ErrConflict = errors.New("subject has been deleted")
	// ErrNoReverter is returned when no reverter is registered for a type.
	ErrNoReverter = errors.New("no reverter registered for resource type")
)

// Reverter applies an event snapshot as a fresh write of the subject. Domain
// services implement this; the write produces its own update event, so
// reverting never rewrites history. Implementations must return ErrConflict
// (wrapped) when the subject no longer exists.
type Reverter interface {
	Revert(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error
}

// ReverterFunc is a function adapter for Reverter.
type ReverterFunc func(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error

func (f ReverterFunc) Revert(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	return f(ctx, resourceID, snapshot)
}

// Recorder is the narrow interface domain services use to append history.
type Recorder interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

type Service struct {
	repo Repository
	log  zerolog.Logger

	mu        sync.RWMutex
	reverters map[string]Reverter
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		log:       log,
		reverters: make(map[string]Reverter),
	}
}

// RegisterReverter wires the domain service able to re-apply snapshots of
// the given resource type. Called once at startup.
func (s *Service) RegisterReverter(resourceType string, r Reverter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverters[resourceType] = r
}

// Record appends one event for the subject. Update events carry the
// field-wise diff against the latest recorded snapshot; create events carry
// an empty diff. The author and request origin come from the context.
func (s *Service) Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error) {
	e := &Event{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Label:        label,
		Context:      evtContext,
	}

	if p, ok := auth.PrincipalFromContext(ctx); ok {
		e.Author = p.Username
	}
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	if _, ok := e.Context["username"]; !ok && e.Author != "" {
		e.Context["username"] = e.Author
	}

	if snapshot != nil {
		raw, err := canonical.Marshal(snapshot)
		if err != nil {
			return uuid.Nil, fmt.Errorf("serialize snapshot: %w", err)
		}
		e.Snapshot = raw

		if label == LabelUpdate {
			prev, err := s.repo.LatestSnapshot(ctx, resourceType, resourceID)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return uuid.Nil, fmt.Errorf("load previous snapshot: %w", err)
			}
			if prev != nil {
				var pre, post interface{}
				if err := json.Unmarshal(prev, &pre); err != nil {
					return uuid.Nil, fmt.Errorf("decode previous snapshot: %w", err)
				}
				if err := json.Unmarshal(raw, &post); err != nil {
					return uuid.Nil, fmt.Errorf("decode snapshot: %w", err)
				}
				diff, err := canonical.Diff(pre, post)
				if err != nil {
					return uuid.Nil, fmt.Errorf("compute diff: %w", err)
				}
				if e.Diff, err = canonical.Marshal(diff); err != nil {
					return uuid.Nil, fmt.Errorf("serialize diff: %w", err)
				}
			}
		}
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("append event: %w", err)
	}
	return e.ID, nil
}

// List returns the ordered event history of a subject.
func (s *Service) List(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	return s.repo.ListBySubject(ctx, resourceType, resourceID, limit, offset)
}

// Get returns a single event of a subject.
func (s *Service) Get(ctx context.Context, resourceType string, resourceID, eventID uuid.UUID) (*Event, error) {
	e, err := s.repo.GetByID(ctx, resourceType, resourceID, eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Meta returns the event-derived header of a subject.
func (s *Service) Meta(ctx context.Context, resourceType string, resourceID uuid.UUID) (*Meta, error) {
	return s.repo.MetaFor(ctx, resourceType, resourceID)
}

// Contributors returns the distinct authors of any event touching the given
// subjects.
func (s *Service) Contributors(ctx context.Context, resourceTypes []string, resourceIDs []uuid.UUID) ([]string, error) {
	return s.repo.ContributorsFor(ctx, resourceTypes, resourceIDs)
}

// Revert restores the subject to the state captured by the given event. The
// snapshot is re-applied as a regular write through the registered reverter,
// which produces a fresh update event; history is never rewritten.
func (s *Service) Revert(ctx context.Context, resourceType string, resourceID, eventID uuid.UUID) error {
	e, err := s.Get(ctx, resourceType, resourceID, eventID)
	if err != nil {
		return err
	}
	if len(e.Snapshot) == 0 {
		return fmt.Errorf("event %s carries no snapshot: %w", eventID, ErrNotFound)
	}

	s.mu.RLock()
	reverter, ok := s.reverters[resourceType]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoReverter, resourceType)
	}

	if err := reverter.Revert(ctx, resourceID, e.Snapshot); err != nil {
		return fmt.Errorf("revert %s/%s to event %s: %w", resourceType, resourceID, eventID, err)
	}

	s.log.Info().
		Str("resource_type", resourceType).
		Str("resource_id", resourceID.String()).
		Str("event_id", eventID.String()).
		Msg("subject reverted")
	return nil
}
