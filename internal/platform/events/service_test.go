package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRepo struct {
	events []*Event
}

func (m *mockRepo) Insert(_ context.Context, e *Event) error {
	e.ID = uuid.New()
	m.events = append(m.events, e)
	return nil
}

func (m *mockRepo) ListBySubject(_ context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var out []*Event
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) GetByID(_ context.Context, resourceType string, resourceID, eventID uuid.UUID) (*Event, error) {
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID && e.ID == eventID {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) LatestSnapshot(_ context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, error) {
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.ResourceType == resourceType && e.ResourceID == resourceID &&
			(e.Label == LabelCreate || e.Label == LabelUpdate) {
			return e.Snapshot, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) MetaFor(_ context.Context, _ string, _ uuid.UUID) (*Meta, error) {
	return &Meta{}, nil
}

func (m *mockRepo) ContributorsFor(_ context.Context, _ []string, _ []uuid.UUID) ([]string, error) {
	return nil, nil
}

type mockReverter struct {
	applied json.RawMessage
	err     error
}

func (r *mockReverter) Revert(_ context.Context, _ uuid.UUID, snapshot json.RawMessage) error {
	if r.err != nil {
		return r.err
	}
	r.applied = snapshot
	return nil
}

// -- Tests --

func TestRecord_AppendsExactlyOneEvent(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	id := uuid.New()

	if _, err := svc.Record(context.Background(), "PatientCase", id, LabelCreate,
		map[string]interface{}{"pseudoidentifier": "X.0001.001.01"}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}
	if repo.events[0].Label != LabelCreate {
		t.Errorf("expected create label, got %s", repo.events[0].Label)
	}
	if len(repo.events[0].Diff) != 0 {
		t.Errorf("create event must carry no diff, got %s", repo.events[0].Diff)
	}
}

func TestRecord_UpdateCarriesDiff(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	id := uuid.New()
	ctx := context.Background()

	if _, err := svc.Record(ctx, "PatientCase", id, LabelCreate,
		map[string]interface{}{"gender": "female", "consentStatus": "valid"}, nil); err != nil {
		t.Fatalf("record create: %v", err)
	}
	if _, err := svc.Record(ctx, "PatientCase", id, LabelUpdate,
		map[string]interface{}{"gender": "male", "consentStatus": "valid"}, nil); err != nil {
		t.Fatalf("record update: %v", err)
	}

	var diff map[string]interface{}
	if err := json.Unmarshal(repo.events[1].Diff, &diff); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if diff["gender"] != "male" {
		t.Errorf("expected diff to carry changed gender, got %v", diff)
	}
	if _, ok := diff["consentStatus"]; ok {
		t.Errorf("unchanged field must not appear in diff: %v", diff)
	}
}

func TestRevert_AppliesSnapshotThroughReverter(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	id := uuid.New()
	ctx := context.Background()

	if _, err := svc.Record(ctx, "PatientCase", id, LabelCreate,
		map[string]interface{}{"gender": "female"}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	eventID := repo.events[0].ID

	rev := &mockReverter{}
	svc.RegisterReverter("PatientCase", rev)

	if err := svc.Revert(ctx, "PatientCase", id, eventID); err != nil {
		t.Fatalf("revert: %v", err)
	}

	var snap map[string]interface{}
	if err := json.Unmarshal(rev.applied, &snap); err != nil {
		t.Fatalf("decode applied snapshot: %v", err)
	}
	if snap["gender"] != "female" {
		t.Errorf("expected original create snapshot, got %v", snap)
	}
}

func TestRevert_UnknownEvent(t *testing.T) {
	svc := NewService(&mockRepo{}, zerolog.Nop())
	svc.RegisterReverter("PatientCase", &mockReverter{})

	err := svc.Revert(context.Background(), "PatientCase", uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestRevert_NoReverter(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, zerolog.Nop())
	id := uuid.New()
	ctx := context.Background()

	if _, err := svc.Record(ctx, "Vitals", id, LabelCreate, map[string]interface{}{"x": 1}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	err := svc.Revert(ctx, "Vitals", id, repo.events[0].ID)
	if err == nil {
		t.Fatal("expected error when no reverter is registered")
	}
}
