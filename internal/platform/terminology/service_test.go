package terminology

import (
	"context"
	"errors"
	"testing"
)

type mockRepo struct {
	concepts    map[string]*Concept
	descendants map[string][]string
	calls       int
}

func (m *mockRepo) key(system, code string) string { return system + "|" + code }

func (m *mockRepo) Get(_ context.Context, system, code string) (*Concept, error) {
	c, ok := m.concepts[m.key(system, code)]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return c, nil
}

func (m *mockRepo) Descendants(_ context.Context, system, code string) ([]string, error) {
	m.calls++
	codes, ok := m.descendants[m.key(system, code)]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return codes, nil
}

func (m *mockRepo) Group(ctx context.Context, system, codePrefix string) (*Concept, error) {
	return m.Get(ctx, system, codePrefix)
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		concepts: map[string]*Concept{
			"ICD-O-3|C50":   {System: "ICD-O-3", Code: "C50", Display: "Breast"},
			"ICD-O-3|C50.2": {System: "ICD-O-3", Code: "C50.2", Display: "Upper-inner quadrant of breast", ParentCode: "C50"},
			"ATC|L01":       {System: "ATC", Code: "L01", Display: "Antineoplastic agents"},
		},
		descendants: map[string][]string{
			"ATC|L01": {"L01", "L01A", "L01AA", "L01AA01"},
		},
	}
}

func TestDescendantsIncludeSelf(t *testing.T) {
	svc, err := NewService(newMockRepo())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	codes, err := svc.DescendantsOf(context.Background(), "ATC", "L01")
	if err != nil {
		t.Fatalf("DescendantsOf: %v", err)
	}
	if len(codes) != 4 || codes[0] != "L01" {
		t.Errorf("got %v, want closure rooted at L01", codes)
	}
}

func TestDescendantsCached(t *testing.T) {
	repo := newMockRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.DescendantsOf(context.Background(), "ATC", "L01"); err != nil {
			t.Fatalf("DescendantsOf: %v", err)
		}
	}
	if repo.calls != 1 {
		t.Errorf("repo queried %d times, want 1", repo.calls)
	}
}

func TestGroupOfTruncatesTopography(t *testing.T) {
	svc, err := NewService(newMockRepo())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	group, err := svc.GroupOf(context.Background(), "ICD-O-3", "C50.2")
	if err != nil {
		t.Fatalf("GroupOf: %v", err)
	}
	if group.Code != "C50" || group.Display != "Breast" {
		t.Errorf("got %+v, want C50 Breast", group)
	}
}

func TestLookupUnknownCode(t *testing.T) {
	svc, err := NewService(newMockRepo())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "ICD-O-3", "C99"); err == nil {
		t.Error("expected error for unknown code")
	}
}
