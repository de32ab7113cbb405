package cohorts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
)

var errNotFound = errors.New("not found")

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, uuid.UUID, events.Label, interface{}, map[string]interface{}) (uuid.UUID, error) {
	return uuid.New(), nil
}

// mockRepo answers FindCaseIDs by matching the bound pseudoidentifier
// argument against a fixed universe, which is enough to drive the set
// algebra without a database.
type mockRepo struct {
	cohorts map[uuid.UUID]*Cohort
	members map[uuid.UUID][]uuid.UUID
	// universe maps pseudoidentifier to case id.
	universe map[string]uuid.UUID
	traits   map[uuid.UUID]TraitRow
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		cohorts:  map[uuid.UUID]*Cohort{},
		members:  map[uuid.UUID][]uuid.UUID{},
		universe: map[string]uuid.UUID{},
		traits:   map[uuid.UUID]TraitRow{},
	}
}

func (r *mockRepo) Create(_ context.Context, c *Cohort) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.cohorts[c.ID] = &cp
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Cohort, error) {
	c, ok := r.cohorts[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *mockRepo) Update(_ context.Context, c *Cohort) error {
	if _, ok := r.cohorts[c.ID]; !ok {
		return errNotFound
	}
	cp := *c
	r.cohorts[c.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.cohorts, id)
	delete(r.members, id)
	return nil
}

func (r *mockRepo) ListByProject(_ context.Context, projectID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	var out []*Cohort
	for _, c := range r.cohorts {
		if c.ProjectID == projectID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *mockRepo) Members(_ context.Context, cohortID uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), r.members[cohortID]...), nil
}

func (r *mockRepo) ReplaceMembers(_ context.Context, cohortID uuid.UUID, caseIDs []uuid.UUID) error {
	r.members[cohortID] = append([]uuid.UUID(nil), caseIDs...)
	return nil
}

func (r *mockRepo) FindCaseIDs(_ context.Context, predicate string, args []interface{}) ([]uuid.UUID, error) {
	if predicate == "TRUE" {
		var all []uuid.UUID
		for _, id := range r.universe {
			all = append(all, id)
		}
		return all, nil
	}
	var out []uuid.UUID
	for _, arg := range args {
		pseudo, ok := arg.(string)
		if !ok {
			continue
		}
		if id, ok := r.universe[pseudo]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *mockRepo) TraitRows(_ context.Context, caseIDs []uuid.UUID) ([]TraitRow, error) {
	var out []TraitRow
	for _, id := range caseIDs {
		if t, ok := r.traits[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *mockRepo) PrimarySiteCounts(_ context.Context, _ []uuid.UUID) ([]ValueCount, error) {
	return nil, nil
}

type stubContributors struct {
	byCase map[uuid.UUID][]string
}

func (s stubContributors) CaseContributors(_ context.Context, caseID uuid.UUID) ([]string, error) {
	return s.byCase[caseID], nil
}

func pseudoRule(pseudos ...string) json.RawMessage {
	rules := make([]map[string]interface{}, len(pseudos))
	for i, p := range pseudos {
		rules[i] = map[string]interface{}{
			"entity": "PatientCase",
			"filters": []map[string]interface{}{
				{"field": "pseudoidentifier", "operator": "exact", "value": p},
			},
		}
	}
	doc, _ := json.Marshal(map[string]interface{}{"condition": "OR", "rules": rules})
	return doc
}

func newFixture() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, NewCompiler(stubTerms{}), stubContributors{}, nopRecorder{}, nil)
	return svc, repo
}

func TestUpdateCohortCasesAppliesSetAlgebra(t *testing.T) {
	svc, repo := newFixture()
	a, b, c, manual := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	repo.universe = map[string]uuid.UUID{"A": a, "B": b, "C": c}

	cohort := &Cohort{
		ProjectID:       uuid.New(),
		Name:            "lung",
		IncludeCriteria: pseudoRule("A", "B", "C"),
		ExcludeCriteria: pseudoRule("B"),
		ManualChoices:   []uuid.UUID{manual},
	}
	if err := svc.CreateCohort(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort: %v", err)
	}

	members, err := svc.UpdateCohortCases(context.Background(), cohort.ID)
	if err != nil {
		t.Fatalf("update cases: %v", err)
	}
	want := map[uuid.UUID]bool{a: true, c: true, manual: true}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want {A, C, manual}", members)
	}
	for _, id := range members {
		if !want[id] {
			t.Errorf("unexpected member %s", id)
		}
	}
}

func TestUpdateCohortCasesFrozenSetShortCircuits(t *testing.T) {
	svc, repo := newFixture()
	a, frozen := uuid.New(), uuid.New()
	repo.universe = map[string]uuid.UUID{"A": a}

	cohort := &Cohort{
		ProjectID:       uuid.New(),
		Name:            "frozen",
		IncludeCriteria: pseudoRule("A"),
		FrozenSet:       []uuid.UUID{frozen},
	}
	if err := svc.CreateCohort(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort: %v", err)
	}

	members, err := svc.UpdateCohortCases(context.Background(), cohort.ID)
	if err != nil {
		t.Fatalf("update cases: %v", err)
	}
	if len(members) != 1 || members[0] != frozen {
		t.Fatalf("members = %v, want frozen set only", members)
	}
}

func TestUpdateCohortCasesIsIdempotent(t *testing.T) {
	svc, repo := newFixture()
	a, b := uuid.New(), uuid.New()
	repo.universe = map[string]uuid.UUID{"A": a, "B": b}

	cohort := &Cohort{
		ProjectID:       uuid.New(),
		Name:            "stable",
		IncludeCriteria: pseudoRule("A", "B"),
	}
	if err := svc.CreateCohort(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort: %v", err)
	}

	first, err := svc.UpdateCohortCases(context.Background(), cohort.ID)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := svc.UpdateCohortCases(context.Background(), cohort.ID)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("membership changed without data changes: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("membership order changed: %v vs %v", first, second)
		}
	}
}

func TestCreateCohortRejectsInvalidCriteria(t *testing.T) {
	svc, _ := newFixture()
	err := svc.CreateCohort(context.Background(), &Cohort{
		ProjectID:       uuid.New(),
		Name:            "bad",
		IncludeCriteria: json.RawMessage(`{"condition": "AND", "rules": [{"entity": "Widget", "filters": []}]}`),
	})
	if err == nil {
		t.Fatal("expected invalid criteria to be rejected at write time")
	}
}

func TestTraitsEmptyCohort(t *testing.T) {
	svc, _ := newFixture()
	cohort := &Cohort{ProjectID: uuid.New(), Name: "empty"}
	if err := svc.CreateCohort(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort: %v", err)
	}

	if _, err := svc.Traits(context.Background(), cohort.ID, false); !errors.Is(err, ErrEmptyCohort) {
		t.Fatalf("err = %v, want ErrEmptyCohort", err)
	}
}

func TestTraitsSummarizesMembers(t *testing.T) {
	svc, repo := newFixture()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	female, male := "female", "male"
	valid, pending := "valid", "pending"
	dob1 := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	dob2 := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()
	repo.universe = map[string]uuid.UUID{"A": a, "B": b}
	repo.traits[a] = TraitRow{CaseID: a, Gender: &female, ConsentStatus: &valid, DateOfBirth: &dob1}
	repo.traits[b] = TraitRow{CaseID: b, Gender: &male, ConsentStatus: &pending, DateOfBirth: &dob2}

	cohort := &Cohort{ProjectID: uuid.New(), Name: "all", IncludeCriteria: pseudoRule("A", "B")}
	if err := svc.CreateCohort(context.Background(), cohort); err != nil {
		t.Fatalf("create cohort: %v", err)
	}

	traits, err := svc.Traits(context.Background(), cohort.ID, false)
	if err != nil {
		t.Fatalf("traits: %v", err)
	}
	if traits.Population != 2 || traits.ValidConsentCases != 1 {
		t.Fatalf("population = %d, valid = %d", traits.Population, traits.ValidConsentCases)
	}
	if traits.Age.Count != 2 || traits.Age.Mean == nil {
		t.Fatalf("age summary = %+v", traits.Age)
	}
	if *traits.Age.Mean != 54 {
		t.Errorf("mean age = %v, want 54", *traits.Age.Mean)
	}

	restricted, err := svc.Traits(context.Background(), cohort.ID, true)
	if err != nil {
		t.Fatalf("restricted traits: %v", err)
	}
	if restricted.Age.Count != 1 {
		t.Errorf("restricted age count = %d, want 1", restricted.Age.Count)
	}
}
