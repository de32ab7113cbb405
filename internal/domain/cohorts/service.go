package cohorts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
)

const resourceType = "Cohort"

// ErrEmptyCohort rejects statistics over a cohort without member cases.
var ErrEmptyCohort = errors.New("cohort has no member cases")

// EventLog is the slice of the event service this package records through.
// Satisfied by *events.Service.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

// ContributorSource resolves the contributor set of one case. Satisfied by
// *cases.Service.
type ContributorSource interface {
	CaseContributors(ctx context.Context, caseID uuid.UUID) ([]string, error)
}

// TxRunner wraps a function in a database transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo         CohortRepository
	compiler     *Compiler
	contributors ContributorSource
	events       EventLog
	tx           TxRunner
	now          func() time.Time
}

func NewService(repo CohortRepository, compiler *Compiler, contributors ContributorSource, eventLog EventLog, tx TxRunner) *Service {
	return &Service{
		repo:         repo,
		compiler:     compiler,
		contributors: contributors,
		events:       eventLog,
		tx:           tx,
		now:          time.Now,
	}
}

func (s *Service) Repo() CohortRepository { return s.repo }

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

func (s *Service) validate(ctx context.Context, c *Cohort) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.ProjectID == uuid.Nil {
		return fmt.Errorf("project is required")
	}
	if _, err := ParseRuleset(c.IncludeCriteria); err != nil {
		return fmt.Errorf("include criteria: %w", err)
	}
	if _, err := ParseRuleset(c.ExcludeCriteria); err != nil {
		return fmt.Errorf("exclude criteria: %w", err)
	}
	// Compile both criteria up front so an unknown entity, field or
	// operator is rejected at write time, not at materialization.
	for _, raw := range []json.RawMessage{c.IncludeCriteria, c.ExcludeCriteria} {
		rs, _ := ParseRuleset(raw)
		if _, _, err := s.compiler.Compile(ctx, rs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateCohort(ctx context.Context, c *Cohort) error {
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, resourceType, c.ID, events.LabelCreate, c, nil); err != nil {
			return err
		}
		return s.materialize(ctx, c)
	})
}

func (s *Service) GetCohort(ctx context.Context, id uuid.UUID) (*Cohort, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCohort(ctx context.Context, c *Cohort) error {
	if err := s.validate(ctx, c); err != nil {
		return err
	}
	current, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.ProjectID = current.ProjectID
	c.CreatedAt = current.CreatedAt
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, resourceType, c.ID, events.LabelUpdate, c, nil); err != nil {
			return err
		}
		return s.materialize(ctx, c)
	})
}

func (s *Service) DeleteCohort(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		_, err := s.events.Record(ctx, resourceType, id, events.LabelDelete, c, nil)
		return err
	})
}

func (s *Service) ListCohorts(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	items, total, err := s.repo.ListByProject(ctx, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range items {
		if err := s.decorate(ctx, c); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *Service) decorate(ctx context.Context, c *Cohort) error {
	members, err := s.repo.Members(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Cases = members
	c.Population = len(members)
	return nil
}

// UpdateCohortCases rematerializes the membership and returns the member
// set. A non-empty frozen set short-circuits recomputation so frozen
// cohorts stay reproducible.
func (s *Service) UpdateCohortCases(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.run(ctx, func(ctx context.Context) error {
		return s.materialize(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c.Cases, nil
}

func (s *Service) materialize(ctx context.Context, c *Cohort) error {
	members, err := s.resolveMembers(ctx, c)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceMembers(ctx, c.ID, members); err != nil {
		return err
	}
	c.Cases = members
	c.Population = len(members)
	return nil
}

func (s *Service) resolveMembers(ctx context.Context, c *Cohort) ([]uuid.UUID, error) {
	if len(c.FrozenSet) > 0 {
		return dedupe(c.FrozenSet), nil
	}

	base, err := s.evaluate(ctx, c.IncludeCriteria)
	if err != nil {
		return nil, fmt.Errorf("include criteria: %w", err)
	}
	excluded := map[uuid.UUID]bool{}
	if len(c.ExcludeCriteria) > 0 && string(c.ExcludeCriteria) != "null" {
		ids, err := s.evaluate(ctx, c.ExcludeCriteria)
		if err != nil {
			return nil, fmt.Errorf("exclude criteria: %w", err)
		}
		for _, id := range ids {
			excluded[id] = true
		}
	}

	var members []uuid.UUID
	for _, id := range base {
		if !excluded[id] {
			members = append(members, id)
		}
	}
	members = append(members, c.ManualChoices...)
	return dedupe(members), nil
}

func (s *Service) evaluate(ctx context.Context, criteria json.RawMessage) ([]uuid.UUID, error) {
	rs, err := ParseRuleset(criteria)
	if err != nil {
		return nil, err
	}
	predicate, args, err := s.compiler.Compile(ctx, rs)
	if err != nil {
		return nil, err
	}
	return s.repo.FindCaseIDs(ctx, predicate, args)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Contributors returns the distinct usernames that touched any member case.
func (s *Service) Contributors(ctx context.Context, id uuid.UUID) ([]string, error) {
	members, err := s.repo.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, caseID := range members {
		names, err := s.contributors.CaseContributors(ctx, caseID)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			seen[n] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Traits summarizes the member cases. With validOnly the numeric summaries
// cover only cases whose consent status is valid.
func (s *Service) Traits(ctx context.Context, id uuid.UUID, validOnly bool) (*Traits, error) {
	members, err := s.repo.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrEmptyCohort
	}

	rows, err := s.repo.TraitRows(ctx, members)
	if err != nil {
		return nil, err
	}

	t := &Traits{Population: len(members)}
	var ages []float64
	var genders, consents []string
	now := s.now()
	for _, row := range rows {
		valid := row.ConsentStatus != nil && *row.ConsentStatus == "valid"
		if valid {
			t.ValidConsentCases++
		}
		if row.DateOfDeath != nil || row.HasCauseOfDeath {
			t.DeceasedCases++
		}
		if row.Gender != nil {
			genders = append(genders, *row.Gender)
		}
		if row.ConsentStatus != nil {
			consents = append(consents, *row.ConsentStatus)
		}
		if validOnly && !valid {
			continue
		}
		if row.DateOfBirth != nil {
			ref := now
			if row.DateOfDeath != nil {
				ref = *row.DateOfDeath
			}
			ages = append(ages, float64(yearsBetween(*row.DateOfBirth, ref)))
		}
	}
	t.Age = summarize(ages)
	t.GenderDistribution = histogram(genders)
	t.ConsentDistribution = histogram(consents)

	sites, err := s.repo.PrimarySiteCounts(ctx, members)
	if err != nil {
		return nil, err
	}
	t.PrimarySites = sites
	return t, nil
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// RegisterReverters wires event reversion for cohorts.
func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(resourceType, events.ReverterFunc(func(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
		var c Cohort
		if err := json.Unmarshal(snapshot, &c); err != nil {
			return err
		}
		c.ID = resourceID
		return s.UpdateCohort(ctx, &c)
	}))
}
