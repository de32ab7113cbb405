package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

const (
	resourceType           = "PatientCase"
	completionResourceType = "PatientCaseDataCompletion"
)

var (
	ErrCaseNotFound                  = errors.New("patient case not found")
	ErrMonthPrecision                = errors.New("dateOfBirth and dateOfDeath must fall on the first of the month")
	ErrConflictingCase               = errors.New("a case with this pseudoidentifier already exists")
	ErrConflictingClinicalIdentifier = errors.New("clinical identifier is already registered for this clinical center")
	ErrUnknownCategory               = errors.New("unknown completion category")
	ErrInvalidFilter                 = errors.New("invalid list filter")
	ErrInvalidOrdering               = errors.New("invalid ordering field")
)

// EventLog is the slice of the event service this package records
// through. Satisfied by *events.Service.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
	Contributors(ctx context.Context, resourceTypes []string, resourceIDs []uuid.UUID) ([]string, error)
}

// FilterCompiler turns flat list-endpoint query parameters into a SQL
// predicate over the cases table aliased "pc". Satisfied by the cohort
// rule compiler.
type FilterCompiler interface {
	CompileListQuery(ctx context.Context, params url.Values) (string, []interface{}, error)
}

type Service struct {
	repo   PatientCaseRepository
	events EventLog
	anon   *anonymize.Anonymizer
	filter FilterCompiler
}

func NewService(repo PatientCaseRepository, eventLog EventLog, anon *anonymize.Anonymizer) *Service {
	return &Service{repo: repo, events: eventLog, anon: anon}
}

// SetFilterCompiler enables the typed filter query surface on case listing.
func (s *Service) SetFilterCompiler(fc FilterCompiler) { s.filter = fc }

// Repo exposes the repository to sibling services that need case lookups
// without going through response decoration.
func (s *Service) Repo() PatientCaseRepository { return s.repo }

func (s *Service) validate(pc *PatientCase) error {
	if !firstOfMonth(pc.DateOfBirth) || !firstOfMonth(pc.DateOfDeath) {
		return ErrMonthPrecision
	}
	if pc.ConsentStatus != "" && !validConsentStatuses[pc.ConsentStatus] {
		return fmt.Errorf("invalid consent status: %s", pc.ConsentStatus)
	}
	return nil
}

// newPseudoidentifier draws an X.NNNN.NNN.NN identifier.
func newPseudoidentifier() string {
	return fmt.Sprintf("X.%04d.%03d.%02d", rand.Intn(10000), rand.Intn(1000), rand.Intn(100))
}

func (s *Service) CreateCase(ctx context.Context, pc *PatientCase) error {
	if err := s.validate(pc); err != nil {
		return err
	}
	if pc.ConsentStatus == "" {
		pc.ConsentStatus = "unknown"
	}
	if pc.Pseudoidentifier == "" {
		for i := 0; i < 10; i++ {
			candidate := newPseudoidentifier()
			_, err := s.repo.GetByPseudoidentifier(ctx, candidate)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrCaseNotFound) {
				return err
			}
			pc.Pseudoidentifier = candidate
			break
		}
		if pc.Pseudoidentifier == "" {
			return fmt.Errorf("could not allocate a pseudoidentifier")
		}
	} else if _, err := s.repo.GetByPseudoidentifier(ctx, pc.Pseudoidentifier); err == nil {
		return ErrConflictingCase
	} else if !errors.Is(err, ErrCaseNotFound) {
		return err
	}
	if pc.ClinicalIdentifier != nil && pc.ClinicalCenter != nil {
		existing, err := s.repo.GetByClinicalIdentifier(ctx, *pc.ClinicalIdentifier, *pc.ClinicalCenter)
		if err == nil && existing.ID != pc.ID {
			return ErrConflictingClinicalIdentifier
		}
		if err != nil && !errors.Is(err, ErrCaseNotFound) {
			return err
		}
	}
	if err := s.repo.Create(ctx, pc); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, resourceType, pc.ID, events.LabelCreate, pc, nil)
	return err
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID, anonymized bool) (*PatientCase, error) {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, pc); err != nil {
		return nil, err
	}
	if anonymized {
		s.anonymizeCase(pc)
	}
	return pc, nil
}

func (s *Service) UpdateCase(ctx context.Context, pc *PatientCase) error {
	if err := s.validate(pc); err != nil {
		return err
	}
	current, err := s.repo.GetByID(ctx, pc.ID)
	if err != nil {
		return err
	}
	pc.Pseudoidentifier = current.Pseudoidentifier
	if pc.ClinicalIdentifier != nil && pc.ClinicalCenter != nil {
		existing, err := s.repo.GetByClinicalIdentifier(ctx, *pc.ClinicalIdentifier, *pc.ClinicalCenter)
		if err == nil && existing.ID != pc.ID {
			return ErrConflictingClinicalIdentifier
		}
		if err != nil && !errors.Is(err, ErrCaseNotFound) {
			return err
		}
	}
	if err := s.repo.Update(ctx, pc); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, resourceType, pc.ID, events.LabelUpdate, pc, nil)
	return err
}

func (s *Service) DeleteCase(ctx context.Context, id uuid.UUID) error {
	pc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, resourceType, id, events.LabelDelete, pc, nil)
	return err
}

func (s *Service) ListCases(ctx context.Context, limit, offset int, anonymized bool) ([]*PatientCase, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, pc := range items {
		if err := s.decorate(ctx, pc); err != nil {
			return nil, 0, err
		}
		if anonymized {
			s.anonymizeCase(pc)
		}
	}
	return items, total, nil
}

// orderColumns maps wire-level ordering fields to storage columns.
var orderColumns = map[string]string{
	"createdAt":        "pc.created_at",
	"updatedAt":        "pc.updated_at",
	"pseudoidentifier": "pc.pseudoidentifier",
	"clinicalCenter":   "pc.clinical_center",
	"dateOfBirth":      "pc.date_of_birth",
	"dateOfDeath":      "pc.date_of_death",
	"consentStatus":    "pc.consent_status",
}

func orderClause(ordering string) (string, error) {
	if ordering == "" {
		return "pc.created_at DESC", nil
	}
	dir := " ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = " DESC"
		ordering = ordering[1:]
	}
	col, ok := orderColumns[ordering]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidOrdering, ordering)
	}
	return col + dir, nil
}

// SearchCases lists cases matching the typed filter parameters of the list
// endpoint. Without filter parameters or a configured compiler it behaves
// like ListCases under the requested ordering.
func (s *Service) SearchCases(ctx context.Context, params url.Values, ordering string, limit, offset int, anonymized bool) ([]*PatientCase, int, error) {
	order, err := orderClause(ordering)
	if err != nil {
		return nil, 0, err
	}

	where, args := "TRUE", []interface{}(nil)
	if s.filter != nil {
		where, args, err = s.filter.CompileListQuery(ctx, params)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s", ErrInvalidFilter, err)
		}
	}

	items, total, err := s.repo.ListWhere(ctx, where, args, order, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, pc := range items {
		if err := s.decorate(ctx, pc); err != nil {
			return nil, 0, err
		}
		if anonymized {
			s.anonymizeCase(pc)
		}
	}
	return items, total, nil
}

// decorate fills the derived read-side fields.
func (s *Service) decorate(ctx context.Context, pc *PatientCase) error {
	pc.IsDeceased = pc.DateOfDeath != nil || pc.CauseOfDeath != nil

	if pc.DateOfBirth != nil {
		ref := time.Now()
		if pc.DateOfDeath != nil {
			ref = *pc.DateOfDeath
		}
		age := ageAt(*pc.DateOfBirth, ref)
		pc.Age = &age
	}

	completions, err := s.repo.ListCompletions(ctx, pc.ID)
	if err != nil {
		return err
	}
	pc.DataCompletionRate = float64(len(completions)) / float64(len(CompletionCategories))

	if pc.DateOfDeath != nil {
		first, err := s.repo.FirstNeoplasmAssertion(ctx, pc.ID)
		if err == nil && first != nil {
			os := clinical.MonthsBetween(*first, *pc.DateOfDeath)
			pc.OverallSurvival = &os
		}
	}

	contributors, err := s.CaseContributors(ctx, pc.ID)
	if err != nil {
		return err
	}
	pc.Contributors = contributors
	return nil
}

// CaseContributors returns the distinct usernames that authored any event
// touching the case or one of its owned child records.
func (s *Service) CaseContributors(ctx context.Context, caseID uuid.UUID) ([]string, error) {
	owned, err := s.repo.OwnedResources(ctx, caseID)
	if err != nil {
		return nil, err
	}
	types := []string{resourceType}
	ids := []uuid.UUID{caseID}
	for _, o := range owned {
		types = append(types, o.Type)
		ids = append(ids, o.ID)
	}
	return s.events.Contributors(ctx, types, ids)
}

// anonymizeCase applies the response-side policy: identifying fields are
// redacted, person dates stay month-precise.
func (s *Service) anonymizeCase(pc *PatientCase) {
	if pc.ClinicalIdentifier != nil {
		redacted := anonymize.RedactedToken
		pc.ClinicalIdentifier = &redacted
	}
	if pc.ClinicalCenter != nil {
		redacted := anonymize.RedactedToken
		pc.ClinicalCenter = &redacted
	}
	if pc.DateOfBirth != nil {
		t := anonymize.TruncateToMonth(*pc.DateOfBirth)
		pc.DateOfBirth = &t
	}
	if pc.DateOfDeath != nil {
		t := anonymize.TruncateToMonth(*pc.DateOfDeath)
		pc.DateOfDeath = &t
	}
	pc.Anonymized = true
}

func (s *Service) ListCompletions(ctx context.Context, caseID uuid.UUID) ([]*DataCompletion, error) {
	if _, err := s.repo.GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListCompletions(ctx, caseID)
}

func (s *Service) MarkCompletion(ctx context.Context, caseID uuid.UUID, category string) (*DataCompletion, error) {
	if !validCategory(category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if _, err := s.repo.GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	dc := &DataCompletion{CaseID: caseID, Category: category}
	if err := s.repo.AddCompletion(ctx, dc); err != nil {
		return nil, err
	}
	if _, err := s.events.Record(ctx, completionResourceType, dc.ID, events.LabelCreate, dc, nil); err != nil {
		return nil, err
	}
	return dc, nil
}

func (s *Service) UnmarkCompletion(ctx context.Context, caseID uuid.UUID, category string) error {
	if !validCategory(category) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return s.repo.RemoveCompletion(ctx, caseID, category)
}

// Revert applies an event snapshot as a fresh update.
func (s *Service) Revert(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var pc PatientCase
	if err := json.Unmarshal(snapshot, &pc); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	pc.ID = resourceID
	return s.UpdateCase(ctx, &pc)
}
