package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/cohorts"
	"github.com/oncore/oncore/internal/domain/interop"
	"github.com/oncore/oncore/internal/platform/canonical"
	"github.com/oncore/oncore/internal/platform/events"
)

const resourceType = "Dataset"

// EventLog is the slice of the event service the datasets service records
// through.
type EventLog interface {
	Record(ctx context.Context, resourceType string, resourceID uuid.UUID, label events.Label, snapshot interface{}, evtContext map[string]interface{}) (uuid.UUID, error)
}

// CohortSource resolves cohorts and their materialized membership.
// Satisfied by the cohorts service.
type CohortSource interface {
	GetCohort(ctx context.Context, id uuid.UUID) (*cohorts.Cohort, error)
}

type Service struct {
	repo      DatasetRepository
	cohorts   CohortSource
	projector *Projector
	events    EventLog
	now       func() time.Time
}

func NewService(repo DatasetRepository, cohortSource CohortSource, assembler CaseAssembler, eventLog EventLog) *Service {
	return &Service{
		repo:      repo,
		cohorts:   cohortSource,
		projector: NewProjector(assembler),
		events:    eventLog,
		now:       time.Now,
	}
}

func (s *Service) validate(d *Dataset) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.ProjectID == uuid.Nil {
		return fmt.Errorf("project is required")
	}
	return ValidateRules(d.Rules)
}

func (s *Service) CreateDataset(ctx context.Context, d *Dataset) error {
	if err := s.validate(d); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return err
	}
	_, err := s.events.Record(ctx, resourceType, d.ID, events.LabelCreate, d, nil)
	return err
}

func (s *Service) GetDataset(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateDataset(ctx context.Context, d *Dataset) error {
	if err := s.validate(d); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	d.ProjectID = existing.ProjectID
	if err := s.repo.Update(ctx, d); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, resourceType, d.ID, events.LabelUpdate, d, nil)
	return err
}

func (s *Service) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.events.Record(ctx, resourceType, id, events.LabelDelete, d, nil)
	return err
}

func (s *Service) ListDatasets(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*Dataset, int, error) {
	return s.repo.ListByProject(ctx, projectID, limit, offset)
}

// ProjectCohort runs an ad-hoc rule list over a cohort's members without
// persisting anything.
func (s *Service) ProjectCohort(ctx context.Context, cohortID uuid.UUID, rules []Rule) ([]Record, error) {
	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	return s.projector.Project(ctx, cohort.Cases, rules)
}

// ExportDataset projects a stored dataset over a cohort and seals the
// result. Both the cohort and the dataset receive an export event carrying
// the rule list and the checksum.
func (s *Service) ExportDataset(ctx context.Context, cohortID, datasetID uuid.UUID, exportedBy string) (*ExportedDataset, error) {
	d, err := s.repo.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	records, err := s.projector.Project(ctx, cohort.Cases, d.Rules)
	if err != nil {
		return nil, err
	}

	out := &ExportedDataset{Dataset: d, CohortID: cohortID, Records: records}
	checksum, err := canonical.Checksum(out)
	if err != nil {
		return nil, err
	}
	out.Metadata = &interop.ExportMetadata{
		ExportedAt:    s.now().UTC(),
		ExportedBy:    exportedBy,
		ExportVersion: interop.ExportVersion,
		Checksum:      checksum,
	}

	evtContext := map[string]interface{}{
		"rules":    d.Rules,
		"checksum": checksum,
	}
	if _, err := s.events.Record(ctx, "Cohort", cohortID, events.LabelExport, nil, evtContext); err != nil {
		return nil, err
	}
	if _, err := s.events.Record(ctx, resourceType, d.ID, events.LabelExport, nil, evtContext); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportCohortDefinition seals a cohort's rule definition for transfer. The
// member list stays behind; the receiving system rematerializes it against
// its own cases.
func (s *Service) ExportCohortDefinition(ctx context.Context, cohortID uuid.UUID, exportedBy string) (*ExportedCohortDefinition, error) {
	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	cohort.Cases = nil
	cohort.Population = 0

	out := &ExportedCohortDefinition{Cohort: cohort}
	checksum, err := canonical.Checksum(out)
	if err != nil {
		return nil, err
	}
	out.Metadata = &interop.ExportMetadata{
		ExportedAt:    s.now().UTC(),
		ExportedBy:    exportedBy,
		ExportVersion: interop.ExportVersion,
		Checksum:      checksum,
	}
	if _, err := s.events.Record(ctx, "Cohort", cohortID, events.LabelExport, nil, map[string]interface{}{"checksum": checksum}); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterReverters wires dataset snapshots back into the event service.
func (s *Service) RegisterReverters(reg interface {
	RegisterReverter(resourceType string, r events.Reverter)
}) {
	reg.RegisterReverter(resourceType, events.ReverterFunc(s.revert))
}

func (s *Service) revert(ctx context.Context, resourceID uuid.UUID, snapshot json.RawMessage) error {
	var d Dataset
	if err := json.Unmarshal(snapshot, &d); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	d.ID = resourceID
	return s.UpdateDataset(ctx, &d)
}
