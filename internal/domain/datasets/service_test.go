package datasets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oncore/oncore/internal/domain/cohorts"
	"github.com/oncore/oncore/internal/domain/interop"
	"github.com/oncore/oncore/internal/platform/canonical"
	"github.com/oncore/oncore/internal/platform/events"
)

type fakeDatasetRepo struct {
	datasets map[uuid.UUID]*Dataset
}

func newFakeDatasetRepo() *fakeDatasetRepo {
	return &fakeDatasetRepo{datasets: map[uuid.UUID]*Dataset{}}
}

func (r *fakeDatasetRepo) Create(_ context.Context, d *Dataset) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.datasets[d.ID] = &cp
	return nil
}

func (r *fakeDatasetRepo) GetByID(_ context.Context, id uuid.UUID) (*Dataset, error) {
	d, ok := r.datasets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDatasetRepo) Update(_ context.Context, d *Dataset) error {
	if _, ok := r.datasets[d.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *d
	r.datasets[d.ID] = &cp
	return nil
}

func (r *fakeDatasetRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.datasets, id)
	return nil
}

func (r *fakeDatasetRepo) ListByProject(_ context.Context, projectID uuid.UUID, _, _ int) ([]*Dataset, int, error) {
	var out []*Dataset
	for _, d := range r.datasets {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type stubCohortSource struct {
	cohort *cohorts.Cohort
}

func (s *stubCohortSource) GetCohort(_ context.Context, id uuid.UUID) (*cohorts.Cohort, error) {
	if s.cohort == nil || s.cohort.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *s.cohort
	cp.Cases = append([]uuid.UUID(nil), s.cohort.Cases...)
	return &cp, nil
}

type recordedEvent struct {
	resourceType string
	resourceID   uuid.UUID
	label        events.Label
	context      map[string]interface{}
}

type recordingEventLog struct {
	recorded []recordedEvent
}

func (l *recordingEventLog) Record(_ context.Context, resourceType string, resourceID uuid.UUID, label events.Label, _ interface{}, evtContext map[string]interface{}) (uuid.UUID, error) {
	l.recorded = append(l.recorded, recordedEvent{resourceType, resourceID, label, evtContext})
	return uuid.New(), nil
}

func (l *recordingEventLog) labeled(resourceType string, label events.Label) []recordedEvent {
	var out []recordedEvent
	for _, e := range l.recorded {
		if e.resourceType == resourceType && e.label == label {
			out = append(out, e)
		}
	}
	return out
}

type serviceFixture struct {
	svc      *Service
	repo     *fakeDatasetRepo
	cohorts  *stubCohortSource
	eventLog *recordingEventLog
	caseID   uuid.UUID
	cohortID uuid.UUID
}

func newServiceFixture() *serviceFixture {
	caseID := uuid.New()
	cohortID := uuid.New()
	f := &serviceFixture{
		repo: newFakeDatasetRepo(),
		cohorts: &stubCohortSource{cohort: &cohorts.Cohort{
			ID:         cohortID,
			ProjectID:  uuid.New(),
			Name:       "stage IV colorectal",
			Cases:      []uuid.UUID{caseID},
			Population: 1,
		}},
		eventLog: &recordingEventLog{},
		caseID:   caseID,
		cohortID: cohortID,
	}
	assembler := &stubAssembler{bundles: map[uuid.UUID]*interop.PatientCaseBundle{
		caseID: sampleBundle(caseID),
	}}
	f.svc = NewService(f.repo, f.cohorts, assembler, f.eventLog)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func testDataset(projectID uuid.UUID) *Dataset {
	return &Dataset{
		ProjectID: projectID,
		Name:      "survival covariates",
		Rules: []Rule{
			{Resource: "PatientCase", Field: "gender"},
			{Resource: "SystemicTherapy", Field: "medications.drug", Transform: "code"},
		},
	}
}

func TestCreateDatasetRejectsInvalidRules(t *testing.T) {
	f := newServiceFixture()
	d := testDataset(uuid.New())
	d.Rules = []Rule{{Resource: "PatientCase", Field: "shoeSize"}}

	if err := f.svc.CreateDataset(context.Background(), d); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if len(f.repo.datasets) != 0 {
		t.Fatal("invalid dataset was persisted")
	}
}

func TestCreateDatasetRecordsEvent(t *testing.T) {
	f := newServiceFixture()
	d := testDataset(uuid.New())

	if err := f.svc.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}
	created := f.eventLog.labeled("Dataset", events.LabelCreate)
	if len(created) != 1 || created[0].resourceID != d.ID {
		t.Fatalf("expected one create event for the dataset, have %v", f.eventLog.recorded)
	}
}

func TestUpdateDatasetKeepsProject(t *testing.T) {
	f := newServiceFixture()
	projectID := uuid.New()
	d := testDataset(projectID)
	if err := f.svc.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}

	update := testDataset(uuid.New())
	update.ID = d.ID
	update.Name = "renamed"
	if err := f.svc.UpdateDataset(context.Background(), update); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, err := f.repo.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ProjectID != projectID {
		t.Fatal("update moved the dataset to another project")
	}
	if stored.Name != "renamed" {
		t.Fatalf("name not updated: %s", stored.Name)
	}
}

func TestProjectCohortUsesMembership(t *testing.T) {
	f := newServiceFixture()

	records, err := f.svc.ProjectCohort(context.Background(), f.cohortID, []Rule{
		{Resource: "PatientCase", Field: "consentStatus"},
	})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record per member, have %d", len(records))
	}
	if records[0]["id"] != f.caseID.String() {
		t.Fatalf("record not keyed by case id: %v", records[0]["id"])
	}
}

func TestExportDatasetSealsAndRecordsEvents(t *testing.T) {
	f := newServiceFixture()
	d := testDataset(uuid.New())
	if err := f.svc.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := f.svc.ExportDataset(context.Background(), f.cohortID, d.ID, "m.curie")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Metadata == nil || out.Metadata.ExportedBy != "m.curie" {
		t.Fatalf("metadata not sealed: %+v", out.Metadata)
	}

	meta := out.Metadata
	out.Metadata = nil
	want, err := canonical.Checksum(out)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if meta.Checksum != want {
		t.Fatalf("checksum does not cover the payload: %s != %s", meta.Checksum, want)
	}

	cohortEvents := f.eventLog.labeled("Cohort", events.LabelExport)
	datasetEvents := f.eventLog.labeled("Dataset", events.LabelExport)
	if len(cohortEvents) != 1 || len(datasetEvents) != 1 {
		t.Fatalf("expected export events on cohort and dataset, have %v", f.eventLog.recorded)
	}
	if cohortEvents[0].context["checksum"] != meta.Checksum {
		t.Fatalf("cohort event missing checksum: %v", cohortEvents[0].context)
	}
	if _, ok := datasetEvents[0].context["rules"]; !ok {
		t.Fatalf("dataset event missing rule list: %v", datasetEvents[0].context)
	}
}

func TestExportDatasetUnknownCohort(t *testing.T) {
	f := newServiceFixture()
	d := testDataset(uuid.New())
	if err := f.svc.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.ExportDataset(context.Background(), uuid.New(), d.ID, "m.curie"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportCohortDefinitionStripsMembers(t *testing.T) {
	f := newServiceFixture()

	out, err := f.svc.ExportCohortDefinition(context.Background(), f.cohortID, "m.curie")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(out.Cohort.Cases) != 0 || out.Cohort.Population != 0 {
		t.Fatal("member list leaked into the cohort definition export")
	}
	if out.Cohort.Name != "stage IV colorectal" {
		t.Fatalf("definition fields missing: %+v", out.Cohort)
	}
	if len(f.eventLog.labeled("Cohort", events.LabelExport)) != 1 {
		t.Fatal("expected an export event on the cohort")
	}
}

func TestDeleteDatasetRecordsSnapshot(t *testing.T) {
	f := newServiceFixture()
	d := testDataset(uuid.New())
	if err := f.svc.CreateDataset(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.DeleteDataset(context.Background(), d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.repo.GetByID(context.Background(), d.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatal("dataset still present after delete")
	}
	if len(f.eventLog.labeled("Dataset", events.LabelDelete)) != 1 {
		t.Fatal("expected a delete event")
	}
}
