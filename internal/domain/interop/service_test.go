package interop

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/internal/domain/identity"
	"github.com/oncore/oncore/internal/domain/therapies"
	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/canonical"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

// -- Fakes --

type mockEventRepo struct {
	events []*events.Event
}

func (m *mockEventRepo) Insert(_ context.Context, e *events.Event) error {
	e.ID = uuid.New()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEventRepo) ListBySubject(_ context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]*events.Event, int, error) {
	var out []*events.Event
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockEventRepo) GetByID(_ context.Context, resourceType string, resourceID, eventID uuid.UUID) (*events.Event, error) {
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.ResourceID == resourceID && e.ID == eventID {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockEventRepo) LatestSnapshot(_ context.Context, resourceType string, resourceID uuid.UUID) (json.RawMessage, error) {
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.ResourceType == resourceType && e.ResourceID == resourceID &&
			(e.Label == events.LabelCreate || e.Label == events.LabelUpdate) {
			return e.Snapshot, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockEventRepo) MetaFor(_ context.Context, _ string, _ uuid.UUID) (*events.Meta, error) {
	return &events.Meta{}, nil
}

func (m *mockEventRepo) ContributorsFor(_ context.Context, _ []string, _ []uuid.UUID) ([]string, error) {
	return nil, nil
}

func (m *mockEventRepo) labeled(resourceType string, label events.Label) []*events.Event {
	var out []*events.Event
	for _, e := range m.events {
		if e.ResourceType == resourceType && e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

type fakeCaseRepo struct {
	cases       map[uuid.UUID]*cases.PatientCase
	completions map[uuid.UUID][]*cases.DataCompletion
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{
		cases:       make(map[uuid.UUID]*cases.PatientCase),
		completions: make(map[uuid.UUID][]*cases.DataCompletion),
	}
}

func (m *fakeCaseRepo) Create(_ context.Context, pc *cases.PatientCase) error {
	if pc.ID == uuid.Nil {
		pc.ID = uuid.New()
	}
	cp := *pc
	m.cases[pc.ID] = &cp
	return nil
}

func (m *fakeCaseRepo) GetByID(_ context.Context, id uuid.UUID) (*cases.PatientCase, error) {
	pc, ok := m.cases[id]
	if !ok {
		return nil, cases.ErrCaseNotFound
	}
	cp := *pc
	return &cp, nil
}

func (m *fakeCaseRepo) GetByPseudoidentifier(_ context.Context, pseudo string) (*cases.PatientCase, error) {
	for _, pc := range m.cases {
		if pc.Pseudoidentifier == pseudo {
			cp := *pc
			return &cp, nil
		}
	}
	return nil, cases.ErrCaseNotFound
}

func (m *fakeCaseRepo) GetByClinicalIdentifier(_ context.Context, ident, center string) (*cases.PatientCase, error) {
	for _, pc := range m.cases {
		if pc.ClinicalIdentifier != nil && pc.ClinicalCenter != nil &&
			*pc.ClinicalIdentifier == ident && *pc.ClinicalCenter == center {
			cp := *pc
			return &cp, nil
		}
	}
	return nil, cases.ErrCaseNotFound
}

func (m *fakeCaseRepo) Update(_ context.Context, pc *cases.PatientCase) error {
	cp := *pc
	m.cases[pc.ID] = &cp
	return nil
}

func (m *fakeCaseRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.cases, id)
	delete(m.completions, id)
	return nil
}

func (m *fakeCaseRepo) List(_ context.Context, limit, offset int) ([]*cases.PatientCase, int, error) {
	var items []*cases.PatientCase
	for _, pc := range m.cases {
		cp := *pc
		items = append(items, &cp)
	}
	return items, len(items), nil
}

func (m *fakeCaseRepo) ListWhere(ctx context.Context, _ string, _ []interface{}, _ string, limit, offset int) ([]*cases.PatientCase, int, error) {
	return m.List(ctx, limit, offset)
}

func (m *fakeCaseRepo) FirstNeoplasmAssertion(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (m *fakeCaseRepo) OwnedResources(_ context.Context, _ uuid.UUID) ([]cases.OwnedResource, error) {
	return nil, nil
}

func (m *fakeCaseRepo) ListCompletions(_ context.Context, caseID uuid.UUID) ([]*cases.DataCompletion, error) {
	return m.completions[caseID], nil
}

func (m *fakeCaseRepo) AddCompletion(_ context.Context, dc *cases.DataCompletion) error {
	if dc.ID == uuid.Nil {
		dc.ID = uuid.New()
	}
	cp := *dc
	m.completions[dc.CaseID] = append(m.completions[dc.CaseID], &cp)
	return nil
}

func (m *fakeCaseRepo) RemoveCompletion(_ context.Context, caseID uuid.UUID, category string) error {
	kept := m.completions[caseID][:0]
	for _, dc := range m.completions[caseID] {
		if dc.Category != category {
			kept = append(kept, dc)
		}
	}
	m.completions[caseID] = kept
	return nil
}

type fakeLineRepo struct {
	lines map[uuid.UUID]*therapies.TherapyLine
}

func newFakeLineRepo() *fakeLineRepo {
	return &fakeLineRepo{lines: make(map[uuid.UUID]*therapies.TherapyLine)}
}

func (m *fakeLineRepo) Create(_ context.Context, tl *therapies.TherapyLine) error {
	if tl.ID == uuid.Nil {
		tl.ID = uuid.New()
	}
	cp := *tl
	m.lines[tl.ID] = &cp
	return nil
}

func (m *fakeLineRepo) GetByID(_ context.Context, id uuid.UUID) (*therapies.TherapyLine, error) {
	tl, ok := m.lines[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *tl
	return &cp, nil
}

func (m *fakeLineRepo) Update(_ context.Context, tl *therapies.TherapyLine) error {
	cp := *tl
	m.lines[tl.ID] = &cp
	return nil
}

func (m *fakeLineRepo) DeleteByCase(_ context.Context, caseID uuid.UUID) error {
	for id, tl := range m.lines {
		if tl.CaseID == caseID {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *fakeLineRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*therapies.TherapyLine, int, error) {
	var items []*therapies.TherapyLine
	for _, tl := range m.lines {
		if tl.CaseID == caseID {
			cp := *tl
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *fakeLineRepo) FindByLabel(_ context.Context, _ uuid.UUID, _ string, _ int) (*therapies.TherapyLine, error) {
	return nil, pgx.ErrNoRows
}

type fakeSystemicRepo struct {
	therapies   map[uuid.UUID]*therapies.SystemicTherapy
	medications map[uuid.UUID]*therapies.SystemicTherapyMedication
}

func newFakeSystemicRepo() *fakeSystemicRepo {
	return &fakeSystemicRepo{
		therapies:   make(map[uuid.UUID]*therapies.SystemicTherapy),
		medications: make(map[uuid.UUID]*therapies.SystemicTherapyMedication),
	}
}

func (m *fakeSystemicRepo) Create(_ context.Context, st *therapies.SystemicTherapy) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	cp := *st
	m.therapies[st.ID] = &cp
	return nil
}

func (m *fakeSystemicRepo) GetByID(_ context.Context, id uuid.UUID) (*therapies.SystemicTherapy, error) {
	st, ok := m.therapies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *st
	return &cp, nil
}

func (m *fakeSystemicRepo) Update(_ context.Context, st *therapies.SystemicTherapy) error {
	cp := *st
	m.therapies[st.ID] = &cp
	return nil
}

func (m *fakeSystemicRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.therapies, id)
	return nil
}

func (m *fakeSystemicRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*therapies.SystemicTherapy, int, error) {
	var items []*therapies.SystemicTherapy
	for _, st := range m.therapies {
		if st.CaseID == caseID {
			cp := *st
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

func (m *fakeSystemicRepo) ListByCaseOrdered(ctx context.Context, caseID uuid.UUID) ([]*therapies.SystemicTherapy, error) {
	items, _, err := m.ListByCase(ctx, caseID, 0, 0)
	return items, err
}

func (m *fakeSystemicRepo) AttachLine(_ context.Context, therapyID uuid.UUID, lineID *uuid.UUID) error {
	if st, ok := m.therapies[therapyID]; ok {
		st.TherapyLineID = lineID
	}
	return nil
}

func (m *fakeSystemicRepo) CreateMedication(_ context.Context, med *therapies.SystemicTherapyMedication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	cp := *med
	m.medications[med.ID] = &cp
	return nil
}

func (m *fakeSystemicRepo) GetMedication(_ context.Context, id uuid.UUID) (*therapies.SystemicTherapyMedication, error) {
	med, ok := m.medications[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *med
	return &cp, nil
}

func (m *fakeSystemicRepo) UpdateMedication(_ context.Context, med *therapies.SystemicTherapyMedication) error {
	cp := *med
	m.medications[med.ID] = &cp
	return nil
}

func (m *fakeSystemicRepo) DeleteMedication(_ context.Context, id uuid.UUID) error {
	delete(m.medications, id)
	return nil
}

func (m *fakeSystemicRepo) ListMedications(_ context.Context, therapyID uuid.UUID) ([]*therapies.SystemicTherapyMedication, error) {
	var items []*therapies.SystemicTherapyMedication
	for _, med := range m.medications {
		if med.TherapyID == therapyID {
			cp := *med
			items = append(items, &cp)
		}
	}
	return items, nil
}

type fakeRadioRepo struct{}

func (fakeRadioRepo) Create(context.Context, *therapies.Radiotherapy) error { return nil }
func (fakeRadioRepo) GetByID(context.Context, uuid.UUID) (*therapies.Radiotherapy, error) {
	return nil, pgx.ErrNoRows
}
func (fakeRadioRepo) Update(context.Context, *therapies.Radiotherapy) error { return nil }
func (fakeRadioRepo) Delete(context.Context, uuid.UUID) error               { return nil }
func (fakeRadioRepo) ListByCase(context.Context, uuid.UUID, int, int) ([]*therapies.Radiotherapy, int, error) {
	return nil, 0, nil
}
func (fakeRadioRepo) ListByCaseOrdered(context.Context, uuid.UUID) ([]*therapies.Radiotherapy, error) {
	return nil, nil
}
func (fakeRadioRepo) AttachLine(context.Context, uuid.UUID, *uuid.UUID) error { return nil }
func (fakeRadioRepo) CreateDosage(context.Context, *therapies.RadiotherapyDosage) error {
	return nil
}
func (fakeRadioRepo) GetDosage(context.Context, uuid.UUID) (*therapies.RadiotherapyDosage, error) {
	return nil, pgx.ErrNoRows
}
func (fakeRadioRepo) UpdateDosage(context.Context, *therapies.RadiotherapyDosage) error { return nil }
func (fakeRadioRepo) DeleteDosage(context.Context, uuid.UUID) error                     { return nil }
func (fakeRadioRepo) ListDosages(context.Context, uuid.UUID) ([]*therapies.RadiotherapyDosage, error) {
	return nil, nil
}
func (fakeRadioRepo) CreateSetting(context.Context, *therapies.RadiotherapySetting) error {
	return nil
}
func (fakeRadioRepo) GetSetting(context.Context, uuid.UUID) (*therapies.RadiotherapySetting, error) {
	return nil, pgx.ErrNoRows
}
func (fakeRadioRepo) UpdateSetting(context.Context, *therapies.RadiotherapySetting) error {
	return nil
}
func (fakeRadioRepo) DeleteSetting(context.Context, uuid.UUID) error { return nil }
func (fakeRadioRepo) ListSettings(context.Context, uuid.UUID) ([]*therapies.RadiotherapySetting, error) {
	return nil, nil
}

type fakeSurgeryRepo struct{}

func (fakeSurgeryRepo) Create(context.Context, *therapies.Surgery) error { return nil }
func (fakeSurgeryRepo) GetByID(context.Context, uuid.UUID) (*therapies.Surgery, error) {
	return nil, pgx.ErrNoRows
}
func (fakeSurgeryRepo) Update(context.Context, *therapies.Surgery) error { return nil }
func (fakeSurgeryRepo) Delete(context.Context, uuid.UUID) error          { return nil }
func (fakeSurgeryRepo) ListByCase(context.Context, uuid.UUID, int, int) ([]*therapies.Surgery, int, error) {
	return nil, 0, nil
}
func (fakeSurgeryRepo) ListByCaseOrdered(context.Context, uuid.UUID) ([]*therapies.Surgery, error) {
	return nil, nil
}
func (fakeSurgeryRepo) AttachLine(context.Context, uuid.UUID, *uuid.UUID) error { return nil }

type fakeUserRepo struct {
	users map[string]*identity.User
}

func (m *fakeUserRepo) Create(_ context.Context, u *identity.User) error { return nil }
func (m *fakeUserRepo) GetByID(_ context.Context, _ uuid.UUID) (*identity.User, error) {
	return nil, pgx.ErrNoRows
}
func (m *fakeUserRepo) GetByUsername(_ context.Context, username string) (*identity.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}
func (m *fakeUserRepo) GetByOIDCSubject(_ context.Context, _ string) (*identity.User, error) {
	return nil, pgx.ErrNoRows
}
func (m *fakeUserRepo) Update(_ context.Context, _ *identity.User) error { return nil }
func (m *fakeUserRepo) Delete(_ context.Context, _ uuid.UUID) error      { return nil }
func (m *fakeUserRepo) List(_ context.Context, _, _ int) ([]*identity.User, int, error) {
	return nil, 0, nil
}

type fixture struct {
	svc       *Service
	caseRepo  *fakeCaseRepo
	lineRepo  *fakeLineRepo
	sysRepo   *fakeSystemicRepo
	userRepo  *fakeUserRepo
	eventRepo *mockEventRepo
}

func newFixture() *fixture {
	eventRepo := &mockEventRepo{}
	evtSvc := events.NewService(eventRepo, zerolog.Nop())

	caseRepo := newFakeCaseRepo()
	caseSvc := cases.NewService(caseRepo, evtSvc, anonymize.New("test-secret"))

	lineRepo := newFakeLineRepo()
	sysRepo := newFakeSystemicRepo()
	therapySvc := therapies.NewService(sysRepo, fakeRadioRepo{}, fakeSurgeryRepo{}, lineRepo, nil, nil, evtSvc, nil)

	userRepo := &fakeUserRepo{users: make(map[string]*identity.User)}
	userSvc := identity.NewService(userRepo, nil, evtSvc)

	svc := NewService(caseSvc, nil, nil, therapySvc, nil, userSvc, evtSvc, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{
		svc:       svc,
		caseRepo:  caseRepo,
		lineRepo:  lineRepo,
		sysRepo:   sysRepo,
		userRepo:  userRepo,
		eventRepo: eventRepo,
	}
}

func testBundle() *PatientCaseBundle {
	ident := "MRN-4711"
	center := "west-campus"
	return &PatientCaseBundle{
		Case: &cases.PatientCase{
			ID:                 uuid.New(),
			Pseudoidentifier:   "X.1234.567.89",
			ClinicalIdentifier: &ident,
			ClinicalCenter:     &center,
			ConsentStatus:      "valid",
		},
	}
}

// -- Import --

func TestImportRejectsConflictingPseudoidentifier(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.ImportBundle(ctx, testBundle(), ""); err != nil {
		t.Fatalf("first import: %v", err)
	}
	b := testBundle()
	noIdent := b.Case
	noIdent.ClinicalIdentifier = nil
	noIdent.ClinicalCenter = nil
	if _, err := f.svc.ImportBundle(ctx, b, ""); !errors.Is(err, ErrConflictingCase) {
		t.Fatalf("expected ErrConflictingCase, got %v", err)
	}
	if len(f.caseRepo.cases) != 1 {
		t.Fatalf("expected 1 case after rejected import, have %d", len(f.caseRepo.cases))
	}
}

func TestImportOverwriteKeepsCaseID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.ImportBundle(ctx, testBundle(), "")
	if err != nil {
		t.Fatalf("first import: %v", err)
	}

	b := testBundle()
	b.Case.ConsentStatus = "revoked"
	second, err := f.svc.ImportBundle(ctx, b, ConflictOverwrite)
	if err != nil {
		t.Fatalf("overwrite import: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("overwrite changed the case id: %s != %s", second.ID, first.ID)
	}
	if len(f.caseRepo.cases) != 1 {
		t.Fatalf("expected 1 case after overwrite, have %d", len(f.caseRepo.cases))
	}
	if got := f.caseRepo.cases[second.ID].ConsentStatus; got != "revoked" {
		t.Fatalf("overwrite kept the old payload: consent %q", got)
	}
}

func TestImportReassignDrawsNewIdentity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.ImportBundle(ctx, testBundle(), "")
	if err != nil {
		t.Fatalf("first import: %v", err)
	}

	b := testBundle()
	b.Case.ClinicalIdentifier = nil
	b.Case.ClinicalCenter = nil
	second, err := f.svc.ImportBundle(ctx, b, ConflictReassign)
	if err != nil {
		t.Fatalf("reassign import: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("reassign reused the existing case id")
	}
	if second.Pseudoidentifier == "" || second.Pseudoidentifier == "X.1234.567.89" {
		t.Fatalf("reassign did not draw a fresh pseudoidentifier: %q", second.Pseudoidentifier)
	}
	if len(f.caseRepo.cases) != 2 {
		t.Fatalf("expected both cases to coexist, have %d", len(f.caseRepo.cases))
	}
}

func TestImportReassignRejectsDuplicateClinicalIdentifier(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.ImportBundle(ctx, testBundle(), ""); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := f.svc.ImportBundle(ctx, testBundle(), ConflictReassign); !errors.Is(err, ErrConflictingClinicalIdentifier) {
		t.Fatalf("expected ErrConflictingClinicalIdentifier, got %v", err)
	}
}

func TestImportRejectsUnknownConflictResolution(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ImportBundle(context.Background(), testBundle(), "merge"); !errors.Is(err, ErrUnknownConflictResolution) {
		t.Fatalf("expected ErrUnknownConflictResolution, got %v", err)
	}
}

func TestImportRemapsTherapyLineReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b := testBundle()
	externalLine := uuid.New()
	externalTherapy := uuid.New()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b.TherapyLines = []*therapies.TherapyLine{{
		ID:      externalLine,
		CaseID:  b.Case.ID,
		Ordinal: 1,
		Intent:  therapies.IntentCurative,
		Period:  clinical.Period{Start: &start},
	}}
	b.SystemicTherapies = []*therapies.SystemicTherapy{{
		ID:            externalTherapy,
		CaseID:        b.Case.ID,
		TherapyLineID: &externalLine,
		Period:        clinical.Period{Start: &start},
		Medications: []*therapies.SystemicTherapyMedication{{
			ID:        uuid.New(),
			TherapyID: externalTherapy,
			Drug:      clinical.CodedConcept{System: "atc", Code: "L01XA01", Display: "cisplatin"},
		}},
	}}

	pc, err := f.svc.ImportBundle(ctx, b, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(f.lineRepo.lines) != 1 {
		t.Fatalf("expected 1 imported line, have %d", len(f.lineRepo.lines))
	}
	var line *therapies.TherapyLine
	for _, tl := range f.lineRepo.lines {
		line = tl
	}
	if line.ID == externalLine {
		t.Fatal("imported line kept its external id")
	}
	if line.CaseID != pc.ID {
		t.Fatalf("imported line bound to case %s, want %s", line.CaseID, pc.ID)
	}

	if len(f.sysRepo.therapies) != 1 {
		t.Fatalf("expected 1 imported therapy, have %d", len(f.sysRepo.therapies))
	}
	for _, st := range f.sysRepo.therapies {
		if st.TherapyLineID == nil || *st.TherapyLineID != line.ID {
			t.Fatalf("therapy line reference not remapped: %v", st.TherapyLineID)
		}
		for _, med := range f.sysRepo.medications {
			if med.TherapyID != st.ID {
				t.Fatalf("medication bound to %s, want %s", med.TherapyID, st.ID)
			}
		}
	}

	// The caller's bundle keeps its external ids.
	if b.TherapyLines[0].ID != externalLine {
		t.Fatal("import mutated the source bundle")
	}
}

func TestImportRecreatesCompletionMarkers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b := testBundle()
	b.Completions = []CompletionMarker{{Category: "vitals", Author: "dr-sommer"}}

	pc, err := f.svc.ImportBundle(ctx, b, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	markers := f.caseRepo.completions[pc.ID]
	if len(markers) != 1 || markers[0].Category != "vitals" {
		t.Fatalf("completion marker not recreated: %+v", markers)
	}
	recorded := f.eventRepo.labeled("PatientCaseDataCompletion", events.LabelCreate)
	if len(recorded) != 1 {
		t.Fatalf("expected 1 completion event, have %d", len(recorded))
	}
	if got := recorded[0].Context["username"]; got != "dr-sommer" {
		t.Fatalf("completion event lost the original author: %v", got)
	}
}

func TestImportRecordsImportEvent(t *testing.T) {
	f := newFixture()
	pc, err := f.svc.ImportBundle(context.Background(), testBundle(), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	imports := f.eventRepo.labeled("PatientCase", events.LabelImport)
	if len(imports) != 1 {
		t.Fatalf("expected 1 import event, have %d", len(imports))
	}
	if imports[0].ResourceID != pc.ID {
		t.Fatalf("import event on %s, want %s", imports[0].ResourceID, pc.ID)
	}
}

// -- Export --

func TestSealChecksumIgnoresMetadata(t *testing.T) {
	f := newFixture()
	b := testBundle()

	meta, err := f.svc.seal(b, "exporter")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if meta.ExportVersion != ExportVersion || meta.ExportedBy != "exporter" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	want, err := canonical.Checksum(b)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if meta.Checksum != want {
		t.Fatalf("checksum %s does not cover the canonical payload %s", meta.Checksum, want)
	}

	// Sealing an already sealed bundle yields the same digest.
	b.Metadata = meta
	again, err := f.svc.seal(b, "exporter")
	if err != nil {
		t.Fatalf("second seal: %v", err)
	}
	if again.Checksum != meta.Checksum {
		t.Fatalf("metadata leaked into the checksum: %s != %s", again.Checksum, meta.Checksum)
	}
}

func TestAnonymizeContributorsReplacesNonShareable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hidden := &identity.User{
		ID:        uuid.New(),
		Username:  "jdoe",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jdoe@example.org",
		Shareable: false,
	}
	open := &identity.User{
		ID:        uuid.New(),
		Username:  "msmith",
		FirstName: "Mary",
		LastName:  "Smith",
		Email:     "msmith@example.org",
		Shareable: true,
	}
	f.userRepo.users[hidden.Username] = hidden
	f.userRepo.users[open.Username] = open

	b := testBundle()
	b.Case.Contributors = []string{"jdoe", "msmith"}
	b.Completions = []CompletionMarker{{Category: "vitals", Author: "jdoe"}}

	if err := f.svc.anonymizeContributors(ctx, b); err != nil {
		t.Fatalf("anonymize: %v", err)
	}

	replacement := anonymize.AnonymousUsername(hidden.ID)
	byName := map[string]anonymize.Contributor{}
	for _, c := range b.Contributors {
		byName[c.Username] = c
	}
	anon, ok := byName[replacement]
	if !ok {
		t.Fatalf("non-shareable contributor not replaced, roster %+v", b.Contributors)
	}
	if anon.FirstName != "Anonymous" || anon.Email != anonymize.PlaceholderEmail {
		t.Fatalf("identity not scrubbed: %+v", anon)
	}
	if visible, ok := byName["msmith"]; !ok || visible.FirstName != "Mary" {
		t.Fatalf("shareable contributor should travel untouched, roster %+v", b.Contributors)
	}

	if b.Completions[0].Author != replacement {
		t.Fatalf("completion author not rewritten: %q", b.Completions[0].Author)
	}
	for _, username := range b.Case.Contributors {
		if username == "jdoe" {
			t.Fatal("contributor list still names the original username")
		}
	}
}

func TestAnonymizeKeepsUnknownContributors(t *testing.T) {
	f := newFixture()
	b := testBundle()
	b.Case.Contributors = []string{"departed-user"}

	if err := f.svc.anonymizeContributors(context.Background(), b); err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	if len(b.Contributors) != 1 || b.Contributors[0].Username != "departed-user" {
		t.Fatalf("unknown contributor should stay as-is, roster %+v", b.Contributors)
	}
}

func TestExportResourceRecordsEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	b := testBundle()
	if err := f.caseRepo.Create(ctx, b.Case); err != nil {
		t.Fatalf("seed case: %v", err)
	}

	exported, err := f.svc.ExportResource(ctx, "PatientCase", b.Case.ID, b.Case, "exporter")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Metadata == nil || exported.Metadata.Checksum == "" {
		t.Fatalf("exported resource carries no checksum: %+v", exported.Metadata)
	}
	recorded := f.eventRepo.labeled("PatientCase", events.LabelExport)
	if len(recorded) != 1 {
		t.Fatalf("expected 1 export event, have %d", len(recorded))
	}
	if got := recorded[0].Context["checksum"]; got != exported.Metadata.Checksum {
		t.Fatalf("export event checksum %v, want %s", got, exported.Metadata.Checksum)
	}
}
