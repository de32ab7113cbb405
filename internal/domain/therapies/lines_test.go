package therapies

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/pkg/clinical"
)

var errNotFound = errors.New("not found")

type mockSystemicRepo struct {
	therapies   map[uuid.UUID]*SystemicTherapy
	medications map[uuid.UUID]*SystemicTherapyMedication
	seq         int
}

func newMockSystemicRepo() *mockSystemicRepo {
	return &mockSystemicRepo{
		therapies:   map[uuid.UUID]*SystemicTherapy{},
		medications: map[uuid.UUID]*SystemicTherapyMedication{},
	}
}

func (m *mockSystemicRepo) Create(_ context.Context, st *SystemicTherapy) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	m.seq++
	st.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *st
	m.therapies[st.ID] = &cp
	return nil
}

func (m *mockSystemicRepo) GetByID(_ context.Context, id uuid.UUID) (*SystemicTherapy, error) {
	st, ok := m.therapies[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *st
	cp.Medications = m.medicationsOf(id)
	return &cp, nil
}

func (m *mockSystemicRepo) Update(_ context.Context, st *SystemicTherapy) error {
	cur, ok := m.therapies[st.ID]
	if !ok {
		return errNotFound
	}
	cp := *st
	cp.CreatedAt = cur.CreatedAt
	cp.TherapyLineID = cur.TherapyLineID
	m.therapies[st.ID] = &cp
	return nil
}

func (m *mockSystemicRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.therapies, id)
	return nil
}

func (m *mockSystemicRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*SystemicTherapy, int, error) {
	items, _ := m.ListByCaseOrdered(context.Background(), caseID)
	return items, len(items), nil
}

func (m *mockSystemicRepo) ListByCaseOrdered(_ context.Context, caseID uuid.UUID) ([]*SystemicTherapy, error) {
	var items []*SystemicTherapy
	for _, st := range m.therapies {
		if st.CaseID != caseID {
			continue
		}
		cp := *st
		cp.Medications = m.medicationsOf(st.ID)
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.Period.Start == nil && b.Period.Start == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.Period.Start == nil:
			return false
		case b.Period.Start == nil:
			return true
		case a.Period.Start.Equal(*b.Period.Start):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.Period.Start.Before(*b.Period.Start)
		}
	})
	return items, nil
}

func (m *mockSystemicRepo) AttachLine(_ context.Context, therapyID uuid.UUID, lineID *uuid.UUID) error {
	st, ok := m.therapies[therapyID]
	if !ok {
		return errNotFound
	}
	st.TherapyLineID = lineID
	return nil
}

func (m *mockSystemicRepo) medicationsOf(therapyID uuid.UUID) []*SystemicTherapyMedication {
	var meds []*SystemicTherapyMedication
	for _, med := range m.medications {
		if med.TherapyID == therapyID {
			cp := *med
			meds = append(meds, &cp)
		}
	}
	sort.Slice(meds, func(i, j int) bool { return meds[i].CreatedAt.Before(meds[j].CreatedAt) })
	return meds
}

func (m *mockSystemicRepo) CreateMedication(_ context.Context, med *SystemicTherapyMedication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	m.seq++
	med.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *med
	m.medications[med.ID] = &cp
	return nil
}

func (m *mockSystemicRepo) GetMedication(_ context.Context, id uuid.UUID) (*SystemicTherapyMedication, error) {
	med, ok := m.medications[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *med
	return &cp, nil
}

func (m *mockSystemicRepo) UpdateMedication(_ context.Context, med *SystemicTherapyMedication) error {
	if _, ok := m.medications[med.ID]; !ok {
		return errNotFound
	}
	cp := *med
	m.medications[med.ID] = &cp
	return nil
}

func (m *mockSystemicRepo) DeleteMedication(_ context.Context, id uuid.UUID) error {
	delete(m.medications, id)
	return nil
}

func (m *mockSystemicRepo) ListMedications(_ context.Context, therapyID uuid.UUID) ([]*SystemicTherapyMedication, error) {
	return m.medicationsOf(therapyID), nil
}

type mockRadioRepo struct {
	radiotherapies map[uuid.UUID]*Radiotherapy
}

func newMockRadioRepo() *mockRadioRepo {
	return &mockRadioRepo{radiotherapies: map[uuid.UUID]*Radiotherapy{}}
}

func (m *mockRadioRepo) Create(_ context.Context, rt *Radiotherapy) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	cp := *rt
	m.radiotherapies[rt.ID] = &cp
	return nil
}

func (m *mockRadioRepo) GetByID(_ context.Context, id uuid.UUID) (*Radiotherapy, error) {
	rt, ok := m.radiotherapies[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *mockRadioRepo) Update(_ context.Context, rt *Radiotherapy) error {
	if _, ok := m.radiotherapies[rt.ID]; !ok {
		return errNotFound
	}
	cp := *rt
	m.radiotherapies[rt.ID] = &cp
	return nil
}

func (m *mockRadioRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.radiotherapies, id)
	return nil
}

func (m *mockRadioRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*Radiotherapy, int, error) {
	items, _ := m.ListByCaseOrdered(context.Background(), caseID)
	return items, len(items), nil
}

func (m *mockRadioRepo) ListByCaseOrdered(_ context.Context, caseID uuid.UUID) ([]*Radiotherapy, error) {
	var items []*Radiotherapy
	for _, rt := range m.radiotherapies {
		if rt.CaseID == caseID {
			cp := *rt
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Period.Start == nil || items[j].Period.Start == nil {
			return items[j].Period.Start == nil
		}
		return items[i].Period.Start.Before(*items[j].Period.Start)
	})
	return items, nil
}

func (m *mockRadioRepo) AttachLine(_ context.Context, radiotherapyID uuid.UUID, lineID *uuid.UUID) error {
	rt, ok := m.radiotherapies[radiotherapyID]
	if !ok {
		return errNotFound
	}
	rt.TherapyLineID = lineID
	return nil
}

func (m *mockRadioRepo) CreateDosage(context.Context, *RadiotherapyDosage) error { return nil }
func (m *mockRadioRepo) GetDosage(context.Context, uuid.UUID) (*RadiotherapyDosage, error) {
	return nil, errNotFound
}
func (m *mockRadioRepo) UpdateDosage(context.Context, *RadiotherapyDosage) error { return nil }
func (m *mockRadioRepo) DeleteDosage(context.Context, uuid.UUID) error           { return nil }
func (m *mockRadioRepo) ListDosages(context.Context, uuid.UUID) ([]*RadiotherapyDosage, error) {
	return nil, nil
}
func (m *mockRadioRepo) CreateSetting(context.Context, *RadiotherapySetting) error { return nil }
func (m *mockRadioRepo) GetSetting(context.Context, uuid.UUID) (*RadiotherapySetting, error) {
	return nil, errNotFound
}
func (m *mockRadioRepo) UpdateSetting(context.Context, *RadiotherapySetting) error { return nil }
func (m *mockRadioRepo) DeleteSetting(context.Context, uuid.UUID) error            { return nil }
func (m *mockRadioRepo) ListSettings(context.Context, uuid.UUID) ([]*RadiotherapySetting, error) {
	return nil, nil
}

type mockSurgeryRepo struct {
	surgeries map[uuid.UUID]*Surgery
}

func newMockSurgeryRepo() *mockSurgeryRepo {
	return &mockSurgeryRepo{surgeries: map[uuid.UUID]*Surgery{}}
}

func (m *mockSurgeryRepo) Create(_ context.Context, sg *Surgery) error {
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	cp := *sg
	m.surgeries[sg.ID] = &cp
	return nil
}

func (m *mockSurgeryRepo) GetByID(_ context.Context, id uuid.UUID) (*Surgery, error) {
	sg, ok := m.surgeries[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *sg
	return &cp, nil
}

func (m *mockSurgeryRepo) Update(_ context.Context, sg *Surgery) error {
	if _, ok := m.surgeries[sg.ID]; !ok {
		return errNotFound
	}
	cp := *sg
	m.surgeries[sg.ID] = &cp
	return nil
}

func (m *mockSurgeryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.surgeries, id)
	return nil
}

func (m *mockSurgeryRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*Surgery, int, error) {
	items, _ := m.ListByCaseOrdered(context.Background(), caseID)
	return items, len(items), nil
}

func (m *mockSurgeryRepo) ListByCaseOrdered(_ context.Context, caseID uuid.UUID) ([]*Surgery, error) {
	var items []*Surgery
	for _, sg := range m.surgeries {
		if sg.CaseID == caseID {
			cp := *sg
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date == nil || items[j].Date == nil {
			return items[j].Date == nil
		}
		return items[i].Date.Before(*items[j].Date)
	})
	return items, nil
}

func (m *mockSurgeryRepo) AttachLine(_ context.Context, surgeryID uuid.UUID, lineID *uuid.UUID) error {
	sg, ok := m.surgeries[surgeryID]
	if !ok {
		return errNotFound
	}
	sg.TherapyLineID = lineID
	return nil
}

type mockLineRepo struct {
	lines map[uuid.UUID]*TherapyLine
}

func newMockLineRepo() *mockLineRepo {
	return &mockLineRepo{lines: map[uuid.UUID]*TherapyLine{}}
}

func (m *mockLineRepo) Create(_ context.Context, tl *TherapyLine) error {
	if tl.ID == uuid.Nil {
		tl.ID = uuid.New()
	}
	cp := *tl
	m.lines[tl.ID] = &cp
	return nil
}

func (m *mockLineRepo) GetByID(_ context.Context, id uuid.UUID) (*TherapyLine, error) {
	tl, ok := m.lines[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *tl
	return &cp, nil
}

func (m *mockLineRepo) Update(_ context.Context, tl *TherapyLine) error {
	if _, ok := m.lines[tl.ID]; !ok {
		return errNotFound
	}
	cp := *tl
	m.lines[tl.ID] = &cp
	return nil
}

func (m *mockLineRepo) DeleteByCase(_ context.Context, caseID uuid.UUID) error {
	for id, tl := range m.lines {
		if tl.CaseID == caseID {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *mockLineRepo) ListByCase(_ context.Context, caseID uuid.UUID, limit, offset int) ([]*TherapyLine, int, error) {
	var items []*TherapyLine
	for _, tl := range m.lines {
		if tl.CaseID == caseID {
			cp := *tl
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Intent != items[j].Intent {
			return items[i].Intent < items[j].Intent
		}
		return items[i].Ordinal < items[j].Ordinal
	})
	return items, len(items), nil
}

func (m *mockLineRepo) FindByLabel(_ context.Context, caseID uuid.UUID, intent string, ordinal int) (*TherapyLine, error) {
	for _, tl := range m.lines {
		if tl.CaseID == caseID && tl.Intent == intent && tl.Ordinal == ordinal {
			cp := *tl
			return &cp, nil
		}
	}
	return nil, errNotFound
}

type stubResponses struct{ dates []time.Time }

func (s stubResponses) ProgressionDates(context.Context, uuid.UUID) ([]time.Time, error) {
	return s.dates, nil
}

type stubMetastases struct{ metastatic bool }

func (s stubMetastases) HasMetastatic(context.Context, uuid.UUID) (bool, error) {
	return s.metastatic, nil
}

type recordingLog struct{ labels []events.Label }

func (r *recordingLog) Record(_ context.Context, _ string, _ uuid.UUID, label events.Label, _ interface{}, _ map[string]interface{}) (uuid.UUID, error) {
	r.labels = append(r.labels, label)
	return uuid.New(), nil
}

type fixture struct {
	svc      *Service
	systemic *mockSystemicRepo
	radio    *mockRadioRepo
	surgery  *mockSurgeryRepo
	lines    *mockLineRepo
	log      *recordingLog
	caseID   uuid.UUID
}

func newFixture(progressions []time.Time, metastatic bool) *fixture {
	f := &fixture{
		systemic: newMockSystemicRepo(),
		radio:    newMockRadioRepo(),
		surgery:  newMockSurgeryRepo(),
		lines:    newMockLineRepo(),
		log:      &recordingLog{},
		caseID:   uuid.New(),
	}
	f.svc = NewService(f.systemic, f.radio, f.surgery, f.lines,
		stubResponses{dates: progressions}, stubMetastases{metastatic: metastatic}, f.log, nil)
	return f
}

func day(d int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func period(from, to int) clinical.Period {
	start, end := day(from), day(to)
	return clinical.Period{Start: &start, End: &end}
}

func strptr(s string) *string { return &s }

func (f *fixture) addTherapy(p clinical.Period, intent *string, drugs ...clinical.CodedConcept) *SystemicTherapy {
	st := &SystemicTherapy{CaseID: f.caseID, Period: p, Intent: intent}
	_ = f.systemic.Create(context.Background(), st)
	for _, drug := range drugs {
		d := drug
		category := d.Display
		_ = f.systemic.CreateMedication(context.Background(), &SystemicTherapyMedication{
			TherapyID:       st.ID,
			Drug:            clinical.CodedConcept{Code: d.Code, Display: d.Code},
			TherapyCategory: &clinical.CodedConcept{Code: d.Code + "-class", Display: category},
		})
	}
	return st
}

func drug(code, class string) clinical.CodedConcept {
	return clinical.CodedConcept{Code: code, Display: class}
}

func (f *fixture) assign(t *testing.T) []*TherapyLine {
	t.Helper()
	if err := f.svc.assignTherapyLines(context.Background(), f.caseID); err != nil {
		t.Fatalf("assignTherapyLines: %v", err)
	}
	lines, _, err := f.lines.ListByCase(context.Background(), f.caseID, 100, 0)
	if err != nil {
		t.Fatalf("listing lines: %v", err)
	}
	for _, l := range lines {
		l.decorate()
	}
	return lines
}

func (f *fixture) lineOf(t *testing.T, st *SystemicTherapy) *TherapyLine {
	t.Helper()
	stored := f.systemic.therapies[st.ID]
	if stored.TherapyLineID == nil {
		t.Fatalf("therapy %s not attached to a line", st.ID)
	}
	line, ok := f.lines.lines[*stored.TherapyLineID]
	if !ok {
		t.Fatalf("line %s not found", *stored.TherapyLineID)
	}
	line.decorate()
	return line
}

func TestAssignNewLineOnNewDrug(t *testing.T) {
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	t2 := f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Chemotherapy"))

	lines := f.assign(t)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if got := f.lineOf(t, t1).Label; got != "CLoT1" {
		t.Errorf("t1 on %s, want CLoT1", got)
	}
	if got := f.lineOf(t, t2).Label; got != "CLoT2" {
		t.Errorf("t2 on %s, want CLoT2", got)
	}
}

func TestAssignSameLineOnContinuation(t *testing.T) {
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	t2 := f.addTherapy(period(20, 50), strptr(IntentCurative), drug("D1", "Chemotherapy"))

	lines := f.assign(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if f.lineOf(t, t1).ID != f.lineOf(t, t2).ID {
		t.Error("overlapping same-drug therapies should share a line")
	}
	if got := f.lineOf(t, t1).Label; got != "CLoT1" {
		t.Errorf("label %s, want CLoT1", got)
	}
}

func TestAssignNewLineOnProgression(t *testing.T) {
	// Same drug resumed after documented progression starts a new line.
	f := newFixture([]time.Time{day(45)}, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	t2 := f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D1", "Chemotherapy"))

	f.assign(t)
	if f.lineOf(t, t1).ID == f.lineOf(t, t2).ID {
		t.Error("progression between therapies should split lines")
	}
	if got := f.lineOf(t, t2).Label; got != "CLoT2" {
		t.Errorf("t2 on %s, want CLoT2", got)
	}
}

func TestAssignToleranceSwitchStaysOnLine(t *testing.T) {
	// Switch within the same drug class after intolerance continues the line.
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	f.systemic.therapies[t1.ID].TerminationReason = &clinical.CodedConcept{Code: notToleratedCode}
	t2 := f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Chemotherapy"))

	lines := f.assign(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if f.lineOf(t, t1).ID != f.lineOf(t, t2).ID {
		t.Error("same-class intolerance switch should stay on the line")
	}
}

func TestAssignToleranceClassChangeStartsLine(t *testing.T) {
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	f.systemic.therapies[t1.ID].TerminationReason = &clinical.CodedConcept{Code: notToleratedCode}
	f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Immunotherapy"))

	lines := f.assign(t)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestAssignAntiHormonalKeepsLine(t *testing.T) {
	// A new drug after anti-hormonal maintenance does not open a line.
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", antiHormonalCategory))
	t2 := f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Chemotherapy"))

	lines := f.assign(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if f.lineOf(t, t1).ID != f.lineOf(t, t2).ID {
		t.Error("therapy after anti-hormonal maintenance should join its line")
	}
}

func TestAssignAntiHormonalNeverClusters(t *testing.T) {
	// Overlap with an anti-hormonal therapy still starts a separate cluster.
	f := newFixture(nil, false)
	f.addTherapy(period(0, 60), strptr(IntentCurative), drug("D1", antiHormonalCategory))
	f.addTherapy(period(30, 90), strptr(IntentCurative), drug("D1", antiHormonalCategory))

	lines := f.assign(t)
	// Both clusters land on CLoT1, but as separate clusters.
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
}

func TestAssignComplementaryJoinsPreviousLine(t *testing.T) {
	f := newFixture([]time.Time{day(45)}, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	t2 := f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Supportive"))
	f.systemic.therapies[t2.ID].AdjunctiveRole = &clinical.CodedConcept{Code: "314122007"}

	lines := f.assign(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if f.lineOf(t, t1).ID != f.lineOf(t, t2).ID {
		t.Error("complementary therapy should join the previous line despite progression")
	}
}

func TestAssignIntentFallback(t *testing.T) {
	f := newFixture(nil, true)
	t1 := f.addTherapy(period(0, 30), nil, drug("D1", "Chemotherapy"))

	f.assign(t)
	if got := f.lineOf(t, t1).Label; got != "PLoT1" {
		t.Errorf("metastatic case without intent got %s, want PLoT1", got)
	}

	f2 := newFixture(nil, false)
	t2 := f2.addTherapy(period(0, 30), nil, drug("D1", "Chemotherapy"))
	f2.assign(t)
	if got := f2.lineOf(t, t2).Label; got != "CLoT1" {
		t.Errorf("non-metastatic case without intent got %s, want CLoT1", got)
	}
}

func TestAssignIntentCountersAreIndependent(t *testing.T) {
	f := newFixture(nil, false)
	f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	f.addTherapy(period(60, 90), strptr(IntentPalliative), drug("D2", "Chemotherapy"))
	f.addTherapy(period(120, 150), strptr(IntentPalliative), drug("D3", "Chemotherapy"))

	lines := f.assign(t)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	labels := map[string]bool{}
	for _, l := range lines {
		labels[l.Label] = true
	}
	for _, want := range []string{"CLoT1", "PLoT1", "PLoT2"} {
		if !labels[want] {
			t.Errorf("missing line %s, have %v", want, labels)
		}
	}
}

func TestAssignLineOrdinalsAreDense(t *testing.T) {
	f := newFixture([]time.Time{day(45), day(105)}, false)
	f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D2", "Chemotherapy"))
	f.addTherapy(period(120, 150), strptr(IntentCurative), drug("D3", "Immunotherapy"))

	lines := f.assign(t)
	ordinals := map[int]bool{}
	for _, l := range lines {
		if l.Intent == IntentCurative {
			ordinals[l.Ordinal] = true
		}
	}
	for i := 1; i <= len(ordinals); i++ {
		if !ordinals[i] {
			t.Errorf("ordinal %d missing from %v", i, ordinals)
		}
	}
}

func TestAssignRadiotherapyAttachment(t *testing.T) {
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	rt := &Radiotherapy{CaseID: f.caseID, Period: period(10, 40), Intent: strptr(IntentCurative)}
	_ = f.radio.Create(context.Background(), rt)
	unmatched := &Radiotherapy{CaseID: f.caseID, Period: period(200, 230), Intent: strptr(IntentCurative)}
	_ = f.radio.Create(context.Background(), unmatched)

	f.assign(t)
	line := f.lineOf(t, t1)
	stored := f.radio.radiotherapies[rt.ID]
	if stored.TherapyLineID == nil || *stored.TherapyLineID != line.ID {
		t.Error("overlapping radiotherapy should attach to the line")
	}
	if f.radio.radiotherapies[unmatched.ID].TherapyLineID != nil {
		t.Error("non-overlapping radiotherapy should stay unattached")
	}
	// Attached radiotherapy extends the line period.
	updated := f.lines.lines[line.ID]
	if updated.Period.End == nil || !updated.Period.End.Equal(day(40)) {
		t.Errorf("line period end %v, want %v", updated.Period.End, day(40))
	}
}

func TestAssignSurgeryAttachment(t *testing.T) {
	f := newFixture(nil, false)
	t1 := f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	date := day(15)
	sg := &Surgery{CaseID: f.caseID, Date: &date, Intent: strptr(IntentCurative)}
	_ = f.surgery.Create(context.Background(), sg)
	outside := day(100)
	sg2 := &Surgery{CaseID: f.caseID, Date: &outside, Intent: strptr(IntentCurative)}
	_ = f.surgery.Create(context.Background(), sg2)

	f.assign(t)
	line := f.lineOf(t, t1)
	if got := f.surgery.surgeries[sg.ID].TherapyLineID; got == nil || *got != line.ID {
		t.Error("surgery inside line period should attach")
	}
	if f.surgery.surgeries[sg2.ID].TherapyLineID != nil {
		t.Error("surgery outside every line period should stay unattached")
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture([]time.Time{day(45)}, false)
	f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))
	f.addTherapy(period(60, 90), strptr(IntentCurative), drug("D1", "Chemotherapy"))

	first := f.assign(t)
	second := f.assign(t)
	if len(first) != len(second) {
		t.Fatalf("line count changed across runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Label != second[i].Label {
			t.Errorf("label %d changed: %s vs %s", i, first[i].Label, second[i].Label)
		}
	}
}

func TestCreateSystemicTherapyTriggersAssignment(t *testing.T) {
	f := newFixture(nil, false)
	st := &SystemicTherapy{CaseID: f.caseID, Period: period(0, 30), Intent: strptr(IntentCurative)}
	if err := f.svc.CreateSystemicTherapy(context.Background(), st); err != nil {
		t.Fatalf("CreateSystemicTherapy: %v", err)
	}
	if len(f.lines.lines) != 1 {
		t.Fatalf("expected 1 derived line, got %d", len(f.lines.lines))
	}
	if len(f.log.labels) != 1 || f.log.labels[0] != events.LabelCreate {
		t.Errorf("expected one create event, got %v", f.log.labels)
	}
}

func TestCreateSystemicTherapyRejectsInvalidIntent(t *testing.T) {
	f := newFixture(nil, false)
	st := &SystemicTherapy{CaseID: f.caseID, Period: period(0, 30), Intent: strptr("adjuvant")}
	if err := f.svc.CreateSystemicTherapy(context.Background(), st); err == nil {
		t.Fatal("expected invalid intent to be rejected")
	}
}

func TestProgressionFreeSurvival(t *testing.T) {
	f := newFixture([]time.Time{day(200)}, false)
	f.addTherapy(period(0, 30), strptr(IntentCurative), drug("D1", "Chemotherapy"))

	f.assign(t)
	lines, _, err := f.svc.ListTherapyLines(context.Background(), f.caseID, 100, 0)
	if err != nil {
		t.Fatalf("ListTherapyLines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	pfs := lines[0].ProgressionFreeSurvival
	if pfs == nil {
		t.Fatal("expected progression-free survival")
	}
	want := clinical.MonthsBetween(day(0), day(200))
	if *pfs != want {
		t.Errorf("pfs %f, want %f", *pfs, want)
	}
}

func TestMedicationDosageExclusivity(t *testing.T) {
	f := newFixture(nil, false)
	st := f.addTherapy(period(0, 30), strptr(IntentCurative))
	m := &SystemicTherapyMedication{
		TherapyID:    st.ID,
		Drug:         clinical.CodedConcept{Code: "D1"},
		AbsoluteDose: &clinical.Measure{Value: 100, Unit: "mg"},
		DosePerKg:    &clinical.Measure{Value: 2, Unit: "mg/kg"},
	}
	if err := f.svc.CreateMedication(context.Background(), m); err == nil {
		t.Fatal("expected mutually exclusive dosage fields to be rejected")
	}
}
