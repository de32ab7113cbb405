package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oncore/oncore/internal/domain/cohorts"
)

type fakeRepo struct {
	durations  []*float64
	samples    []*LineSample
	categories []string
	genes      []GeneCount

	wantIntent  string
	wantOrdinal int
	t           *testing.T
}

func (r *fakeRepo) SurvivalDurations(_ context.Context, _ []uuid.UUID) ([]*float64, error) {
	return r.durations, nil
}

func (r *fakeRepo) LineSamples(_ context.Context, _ []uuid.UUID, intent string, ordinal int) ([]*LineSample, error) {
	if r.wantIntent != "" && (intent != r.wantIntent || ordinal != r.wantOrdinal) {
		r.t.Fatalf("label parsed to %s/%d, want %s/%d", intent, ordinal, r.wantIntent, r.wantOrdinal)
	}
	return r.samples, nil
}

func (r *fakeRepo) ResponseCategories(_ context.Context, _ []uuid.UUID, intent string, ordinal int) ([]string, error) {
	if r.wantIntent != "" && (intent != r.wantIntent || ordinal != r.wantOrdinal) {
		r.t.Fatalf("label parsed to %s/%d, want %s/%d", intent, ordinal, r.wantIntent, r.wantOrdinal)
	}
	return r.categories, nil
}

func (r *fakeRepo) GeneCounts(_ context.Context, _ []uuid.UUID) ([]GeneCount, error) {
	return r.genes, nil
}

type fakeCohorts struct {
	cohort *cohorts.Cohort
}

func (f *fakeCohorts) GetCohort(_ context.Context, id uuid.UUID) (*cohorts.Cohort, error) {
	if f.cohort == nil || f.cohort.ID != id {
		return nil, pgx.ErrNoRows
	}
	return f.cohort, nil
}

func populatedCohort() *cohorts.Cohort {
	return &cohorts.Cohort{ID: uuid.New(), Cases: []uuid.UUID{uuid.New(), uuid.New()}}
}

func lineSample(start time.Time, progression *time.Time, drugs, categories []string, radio bool) *LineSample {
	return &LineSample{
		LineID:           uuid.New(),
		CaseID:           uuid.New(),
		PeriodStart:      &start,
		FirstProgression: progression,
		Drugs:            drugs,
		Categories:       categories,
		HasRadiotherapy:  radio,
	}
}

func TestOverallSurvivalCurveRejectsEmptyCohort(t *testing.T) {
	source := &fakeCohorts{cohort: &cohorts.Cohort{ID: uuid.New()}}
	svc := NewService(&fakeRepo{t: t}, source)

	_, err := svc.OverallSurvivalCurve(context.Background(), source.cohort.ID)
	if !errors.Is(err, cohorts.ErrEmptyCohort) {
		t.Fatalf("expected empty-cohort error, got %v", err)
	}
}

func TestOverallSurvivalCurveUnknownCohort(t *testing.T) {
	svc := NewService(&fakeRepo{t: t}, &fakeCohorts{})

	_, err := svc.OverallSurvivalCurve(context.Background(), uuid.New())
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProgressionFreeSurvivalCurveParsesLabel(t *testing.T) {
	cohort := populatedCohort()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	progression := start.AddDate(0, 6, 0)
	repo := &fakeRepo{
		t: t, wantIntent: "palliative", wantOrdinal: 2,
		samples: []*LineSample{
			lineSample(start, &progression, nil, nil, false),
			lineSample(start, nil, nil, nil, false),
		},
	}
	svc := NewService(repo, &fakeCohorts{cohort: cohort})

	curve, err := svc.ProgressionFreeSurvivalCurve(context.Background(), cohort.ID, "PLoT2")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(curve.Months) != 2 || curve.Probabilities[1] != 0 {
		t.Fatalf("one observed progression should drop the curve to zero: %+v", curve)
	}
}

func TestProgressionFreeSurvivalCurveRejectsBadLabel(t *testing.T) {
	cohort := populatedCohort()
	svc := NewService(&fakeRepo{t: t}, &fakeCohorts{cohort: cohort})

	if _, err := svc.ProgressionFreeSurvivalCurve(context.Background(), cohort.ID, "LoTX"); err == nil {
		t.Fatal("malformed label accepted")
	}
}

func TestPFSByDrugCombination(t *testing.T) {
	cohort := populatedCohort()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	progression := start.AddDate(0, 3, 0)
	repo := &fakeRepo{
		t: t, wantIntent: "curative", wantOrdinal: 1,
		samples: []*LineSample{
			lineSample(start, &progression, []string{"fluorouracil", "cisplatin", "cisplatin"}, nil, false),
			lineSample(start, nil, []string{"cisplatin", "fluorouracil"}, nil, false),
			lineSample(start, &progression, nil, nil, true),
		},
	}
	svc := NewService(repo, &fakeCohorts{cohort: cohort})

	buckets, err := svc.PFSByDrugCombination(context.Background(), cohort.ID, "CLoT1")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, have %+v", buckets)
	}
	// Drug sets are deduplicated and sorted, so both medication orders land
	// in the same bucket.
	if buckets[0].Label != "Radiotherapy" || buckets[1].Label != "cisplatin + fluorouracil" {
		t.Fatalf("bucket labels: %+v", buckets)
	}
	combo := buckets[1]
	if len(combo.Values) != 1 || combo.Censored != 1 {
		t.Fatalf("combo bucket: %+v", combo)
	}
}

func TestPFSByTherapyClassification(t *testing.T) {
	cohort := populatedCohort()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	progression := start.AddDate(0, 4, 0)
	repo := &fakeRepo{
		t: t, wantIntent: "curative", wantOrdinal: 1,
		samples: []*LineSample{
			lineSample(start, &progression, []string{"cisplatin"}, []string{"Chemotherapy"}, false),
			lineSample(start, nil, []string{"pembrolizumab"}, []string{"Immunotherapy"}, false),
			lineSample(start, nil, []string{"cisplatin", "pembrolizumab"}, []string{"Chemotherapy", "Immunotherapy"}, false),
			lineSample(start, nil, nil, nil, true),
			lineSample(start, nil, []string{"octreotide"}, []string{"Hormone therapy"}, false),
		},
	}
	svc := NewService(repo, &fakeCohorts{cohort: cohort})

	buckets, err := svc.PFSByTherapyClassification(context.Background(), cohort.ID, "CLoT1")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	got := map[string]PFSBucket{}
	for _, b := range buckets {
		got[b.Label] = b
	}
	for _, want := range []string{ClassChemotherapy, ClassImmunotherapy, ClassChemoimmunotherapy, ClassRadiotherapy, ClassOther} {
		if _, ok := got[want]; !ok {
			t.Fatalf("missing class %s in %+v", want, buckets)
		}
	}
	if len(got[ClassChemotherapy].Values) != 1 || got[ClassChemotherapy].Censored != 0 {
		t.Fatalf("chemotherapy bucket: %+v", got[ClassChemotherapy])
	}
}

func TestResponseDistribution(t *testing.T) {
	cohort := populatedCohort()
	repo := &fakeRepo{
		t: t, wantIntent: "curative", wantOrdinal: 1,
		categories: []string{"Partial Response", "Partial Response", "Stable Disease", "Progressive Disease"},
	}
	svc := NewService(repo, &fakeCohorts{cohort: cohort})

	shares, err := svc.ResponseDistribution(context.Background(), cohort.ID, "CLoT1")
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if len(shares) != 3 {
		t.Fatalf("expected 3 categories, have %+v", shares)
	}
	if shares[0].Category != "Partial Response" || shares[0].Count != 2 || shares[0].Percentage != 50 {
		t.Fatalf("leading share: %+v", shares[0])
	}
	var total float64
	for _, s := range shares {
		total += s.Percentage
	}
	if total != 100 {
		t.Fatalf("percentages sum to %v", total)
	}
}

func TestGeneCounts(t *testing.T) {
	cohort := populatedCohort()
	repo := &fakeRepo{t: t, genes: []GeneCount{{Gene: "KRAS", Count: 4}, {Gene: "TP53", Count: 2}}}
	svc := NewService(repo, &fakeCohorts{cohort: cohort})

	counts, err := svc.GeneCounts(context.Background(), cohort.ID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if len(counts) != 2 || counts[0].Gene != "KRAS" {
		t.Fatalf("counts: %+v", counts)
	}
}
