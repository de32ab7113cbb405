package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/oncore/oncore/pkg/clinical"
)

type fakeRepo struct {
	cases, projects, cohorts, users int
	rates                           []float64
	sites                           []SiteSample
	months                          []MonthCount
}

func (r *fakeRepo) Counts(context.Context) (int, int, int, int, error) {
	return r.cases, r.projects, r.cohorts, r.users, nil
}
func (r *fakeRepo) CompletionRates(context.Context) ([]float64, error) { return r.rates, nil }
func (r *fakeRepo) PrimarySites(context.Context) ([]SiteSample, error) { return r.sites, nil }
func (r *fakeRepo) CasesByMonth(context.Context) ([]MonthCount, error) { return r.months, nil }

type fakeTerminology struct {
	groups map[string]*clinical.CodedConcept
}

func (t *fakeTerminology) GroupOf(_ context.Context, _, code string) (*clinical.CodedConcept, error) {
	g, ok := t.groups[code]
	if !ok {
		return nil, errors.New("no group")
	}
	return g, nil
}

func TestStatsAggregatesCounts(t *testing.T) {
	repo := &fakeRepo{cases: 120, projects: 4, cohorts: 9, users: 17, rates: []float64{1, 0.5, 0}}
	svc := NewService(repo, &fakeTerminology{})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Cases != 120 || stats.Projects != 4 || stats.Cohorts != 9 || stats.Users != 17 {
		t.Fatalf("counts: %+v", stats)
	}
	if stats.MeanDataCompletion != 0.5 {
		t.Fatalf("mean completion: %v", stats.MeanDataCompletion)
	}
}

func TestPrimarySiteStatsGroupsByTerminology(t *testing.T) {
	repo := &fakeRepo{sites: []SiteSample{
		{Topography: clinical.CodedConcept{System: "icd-o-3", Code: "C18.2", Display: "Ascending colon"}, Count: 5},
		{Topography: clinical.CodedConcept{System: "icd-o-3", Code: "C18.7", Display: "Sigmoid colon"}, Count: 3},
		{Topography: clinical.CodedConcept{System: "icd-o-3", Code: "C34.1", Display: "Upper lobe, lung"}, Count: 2},
	}}
	terminology := &fakeTerminology{groups: map[string]*clinical.CodedConcept{
		"C18.2": {Code: "C18", Display: "Colon"},
		"C18.7": {Code: "C18", Display: "Colon"},
	}}
	svc := NewService(repo, terminology)

	sites, err := svc.PrimarySiteStats(context.Background())
	if err != nil {
		t.Fatalf("sites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected two groups, have %+v", sites)
	}
	if sites[0].Site != "Colon" || sites[0].Count != 8 {
		t.Fatalf("colon group: %+v", sites[0])
	}
	// No group resolved: the raw topography display stands in.
	if sites[1].Site != "Upper lobe, lung" || sites[1].Count != 2 {
		t.Fatalf("ungrouped site: %+v", sites[1])
	}
}

func TestDataCompletionStatsHistogram(t *testing.T) {
	repo := &fakeRepo{rates: []float64{0, 0.05, 0.5, 0.55, 1, 1}}
	svc := NewService(repo, &fakeTerminology{})

	stats, err := svc.DataCompletionStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats.Histogram) != 10 {
		t.Fatalf("expected ten buckets, have %d", len(stats.Histogram))
	}
	byBucket := map[string]int{}
	for _, b := range stats.Histogram {
		byBucket[b.Bucket] = b.Count
	}
	if byBucket["0-10"] != 2 || byBucket["50-60"] != 2 || byBucket["90-100"] != 2 {
		t.Fatalf("histogram: %+v", stats.Histogram)
	}
}
