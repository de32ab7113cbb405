package analytics

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/domain/cohorts"
	"github.com/oncore/oncore/internal/domain/therapies"
	"github.com/oncore/oncore/pkg/clinical"
)

// CohortSource resolves cohorts and their materialized membership.
// Satisfied by the cohorts service.
type CohortSource interface {
	GetCohort(ctx context.Context, id uuid.UUID) (*cohorts.Cohort, error)
}

type Service struct {
	repo    Repository
	cohorts CohortSource
}

func NewService(repo Repository, cohortSource CohortSource) *Service {
	return &Service{repo: repo, cohorts: cohortSource}
}

func (s *Service) members(ctx context.Context, cohortID uuid.UUID) ([]uuid.UUID, error) {
	cohort, err := s.cohorts.GetCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	if len(cohort.Cases) == 0 {
		return nil, cohorts.ErrEmptyCohort
	}
	return cohort.Cases, nil
}

// OverallSurvivalCurve estimates the cohort's survival from first neoplasm
// assertion to death. Cases still alive are censored.
func (s *Service) OverallSurvivalCurve(ctx context.Context, cohortID uuid.UUID) (*SurvivalCurve, error) {
	caseIDs, err := s.members(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	durations, err := s.repo.SurvivalDurations(ctx, caseIDs)
	if err != nil {
		return nil, err
	}
	return KaplanMeier(durations)
}

// ProgressionFreeSurvivalCurve estimates survival to first progression for
// the cohort's therapy lines of the given label, e.g. CLoT1.
func (s *Service) ProgressionFreeSurvivalCurve(ctx context.Context, cohortID uuid.UUID, label string) (*SurvivalCurve, error) {
	samples, err := s.lineSamples(ctx, cohortID, label)
	if err != nil {
		return nil, err
	}
	durations := make([]*float64, 0, len(samples))
	for _, sample := range samples {
		durations = append(durations, progressionFreeSurvival(sample))
	}
	return KaplanMeier(durations)
}

// PFSByDrugCombination buckets the label's lines by the sorted set of drug
// names given across their medications.
func (s *Service) PFSByDrugCombination(ctx context.Context, cohortID uuid.UUID, label string) ([]PFSBucket, error) {
	return s.pfsBuckets(ctx, cohortID, label, drugCombination)
}

// PFSByTherapyClassification buckets the label's lines by a derived class
// tag: chemotherapy and immunotherapy by medication category, their
// combination, radiotherapy-only lines, and everything else.
func (s *Service) PFSByTherapyClassification(ctx context.Context, cohortID uuid.UUID, label string) ([]PFSBucket, error) {
	return s.pfsBuckets(ctx, cohortID, label, classify)
}

func (s *Service) pfsBuckets(ctx context.Context, cohortID uuid.UUID, label string, key func(*LineSample) string) ([]PFSBucket, error) {
	samples, err := s.lineSamples(ctx, cohortID, label)
	if err != nil {
		return nil, err
	}
	byKey := map[string]*PFSBucket{}
	for _, sample := range samples {
		k := key(sample)
		bucket, ok := byKey[k]
		if !ok {
			bucket = &PFSBucket{Label: k}
			byKey[k] = bucket
		}
		if pfs := progressionFreeSurvival(sample); pfs != nil {
			bucket.Values = append(bucket.Values, *pfs)
		} else {
			bucket.Censored++
		}
	}
	buckets := make([]PFSBucket, 0, len(byKey))
	for _, bucket := range byKey {
		sort.Float64s(bucket.Values)
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Label < buckets[j].Label })
	return buckets, nil
}

// ResponseDistribution counts the recist categories assessed during the
// label's therapies and expresses each as a share of the total.
func (s *Service) ResponseDistribution(ctx context.Context, cohortID uuid.UUID, label string) ([]ResponseShare, error) {
	caseIDs, err := s.members(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	intent, ordinal, err := therapies.ParseLineLabel(label)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ResponseCategories(ctx, caseIDs, intent, ordinal)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, c := range categories {
		counts[c]++
	}
	shares := make([]ResponseShare, 0, len(counts))
	for category, count := range counts {
		shares = append(shares, ResponseShare{
			Category:   category,
			Count:      count,
			Percentage: 100 * float64(count) / float64(len(categories)),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Category < shares[j].Category
	})
	return shares, nil
}

// GeneCounts aggregates the cohort's genomic variants by gene.
func (s *Service) GeneCounts(ctx context.Context, cohortID uuid.UUID) ([]GeneCount, error) {
	caseIDs, err := s.members(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	return s.repo.GeneCounts(ctx, caseIDs)
}

func (s *Service) lineSamples(ctx context.Context, cohortID uuid.UUID, label string) ([]*LineSample, error) {
	caseIDs, err := s.members(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	intent, ordinal, err := therapies.ParseLineLabel(label)
	if err != nil {
		return nil, err
	}
	return s.repo.LineSamples(ctx, caseIDs, intent, ordinal)
}

// progressionFreeSurvival mirrors the therapy-line decoration: months from
// line start to the first progression on or after it, nil when censored.
func progressionFreeSurvival(sample *LineSample) *float64 {
	if sample.PeriodStart == nil || sample.FirstProgression == nil {
		return nil
	}
	pfs := clinical.MonthsBetween(*sample.PeriodStart, *sample.FirstProgression)
	return &pfs
}

func drugCombination(sample *LineSample) string {
	if len(sample.Drugs) == 0 {
		if sample.HasRadiotherapy {
			return ClassRadiotherapy
		}
		return ClassOther
	}
	unique := uniqueSorted(sample.Drugs)
	return strings.Join(unique, " + ")
}

func classify(sample *LineSample) string {
	var chemo, immuno bool
	for _, category := range sample.Categories {
		switch category {
		case ClassChemotherapy:
			chemo = true
		case ClassImmunotherapy:
			immuno = true
		}
	}
	switch {
	case chemo && immuno:
		return ClassChemoimmunotherapy
	case chemo:
		return ClassChemotherapy
	case immuno:
		return ClassImmunotherapy
	case len(sample.Drugs) == 0 && sample.HasRadiotherapy:
		return ClassRadiotherapy
	default:
		return ClassOther
	}
}

func uniqueSorted(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
