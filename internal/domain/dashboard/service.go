package dashboard

import (
	"context"
	"fmt"

	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/pkg/clinical"
)

// completionCategoryCount fixes the denominator of completion rates to the
// closed category set the case surface tracks.
var completionCategoryCount = float64(len(cases.CompletionCategories))

// Terminology resolves a topography to its site group. Satisfied by the
// terminology service.
type Terminology interface {
	GroupOf(ctx context.Context, system, code string) (*clinical.CodedConcept, error)
}

type Service struct {
	repo        Repository
	terminology Terminology
}

func NewService(repo Repository, terminology Terminology) *Service {
	return &Service{repo: repo, terminology: terminology}
}

func (s *Service) Stats(ctx context.Context) (*PlatformStats, error) {
	caseCount, projectCount, cohortCount, userCount, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := s.repo.CompletionRates(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		Cases:              caseCount,
		Projects:           projectCount,
		Cohorts:            cohortCount,
		Users:              userCount,
		MeanDataCompletion: mean(rates),
	}, nil
}

// PrimarySiteStats histograms primary neoplasms by topography group,
// falling back to the raw topography display when the terminology has no
// group for the code.
func (s *Service) PrimarySiteStats(ctx context.Context) ([]SiteCount, error) {
	samples, err := s.repo.PrimarySites(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	order := []string{}
	for _, sample := range samples {
		site := sample.Topography.Display
		if group, err := s.terminology.GroupOf(ctx, sample.Topography.System, sample.Topography.Code); err == nil && group != nil {
			site = group.Display
		}
		if _, seen := counts[site]; !seen {
			order = append(order, site)
		}
		counts[site] += sample.Count
	}
	out := make([]SiteCount, 0, len(order))
	for _, site := range order {
		out = append(out, SiteCount{Site: site, Count: counts[site]})
	}
	return out, nil
}

func (s *Service) CasesOverTime(ctx context.Context) ([]MonthCount, error) {
	return s.repo.CasesByMonth(ctx)
}

func (s *Service) DataCompletionStats(ctx context.Context) (*CompletionStats, error) {
	rates, err := s.repo.CompletionRates(ctx)
	if err != nil {
		return nil, err
	}
	buckets := make([]int, 10)
	for _, rate := range rates {
		i := int(rate * 10)
		if i > 9 {
			i = 9
		}
		buckets[i]++
	}
	stats := &CompletionStats{Mean: mean(rates)}
	for i, count := range buckets {
		stats.Histogram = append(stats.Histogram, RateCount{
			Bucket: fmt.Sprintf("%d-%d", i*10, (i+1)*10),
			Count:  count,
		})
	}
	return stats, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
