package cohorts

import (
	"math"
	"sort"
)

// summarize computes the descriptive block over a sample. An empty sample
// yields a zero-count summary with no moments.
func summarize(values []float64) NumericSummary {
	s := NumericSummary{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range sorted {
		mean += v
	}
	mean /= float64(len(sorted))
	s.Mean = &mean

	if len(sorted) > 1 {
		variance := 0.0
		for _, v := range sorted {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(sorted) - 1)
		sd := math.Sqrt(variance)
		s.StdDev = &sd
	}

	median := quantile(sorted, 0.5)
	lower := quantile(sorted, 0.25)
	upper := quantile(sorted, 0.75)
	s.Median = &median
	s.LowerQuartile = &lower
	s.UpperQuartile = &upper
	return s
}

// quantile interpolates linearly between order statistics; input must be
// sorted and non-empty.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// histogram counts occurrences and returns them sorted by descending count,
// ties broken by value for stable output.
func histogram(values []string) []ValueCount {
	counts := map[string]int{}
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
