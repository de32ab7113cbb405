package analytics

import (
	"math"
	"sort"
)

const z95 = 1.959963984540054

// KaplanMeier estimates a survival curve from durations in months. A nil
// duration is a censored observation with unknown follow-up: it never
// contributes an event and leaves the risk set before the first event time.
func KaplanMeier(durations []*float64) (*SurvivalCurve, error) {
	if len(durations) == 0 {
		return nil, ErrNoObservations
	}
	events := make([]float64, 0, len(durations))
	for _, d := range durations {
		if d != nil {
			events = append(events, *d)
		}
	}
	if len(events) == 0 {
		return nil, ErrNoObservations
	}
	sort.Float64s(events)

	curve := &SurvivalCurve{
		Months:              []float64{0},
		Probabilities:       []float64{1},
		LowerConfidenceBand: []float64{1},
		UpperConfidenceBand: []float64{1},
	}

	survival := 1.0
	greenwood := 0.0
	atRisk := len(events)
	for i := 0; i < len(events); {
		t := events[i]
		d := 0
		for i < len(events) && events[i] == t {
			d++
			i++
		}
		survival *= 1 - float64(d)/float64(atRisk)
		if atRisk > d {
			greenwood += float64(d) / (float64(atRisk) * float64(atRisk-d))
		}
		lower, upper := logLogBand(survival, greenwood)
		curve.Months = append(curve.Months, t)
		curve.Probabilities = append(curve.Probabilities, survival)
		curve.LowerConfidenceBand = append(curve.LowerConfidenceBand, lower)
		curve.UpperConfidenceBand = append(curve.UpperConfidenceBand, upper)
		atRisk -= d
	}
	return curve, nil
}

// logLogBand computes the 95% confidence interval on the log(-log S) scale,
// which keeps the bounds inside [0, 1] without truncating the distribution.
func logLogBand(survival, greenwood float64) (lower, upper float64) {
	if survival <= 0 {
		return 0, 0
	}
	if survival >= 1 {
		return 1, 1
	}
	se := z95 * math.Sqrt(greenwood) / math.Log(survival)
	lower = clip(math.Pow(survival, math.Exp(-se)))
	upper = clip(math.Pow(survival, math.Exp(se)))
	if lower > upper {
		lower, upper = upper, lower
	}
	return lower, upper
}

func clip(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
