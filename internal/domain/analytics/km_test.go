package analytics

import (
	"errors"
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestKaplanMeierCurve(t *testing.T) {
	durations := []*float64{ptr(1), ptr(2), ptr(2), ptr(3), ptr(3), ptr(3), ptr(4), ptr(5)}

	curve, err := KaplanMeier(durations)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}

	wantMonths := []float64{0, 1, 2, 3, 4, 5}
	wantProbs := []float64{1.000, 0.875, 0.625, 0.250, 0.125, 0.000}
	if len(curve.Months) != len(wantMonths) {
		t.Fatalf("months: %v", curve.Months)
	}
	for i := range wantMonths {
		if curve.Months[i] != wantMonths[i] {
			t.Fatalf("month %d: %v != %v", i, curve.Months[i], wantMonths[i])
		}
		if math.Abs(curve.Probabilities[i]-wantProbs[i]) > 0.0005 {
			t.Fatalf("probability at month %v: %v != %v", wantMonths[i], curve.Probabilities[i], wantProbs[i])
		}
	}
}

func TestKaplanMeierMonotonicity(t *testing.T) {
	durations := []*float64{ptr(4), ptr(1), ptr(9), ptr(1), ptr(6), nil, ptr(2), ptr(14), nil, ptr(6)}

	curve, err := KaplanMeier(durations)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if curve.Probabilities[0] != 1 {
		t.Fatalf("curve must start at 1, starts at %v", curve.Probabilities[0])
	}
	for i := 1; i < len(curve.Probabilities); i++ {
		if curve.Probabilities[i] > curve.Probabilities[i-1] {
			t.Fatalf("probabilities increase at index %d: %v", i, curve.Probabilities)
		}
		if curve.Months[i] <= curve.Months[i-1] {
			t.Fatalf("months not strictly increasing: %v", curve.Months)
		}
	}
	if last := curve.Probabilities[len(curve.Probabilities)-1]; last < 0 {
		t.Fatalf("final probability below zero: %v", last)
	}
}

func TestKaplanMeierConfidenceBands(t *testing.T) {
	durations := []*float64{ptr(1), ptr(2), ptr(2), ptr(3), ptr(3), ptr(3), ptr(4), ptr(5)}

	curve, err := KaplanMeier(durations)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	for i := range curve.Probabilities {
		low, p, high := curve.LowerConfidenceBand[i], curve.Probabilities[i], curve.UpperConfidenceBand[i]
		if low < 0 || high > 1 {
			t.Fatalf("band outside [0,1] at index %d: [%v, %v]", i, low, high)
		}
		if low > p || p > high {
			t.Fatalf("band does not contain the estimate at index %d: %v not in [%v, %v]", i, p, low, high)
		}
	}
	// Interior points carry real uncertainty.
	if curve.LowerConfidenceBand[2] == curve.Probabilities[2] {
		t.Fatalf("lower band degenerate at %v", curve.Probabilities[2])
	}
}

func TestKaplanMeierRejectsEmptyInput(t *testing.T) {
	if _, err := KaplanMeier(nil); !errors.Is(err, ErrNoObservations) {
		t.Fatalf("nil input: %v", err)
	}
	if _, err := KaplanMeier([]*float64{nil, nil}); !errors.Is(err, ErrNoObservations) {
		t.Fatalf("all-censored input: %v", err)
	}
}
