package analytics

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		magnitude float64
		base      float64
		want      Severity
	}{
		{10, 8, SeverityLow},
		{12, 8, SeverityModerate},
		{20, 8, SeveritySevere},
		{32, 8, SeverityExtreme},
		{5, 0, SeverityLow},
	}
	for _, tc := range cases {
		if got := severityFor(tc.magnitude, tc.base); got != tc.want {
			t.Fatalf("severityFor(%f, %f) = %s, want %s", tc.magnitude, tc.base, got, tc.want)
		}
	}
}

func TestConfidenceCapped(t *testing.T) {
	if got := confidence(1000, 1, 10); got != 95 {
		t.Fatalf("confidence must cap at 95, got %f", got)
	}
	if got := confidence(8, 8, 0); got != 50 {
		t.Fatalf("confidence at the threshold with no corroboration should be 50, got %f", got)
	}
}

func TestDetectPump(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1000, 1020, 1060, 1120}, 15*time.Minute)

	an := testAnalytics(m.store)
	result, ok := an.DetectPump(1, PumpConfig{MinIncreasePct: 8, SustainedPeriods: 3})
	if !ok {
		t.Fatal("pump evaluation should be computable")
	}
	if !result.Detected {
		t.Fatalf("12%% rise over three rising samples should detect: %+v", result)
	}
	if math.Abs(result.ChangePct-12) > 1e-9 {
		t.Fatalf("expected +12%% change, got %f", result.ChangePct)
	}
	if result.Consecutive != 3 {
		t.Fatalf("expected 3 consecutive rises, got %d", result.Consecutive)
	}
	if result.Severity != SeverityModerate {
		t.Fatalf("12%% against an 8%% floor should grade moderate, got %s", result.Severity)
	}
	if result.Confidence < 50 || result.Confidence > 95 {
		t.Fatalf("confidence out of range: %f", result.Confidence)
	}
}

func TestDetectPumpBelowThreshold(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1010, 1020}, 30*time.Minute)

	result, ok := testAnalytics(m.store).DetectPump(1, PumpConfig{MinIncreasePct: 8, SustainedPeriods: 3})
	if !ok {
		t.Fatal("pump evaluation should be computable")
	}
	if result.Detected {
		t.Fatalf("a small rise should not detect: %+v", result)
	}
}

func TestDetectDump(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1000, 900}, 15*time.Minute)

	result, ok := testAnalytics(m.store).DetectDump(1, DumpConfig{MinDropPct: 5})
	if !ok {
		t.Fatal("dump evaluation should be computable")
	}
	if !result.Detected {
		t.Fatalf("a 10%% drop should detect: %+v", result)
	}
	if math.Abs(result.DropPct-10) > 1e-9 {
		t.Fatalf("expected a 10%% drop, got %f", result.DropPct)
	}
	if result.Severity != SeverityModerate {
		t.Fatalf("10%% against a 5%% floor should grade moderate, got %s", result.Severity)
	}
}

func TestDetectDumpFlatSeries(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1000, 1000}, 15*time.Minute)

	result, ok := testAnalytics(m.store).DetectDump(1, DumpConfig{MinDropPct: 5})
	if !ok {
		t.Fatal("dump evaluation should be computable")
	}
	if result.Detected {
		t.Fatalf("a flat series should not detect: %+v", result)
	}
}

func TestUnusualActivityReproducible(t *testing.T) {
	m := newMarket(t, nil)
	highs := make([]int64, 30)
	for i := range highs {
		highs[i] = int64(1000 + 15*i)
	}
	m.pushSeries(t, 1, highs, 5*time.Minute)

	an := testAnalytics(m.store)
	first, ok := an.UnusualActivity(1)
	if !ok {
		t.Fatal("unusual activity should be computable")
	}
	second, ok := an.UnusualActivity(1)
	if !ok {
		t.Fatal("unusual activity should be computable")
	}

	if first.Score != second.Score {
		t.Fatalf("scores differ across identical evaluations: %f vs %f", first.Score, second.Score)
	}
	if !reflect.DeepEqual(first.Reasons, second.Reasons) {
		t.Fatalf("reasons differ across identical evaluations: %v vs %v", first.Reasons, second.Reasons)
	}
	if first.Score < 0 || first.Score > 100 {
		t.Fatalf("score out of range: %f", first.Score)
	}
}

func TestUnusualActivityUnknownWithoutData(t *testing.T) {
	m := newMarket(t, nil)
	if _, ok := testAnalytics(m.store).UnusualActivity(1); ok {
		t.Fatal("an item with no data should be unknown")
	}
}
