package fair

import (
	"math"
	"testing"
)

func TestMinesMultiplierZeroRevealsIsExactlyOne(t *testing.T) {
	if got := MinesMultiplier(25, 3, 0, 0.03); got != 1.0 {
		t.Errorf("multiplier(0) = %v, want exactly 1.0", got)
	}
}

func TestMinesMultiplierFirstReveal(t *testing.T) {
	// 25 cells, 3 mines: P(first reveal safe) = 22/25, so the fair
	// multiplier is 25/22 before the 3% edge.
	got := MinesMultiplier(25, 3, 1, 0.03)
	want := 25.0 / 22.0 * 0.97
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("multiplier(1) = %v, want %v", got, want)
	}
}

func TestMinesMultiplierMonotonic(t *testing.T) {
	prev := 0.0
	for k := 1; k <= 22; k++ {
		m := MinesMultiplier(25, 3, k, 0.03)
		if m <= prev {
			t.Fatalf("multiplier not increasing at k=%d: %v <= %v", k, m, prev)
		}
		prev = m
	}
}

func TestCommitmentMatchesSeed(t *testing.T) {
	seed := NewSeed()
	c1 := Commitment(seed)
	c2 := Commitment(seed)
	if c1 != c2 {
		t.Errorf("commitment not deterministic: %s vs %s", c1, c2)
	}
	if len(c1) != 64 {
		t.Errorf("commitment length = %d, want 64 hex chars", len(c1))
	}
	if Commitment("other-seed") == c1 {
		t.Error("different seeds produced the same commitment")
	}
}

func TestCrashPointDeterministicAndBounded(t *testing.T) {
	seed := "fixed-test-seed"
	p1 := CrashPoint(seed, 0.03)
	p2 := CrashPoint(seed, 0.03)
	if p1 != p2 {
		t.Errorf("crash point not deterministic: %v vs %v", p1, p2)
	}
	for i := 0; i < 200; i++ {
		p := CrashPoint(NewSeed(), 0.03)
		if p < 1.0 {
			t.Fatalf("crash point below 1.0: %v", p)
		}
	}
}

func TestCrashMultiplierGrowth(t *testing.T) {
	if got := CrashMultiplierAt(0, 0.07); got != 1.0 {
		t.Errorf("multiplier at t=0 = %v, want 1.0", got)
	}
	prev := 0.0
	for s := 1.0; s < 60; s += 5 {
		m := CrashMultiplierAt(s, 0.07)
		if m < prev {
			t.Fatalf("multiplier decreased at t=%v", s)
		}
		prev = m
	}
}

func TestFlightDurationInvertsMultiplier(t *testing.T) {
	rate := 0.07
	for _, point := range []float64{1.01, 1.5, 2.0, 10.0, 100.0} {
		d := FlightDuration(point, rate)
		at := math.Exp(rate * d)
		if math.Abs(at-point) > 1e-9 {
			t.Errorf("flight duration for %v: multiplier at %vs = %v", point, d, at)
		}
	}
}

func TestSampleWithoutReplacementDistinct(t *testing.T) {
	seen := make(map[int]bool)
	for _, v := range SampleWithoutReplacement(25, 10) {
		if v < 0 || v >= 25 {
			t.Fatalf("sample out of range: %d", v)
		}
		if seen[v] {
			t.Fatalf("duplicate sample: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 10 {
		t.Errorf("sample size = %d, want 10", len(seen))
	}
}
