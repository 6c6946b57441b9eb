package interp

import (
	"errors"
	"math"
	"testing"
)

func TestRatioOneJumpsInOneStep(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("fft", 8, 1); err != nil {
		t.Fatal(err)
	}
	values := make([]float32, 8)
	for i := range values {
		values[i] = float32(i) * 1.5
	}
	if err := it.Feed("fft", Replace, values...); err != nil {
		t.Fatal(err)
	}
	it.Step()

	current, err := it.Read("fft")
	if err != nil {
		t.Fatal(err)
	}
	for i := range values {
		if current[i] != values[i] {
			t.Errorf("element %d: got %f, want %f after one step", i, current[i], values[i])
		}
	}
}

func TestRatioZeroNeverMoves(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("frozen", 4, 0); err != nil {
		t.Fatal(err)
	}
	if err := it.Feed("frozen", Fill, 100); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		it.Step()
	}
	current, _ := it.Read("frozen")
	for i, v := range current {
		if v != 0 {
			t.Errorf("element %d moved to %f with ratio 0", i, v)
		}
	}
}

func TestExponentialConvergence(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("rms", 1, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := it.Feed("rms", Fill, 1); err != nil {
		t.Fatal(err)
	}

	// 0 -> 0.5 -> 0.75 -> 0.875 ...
	want := 0.0
	for i := 0; i < 5; i++ {
		it.Step()
		want += (1 - want) * 0.5
		current, _ := it.Read("rms")
		if math.Abs(float64(current[0])-want) > 1e-6 {
			t.Fatalf("step %d: got %f, want %f", i, current[0], want)
		}
	}
}

func TestFillLastWriteWins(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("std", 3, 1); err != nil {
		t.Fatal(err)
	}
	if err := it.Feed("std", Fill, 5); err != nil {
		t.Fatal(err)
	}
	if err := it.Feed("std", Fill, 9); err != nil {
		t.Fatal(err)
	}
	it.Step()
	current, _ := it.Read("std")
	for i, v := range current {
		if v != 9 {
			t.Errorf("element %d: got %f, want 9 (last write)", i, v)
		}
	}
}

func TestAccumulateNeverResets(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("progressive", 1, 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if err := it.Feed("progressive", Accumulate, 2); err != nil {
			t.Fatal(err)
		}
		it.Step()
	}
	current, _ := it.Read("progressive")
	if current[0] != 8 {
		t.Errorf("got %f, want 8 after four accumulated feeds", current[0])
	}
}

func TestRamp(t *testing.T) {
	t.Parallel()
	ratios := Ramp(5)
	want := []float32{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if ratios[i] != want[i] {
			t.Errorf("ramp[%d] = %f, want %f", i, ratios[i], want[i])
		}
	}
	if one := Ramp(1); one[0] != 1 {
		t.Errorf("Ramp(1) = %f, want 1", one[0])
	}
}

func TestFeedErrors(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("a", 4, 0.5); err != nil {
		t.Fatal(err)
	}

	if err := it.Feed("missing", Fill, 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
	if err := it.Feed("a", Replace, 1, 2); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch for short replace, got %v", err)
	}
	if err := it.Feed("a", Accumulate, 1, 2, 3); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch for partial accumulate, got %v", err)
	}
	if err := it.AddChannel("a", 4, 0.5); err == nil {
		t.Error("expected error for duplicate channel")
	}
	if err := it.AddChannel("bad", 4, 1.5); err == nil {
		t.Error("expected error for ratio outside [0, 1]")
	}
}

func TestReadIsIdempotent(t *testing.T) {
	t.Parallel()
	it := New()
	if err := it.AddChannel("x", 2, 0.25); err != nil {
		t.Fatal(err)
	}
	if err := it.Feed("x", Fill, 4); err != nil {
		t.Fatal(err)
	}
	it.Step()

	first, _ := it.Read("x")
	second, _ := it.Read("x")
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated reads differ at %d", i)
		}
	}

	// Mutating the returned copy must not touch channel state.
	first[0] = 999
	third, _ := it.Read("x")
	if third[0] == 999 {
		t.Error("Read returned internal storage")
	}
}

func TestReadIntoZeroAllocs(t *testing.T) {
	it := New()
	if err := it.AddChannel("fft", 128, 0.2); err != nil {
		t.Fatal(err)
	}
	dst := make([]float32, 128)
	allocs := testing.AllocsPerRun(100, func() {
		if err := it.ReadInto("fft", dst); err != nil {
			t.Fatal(err)
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ReadInto, got %.1f", allocs)
	}
}
