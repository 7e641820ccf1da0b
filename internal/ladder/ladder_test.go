package ladder

import (
	"errors"
	"testing"
)

func TestLadderShape(t *testing.T) {
	got := Levels()
	if len(got) != 47 {
		t.Fatalf("expected 47 ladder levels, got %d", len(got))
	}
	if got[0] != 1.1 || got[len(got)-1] != 16.2 {
		t.Fatalf("unexpected ladder ends: %v .. %v", got[0], got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("ladder not ascending at %d: %v <= %v", i, got[i], got[i-1])
		}
	}
	if Contains(16.3) {
		t.Fatalf("16.3 must not be on the ladder")
	}
}

func TestNextAndPrevStepOneRung(t *testing.T) {
	cases := []struct {
		level float64
		next  float64
		prev  float64
	}{
		{8.1, 8.2, 7.3},
		{8.3, 9.1, 8.2},
		{1.1, 1.2, 1.1},
		{16.2, 16.2, 16.1},
		{16.1, 16.2, 15.3},
	}
	for _, tc := range cases {
		if got := Next(tc.level); got != tc.next {
			t.Fatalf("Next(%v): got %v want %v", tc.level, got, tc.next)
		}
		if got := Prev(tc.level); got != tc.prev {
			t.Fatalf("Prev(%v): got %v want %v", tc.level, got, tc.prev)
		}
	}
}

func TestStepFromOffLadderLevelUsesNearestInDirection(t *testing.T) {
	if got := Step(8.15, true); got != 8.2 {
		t.Fatalf("expected 8.2, got %v", got)
	}
	if got := Step(8.15, false); got != 8.1 {
		t.Fatalf("expected 8.1, got %v", got)
	}
	if got := Step(0.5, false); got != Lowest() {
		t.Fatalf("expected clamp at bottom, got %v", got)
	}
	if got := Step(20, true); got != Highest() {
		t.Fatalf("expected clamp at top, got %v", got)
	}
}

func TestStepAlwaysLandsOnLadder(t *testing.T) {
	for _, l := range Levels() {
		for _, success := range []bool{true, false} {
			if got := Step(l, success); !Contains(got) {
				t.Fatalf("Step(%v,%v)=%v is off the ladder", l, success, got)
			}
		}
	}
}

func TestParseAndFormat(t *testing.T) {
	v, err := Parse("12.3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if Format(v) != "12.3" {
		t.Fatalf("format round trip: %q", Format(v))
	}
	if _, err := Parse("12.4"); !errors.Is(err, ErrNotOnLadder) {
		t.Fatalf("expected ErrNotOnLadder, got %v", err)
	}
	if _, err := Parse("abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" 6b ")
	if err != nil || m != Mode6B {
		t.Fatalf("expected 6B, got %q (%v)", m, err)
	}
	if _, err := ParseMode("7B"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(9.2000001); got != 9.2 {
		t.Fatalf("expected snap to 9.2, got %v", got)
	}
	if got := Normalize(42); got != DefaultLevel {
		t.Fatalf("expected default level, got %v", got)
	}
}
