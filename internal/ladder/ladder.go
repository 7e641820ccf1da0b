package ladder

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tolerance is the slack used when comparing floors against ladder levels.
const Tolerance = 0.01

// DefaultLevel is the level every mode starts at when nothing was saved.
const DefaultLevel = 8.1

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrNotOnLadder = errors.New("level is not on the ladder")
)

type Mode string

const (
	Mode4B Mode = "4B"
	Mode5B Mode = "5B"
	Mode6B Mode = "6B"
	Mode8B Mode = "8B"
)

// DefaultMode is selected when no usable mode was persisted.
const DefaultMode = Mode4B

var modes = []Mode{Mode4B, Mode5B, Mode6B, Mode8B}

// Modes returns the supported modes in display order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, raw)
}

func (m Mode) Valid() bool {
	_, err := ParseMode(string(m))
	return err == nil
}

// levels is the fixed ascending ladder: three steps per integer level, the
// top integer level only has two.
var levels = buildLevels()

func buildLevels() []float64 {
	out := make([]float64, 0, 47)
	for major := 1; major <= 16; major++ {
		steps := 3
		if major == 16 {
			steps = 2
		}
		for minor := 1; minor <= steps; minor++ {
			out = append(out, float64(major*10+minor)/10)
		}
	}
	return out
}

// Levels returns a copy of the ladder in ascending order.
func Levels() []float64 {
	return append([]float64(nil), levels...)
}

func Lowest() float64  { return levels[0] }
func Highest() float64 { return levels[len(levels)-1] }

// Equal reports whether two levels match within Tolerance.
func Equal(a, b float64) bool {
	return math.Abs(a-b) < Tolerance
}

func Contains(level float64) bool {
	return Index(level) >= 0
}

// Index returns the ladder position of level, or -1.
func Index(level float64) int {
	for i, l := range levels {
		if Equal(l, level) {
			return i
		}
	}
	return -1
}

// Next returns the smallest ladder level strictly above level, clamping at
// the top of the ladder.
func Next(level float64) float64 {
	for _, l := range levels {
		if l > level && !Equal(l, level) {
			return l
		}
	}
	return Highest()
}

// Prev returns the largest ladder level strictly below level, clamping at
// the bottom of the ladder.
func Prev(level float64) float64 {
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i] < level && !Equal(levels[i], level) {
			return levels[i]
		}
	}
	return Lowest()
}

// Step moves one rung up on success and one rung down on failure.
func Step(level float64, success bool) float64 {
	if success {
		return Next(level)
	}
	return Prev(level)
}

func Format(level float64) string {
	return strconv.FormatFloat(level, 'f', 1, 64)
}

// Parse accepts only values that sit on the ladder and returns the
// canonical ladder value.
func Parse(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse level %q: %w", raw, err)
	}
	idx := Index(v)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotOnLadder, raw)
	}
	return levels[idx], nil
}

// Normalize snaps level onto the ladder, falling back to DefaultLevel.
func Normalize(level float64) float64 {
	if idx := Index(level); idx >= 0 {
		return levels[idx]
	}
	return DefaultLevel
}
