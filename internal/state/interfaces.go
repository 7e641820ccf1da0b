package state

import (
	"context"
	"time"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordAttempt(ctx context.Context, attempt Attempt) (int64, error)
	GetSummary(ctx context.Context) (Summary, error)
	GetLevelStats(ctx context.Context, mode string) ([]LevelStats, error)
	GetLastAttempt(ctx context.Context) (*Attempt, error)
	Close() error
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
)

// Attempt is one reported outcome for a displayed pattern.
type Attempt struct {
	SessionID string
	Mode      string
	Level     float64
	Song      string
	Pattern   string
	Outcome   Outcome
	TS        time.Time
}

type Summary struct {
	Sessions  int
	Attempts  int
	Successes int
	Failures  int
}

type LevelStats struct {
	Level     float64
	Attempts  int
	Successes int
}

// SuccessRate is Successes/Attempts, or 0 with no attempts.
func (s LevelStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}
