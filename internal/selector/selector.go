// Package selector picks the next song pattern to practise at a ladder level.
package selector

import (
	"math/rand/v2"

	"djladder/internal/catalog"
	"djladder/internal/ladder"
)

type State int

const (
	// StateNoSongs means no pattern in the catalog sits at the level.
	StateNoSongs State = iota
	// StateAllCleared means every pattern at the level is marked cleared.
	StateAllCleared
	// StateAllShown means every uncleared pattern was already attempted.
	StateAllShown
	StatePicked
)

func (s State) String() string {
	switch s {
	case StateNoSongs:
		return "no_songs"
	case StateAllCleared:
		return "all_cleared"
	case StateAllShown:
		return "all_shown"
	case StatePicked:
		return "picked"
	default:
		return "unknown"
	}
}

type Candidate struct {
	Song    string
	Pattern string
	Floor   float64
}

// Progress is the read-only view of clear and shown state the selector needs.
type Progress interface {
	IsCleared(song string, mode ladder.Mode, pattern string) bool
	IsShown(mode ladder.Mode, level float64, song, pattern string) bool
	ShownCount(mode ladder.Mode, level float64) int
}

type Request struct {
	Songs []catalog.Song
	Mode  ladder.Mode
	Level float64
}

type Result struct {
	State     State
	Candidate Candidate
	Total     int
	Cleared   int
	// Remaining is Total minus Cleared.
	Remaining int
	// Played is the shown count for the bucket, capped at Remaining.
	Played int
	// Unplayed is the number of candidates the pick was drawn from.
	Unplayed int
}

type Selector struct {
	rng *rand.Rand
}

func New(rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{rng: rng}
}

// Bucket returns every pattern of mode whose floor matches level, in
// catalog order.
func Bucket(songs []catalog.Song, mode ladder.Mode, level float64) []Candidate {
	out := make([]Candidate, 0)
	for _, song := range songs {
		for _, p := range song.Patterns[mode] {
			if ladder.Equal(p.Floor, level) {
				out = append(out, Candidate{Song: song.Name, Pattern: p.Label, Floor: p.Floor})
			}
		}
	}
	return out
}

// Select filters the bucket for req and draws one unseen, uncleared
// candidate uniformly at random. It never mutates progress.
func (s *Selector) Select(req Request, progress Progress) Result {
	res, unplayed := tally(req, progress)
	if res.State == StatePicked {
		res.Candidate = unplayed[s.rng.IntN(len(unplayed))]
	}
	return res
}

// Count returns the counts Select would report for req without drawing.
// For a bucket with unplayed patterns the state is StatePicked and
// Candidate is empty.
func Count(req Request, progress Progress) Result {
	res, _ := tally(req, progress)
	return res
}

func tally(req Request, progress Progress) (Result, []Candidate) {
	bucket := Bucket(req.Songs, req.Mode, req.Level)
	res := Result{Total: len(bucket)}
	if len(bucket) == 0 {
		res.State = StateNoSongs
		return res, nil
	}

	remaining := make([]Candidate, 0, len(bucket))
	for _, c := range bucket {
		if progress.IsCleared(c.Song, req.Mode, c.Pattern) {
			res.Cleared++
			continue
		}
		remaining = append(remaining, c)
	}
	res.Remaining = len(remaining)
	res.Played = min(progress.ShownCount(req.Mode, req.Level), res.Remaining)
	if len(remaining) == 0 {
		res.State = StateAllCleared
		return res, nil
	}

	unplayed := make([]Candidate, 0, len(remaining))
	for _, c := range remaining {
		if !progress.IsShown(req.Mode, req.Level, c.Song, c.Pattern) {
			unplayed = append(unplayed, c)
		}
	}
	res.Unplayed = len(unplayed)
	if len(unplayed) == 0 {
		res.State = StateAllShown
		return res, nil
	}
	res.State = StatePicked
	return res, unplayed
}
