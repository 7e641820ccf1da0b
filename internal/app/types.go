package app

import (
	"djladder/internal/selector"
)

// session is the per-run controller state. It is only touched with App.mu
// held.
type session struct {
	started bool
	current *selector.Candidate
	last    selector.Result
	message string

	successes int
	failures  int
	lifetime  int
}

const (
	msgPressStart    = "Press enter to start."
	msgNoCache       = "No song data yet. Press enter to download it."
	msgCatalogBroken = "Song data could not be loaded. Press enter to download it again."
	msgNoSongs       = "No songs at this level."
	msgAllCleared    = "Every song at this level is cleared!"
	msgAllShown      = "Every song at this level has been played. Reset progress to go again."
)

func stateMessage(st selector.State) string {
	switch st {
	case selector.StateNoSongs:
		return msgNoSongs
	case selector.StateAllCleared:
		return msgAllCleared
	case selector.StateAllShown:
		return msgAllShown
	default:
		return ""
	}
}
