package ui

import "time"

type Controller interface {
	OnStart()
	OnSuccess()
	OnFail()
	OnToggleClear()
	OnResetClears()
	OnResetProgress()
	OnModeChanged(mode string)
	OnLevelChanged(level float64)
	OnQuit()
}

type View interface {
	Run() error
	Stop()
	SetController(Controller)
	SetScreen(state ScreenState)
	SetFetching(fetching bool)
	FlashStatus(msg string)
}

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutMedium
	LayoutTooSmall
)

// ScreenState is everything the ladder screen renders. The controller owns it
// and pushes a full copy after every change.
type ScreenState struct {
	Modes []string
	Mode  string
	Level float64
	// Started enables the outcome keys.
	Started bool

	Candidate *CandidateRow
	// Message replaces the candidate line when nothing could be picked.
	Message   string
	Played    int
	Remaining int

	CatalogSongs   int
	CatalogUpdated time.Time
	Session        SessionStats
}

type CandidateRow struct {
	Song    string
	Pattern string
	Floor   float64
	Cleared bool
}

type SessionStats struct {
	Successes int
	Failures  int
	// Lifetime counts every attempt in the history database.
	Lifetime int
}
