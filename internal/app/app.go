package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"djladder/internal/catalog"
	"djladder/internal/ladder"
	"djladder/internal/progress"
	"djladder/internal/selector"
	"djladder/internal/state"
	"djladder/internal/telemetry"
	"djladder/internal/ui"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const storeTimeout = 5 * time.Second

type App struct {
	cfg Config

	logger   *telemetry.Logger
	catalog  Catalog
	progress *progress.Store
	history  History
	selector *selector.Selector
	view     ui.View

	sessionID string

	mu    sync.Mutex
	mode  ladder.Mode
	level float64
	sess  session
}

// deps are the collaborators New builds from Config; tests substitute their
// own.
type deps struct {
	logger   *telemetry.Logger
	catalog  Catalog
	progress *progress.Store
	history  History
	view     ui.View
	rng      *rand.Rand
}

func New(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.DataDir, logFileName)
	}
	sessionID := uuid.NewString()

	logger, err := telemetry.NewLogger(telemetry.Options{Path: cfg.LogPath, Debug: cfg.Debug, SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	store, err := OpenHistory(cfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	loader := NewCatalogLoader(cfg, logger.Logger)

	view := ui.New(ui.Options{
		ASCIIOnly:    cfg.UI.ASCIIOnly,
		Debug:        cfg.Debug,
		StyleVariant: cfg.UI.StyleVariant,
		Logger:       logger.Logger,
	})

	a := newApp(cfg, sessionID, deps{
		logger:   logger,
		catalog:  loader,
		progress: progress.Open(cfg.DataDir, logger.Logger),
		history:  store,
		view:     view,
	})
	return a, nil
}

// NewCatalogLoader builds the song cache loader described by cfg.
func NewCatalogLoader(cfg Config, logger *log.Logger) *catalog.Loader {
	return catalog.NewLoader(catalog.Options{
		URL:           cfg.SongsURL,
		CachePath:     cfg.CachePath(),
		Timeout:       cfg.FetchTimeout,
		TTL:           cfg.CacheTTL,
		CheckInterval: cfg.UpdateCheckInterval,
		StaleAfter:    cfg.StaleAfter,
		Logger:        logger,
	})
}

// OpenHistory opens the attempt history database and ensures its schema.
func OpenHistory(cfg Config) (*state.SQLiteStore, error) {
	store, err := state.NewSQLite(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newApp(cfg Config, sessionID string, d deps) *App {
	if d.logger == nil {
		d.logger = telemetry.Discard()
	}
	settings := d.progress.Settings()
	a := &App{
		cfg:       cfg,
		logger:    d.logger,
		catalog:   d.catalog,
		progress:  d.progress,
		history:   d.history,
		selector:  selector.New(d.rng),
		view:      d.view,
		sessionID: sessionID,
		mode:      settings.LastMode,
		level:     d.progress.LevelFor(settings.LastMode),
		sess:      session{message: msgPressStart},
	}
	if a.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if sum, err := a.history.GetSummary(ctx); err == nil {
			a.sess.lifetime = sum.Attempts
		} else {
			a.logger.Warn("history.summary_failed", "err", err)
		}
	}
	a.view.SetController(a)
	a.mu.Lock()
	a.pushLocked()
	a.mu.Unlock()
	return a
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", "data_dir", a.cfg.DataDir, "mode", a.mode, "level", ladder.Format(a.level))
	err := a.view.Run()
	if err != nil {
		a.logger.Error("ui.run_failed", "err", err)
	}
	return err
}

// Close persists settings and shown sets and releases the history database
// and log file. It is safe to call after OnQuit.
func (a *App) Close() {
	a.mu.Lock()
	a.flushLocked()
	a.mu.Unlock()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history.close_failed", "err", err)
		}
	}
	_ = a.logger.Close()
}

func (a *App) OnStart() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.view.SetFetching(true)
	n, err := a.catalog.Update(context.Background())
	a.view.SetFetching(false)
	if err != nil {
		a.logger.Warn("catalog.update_failed", "err", err, "fallback", "local cache")
		a.view.FlashStatus("Online update failed, using local song data")
	} else {
		a.view.FlashStatus(fmt.Sprintf("Song data updated: %d songs", n))
	}

	a.sess.started = true
	a.rememberLocked()
	a.logger.Info("ladder.start", "mode", a.mode, "level", ladder.Format(a.level))
	a.selectLocked()
	a.pushLocked()
}

func (a *App) OnSuccess() { a.reportOutcome(state.OutcomeSuccess) }
func (a *App) OnFail()    { a.reportOutcome(state.OutcomeFail) }

// reportOutcome marks the displayed pattern as shown, logs the attempt, steps
// the ladder and draws the next pattern.
func (a *App) reportOutcome(outcome state.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.sess.started {
		a.view.FlashStatus("Press enter to start first")
		return
	}

	if c := a.sess.current; c != nil {
		if err := a.progress.MarkShown(a.mode, a.level, c.Song, c.Pattern); err != nil {
			a.logger.Error("progress.mark_shown_failed", "err", err)
		}
		a.recordAttemptLocked(*c, outcome)
	}

	from := a.level
	a.level = ladder.Step(a.level, outcome == state.OutcomeSuccess)
	a.logger.Info("ladder.step", "outcome", outcome, "from", ladder.Format(from), "to", ladder.Format(a.level))
	a.rememberLocked()

	switch {
	case ladder.Equal(from, a.level) && outcome == state.OutcomeSuccess:
		a.view.FlashStatus("Success! Already at the top level " + ladder.Format(a.level))
	case ladder.Equal(from, a.level):
		a.view.FlashStatus("Fail. Already at the lowest level " + ladder.Format(a.level))
	case outcome == state.OutcomeSuccess:
		a.view.FlashStatus(fmt.Sprintf("Success! %s -> %s", ladder.Format(from), ladder.Format(a.level)))
	default:
		a.view.FlashStatus(fmt.Sprintf("Fail. %s -> %s", ladder.Format(from), ladder.Format(a.level)))
	}

	a.selectLocked()
	a.pushLocked()
}

func (a *App) recordAttemptLocked(c selector.Candidate, outcome state.Outcome) {
	if outcome == state.OutcomeSuccess {
		a.sess.successes++
	} else {
		a.sess.failures++
	}
	if a.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	_, err := a.history.RecordAttempt(ctx, state.Attempt{
		SessionID: a.sessionID,
		Mode:      string(a.mode),
		Level:     a.level,
		Song:      c.Song,
		Pattern:   c.Pattern,
		Outcome:   outcome,
	})
	if err != nil {
		a.logger.Error("history.record_failed", "err", err)
		return
	}
	a.sess.lifetime++
}

func (a *App) OnToggleClear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.sess.current
	if c == nil {
		a.view.FlashStatus("No song is displayed")
		return
	}
	cleared, err := a.progress.ToggleCleared(c.Song, a.mode, c.Pattern)
	if err != nil {
		a.logger.Error("progress.toggle_clear_failed", "err", err)
	}
	if cleared {
		a.view.FlashStatus("Marked cleared: " + c.Song)
	} else {
		a.view.FlashStatus("Unmarked: " + c.Song)
	}
	a.recountLocked()
	a.pushLocked()
}

func (a *App) OnResetClears() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.progress.ResetCleared(); err != nil {
		a.logger.Error("progress.reset_cleared_failed", "err", err)
	}
	a.logger.Info("progress.reset_cleared")
	a.view.FlashStatus("All clear marks were reset")
	if a.sess.started && a.sess.current == nil {
		a.selectLocked()
	} else {
		a.recountLocked()
	}
	a.pushLocked()
}

func (a *App) OnResetProgress() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.progress.ResetShown(); err != nil {
		a.logger.Error("progress.reset_shown_failed", "err", err)
	}
	a.logger.Info("progress.reset_shown")
	a.view.FlashStatus("All progress was reset")
	if a.sess.started {
		a.selectLocked()
	}
	a.pushLocked()
}

func (a *App) OnModeChanged(raw string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mode, err := ladder.ParseMode(raw)
	if err != nil {
		a.logger.Warn("ladder.mode_rejected", "mode", raw, "err", err)
		return
	}
	if mode == a.mode {
		return
	}
	a.mode = mode
	a.level = a.progress.LevelFor(mode)
	a.rememberLocked()
	a.logger.Info("ladder.mode_changed", "mode", mode, "level", ladder.Format(a.level))
	if a.sess.started {
		a.selectLocked()
	}
	a.pushLocked()
}

func (a *App) OnLevelChanged(level float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !ladder.Contains(level) {
		a.logger.Warn("ladder.level_rejected", "level", level)
		return
	}
	a.level = ladder.Normalize(level)
	a.rememberLocked()
	if a.sess.started {
		a.selectLocked()
	}
	a.pushLocked()
}

func (a *App) OnQuit() {
	a.mu.Lock()
	a.flushLocked()
	a.logger.Info("app.quit", "successes", a.sess.successes, "failures", a.sess.failures)
	a.mu.Unlock()
	a.view.Stop()
}

// selectLocked draws the next candidate for the current mode and level.
func (a *App) selectLocked() {
	a.sess.current = nil
	a.sess.last = selector.Result{}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout+storeTimeout)
	defer cancel()
	songs, err := a.catalog.Load(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNoCache) {
			a.sess.message = msgNoCache
		} else {
			a.sess.message = msgCatalogBroken
		}
		return
	}

	res := a.selector.Select(selector.Request{Songs: songs, Mode: a.mode, Level: a.level}, a.progress)
	a.sess.last = res
	a.sess.message = stateMessage(res.State)
	if res.State == selector.StatePicked {
		c := res.Candidate
		a.sess.current = &c
	}
	a.logger.Debug("selector.result", "state", res.State, "total", res.Total, "cleared", res.Cleared, "played", res.Played)
}

// recountLocked refreshes the played/remaining counts after the cleared set
// changed, keeping the displayed candidate.
func (a *App) recountLocked() {
	if !a.sess.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout+storeTimeout)
	defer cancel()
	songs, err := a.catalog.Load(ctx)
	if err != nil {
		return
	}
	res := selector.Count(selector.Request{Songs: songs, Mode: a.mode, Level: a.level}, a.progress)
	a.sess.last.Total = res.Total
	a.sess.last.Cleared = res.Cleared
	a.sess.last.Remaining = res.Remaining
	a.sess.last.Played = res.Played
	a.sess.last.Unplayed = res.Unplayed
}

func (a *App) rememberLocked() {
	if err := a.progress.Remember(a.mode, a.level); err != nil {
		a.logger.Error("progress.save_settings_failed", "err", err)
	}
}

func (a *App) flushLocked() {
	a.rememberLocked()
	if err := a.progress.Flush(); err != nil {
		a.logger.Error("progress.flush_failed", "err", err)
	}
}

func (a *App) pushLocked() {
	modes := ladder.Modes()
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, string(m))
	}

	s := ui.ScreenState{
		Modes:     names,
		Mode:      string(a.mode),
		Level:     a.level,
		Started:   a.sess.started,
		Message:   a.sess.message,
		Played:    a.sess.last.Played,
		Remaining: a.sess.last.Remaining,
		Session: ui.SessionStats{
			Successes: a.sess.successes,
			Failures:  a.sess.failures,
			Lifetime:  a.sess.lifetime,
		},
	}
	if c := a.sess.current; c != nil {
		s.Message = ""
		s.Candidate = &ui.CandidateRow{
			Song:    c.Song,
			Pattern: c.Pattern,
			Floor:   c.Floor,
			Cleared: a.progress.IsCleared(c.Song, a.mode, c.Pattern),
		}
	}
	if info := a.catalog.Info(); info.Exists {
		s.CatalogSongs = info.Songs
		s.CatalogUpdated = info.UpdatedAt
	}
	a.view.SetScreen(s)
}
