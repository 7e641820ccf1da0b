package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"djladder/internal/fsutil"

	"github.com/charmbracelet/log"
)

const (
	DefaultURL           = "https://v-archive.net/db/songs.json"
	DefaultFetchTimeout  = 30 * time.Second
	DefaultTTL           = 5 * time.Minute
	DefaultCheckInterval = time.Hour
	DefaultStaleAfter    = 24 * time.Hour

	maxBodyBytes = 64 << 20
)

type Options struct {
	URL       string
	CachePath string
	// Timeout bounds a single fetch, including reading the body.
	Timeout time.Duration
	// TTL is how long the in-memory copy is trusted before re-reading the file.
	TTL time.Duration
	// CheckInterval throttles the automatic staleness check done by Load.
	CheckInterval time.Duration
	// StaleAfter is the cache file age that triggers an automatic refresh.
	StaleAfter time.Duration
	Client     *http.Client
	Logger     *log.Logger
	Now        func() time.Time
}

// Info describes the local cache file.
type Info struct {
	Path      string
	Songs     int
	UpdatedAt time.Time
	Exists    bool
}

type Loader struct {
	opts Options

	mu        sync.Mutex
	songs     []Song
	loadedAt  time.Time
	lastCheck time.Time

	// Song count of the cache file as of countMod, so Info parses each
	// version of the file at most once.
	count    int
	countMod time.Time
}

func NewLoader(opts Options) *Loader {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{opts: opts}
}

// Update downloads the song list, strips unused fields, writes the local
// cache and drops the in-memory copy. It returns the number of records written.
func (l *Loader) Update(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.update(ctx)
}

func (l *Loader) update(ctx context.Context) (int, error) {
	logger := l.opts.Logger
	logger.Info("catalog.fetch", "url", l.opts.URL)

	raw, err := l.fetch(ctx)
	if err != nil {
		logger.Error("catalog.fetch_failed", "url", l.opts.URL, "err", err)
		return 0, err
	}
	filtered, count, err := Filter(raw)
	if err != nil {
		logger.Error("catalog.filter_failed", "err", err)
		return 0, err
	}
	if err := fsutil.WriteFileAtomic(l.opts.CachePath, filtered, 0o644); err != nil {
		logger.Error("catalog.cache_write_failed", "path", l.opts.CachePath, "err", err)
		return 0, err
	}
	l.songs = nil
	l.loadedAt = time.Time{}
	logger.Info("catalog.updated", "songs", count, "path", l.opts.CachePath)
	return count, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch songs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch songs: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read songs: %w", err)
	}
	return body, nil
}

// Load returns the cached song list, re-reading the cache file once the
// in-memory copy is older than the TTL. At most once per CheckInterval it
// first refreshes a missing or stale cache from the network; that refresh is
// best-effort.
func (l *Loader) Load(ctx context.Context) ([]Song, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.Now()
	l.maybeAutoUpdate(ctx, now)

	if l.songs != nil && now.Sub(l.loadedAt) <= l.opts.TTL {
		return l.songs, nil
	}
	b, err := os.ReadFile(l.opts.CachePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCache
		}
		l.opts.Logger.Error("catalog.cache_read_failed", "path", l.opts.CachePath, "err", err)
		return nil, err
	}
	songs, stats, err := Parse(b)
	if err != nil {
		l.opts.Logger.Error("catalog.cache_parse_failed", "path", l.opts.CachePath, "err", err)
		return nil, err
	}
	if stats.Skipped > 0 {
		l.opts.Logger.Warn("catalog.records_skipped", "skipped", stats.Skipped)
	}
	l.songs = songs
	l.loadedAt = now
	l.opts.Logger.Debug("catalog.loaded", "songs", stats.Songs)
	return songs, nil
}

func (l *Loader) maybeAutoUpdate(ctx context.Context, now time.Time) {
	if !l.lastCheck.IsZero() && now.Sub(l.lastCheck) <= l.opts.CheckInterval {
		return
	}
	l.lastCheck = now

	st, err := os.Stat(l.opts.CachePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.opts.Logger.Info("catalog.auto_update", "reason", "missing")
	case err != nil:
		l.opts.Logger.Warn("catalog.auto_update_stat_failed", "err", err)
		return
	case now.Sub(st.ModTime()) > l.opts.StaleAfter:
		l.opts.Logger.Info("catalog.auto_update", "reason", "stale", "age", now.Sub(st.ModTime()).Round(time.Minute))
	default:
		return
	}
	_, _ = l.update(ctx)
}

// Info reports the state of the cache file without touching the network.
func (l *Loader) Info() Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	info := Info{Path: l.opts.CachePath}
	st, err := os.Stat(l.opts.CachePath)
	if err != nil {
		return info
	}
	info.Exists = true
	info.UpdatedAt = st.ModTime()
	if l.songs != nil {
		info.Songs = len(l.songs)
		return info
	}
	if !st.ModTime().Equal(l.countMod) {
		l.count = 0
		l.countMod = st.ModTime()
		if b, err := os.ReadFile(l.opts.CachePath); err == nil {
			if _, stats, err := Parse(b); err == nil {
				l.count = stats.Songs
			}
		}
	}
	info.Songs = l.count
	return info
}
