package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"djladder/internal/fsutil"
	"djladder/internal/ladder"

	"github.com/charmbracelet/log"
)

const (
	ClearedFile  = "cleared_songs.json"
	ShownFile    = "shown_songs.json"
	SettingsFile = "last_settings.json"

	keySep = "|"
	// Files written by older releases joined key parts with underscores.
	legacySep = "_"
)

type pair struct {
	song    string
	pattern string
}

// Settings holds the last used mode and the last level per mode.
type Settings struct {
	LastMode ladder.Mode
	Levels   map[ladder.Mode]float64
}

func DefaultSettings() Settings {
	s := Settings{LastMode: ladder.DefaultMode, Levels: map[ladder.Mode]float64{}}
	for _, m := range ladder.Modes() {
		s.Levels[m] = ladder.DefaultLevel
	}
	return s
}

func (s Settings) clone() Settings {
	out := Settings{LastMode: s.LastMode, Levels: make(map[ladder.Mode]float64, len(s.Levels))}
	for k, v := range s.Levels {
		out.Levels[k] = v
	}
	return out
}

// Store keeps the cleared set, the per-level shown sets and the last
// settings in memory and mirrors each into its own JSON file under dir.
type Store struct {
	dir    string
	logger *log.Logger

	mu       sync.Mutex
	cleared  map[string]struct{}
	shown    map[string]map[pair]struct{}
	settings Settings
}

// Open loads all three files. Missing or unreadable files, and entries that
// fail validation, fall back to empty or default state; Open never fails.
func Open(dir string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{dir: dir, logger: logger}
	s.cleared = s.loadCleared()
	s.shown = s.loadShown()
	s.settings = s.loadSettings()
	return s
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// ClearedKey builds the song|mode|pattern key of the cleared set.
func ClearedKey(song string, mode ladder.Mode, pattern string) string {
	return song + keySep + string(mode) + keySep + pattern
}

// ShownKey builds the mode|level key of the shown sets.
func ShownKey(mode ladder.Mode, level float64) string {
	return string(mode) + keySep + ladder.Format(level)
}

// parseClearedKey splits a cleared-set key, accepting the legacy
// song_mode_pattern form. legacy reports which form matched.
func parseClearedKey(key string) (song string, mode ladder.Mode, pattern string, legacy, ok bool) {
	if song, mode, pattern, ok = splitClearedKey(key, keySep); ok {
		return song, mode, pattern, false, true
	}
	song, mode, pattern, ok = splitClearedKey(key, legacySep)
	return song, mode, pattern, ok, ok
}

// splitClearedKey splits from the right so song names may contain sep.
func splitClearedKey(key, sep string) (song string, mode ladder.Mode, pattern string, ok bool) {
	i := strings.LastIndex(key, sep)
	if i <= 0 || i == len(key)-len(sep) {
		return "", "", "", false
	}
	pattern = key[i+len(sep):]
	rest := key[:i]
	j := strings.LastIndex(rest, sep)
	if j <= 0 {
		return "", "", "", false
	}
	m, err := ladder.ParseMode(rest[j+len(sep):])
	if err != nil {
		return "", "", "", false
	}
	return rest[:j], m, pattern, true
}

func parseShownKey(key string) (mode ladder.Mode, level float64, legacy, ok bool) {
	if mode, level, ok = splitShownKey(key, keySep); ok {
		return mode, level, false, true
	}
	mode, level, ok = splitShownKey(key, legacySep)
	return mode, level, ok, ok
}

func splitShownKey(key, sep string) (ladder.Mode, float64, bool) {
	modeRaw, levelRaw, found := strings.Cut(key, sep)
	if !found {
		return "", 0, false
	}
	m, err := ladder.ParseMode(modeRaw)
	if err != nil {
		return "", 0, false
	}
	level, err := ladder.Parse(levelRaw)
	if err != nil {
		return "", 0, false
	}
	return m, level, true
}

func (s *Store) readFile(name string) ([]byte, bool) {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("progress.read_failed", "file", name, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (s *Store) loadCleared() map[string]struct{} {
	out := map[string]struct{}{}
	b, ok := s.readFile(ClearedFile)
	if !ok {
		return out
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		s.logger.Warn("progress.cleared_corrupt", "err", err)
		return out
	}
	dropped, migrated := 0, 0
	for key, v := range raw {
		var set bool
		if err := json.Unmarshal(v, &set); err != nil || !set {
			dropped++
			continue
		}
		song, mode, pattern, legacy, ok := parseClearedKey(key)
		if !ok {
			dropped++
			continue
		}
		if legacy {
			migrated++
		}
		out[ClearedKey(song, mode, pattern)] = struct{}{}
	}
	if dropped > 0 {
		s.logger.Warn("progress.cleared_entries_dropped", "count", dropped)
	}
	if migrated > 0 {
		s.logger.Info("progress.cleared_migrated", "count", migrated)
	}
	return out
}

func (s *Store) loadShown() map[string]map[pair]struct{} {
	out := map[string]map[pair]struct{}{}
	b, ok := s.readFile(ShownFile)
	if !ok {
		return out
	}
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		s.logger.Warn("progress.shown_corrupt", "err", err)
		return out
	}
	dropped, migrated := 0, 0
	for key, entries := range raw {
		mode, level, legacy, ok := parseShownKey(key)
		if !ok {
			dropped += len(entries)
			continue
		}
		if legacy {
			migrated++
		}
		set := out[ShownKey(mode, level)]
		if set == nil {
			set = map[pair]struct{}{}
		}
		for _, e := range entries {
			var parts []string
			if err := json.Unmarshal(e, &parts); err != nil || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				dropped++
				continue
			}
			set[pair{song: parts[0], pattern: parts[1]}] = struct{}{}
		}
		if len(set) > 0 {
			out[ShownKey(mode, level)] = set
		}
	}
	if dropped > 0 {
		s.logger.Warn("progress.shown_entries_dropped", "count", dropped)
	}
	if migrated > 0 {
		s.logger.Info("progress.shown_migrated", "levels", migrated)
	}
	return out
}

func (s *Store) loadSettings() Settings {
	settings := DefaultSettings()
	b, ok := s.readFile(SettingsFile)
	if !ok {
		return settings
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		s.logger.Warn("progress.settings_corrupt", "err", err)
		return settings
	}

	// Older files stored a single {"mode": "4B", "level": 9.2} pair.
	if legacyMode, ok := raw["mode"]; ok {
		if legacyLevel, ok := raw["level"]; ok {
			var modeStr string
			var level float64
			if json.Unmarshal(legacyMode, &modeStr) == nil && json.Unmarshal(legacyLevel, &level) == nil {
				if m, err := ladder.ParseMode(modeStr); err == nil {
					settings.LastMode = m
					settings.Levels[m] = ladder.Normalize(level)
					s.logger.Info("progress.settings_migrated", "mode", m, "level", ladder.Format(settings.Levels[m]))
				}
			}
			return settings
		}
	}

	if v, ok := raw["last_mode"]; ok {
		var modeStr string
		if json.Unmarshal(v, &modeStr) == nil {
			if m, err := ladder.ParseMode(modeStr); err == nil {
				settings.LastMode = m
			}
		}
	}
	for _, m := range ladder.Modes() {
		v, ok := raw[string(m)]
		if !ok {
			continue
		}
		var level float64
		if err := json.Unmarshal(v, &level); err != nil {
			continue
		}
		settings.Levels[m] = ladder.Normalize(level)
	}
	return settings
}

func (s *Store) writeJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := fsutil.WriteFileAtomic(s.path(name), append(b, '\n'), 0o644); err != nil {
		s.logger.Error("progress.save_failed", "file", name, "err", err)
		return err
	}
	return nil
}

func (s *Store) saveCleared() error {
	out := make(map[string]bool, len(s.cleared))
	for k := range s.cleared {
		out[k] = true
	}
	return s.writeJSON(ClearedFile, out)
}

func (s *Store) saveShown() error {
	out := make(map[string][][2]string, len(s.shown))
	for key, set := range s.shown {
		pairs := make([][2]string, 0, len(set))
		for p := range set {
			pairs = append(pairs, [2]string{p.song, p.pattern})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		out[key] = pairs
	}
	return s.writeJSON(ShownFile, out)
}

func (s *Store) saveSettings() error {
	out := map[string]any{"last_mode": string(s.settings.LastMode)}
	for m, level := range s.settings.Levels {
		out[string(m)] = level
	}
	return s.writeJSON(SettingsFile, out)
}

func (s *Store) IsCleared(song string, mode ladder.Mode, pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cleared[ClearedKey(song, mode, pattern)]
	return ok
}

// SetCleared marks or unmarks a pattern and saves the cleared file. Setting a
// value that is already present is a no-op apart from the save.
func (s *Store) SetCleared(song string, mode ladder.Mode, pattern string, cleared bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ClearedKey(song, mode, pattern)
	if cleared {
		s.cleared[key] = struct{}{}
	} else {
		delete(s.cleared, key)
	}
	return s.saveCleared()
}

// ToggleCleared flips the cleared flag and returns the new value.
func (s *Store) ToggleCleared(song string, mode ladder.Mode, pattern string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ClearedKey(song, mode, pattern)
	_, was := s.cleared[key]
	if was {
		delete(s.cleared, key)
	} else {
		s.cleared[key] = struct{}{}
	}
	return !was, s.saveCleared()
}

func (s *Store) ResetCleared() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = map[string]struct{}{}
	return s.saveCleared()
}

// ClearedKeys returns the cleared set sorted.
func (s *Store) ClearedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.cleared))
	for k := range s.cleared {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) IsShown(mode ladder.Mode, level float64, song, pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.shown[ShownKey(mode, level)][pair{song: song, pattern: pattern}]
	return ok
}

func (s *Store) ShownCount(mode ladder.Mode, level float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown[ShownKey(mode, level)])
}

// MarkShown records an attempted pattern in its mode/level bucket and saves
// the shown file.
func (s *Store) MarkShown(mode ladder.Mode, level float64, song, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ShownKey(mode, level)
	set, ok := s.shown[key]
	if !ok {
		set = map[pair]struct{}{}
		s.shown[key] = set
	}
	set[pair{song: song, pattern: pattern}] = struct{}{}
	return s.saveShown()
}

// ResetShown empties every shown bucket. The cleared set is untouched.
func (s *Store) ResetShown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = map[string]map[pair]struct{}{}
	return s.saveShown()
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.clone()
}

// LevelFor returns the last level used in mode.
func (s *Store) LevelFor(mode ladder.Mode) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.settings.Levels[mode]; ok {
		return level
	}
	return ladder.DefaultLevel
}

// Remember makes mode the last used mode with level as its level and saves
// the settings file.
func (s *Store) Remember(mode ladder.Mode, level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.LastMode = mode
	s.settings.Levels[mode] = ladder.Normalize(level)
	return s.saveSettings()
}

// Flush writes settings and shown sets, as done at shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.saveSettings(), s.saveShown())
}
