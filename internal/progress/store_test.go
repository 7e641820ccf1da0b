package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"djladder/internal/ladder"

	"github.com/google/go-cmp/cmp"
)

func TestOpenMissingFilesUsesDefaults(t *testing.T) {
	s := Open(t.TempDir(), nil)
	if len(s.ClearedKeys()) != 0 {
		t.Fatalf("expected empty cleared set")
	}
	if s.ShownCount(ladder.Mode4B, 8.1) != 0 {
		t.Fatalf("expected empty shown sets")
	}
	if diff := cmp.Diff(DefaultSettings(), s.Settings()); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenCorruptFilesFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{ClearedFile, ShownFile, SettingsFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := Open(dir, nil)
	if len(s.ClearedKeys()) != 0 || s.ShownCount(ladder.Mode4B, 8.1) != 0 {
		t.Fatalf("expected empty state from corrupt files")
	}
	if s.Settings().LastMode != ladder.DefaultMode {
		t.Fatalf("expected default mode")
	}
}

func TestLoadDropsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	cleared := `{"Kamui|4B|SC": true, "Off|4B|NM": false, "bad-key": true, "X|9B|NM": true, "Y|5B|HD": "yes"}`
	shown := `{"4B|8.1": [["Kamui","SC"], ["only-one"], 7, ["A","HD"]], "4B|8.4": [["Z","NM"]], "nonsense": []}`
	settings := `{"last_mode": "7B", "4B": 9.2, "5B": 99, "6B": "x"}`
	writeAll(t, dir, cleared, shown, settings)

	s := Open(dir, nil)
	if diff := cmp.Diff([]string{"Kamui|4B|SC"}, s.ClearedKeys()); diff != "" {
		t.Fatalf("cleared mismatch (-want +got):\n%s", diff)
	}
	if got := s.ShownCount(ladder.Mode4B, 8.1); got != 2 {
		t.Fatalf("expected 2 valid shown entries, got %d", got)
	}
	if !s.IsShown(ladder.Mode4B, 8.1, "A", "HD") {
		t.Fatalf("expected A/HD to be shown")
	}
	got := s.Settings()
	if got.LastMode != ladder.Mode4B {
		t.Fatalf("expected unknown last_mode to fall back to 4B, got %q", got.LastMode)
	}
	if got.Levels[ladder.Mode4B] != 9.2 || got.Levels[ladder.Mode5B] != ladder.DefaultLevel || got.Levels[ladder.Mode6B] != ladder.DefaultLevel {
		t.Fatalf("unexpected levels %+v", got.Levels)
	}
}

func TestClearedKeyKeepsSeparatorInSongName(t *testing.T) {
	dir := t.TempDir()
	writeAll(t, dir, `{"A|B|6B|MX": true}`, `{}`, `{}`)
	s := Open(dir, nil)
	if !s.IsCleared("A|B", ladder.Mode6B, "MX") {
		t.Fatalf("expected song name with separator to round trip")
	}
}

func TestLegacySettingsAreMigrated(t *testing.T) {
	dir := t.TempDir()
	writeAll(t, dir, `{}`, `{}`, `{"mode": "6B", "level": 10.3}`)
	s := Open(dir, nil)
	got := s.Settings()
	if got.LastMode != ladder.Mode6B || got.Levels[ladder.Mode6B] != 10.3 {
		t.Fatalf("expected migrated 6B@10.3, got %+v", got)
	}
	if got.Levels[ladder.Mode4B] != ladder.DefaultLevel {
		t.Fatalf("expected other modes at default, got %+v", got.Levels)
	}
}

func TestUnderscoreKeysAreMigrated(t *testing.T) {
	dir := t.TempDir()
	cleared := `{"Ready_Now_4B_SC": true, "Kamui|5B|HD": true}`
	shown := `{"4B_8.1": [["Kamui","NM"]], "4B|8.1": [["Oblivion","HD"]], "6B_8.4": [["X","NM"]]}`
	writeAll(t, dir, cleared, shown, `{}`)

	s := Open(dir, nil)
	if diff := cmp.Diff([]string{"Kamui|5B|HD", "Ready_Now|4B|SC"}, s.ClearedKeys()); diff != "" {
		t.Fatalf("cleared mismatch (-want +got):\n%s", diff)
	}
	if got := s.ShownCount(ladder.Mode4B, 8.1); got != 2 {
		t.Fatalf("expected both key forms merged into 4B|8.1, got %d", got)
	}
	if !s.IsShown(ladder.Mode4B, 8.1, "Kamui", "NM") {
		t.Fatalf("expected legacy shown entry to load")
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, ShownFile))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string][][2]string
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("decode shown: %v", err)
	}
	if _, ok := raw["4B_8.1"]; ok {
		t.Fatalf("expected legacy key rewritten, got %v", raw)
	}
	if len(raw["4B|8.1"]) != 2 {
		t.Fatalf("expected merged entries under 4B|8.1, got %v", raw)
	}
}

func TestToggleClearedTwiceRestoresSet(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, nil)
	if err := s.SetCleared("Kamui", ladder.Mode4B, "SC", true); err != nil {
		t.Fatalf("set cleared: %v", err)
	}
	before := s.ClearedKeys()

	for _, song := range []string{"Kamui", "Other"} {
		if _, err := s.ToggleCleared(song, ladder.Mode4B, "SC"); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if _, err := s.ToggleCleared(song, ladder.Mode4B, "SC"); err != nil {
			t.Fatalf("toggle back: %v", err)
		}
		if diff := cmp.Diff(before, s.ClearedKeys()); diff != "" {
			t.Fatalf("double toggle of %s changed set (-want +got):\n%s", song, diff)
		}
	}

	reopened := Open(dir, nil)
	if diff := cmp.Diff(before, reopened.ClearedKeys()); diff != "" {
		t.Fatalf("persisted set mismatch (-want +got):\n%s", diff)
	}
}

func TestSetClearedIsIdempotent(t *testing.T) {
	s := Open(t.TempDir(), nil)
	for i := 0; i < 3; i++ {
		if err := s.SetCleared("Kamui", ladder.Mode5B, "HD", true); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.ClearedKeys()) != 1 {
		t.Fatalf("expected a single cleared key, got %v", s.ClearedKeys())
	}
}

func TestMarkShownPersistsAndResetLeavesCleared(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, nil)
	if err := s.SetCleared("Kamui", ladder.Mode4B, "SC", true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.MarkShown(ladder.Mode4B, 8.1, "Kamui", "NM"); err != nil {
			t.Fatalf("mark shown: %v", err)
		}
	}
	if err := s.MarkShown(ladder.Mode4B, 8.1, "Other", "HD"); err != nil {
		t.Fatal(err)
	}

	reopened := Open(dir, nil)
	if got := reopened.ShownCount(ladder.Mode4B, 8.1); got != 2 {
		t.Fatalf("expected 2 distinct shown entries after reload, got %d", got)
	}

	b, err := os.ReadFile(filepath.Join(dir, ShownFile))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string][][]string
	if err := json.Unmarshal(b, &onDisk); err != nil {
		t.Fatalf("decode shown file: %v", err)
	}
	want := map[string][][]string{"4B|8.1": {{"Kamui", "NM"}, {"Other", "HD"}}}
	if diff := cmp.Diff(want, onDisk); diff != "" {
		t.Fatalf("shown file mismatch (-want +got):\n%s", diff)
	}

	if err := reopened.ResetShown(); err != nil {
		t.Fatalf("reset shown: %v", err)
	}
	if reopened.ShownCount(ladder.Mode4B, 8.1) != 0 {
		t.Fatalf("expected shown sets to be empty after reset")
	}
	if !reopened.IsCleared("Kamui", ladder.Mode4B, "SC") {
		t.Fatalf("reset of shown sets must not touch cleared set")
	}
}

func TestRememberPersistsSettings(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir, nil)
	if err := s.Remember(ladder.Mode8B, 12.2); err != nil {
		t.Fatalf("remember: %v", err)
	}
	reopened := Open(dir, nil)
	got := reopened.Settings()
	if got.LastMode != ladder.Mode8B || reopened.LevelFor(ladder.Mode8B) != 12.2 {
		t.Fatalf("unexpected settings after reload: %+v", got)
	}
	if reopened.LevelFor(ladder.Mode4B) != ladder.DefaultLevel {
		t.Fatalf("expected untouched modes to keep default level")
	}
}

func TestSaveFailureIsReportedNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(filepath.Join(blocker, "sub"), nil)
	if err := s.MarkShown(ladder.Mode4B, 8.1, "A", "NM"); err == nil {
		t.Fatalf("expected save error when data dir is unusable")
	}
	if !s.IsShown(ladder.Mode4B, 8.1, "A", "NM") {
		t.Fatalf("in-memory state must survive a failed save")
	}
}

func writeAll(t *testing.T, dir, cleared, shown, settings string) {
	t.Helper()
	files := map[string]string{ClearedFile: cleared, ShownFile: shown, SettingsFile: settings}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
