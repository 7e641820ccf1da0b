package selector

import (
	"math/rand/v2"
	"testing"

	"djladder/internal/catalog"
	"djladder/internal/ladder"
)

type fakeProgress struct {
	cleared map[string]bool
	shown   map[string]map[[2]string]bool
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{cleared: map[string]bool{}, shown: map[string]map[[2]string]bool{}}
}

func clearedKey(song string, mode ladder.Mode, pattern string) string {
	return song + "|" + string(mode) + "|" + pattern
}

func shownKey(mode ladder.Mode, level float64) string {
	return string(mode) + "|" + ladder.Format(level)
}

func (f *fakeProgress) IsCleared(song string, mode ladder.Mode, pattern string) bool {
	return f.cleared[clearedKey(song, mode, pattern)]
}

func (f *fakeProgress) IsShown(mode ladder.Mode, level float64, song, pattern string) bool {
	return f.shown[shownKey(mode, level)][[2]string{song, pattern}]
}

func (f *fakeProgress) ShownCount(mode ladder.Mode, level float64) int {
	return len(f.shown[shownKey(mode, level)])
}

func (f *fakeProgress) markShown(mode ladder.Mode, level float64, song, pattern string) {
	k := shownKey(mode, level)
	if f.shown[k] == nil {
		f.shown[k] = map[[2]string]bool{}
	}
	f.shown[k][[2]string{song, pattern}] = true
}

func testSongs() []catalog.Song {
	return []catalog.Song{
		{Name: "Kamui", Patterns: map[ladder.Mode][]catalog.Pattern{
			ladder.Mode4B: {{Label: "NM", Floor: 8.1}, {Label: "SC", Floor: 13.1}},
			ladder.Mode5B: {{Label: "HD", Floor: 8.1}},
		}},
		{Name: "Oblivion", Patterns: map[ladder.Mode][]catalog.Pattern{
			ladder.Mode4B: {{Label: "HD", Floor: 8.1}, {Label: "MX", Floor: 8.2}},
		}},
		{Name: "Ladymade Star", Patterns: map[ladder.Mode][]catalog.Pattern{
			ladder.Mode4B: {{Label: "MX", Floor: 8.1000001}},
		}},
	}
}

func seeded() *Selector {
	return New(rand.New(rand.NewPCG(1, 2)))
}

func TestSelectNoSongsForEveryEmptyLevel(t *testing.T) {
	sel := seeded()
	p := newFakeProgress()
	for _, level := range ladder.Levels() {
		if len(Bucket(testSongs(), ladder.Mode6B, level)) != 0 {
			t.Fatalf("fixture should have no 6B songs")
		}
		res := sel.Select(Request{Songs: testSongs(), Mode: ladder.Mode6B, Level: level}, p)
		if res.State != StateNoSongs {
			t.Fatalf("level %v: expected no songs, got %v", level, res.State)
		}
	}
}

func TestBucketMatchesFloorWithinTolerance(t *testing.T) {
	got := Bucket(testSongs(), ladder.Mode4B, 8.1)
	if len(got) != 3 {
		t.Fatalf("expected 3 patterns at 8.1, got %+v", got)
	}
	if got[2].Song != "Ladymade Star" {
		t.Fatalf("expected catalog order to be preserved, got %+v", got)
	}
}

func TestClearedSongNeverPicked(t *testing.T) {
	p := newFakeProgress()
	p.cleared[clearedKey("Kamui", ladder.Mode4B, "NM")] = true
	sel := seeded()
	for i := 0; i < 200; i++ {
		res := sel.Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.1}, p)
		if res.State != StatePicked {
			t.Fatalf("expected a pick, got %v", res.State)
		}
		if res.Candidate.Song == "Kamui" && res.Candidate.Pattern == "NM" {
			t.Fatalf("cleared pattern was picked")
		}
		if res.Total != 3 || res.Cleared != 1 || res.Remaining != 2 {
			t.Fatalf("unexpected counts %+v", res)
		}
	}
}

func TestAllClearedState(t *testing.T) {
	p := newFakeProgress()
	p.cleared[clearedKey("Oblivion", ladder.Mode4B, "MX")] = true
	res := seeded().Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.2}, p)
	if res.State != StateAllCleared {
		t.Fatalf("expected all cleared, got %v", res.State)
	}
	if res.Remaining != 0 || res.Played != 0 {
		t.Fatalf("unexpected counts %+v", res)
	}
}

func TestAllShownIsDeterministic(t *testing.T) {
	p := newFakeProgress()
	for _, c := range Bucket(testSongs(), ladder.Mode4B, 8.1) {
		p.markShown(ladder.Mode4B, 8.1, c.Song, c.Pattern)
	}
	sel := New(nil)
	for i := 0; i < 50; i++ {
		res := sel.Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.1}, p)
		if res.State != StateAllShown {
			t.Fatalf("expected all shown, got %v", res.State)
		}
		if res.Played != 3 || res.Remaining != 3 {
			t.Fatalf("unexpected counts %+v", res)
		}
	}
}

func TestShownOnlyNarrowsTheDraw(t *testing.T) {
	p := newFakeProgress()
	p.markShown(ladder.Mode4B, 8.1, "Kamui", "NM")
	p.markShown(ladder.Mode4B, 8.1, "Oblivion", "HD")
	sel := seeded()
	for i := 0; i < 50; i++ {
		res := sel.Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.1}, p)
		if res.Candidate.Song != "Ladymade Star" {
			t.Fatalf("expected the only unshown pattern, got %+v", res.Candidate)
		}
		if res.Unplayed != 1 || res.Played != 2 {
			t.Fatalf("unexpected counts %+v", res)
		}
	}
}

func TestPlayedIsCappedAtRemaining(t *testing.T) {
	p := newFakeProgress()
	p.markShown(ladder.Mode4B, 8.2, "Oblivion", "MX")
	p.markShown(ladder.Mode4B, 8.2, "Ghost", "NM")
	res := seeded().Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.2}, p)
	if res.State != StateAllShown || res.Played != 1 {
		t.Fatalf("expected played capped at 1, got %+v", res)
	}
}

func TestSelectDrawsEveryUnseenCandidate(t *testing.T) {
	p := newFakeProgress()
	sel := seeded()
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		res := sel.Select(Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.1}, p)
		seen[res.Candidate.Song+"/"+res.Candidate.Pattern] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all three candidates to be drawn eventually, got %v", seen)
	}
}

func TestCountMatchesSelectWithoutDrawing(t *testing.T) {
	p := newFakeProgress()
	p.cleared[clearedKey("Kamui", ladder.Mode4B, "NM")] = true
	p.markShown(ladder.Mode4B, 8.1, "Oblivion", "HD")
	req := Request{Songs: testSongs(), Mode: ladder.Mode4B, Level: 8.1}

	got := Count(req, p)
	if got.Total != 3 || got.Cleared != 1 || got.Remaining != 2 || got.Played != 1 || got.Unplayed != 1 {
		t.Fatalf("unexpected counts %+v", got)
	}
	if got.State != StatePicked || got.Candidate != (Candidate{}) {
		t.Fatalf("expected counts only, got %+v", got)
	}

	picked := seeded().Select(req, p)
	got.Candidate = picked.Candidate
	if got != picked {
		t.Fatalf("count %+v disagrees with select %+v", got, picked)
	}
}
