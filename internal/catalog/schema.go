package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"djladder/internal/ladder"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoCache  = errors.New("no local song data")
	ErrNotArray = errors.New("song data must be a JSON array")
)

// excludedFields are dropped from every record before it is cached locally.
var excludedFields = []string{"title", "composer", "dlcCode", "dlc", "rating", "level"}

type Song struct {
	Name     string
	Patterns map[ladder.Mode][]Pattern
}

// Pattern is one difficulty variant of a song within a mode.
type Pattern struct {
	Label string
	Floor float64
}

// ParseStats reports how many records were accepted and skipped.
type ParseStats struct {
	Songs   int
	Skipped int
}

// NormalizeName trims and NFC-normalises a song name so the same title
// always produces the same progress keys.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Parse decodes a song array. Records without a string name or an object of
// patterns are skipped rather than failing the whole document, and patterns
// without a numeric floor are ignored.
func Parse(data []byte) ([]Song, ParseStats, error) {
	var stats ParseStats
	if !gjson.ValidBytes(data) {
		return nil, stats, fmt.Errorf("parse songs: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, stats, ErrNotArray
	}

	songs := make([]Song, 0, 512)
	root.ForEach(func(_, rec gjson.Result) bool {
		song, ok := parseSong(rec)
		if !ok {
			stats.Skipped++
			return true
		}
		songs = append(songs, song)
		return true
	})
	stats.Songs = len(songs)
	return songs, stats, nil
}

func parseSong(rec gjson.Result) (Song, bool) {
	if !rec.IsObject() {
		return Song{}, false
	}
	name := rec.Get("name")
	if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
		return Song{}, false
	}
	patterns := rec.Get("patterns")
	if !patterns.IsObject() {
		return Song{}, false
	}

	song := Song{Name: NormalizeName(name.String()), Patterns: map[ladder.Mode][]Pattern{}}
	patterns.ForEach(func(modeKey, byLabel gjson.Result) bool {
		mode, err := ladder.ParseMode(modeKey.String())
		if err != nil || !byLabel.IsObject() {
			return true
		}
		byLabel.ForEach(func(label, info gjson.Result) bool {
			floor := info.Get("floor")
			if !info.IsObject() || floor.Type != gjson.Number {
				return true
			}
			song.Patterns[mode] = append(song.Patterns[mode], Pattern{
				Label: strings.TrimSpace(label.String()),
				Floor: floor.Float(),
			})
			return true
		})
		return true
	})
	return song, true
}

// Filter strips excludedFields from every record of a raw song array and
// returns the indented result along with the record count.
func Filter(data []byte) ([]byte, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("filter songs: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, 0, ErrNotArray
	}

	var (
		buf     bytes.Buffer
		count   int
		loopErr error
	)
	buf.WriteByte('[')
	root.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			return true
		}
		raw := rec.Raw
		for _, field := range excludedFields {
			if !rec.Get(field).Exists() {
				continue
			}
			raw, loopErr = sjson.Delete(raw, field)
			if loopErr != nil {
				loopErr = fmt.Errorf("strip %s: %w", field, loopErr)
				return false
			}
		}
		if count > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(raw)
		count++
		return true
	})
	if loopErr != nil {
		return nil, 0, loopErr
	}
	buf.WriteByte(']')
	return pretty.Pretty(buf.Bytes()), count, nil
}
