package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"djladder/internal/catalog"

	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "djladder"
	configFileName = "config.yaml"
	logFileName    = "djladder.log"
	envPrefix      = "DJLADDER_"
)

// Config controls runtime behavior for the app.
type Config struct {
	DataDir             string        `yaml:"data_dir" env:"DATA_DIR"`
	LogPath             string        `yaml:"log_path" env:"LOG_PATH"`
	Debug               bool          `yaml:"debug" env:"DEBUG"`
	SongsURL            string        `yaml:"songs_url" env:"SONGS_URL"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	CacheTTL            time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	UpdateCheckInterval time.Duration `yaml:"update_check_interval" env:"UPDATE_CHECK_INTERVAL"`
	StaleAfter          time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
	UI                  UIConfig      `yaml:"ui" envPrefix:"UI_"`
}

type UIConfig struct {
	StyleVariant string `yaml:"style_variant" env:"STYLE_VARIANT"`
	ASCIIOnly    bool   `yaml:"ascii" env:"ASCII"`
}

func DefaultConfig() Config {
	return Config{
		SongsURL:            catalog.DefaultURL,
		FetchTimeout:        catalog.DefaultFetchTimeout,
		CacheTTL:            catalog.DefaultTTL,
		UpdateCheckInterval: catalog.DefaultCheckInterval,
		StaleAfter:          catalog.DefaultStaleAfter,
		UI: UIConfig{
			StyleVariant: "modern_arcade",
		},
	}
}

// LoadConfig layers config.yaml from the data dir and DJLADDER_* environment
// variables over the defaults, then validates the result. The data dir itself
// may only come from the environment since it decides where the file lives.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.resolveDataDir(); err != nil {
		return Config{}, err
	}

	b, err := os.ReadFile(filepath.Join(cfg.DataDir, configFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		dataDir := cfg.DataDir
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configFileName, err)
		}
		cfg.DataDir = dataDir
		// Environment wins over the file.
		if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
			return Config{}, fmt.Errorf("parse environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.UI.StyleVariant {
	case "", "modern_arcade", "cozy_clean", "retro_terminal":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "modern_arcade"
	}

	c.SongsURL = strings.TrimSpace(c.SongsURL)
	if c.SongsURL == "" {
		c.SongsURL = catalog.DefaultURL
	}
	if !strings.HasPrefix(c.SongsURL, "http://") && !strings.HasPrefix(c.SongsURL, "https://") {
		return fmt.Errorf("invalid songs url %q", c.SongsURL)
	}

	for _, d := range []struct {
		name string
		v    *time.Duration
		def  time.Duration
	}{
		{"fetch_timeout", &c.FetchTimeout, catalog.DefaultFetchTimeout},
		{"cache_ttl", &c.CacheTTL, catalog.DefaultTTL},
		{"update_check_interval", &c.UpdateCheckInterval, catalog.DefaultCheckInterval},
		{"stale_after", &c.StaleAfter, catalog.DefaultStaleAfter},
	} {
		if *d.v < 0 {
			return fmt.Errorf("invalid %s %s", d.name, *d.v)
		}
		if *d.v == 0 {
			*d.v = d.def
		}
	}

	if err := c.resolveDataDir(); err != nil {
		return err
	}
	// The UI owns the terminal, so its log always goes to a file.
	if strings.TrimSpace(c.LogPath) == "" {
		c.LogPath = filepath.Join(c.DataDir, logFileName)
	}
	return nil
}

func (c *Config) resolveDataDir() error {
	if c.DataDir != "" {
		return nil
	}
	dir, err := gap.NewScope(gap.User, appName).DataPath("")
	if err != nil || dir == "" {
		return errors.New("cannot resolve user data directory")
	}
	c.DataDir = dir
	return nil
}

func (c Config) CachePath() string   { return filepath.Join(c.DataDir, "songs.json") }
func (c Config) HistoryPath() string { return filepath.Join(c.DataDir, "history.db") }
