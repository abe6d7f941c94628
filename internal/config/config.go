// Package config loads qwktool settings from a JSON-with-comments file.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/stlalpha/qwk/internal/textcodec"
	"github.com/stlalpha/qwk/internal/validation"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "qwktool.jsonc"

// Config is the root qwktool configuration.
type Config struct {
	Mode       string      `json:"mode"`       // strict, lenient or salvage
	Charset    string      `json:"charset"`    // cp437, cp850, cp1252, latin1
	Fallback   string      `json:"fallback"`   // replace or error
	AutoDetect bool        `json:"autoDetect"` // accept CR/CRLF bodies
	Log        LogConfig   `json:"log"`
	Watch      WatchConfig `json:"watch"`
}

// LogConfig controls log output. An empty File logs to stderr only.
type LogConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMB"`
	MaxAgeDays int    `json:"maxAgeDays"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
	Debug      bool   `json:"debug"`
}

// WatchConfig controls `qwktool watch`.
type WatchConfig struct {
	Directory string `json:"directory"`
	// Rescan is a cron schedule with a seconds field for periodic sweeps
	// of the directory. Empty disables sweeping.
	Rescan     string `json:"rescan"`
	DebounceMs int    `json:"debounceMs"`
	// ReportDir receives one JSON report per checked packet. Empty means
	// reports are only logged.
	ReportDir string `json:"reportDir"`
	// Fingerprints is the file remembering message fingerprints across
	// packets. Empty keeps them in memory for the life of the process.
	Fingerprints       string `json:"fingerprints"`
	FingerprintMaxDays int    `json:"fingerprintMaxDays"`
}

// Default returns built-in defaults used when no config file is present.
func Default() Config {
	return Config{
		Mode:       "lenient",
		Charset:    "cp437",
		Fallback:   "replace",
		AutoDetect: true,
		Log: LogConfig{
			MaxSizeMB:  25,
			MaxAgeDays: 7,
			MaxBackups: 5,
		},
		Watch: WatchConfig{
			Directory:          "inbound",
			Rescan:             "0 */5 * * * *",
			DebounceMs:         500,
			FingerprintMaxDays: 30,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file
// is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultFile
	}
	log.Printf("INFO: Loading qwktool configuration from %s", path)

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("INFO: %s not found, using defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	log.Printf("INFO: Loaded qwktool configuration from %s (mode=%s, charset=%s)", path, cfg.Mode, cfg.Charset)
	return cfg, nil
}

// Normalise lower-cases enumerations and restores defaults for values that
// must be positive.
func (c *Config) Normalise() {
	def := Default()
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Charset = strings.ToLower(strings.TrimSpace(c.Charset))
	c.Fallback = strings.ToLower(strings.TrimSpace(c.Fallback))
	if c.Charset == "" {
		c.Charset = def.Charset
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = def.Log.MaxAgeDays
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = def.Log.MaxBackups
	}
	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = def.Watch.DebounceMs
	}
	if c.Watch.FingerprintMaxDays <= 0 {
		c.Watch.FingerprintMaxDays = def.Watch.FingerprintMaxDays
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := c.ValidationMode(); err != nil {
		return err
	}
	if _, err := c.TextCodec(); err != nil {
		return err
	}
	return nil
}

// ValidationMode returns the configured parser mode.
func (c *Config) ValidationMode() (validation.Mode, error) {
	return validation.ParseMode(c.Mode)
}

// TextCodec returns the configured body text codec.
func (c *Config) TextCodec() (*textcodec.Codec, error) {
	fb, err := textcodec.ParseFallback(c.Fallback)
	if err != nil {
		return nil, err
	}
	return textcodec.New(c.Charset, fb)
}

// FingerprintMaxAge returns how long cross-packet fingerprints are kept.
func (c *Config) FingerprintMaxAge() time.Duration {
	return time.Duration(c.Watch.FingerprintMaxDays) * 24 * time.Hour
}

// Debounce returns the watch debounce interval.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
