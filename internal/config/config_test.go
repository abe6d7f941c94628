package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stlalpha/qwk/internal/validation"
)

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != "lenient" || cfg.Charset != "cp437" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", cfg.Debounce())
	}
}

func TestLoad_CommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qwktool.jsonc")
	data := `{
		// parse everything we can
		"mode": "Salvage",
		"charset": "CP850",
		"log": {
			"file": "qwk.log",
			"maxBackups": 2, /* keep two */
		},
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mode, err := cfg.ValidationMode()
	if err != nil || mode != validation.Salvage {
		t.Errorf("ValidationMode = %v, %v", mode, err)
	}
	codec, err := cfg.TextCodec()
	if err != nil {
		t.Fatal(err)
	}
	if codec.Name() != "cp850" {
		t.Errorf("codec = %q, want cp850", codec.Name())
	}
	if cfg.Log.File != "qwk.log" || cfg.Log.MaxBackups != 2 {
		t.Errorf("log = %+v", cfg.Log)
	}
	// unset values keep their defaults
	if cfg.Log.MaxSizeMB != 25 || !cfg.AutoDetect || cfg.Watch.Rescan == "" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{"mode": `},
		{"bad mode", `{"mode": "paranoid"}`},
		{"bad charset", `{"charset": "ebcdic"}`},
		{"bad fallback", `{"fallback": "guess"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "qwktool.jsonc")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if cfg.Mode != "lenient" {
				t.Errorf("config after error = %+v, want defaults", cfg)
			}
		})
	}
}

func TestNormalise(t *testing.T) {
	cfg := Config{Mode: " STRICT ", Watch: WatchConfig{DebounceMs: -1}}
	cfg.Normalise()
	if cfg.Mode != "strict" || cfg.Charset != "cp437" || cfg.Watch.DebounceMs != 500 {
		t.Errorf("Normalise = %+v", cfg)
	}
	if cfg.FingerprintMaxAge() != 30*24*time.Hour {
		t.Errorf("FingerprintMaxAge = %v, want 30 days", cfg.FingerprintMaxAge())
	}
}
