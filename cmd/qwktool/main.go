// Command qwktool checks, dumps and writes QWK mail packets and REP reply
// packets.
package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qwk/internal/config"
	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/qwk"
	"github.com/stlalpha/qwk/internal/validation"
)

var (
	configPath string
	debugFlag  bool

	cfg       = config.Default()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "qwktool",
	Short:         "Validate, dump and write QWK and REP packets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Printf("WARN: %v, using defaults", err)
		}
		cfg = loaded
		closer, err := logging.Setup(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
			Debug:      cfg.Log.Debug || debugFlag,
		})
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// readOptions builds reader options from the config, with mode overriding
// the configured validation mode when set.
func readOptions(mode string) (qwk.ReadOptions, error) {
	m, err := cfg.ValidationMode()
	if mode != "" {
		m, err = validation.ParseMode(mode)
	}
	if err != nil {
		return qwk.ReadOptions{}, err
	}
	text, err := cfg.TextCodec()
	if err != nil {
		return qwk.ReadOptions{}, err
	}
	return qwk.ReadOptions{Mode: m, Text: text, AutoDetect: cfg.AutoDetect}, nil
}

// isReplyPacket treats .REP files, and containers holding a *.MSG member
// but no CONTROL.DAT, as reply packets.
func isReplyPacket(path string, src container.Reader) bool {
	if strings.EqualFold(filepath.Ext(path), ".rep") {
		return true
	}
	if src.FileExists(qwk.ControlFile) {
		return false
	}
	for _, name := range src.ListFiles() {
		if strings.HasSuffix(strings.ToUpper(name), qwk.ReplyExt) {
			return true
		}
	}
	return false
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}
