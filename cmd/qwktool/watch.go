package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/dupes"
	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/qwk"
)

// PacketWatcher checks packets as they land in an inbound directory, and
// sweeps the directory on a cron schedule for anything it missed.
type PacketWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watcherDone chan struct{}
	cron        *cron.Cron

	dir       string
	reportDir string
	debounce  time.Duration
	opts      qwk.ReadOptions
	registry  *container.Registry
	// fingerprints, when set, flags messages redelivered in a later packet.
	fingerprints *dupes.DB

	timers map[string]*time.Timer
	seen   map[string]time.Time // path -> modification time last checked

	// onResult is called after each checked packet.
	onResult func(*CheckResult)
}

// NewPacketWatcher returns a watcher for dir. Call Start to begin.
func NewPacketWatcher(dir, reportDir string, debounce time.Duration, opts qwk.ReadOptions, reg *container.Registry) *PacketWatcher {
	return &PacketWatcher{
		dir:       dir,
		reportDir: reportDir,
		debounce:  debounce,
		opts:      opts,
		registry:  reg,
		timers:    make(map[string]*time.Timer),
		seen:      make(map[string]time.Time),
	}
}

// Start begins watching dir and, when schedule is non-empty, sweeping it
// on that cron schedule (with a seconds field).
func (pw *PacketWatcher) Start(schedule string) error {
	if pw.reportDir != "" {
		if err := os.MkdirAll(pw.reportDir, 0755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(pw.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", pw.dir, err)
	}

	if schedule != "" {
		c := cron.New(cron.WithSeconds())
		if _, err := c.AddFunc(schedule, pw.sweep); err != nil {
			watcher.Close()
			return fmt.Errorf("invalid rescan schedule %q: %w", schedule, err)
		}
		c.Start()
		pw.cron = c
		log.Printf("INFO: Rescanning %s on schedule %s", pw.dir, schedule)
	}

	pw.mu.Lock()
	pw.watcher = watcher
	pw.watcherDone = make(chan struct{})
	pw.mu.Unlock()

	log.Printf("INFO: Watching %s for inbound packets", pw.dir)
	go pw.watchLoop(watcher, pw.watcherDone)
	return nil
}

// Stop ends watching and waits for a running sweep to finish.
func (pw *PacketWatcher) Stop() {
	if pw.cron != nil {
		<-pw.cron.Stop().Done()
		pw.cron = nil
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()
	for path, t := range pw.timers {
		t.Stop()
		delete(pw.timers, path)
	}
	if pw.fingerprints != nil {
		if err := pw.fingerprints.Save(); err != nil {
			log.Printf("ERROR: Failed to save fingerprints: %v", err)
		}
	}
	if pw.watcher == nil {
		return
	}
	close(pw.watcherDone)
	pw.watcher.Close()
	pw.watcher = nil
	log.Printf("INFO: Packet watcher stopped")
}

func (pw *PacketWatcher) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				pw.schedule(event.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: Packet watcher error: %v", err)

		case <-done:
			return
		}
	}
}

// schedule debounces checks per path so a packet still being copied is
// checked once, after the writes stop.
func (pw *PacketWatcher) schedule(path string) {
	if !pw.isPacket(path) {
		return
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if t, ok := pw.timers[path]; ok {
		t.Stop()
	}
	pw.timers[path] = time.AfterFunc(pw.debounce, func() {
		pw.mu.Lock()
		delete(pw.timers, path)
		pw.mu.Unlock()
		pw.check(path)
	})
}

func (pw *PacketWatcher) isPacket(path string) bool {
	_, ok := pw.registry.Detect(filepath.Base(path), nil)
	return ok
}

// Rescan checks every packet in dir that is new or changed since it was
// last checked.
func (pw *PacketWatcher) Rescan() {
	entries, err := os.ReadDir(pw.dir)
	if err != nil {
		log.Printf("ERROR: Failed to scan %s: %v", pw.dir, err)
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(pw.dir, e.Name())
		if !pw.isPacket(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pw.mu.Lock()
		last, checked := pw.seen[path]
		pw.mu.Unlock()
		if checked && !info.ModTime().After(last) {
			continue
		}
		pw.check(path)
	}
}

// sweep is the scheduled job: rescan, then expire old fingerprints.
func (pw *PacketWatcher) sweep() {
	pw.Rescan()
	if pw.fingerprints != nil {
		if err := pw.fingerprints.Purge(); err != nil {
			log.Printf("ERROR: Failed to save fingerprints: %v", err)
		}
	}
}

// markRedelivered records every message fingerprint in res and counts
// those first seen in another packet.
func (pw *PacketWatcher) markRedelivered(path string, res *CheckResult) {
	name := filepath.Base(path)
	for _, m := range res.messages {
		first, dup := pw.fingerprints.Add(m.Fingerprint().String(), name)
		if !dup {
			continue
		}
		res.Redelivered++
		logging.Debug("%s: message %d at record %d was delivered in %s", name, m.Header.Number, m.Offset, first.Packet)
	}
	if res.Redelivered > 0 {
		log.Printf("WARN: %s: %d messages were already delivered in earlier packets", name, res.Redelivered)
	}
}

func (pw *PacketWatcher) check(path string) {
	info, err := os.Stat(path)
	if err != nil {
		logging.Debug("packet %s vanished before it was checked: %v", path, err)
		return
	}

	res, err := checkPacket(context.Background(), pw.registry, path, pw.opts)
	pw.mu.Lock()
	pw.seen[path] = info.ModTime()
	pw.mu.Unlock()
	if err != nil {
		log.Printf("ERROR: Failed to check %s: %v", path, err)
		return
	}

	if pw.fingerprints != nil {
		pw.markRedelivered(path, res)
	}

	s := res.Report.Summary()
	if res.Valid() {
		log.Printf("INFO: %s: valid %s packet, %d messages", filepath.Base(path), res.Kind, res.Messages)
	} else {
		log.Printf("WARN: %s: invalid %s packet, %d errors, %d warnings", filepath.Base(path), res.Kind, s.Errors, s.Warnings)
	}
	if pw.reportDir != "" {
		if err := pw.writeReport(path, res); err != nil {
			log.Printf("ERROR: Failed to write report for %s: %v", path, err)
		}
	}
	if pw.onResult != nil {
		pw.onResult(res)
	}
}

func (pw *PacketWatcher) writeReport(path string, res *CheckResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	name := filepath.Base(path) + ".report.json"
	return os.WriteFile(filepath.Join(pw.reportDir, name), b, 0644)
}

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Check packets as they arrive in an inbound directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Watch.Directory
		if len(args) == 1 {
			dir = args[0]
		}
		schedule := cfg.Watch.Rescan
		if cmd.Flags().Changed("rescan") {
			schedule, _ = cmd.Flags().GetString("rescan")
		}
		reportDir := cfg.Watch.ReportDir
		if cmd.Flags().Changed("reports") {
			reportDir, _ = cmd.Flags().GetString("reports")
		}

		opts, err := readOptions("")
		if err != nil {
			return err
		}
		fps, err := dupes.Open(cfg.Watch.Fingerprints, cfg.FingerprintMaxAge())
		if err != nil {
			return err
		}
		pw := NewPacketWatcher(dir, reportDir, cfg.Debounce(), opts, container.DefaultRegistry())
		pw.fingerprints = fps
		if err := pw.Start(schedule); err != nil {
			return err
		}
		pw.Rescan()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		pw.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("rescan", "", "cron schedule (with seconds) for directory sweeps; empty disables")
	watchCmd.Flags().String("reports", "", "directory for per-packet JSON reports")
}
