// Package watch processes images dropped into a folder.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/chaos-io/bgeraser/eraser"
)

const (
	debounceDefault = 200 * time.Millisecond
	pollDefault     = 5 * time.Second
)

// Processor processes one image into outputDir.
type Processor interface {
	ProcessFile(ctx context.Context, inputPath, outputDir string) (*eraser.Result, error)
}

// Config holds watcher configuration.
type Config struct {
	Dir       string // folder to watch, top level only
	OutputDir string
	Processor Processor

	PollMode     bool          // poll instead of fsnotify
	PollInterval time.Duration // default 5s
	Debounce     time.Duration // default 200ms
	Schedule     string        // optional cron spec for a full sweep

	// OnResult is called after every attempt, from the processing goroutine.
	OnResult func(path string, res *eraser.Result, err error)
	Logger   *slog.Logger
}

// Watcher feeds new images in a folder to a Processor, one at a time.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	failed map[string]time.Time // path -> mod time of the failed attempt
}

// New creates a watcher with validated configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("processor is required")
	}
	same, err := samePath(cfg.Dir, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if same {
		return nil, errors.New("output directory must differ from the watched directory")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounceDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		cfg:    cfg,
		logger: cfg.Logger.With("dir", cfg.Dir),
		failed: make(map[string]time.Time),
	}, nil
}

// Run processes the images already present, then keeps watching until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.cfg.Dir)
	}

	if w.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.cfg.Schedule, func() { w.Sweep(ctx) }); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
		c.Start()
		defer c.Stop()
		w.logger.Info("sweep scheduled", "schedule", w.cfg.Schedule)
	}

	if w.cfg.PollMode {
		return w.runPoll(ctx)
	}
	return w.runFS(ctx)
}

// Sweep processes every supported image currently in the folder and returns
// how many succeeded.
func (w *Watcher) Sweep(ctx context.Context) int {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Error("read watch dir", "error", err)
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !eraser.IsSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	done := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if w.process(ctx, filepath.Join(w.cfg.Dir, name)) {
			done++
		}
	}
	return done
}

func (w *Watcher) runFS(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	// files written before Add are picked up here, later ones by events
	w.Sweep(ctx)

	w.logger.Info("watching for new images", "mode", "fsnotify")

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		pending = make(map[string]*time.Timer)
	)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for path, t := range pending {
				if t.Stop() {
					wg.Done()
				}
				delete(pending, path)
			}
			mu.Unlock()
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !eraser.IsSupported(event.Name) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			var t *time.Timer
			t = time.AfterFunc(w.cfg.Debounce, func() {
				defer wg.Done()
				mu.Lock()
				if pending[path] == t {
					delete(pending, path)
				}
				mu.Unlock()
				w.process(ctx, path)
			})
			pending[path] = t
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) runPoll(ctx context.Context) error {
	w.Sweep(ctx)

	w.logger.Info("watching for new images", "mode", "poll", "interval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// process handles one file. Files that are gone, or that already failed and
// were not modified since, are skipped.
func (w *Watcher) process(ctx context.Context, path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.logger.Debug("file gone before processing", "file", filepath.Base(path))
		return false
	}
	if mod, ok := w.failed[path]; ok && mod.Equal(info.ModTime()) {
		return false
	}

	res, err := w.cfg.Processor.ProcessFile(ctx, path, w.cfg.OutputDir)
	if err != nil {
		w.failed[path] = info.ModTime()
		w.logger.Error("process image", "file", filepath.Base(path), "error", err)
	} else {
		delete(w.failed, path)
	}
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(path, res, err)
	}
	return err == nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
