// Package gui provides the desktop window. Presenter owns the processing
// flow and has no toolkit dependency; MainWindow renders it with Fyne.
package gui

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/chaos-io/bgeraser/eraser"
)

var (
	ErrMissingPaths = errors.New("select both an input image and an output folder")
	ErrBusy         = errors.New("processing is already running")
)

const (
	StatusProcessing = "Processing..."
	SuccessMessage   = "Background removed successfully!"
)

// Processor is the part of eraser.Eraser the window needs.
type Processor interface {
	ProcessFile(ctx context.Context, inputPath, outputDir string) (*eraser.Result, error)
}

// View is implemented by the window. Its methods are only called through the
// UI runner, i.e. on the UI thread.
type View interface {
	SetBusy(busy bool)
	SetStatus(text string)
	ShowError(err error)
	ShowSuccess(message string)
}

// PresenterConfig holds configuration for Presenter.
type PresenterConfig struct {
	Processor Processor
	View      View
	// RunOnUI marshals f onto the UI thread. Defaults to calling f directly.
	RunOnUI func(f func())
	Logger  *slog.Logger
}

// Presenter runs one ProcessFile at a time on a background goroutine and
// hands the outcome back to the view.
type Presenter struct {
	proc    Processor
	view    View
	runOnUI func(func())
	logger  *slog.Logger

	mu     sync.Mutex
	input  string
	output string
	busy   bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPresenter creates a new presenter.
func NewPresenter(cfg *PresenterConfig) *Presenter {
	if cfg.RunOnUI == nil {
		cfg.RunOnUI = func(f func()) { f() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Presenter{
		proc:    cfg.Processor,
		view:    cfg.View,
		runOnUI: cfg.RunOnUI,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetInput sets the image to process.
func (p *Presenter) SetInput(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = path
}

// SetOutput sets the folder results are written under.
func (p *Presenter) SetOutput(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = dir
}

// Paths returns the current input and output.
func (p *Presenter) Paths() (input, output string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input, p.output
}

// Busy reports whether a job is running.
func (p *Presenter) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Start validates the paths and starts processing in the background.
// Must be called on the UI thread.
func (p *Presenter) Start() error {
	p.mu.Lock()
	input, output := p.input, p.output
	if input == "" || output == "" {
		p.mu.Unlock()
		p.view.ShowError(ErrMissingPaths)
		return ErrMissingPaths
	}
	if p.busy {
		p.mu.Unlock()
		return ErrBusy
	}
	p.busy = true
	p.wg.Add(1)
	p.mu.Unlock()

	p.view.SetBusy(true)
	p.view.SetStatus(StatusProcessing)

	go p.run(input, output)
	return nil
}

func (p *Presenter) run(input, output string) {
	defer p.wg.Done()

	res, err := p.proc.ProcessFile(p.ctx, input, output)
	if err != nil {
		p.logger.Error("processing failed", "input", input, "error", err)
	} else {
		p.logger.Info("processing finished", "output", res.Output)
	}

	p.runOnUI(func() {
		if err != nil {
			p.view.ShowError(err)
		} else {
			p.view.ShowSuccess(SuccessMessage)
		}
		p.view.SetBusy(false)
		p.view.SetStatus("")

		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	})
}

// Wait blocks until the running job, if any, has returned.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

// Close cancels a running job.
func (p *Presenter) Close() {
	p.cancel()
}
