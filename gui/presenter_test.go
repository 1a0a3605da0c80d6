package gui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgeraser/eraser"
)

type fakeView struct {
	mu       sync.Mutex
	busy     []bool
	statuses []string
	errs     []error
	success  []string
}

func (v *fakeView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = append(v.busy, busy)
}

func (v *fakeView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, text)
}

func (v *fakeView) ShowError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, err)
}

func (v *fakeView) ShowSuccess(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.success = append(v.success, message)
}

// fakeProcessor blocks until release is closed when it is non-nil.
type fakeProcessor struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
}

func (p *fakeProcessor) ProcessFile(ctx context.Context, inputPath, outputDir string) (*eraser.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &eraser.Result{Input: inputPath, Output: outputDir + "/out.png"}, nil
}

func newTestPresenter(proc *fakeProcessor, view *fakeView) *Presenter {
	return NewPresenter(&PresenterConfig{Processor: proc, View: view})
}

func TestPresenter_MissingPaths(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
	}{
		{name: "both empty"},
		{name: "no output", input: "/tmp/a.png"},
		{name: "no input", output: "/tmp/out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			view := &fakeView{}
			p := newTestPresenter(proc, view)
			p.SetInput(tt.input)
			p.SetOutput(tt.output)

			err := p.Start()
			require.ErrorIs(t, err, ErrMissingPaths)

			p.Wait()
			assert.Equal(t, []error{ErrMissingPaths}, view.errs)
			assert.Empty(t, view.busy)
			assert.Zero(t, proc.calls)
			assert.False(t, p.Busy())
		})
	}
}

func TestPresenter_Success(t *testing.T) {
	proc := &fakeProcessor{}
	view := &fakeView{}
	p := newTestPresenter(proc, view)
	p.SetInput("/tmp/cat.png")
	p.SetOutput("/tmp/out")

	require.NoError(t, p.Start())
	p.Wait()

	assert.Equal(t, 1, proc.calls)
	assert.Equal(t, []bool{true, false}, view.busy)
	assert.Equal(t, []string{StatusProcessing, ""}, view.statuses)
	assert.Equal(t, []string{SuccessMessage}, view.success)
	assert.Empty(t, view.errs)
	assert.False(t, p.Busy())
}

func TestPresenter_Failure(t *testing.T) {
	modelErr := errors.New("model failed")
	proc := &fakeProcessor{err: modelErr}
	view := &fakeView{}
	p := newTestPresenter(proc, view)
	p.SetInput("/tmp/cat.png")
	p.SetOutput("/tmp/out")

	require.NoError(t, p.Start())
	p.Wait()

	require.Len(t, view.errs, 1)
	assert.ErrorIs(t, view.errs[0], modelErr)
	assert.Empty(t, view.success)
	assert.Equal(t, []bool{true, false}, view.busy)
	assert.Equal(t, []string{StatusProcessing, ""}, view.statuses)
	assert.False(t, p.Busy())
}

func TestPresenter_RefusesWhileBusy(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	view := &fakeView{}
	p := newTestPresenter(proc, view)
	p.SetInput("/tmp/cat.png")
	p.SetOutput("/tmp/out")

	require.NoError(t, p.Start())
	assert.True(t, p.Busy())
	assert.ErrorIs(t, p.Start(), ErrBusy)

	close(proc.release)
	p.Wait()

	assert.Equal(t, 1, proc.calls)
	assert.False(t, p.Busy())

	// a new job can start once the previous one finished
	require.NoError(t, p.Start())
	p.Wait()
	assert.Equal(t, 2, proc.calls)
}

func TestPresenter_RunOnUI(t *testing.T) {
	var queued []func()
	var mu sync.Mutex

	proc := &fakeProcessor{}
	view := &fakeView{}
	p := NewPresenter(&PresenterConfig{
		Processor: proc,
		View:      view,
		RunOnUI: func(f func()) {
			mu.Lock()
			defer mu.Unlock()
			queued = append(queued, f)
		},
	})
	p.SetInput("/tmp/cat.png")
	p.SetOutput("/tmp/out")

	require.NoError(t, p.Start())
	p.Wait()

	// nothing reaches the view until the UI thread runs the queued callback
	assert.Empty(t, view.success)
	assert.True(t, p.Busy())

	mu.Lock()
	require.Len(t, queued, 1)
	queued[0]()
	mu.Unlock()

	assert.Equal(t, []string{SuccessMessage}, view.success)
	assert.False(t, p.Busy())
}

func TestPresenter_CloseCancelsJob(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	view := &fakeView{}
	p := newTestPresenter(proc, view)
	p.SetInput("/tmp/cat.png")
	p.SetOutput("/tmp/out")

	require.NoError(t, p.Start())
	p.Close()
	p.Wait()

	require.Len(t, view.errs, 1)
	assert.ErrorIs(t, view.errs[0], context.Canceled)
}
