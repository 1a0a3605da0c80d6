package gui

import (
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/chaos-io/bgeraser/eraser"
)

const (
	windowTitle  = "Background Eraser"
	windowWidth  = 600
	windowHeight = 200
)

// MainWindow is the application window.
type MainWindow struct {
	window    fyne.Window
	presenter *Presenter
	logger    *slog.Logger

	inputEntry  *widget.Entry
	outputEntry *widget.Entry
	inputBtn    *widget.Button
	outputBtn   *widget.Button
	processBtn  *widget.Button
	statusLabel *widget.Label
}

// MainWindowConfig holds configuration for MainWindow.
type MainWindowConfig struct {
	App       fyne.App
	Processor Processor
	// OutputDir pre-fills the output folder.
	OutputDir string
	Logger    *slog.Logger
}

// NewMainWindow creates the main window.
func NewMainWindow(cfg *MainWindowConfig) *MainWindow {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cfg.App.Settings().SetTheme(&darkTheme{Theme: theme.DefaultTheme()})

	w := &MainWindow{
		window: cfg.App.NewWindow(windowTitle),
		logger: cfg.Logger,
	}
	w.presenter = NewPresenter(&PresenterConfig{
		Processor: cfg.Processor,
		View:      w,
		RunOnUI:   fyne.Do,
		Logger:    cfg.Logger,
	})

	w.init()
	if cfg.OutputDir != "" {
		w.setOutput(cfg.OutputDir)
	}

	w.window.SetOnDropped(w.onDropped)
	w.window.SetOnClosed(func() {
		w.presenter.Close()
	})

	return w
}

func (w *MainWindow) init() {
	w.inputEntry = widget.NewEntry()
	w.inputEntry.SetPlaceHolder("Image (.png, .jpg, .jpeg)")
	w.inputEntry.Disable()
	w.inputBtn = widget.NewButtonWithIcon("Select", theme.FileImageIcon(), w.selectInput)

	w.outputEntry = widget.NewEntry()
	w.outputEntry.SetPlaceHolder("Output folder")
	w.outputEntry.Disable()
	w.outputBtn = widget.NewButtonWithIcon("Select", theme.FolderOpenIcon(), w.selectOutput)

	inputRow := container.NewBorder(nil, nil, widget.NewLabel("Input image:"), w.inputBtn, w.inputEntry)
	outputRow := container.NewBorder(nil, nil, widget.NewLabel("Output folder:"), w.outputBtn, w.outputEntry)

	w.processBtn = widget.NewButtonWithIcon("Remove Background", theme.ConfirmIcon(), w.startProcessing)
	w.processBtn.Importance = widget.HighImportance

	w.statusLabel = widget.NewLabel("")
	w.statusLabel.Alignment = fyne.TextAlignCenter

	content := container.NewVBox(
		inputRow,
		outputRow,
		container.NewHBox(layout.NewSpacer(), w.processBtn, layout.NewSpacer()),
		w.statusLabel,
	)

	w.window.SetContent(container.NewPadded(content))
	w.window.Resize(fyne.NewSize(windowWidth, windowHeight))
	w.window.SetFixedSize(true)
	w.window.CenterOnScreen()
}

// ShowAndRun displays the window and runs the application loop.
func (w *MainWindow) ShowAndRun() {
	w.window.ShowAndRun()
}

func (w *MainWindow) selectInput() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		w.setInput(reader.URI().Path())
	}, w.window)
	fd.SetFilter(storage.NewExtensionFileFilter(eraser.SupportedExts))
	fd.Show()
}

func (w *MainWindow) selectOutput() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, w.window)
			return
		}
		if uri == nil {
			return
		}
		w.setOutput(uri.Path())
	}, w.window)
}

func (w *MainWindow) onDropped(_ fyne.Position, uris []fyne.URI) {
	for _, uri := range uris {
		if uri.Scheme() == "file" && eraser.IsSupported(uri.Path()) {
			w.setInput(uri.Path())
			return
		}
	}
	dialog.ShowError(eraser.ErrUnsupported, w.window)
}

func (w *MainWindow) setInput(path string) {
	w.presenter.SetInput(path)
	w.inputEntry.SetText(path)
}

func (w *MainWindow) setOutput(dir string) {
	w.presenter.SetOutput(dir)
	w.outputEntry.SetText(dir)
}

func (w *MainWindow) startProcessing() {
	if err := w.presenter.Start(); err != nil {
		w.logger.Debug("processing not started", "error", err)
	}
}

// SetBusy implements View.
func (w *MainWindow) SetBusy(busy bool) {
	if busy {
		w.processBtn.Disable()
		w.inputBtn.Disable()
		w.outputBtn.Disable()
		return
	}
	w.processBtn.Enable()
	w.inputBtn.Enable()
	w.outputBtn.Enable()
}

// SetStatus implements View.
func (w *MainWindow) SetStatus(text string) {
	w.statusLabel.SetText(text)
}

// ShowError implements View.
func (w *MainWindow) ShowError(err error) {
	dialog.ShowError(err, w.window)
}

// ShowSuccess implements View.
func (w *MainWindow) ShowSuccess(message string) {
	dialog.ShowInformation("Success", message, w.window)
}

// darkTheme pins the default theme to its dark variant.
type darkTheme struct {
	fyne.Theme
}

func (t *darkTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(name, theme.VariantDark)
}
