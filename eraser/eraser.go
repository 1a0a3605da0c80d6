// Package eraser removes image backgrounds and organizes the results:
//
//	<output>/<DD-MM-YYYY_HH-MM-SS>/<name>_without-bg<ext>
//	<output>/<DD-MM-YYYY_HH-MM-SS>/originals/<name><ext>
package eraser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/bgeraser/rembg"
	"github.com/chaos-io/bgeraser/storage"
	"github.com/chaos-io/bgeraser/util"
)

// ErrUnsupported is returned for files whose extension is not in SupportedExts.
var ErrUnsupported = errors.New("unsupported image type")

// Result describes one processed image.
type Result struct {
	JobID    string        `json:"job_id"`
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	Original string        `json:"original"`
	Folder   string        `json:"folder"`
	Elapsed  time.Duration `json:"elapsed"`
}

// BatchReport describes one ProcessFolder run.
type BatchReport struct {
	Folder  string    `json:"folder"`
	Results []*Result `json:"results"`
	Skipped []string  `json:"skipped"`
}

// Config holds the dependencies of an Eraser.
type Config struct {
	Remover rembg.Remover
	// Archiver is optional; when set every output is uploaded after it was written.
	Archiver      storage.Archiver
	ArchivePrefix string
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

type Eraser struct {
	remover       rembg.Remover
	archiver      storage.Archiver
	archivePrefix string
	now           func() time.Time
	logger        *slog.Logger
}

func New(cfg *Config) *Eraser {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Eraser{
		remover:       cfg.Remover,
		archiver:      cfg.Archiver,
		archivePrefix: cfg.ArchivePrefix,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
}

// ProcessFile removes the background of one image into a new timestamp
// folder under outputDir and moves the original to its originals folder.
func (e *Eraser) ProcessFile(ctx context.Context, inputPath, outputDir string) (*Result, error) {
	if err := checkInput(inputPath); err != nil {
		return nil, err
	}

	folder, err := e.makeFolder(outputDir)
	if err != nil {
		return nil, err
	}

	return e.processInto(ctx, inputPath, folder)
}

// ProcessFolder processes every supported image directly inside inputDir
// into one timestamp folder. Other files and directories are skipped and
// listed in the report, directories with a trailing slash. The
// first failure stops the batch; the report holds what was done so far.
func (e *Eraser) ProcessFolder(ctx context.Context, inputDir, outputDir string) (*BatchReport, error) {
	defer util.Trace("process folder " + inputDir)()

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input folder: %w", err)
	}

	folder, err := e.makeFolder(outputDir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Folder: folder}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			report.Skipped = append(report.Skipped, entry.Name()+"/")
			continue
		}
		if !IsSupported(entry.Name()) {
			report.Skipped = append(report.Skipped, entry.Name())
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := e.processInto(ctx, filepath.Join(inputDir, name), folder)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
	}

	e.logger.Info("batch finished",
		"folder", folder,
		"processed", len(report.Results),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// RemoveBackground reads inputPath, runs the remover and writes the result
// to outputPath. Nothing is written when the remover fails.
func (e *Eraser) RemoveBackground(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, err := e.remover.Remove(ctx, data)
	if err != nil {
		return fmt.Errorf("remove background of %s: %w", filepath.Base(inputPath), err)
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// MoveOriginal moves inputPath into destDir/originals and returns its new path.
func MoveOriginal(inputPath, destDir string) (string, error) {
	originals := filepath.Join(destDir, OriginalsDir)
	if err := util.EnsureDir(originals); err != nil {
		return "", err
	}

	newPath := filepath.Join(originals, filepath.Base(inputPath))
	if err := util.MoveFile(inputPath, newPath); err != nil {
		return "", fmt.Errorf("move original: %w", err)
	}
	return newPath, nil
}

func (e *Eraser) makeFolder(outputDir string) (string, error) {
	folder := filepath.Join(outputDir, FolderName(e.now()))
	if err := util.EnsureDir(folder); err != nil {
		return "", err
	}
	return folder, nil
}

func (e *Eraser) processInto(ctx context.Context, inputPath, folder string) (*Result, error) {
	start := time.Now()
	res := &Result{
		JobID:  ksuid.New().String(),
		Input:  inputPath,
		Output: filepath.Join(folder, OutputName(inputPath)),
		Folder: folder,
	}
	logger := e.logger.With("job_id", res.JobID, "input", inputPath)

	if err := e.RemoveBackground(ctx, inputPath, res.Output); err != nil {
		logger.Error("background removal failed", "error", err)
		return nil, err
	}

	original, err := MoveOriginal(inputPath, folder)
	if err != nil {
		if rmErr := os.Remove(res.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("removing output failed", "output", res.Output, "error", rmErr)
		}
		logger.Error("moving original failed", "error", err)
		return nil, err
	}
	res.Original = original
	res.Elapsed = time.Since(start)

	e.archive(ctx, logger, res)

	logger.Info("background removed", "output", res.Output, "elapsed", res.Elapsed)
	return res, nil
}

func (e *Eraser) archive(ctx context.Context, logger *slog.Logger, res *Result) {
	if e.archiver == nil {
		return
	}
	key := storage.Key(e.archivePrefix, filepath.Base(res.Folder), filepath.Base(res.Output))
	if err := e.archiver.Archive(ctx, key, res.Output); err != nil {
		logger.Warn("archiving output failed", "key", key, "error", err)
		return
	}
	logger.Debug("output archived", "key", key)
}

func checkInput(inputPath string) error {
	if !IsSupported(inputPath) {
		return fmt.Errorf("%s: %w", filepath.Base(inputPath), ErrUnsupported)
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", inputPath)
	}
	return nil
}
