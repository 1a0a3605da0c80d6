package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/chaos-io/bgeraser/eraser"
	"github.com/chaos-io/bgeraser/rembg"
	"github.com/chaos-io/bgeraser/storage"
)

var errNoOutput = errors.New("output folder is required: pass -o or set output_dir in the config")

// newEraser wires the configured backend and the optional archive.
func newEraser(ctx context.Context) (*eraser.Eraser, rembg.Remover, error) {
	remover, err := rembg.New(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("create remover: %w", err)
	}

	cfg := &eraser.Config{
		Remover: remover,
		Logger:  logger,
	}
	if settings.Archive.Enabled() {
		archiver, err := storage.NewMinIO(ctx, settings.Archive)
		if err != nil {
			return nil, nil, fmt.Errorf("create archive: %w", err)
		}
		cfg.Archiver = archiver
		cfg.ArchivePrefix = settings.Archive.Prefix
	}

	return eraser.New(cfg), remover, nil
}

func outputDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if settings != nil && settings.OutputDir != "" {
		return settings.OutputDir, nil
	}
	return "", errNoOutput
}
