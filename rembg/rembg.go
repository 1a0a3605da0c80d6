// Package rembg wraps the pretrained background removal models the tool
// delegates to. Every backend takes encoded image bytes and returns PNG bytes
// with the background made transparent.
package rembg

import (
	"context"
	"fmt"
	"os"

	"github.com/chaos-io/bgeraser/config"
)

type Remover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
}

// New builds the backend selected in s, wrapped by the preprocessor.
func New(s *config.Settings) (Remover, error) {
	var r Remover

	switch s.Backend {
	case config.BackendRembg:
		r = NewServerRemBG(s.Rembg)
	case config.BackendComfyUI:
		var workflow []byte
		if s.ComfyUI.Workflow != "" {
			data, err := os.ReadFile(s.ComfyUI.Workflow)
			if err != nil {
				return nil, fmt.Errorf("read workflow: %w", err)
			}
			workflow = data
		}
		b, err := NewBiRefNetRemBG(s.ComfyUI, workflow)
		if err != nil {
			return nil, err
		}
		r = b
	case config.BackendCommand:
		r = NewCommandRemBG(s.Command)
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}

	return NewPreprocessor(r, s.Preprocess), nil
}
