package rembg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chaos-io/bgeraser/config"
)

// CommandRemBG pipes the image through the rembg CLI:
//
//	rembg i -m u2net - - < in.jpg > out.png
type CommandRemBG struct {
	path string
	args []string
}

func NewCommandRemBG(cfg config.CommandConfig) *CommandRemBG {
	args := cfg.Args
	if len(args) == 0 {
		model := cfg.Model
		if model == "" {
			model = "u2net"
		}
		args = []string{"i", "-m", model, "-", "-"}
	}
	return &CommandRemBG{path: cfg.Path, args: args}
}

func (c *CommandRemBG) Remove(ctx context.Context, data []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", c.path, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", c.path, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("run %s: no output", c.path)
	}

	return stdout.Bytes(), nil
}
