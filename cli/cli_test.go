package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgeraser/config"
	"github.com/chaos-io/bgeraser/eraser"
)

// catConfig writes a config whose backend copies the input unchanged.
func catConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "backend: command\ncommand:\n  path: sh\n  args: [\"-c\", \"cat\"]\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version", "--config", catConfig(t, ""))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bgeraser dev"), out)
}

func TestSetup_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("backend: magic\n"), 0o644))

	_, err := execute(t, "version", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestBatchCmd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.png"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644))

	_, err := execute(t, "batch", in, "-o", out, "--config", catConfig(t, ""))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(out, "*", "a_without-bg.png"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	assert.FileExists(t, filepath.Join(filepath.Dir(matches[0]), eraser.OriginalsDir, "a.png"))
	assert.NoFileExists(t, filepath.Join(in, "a.png"))
	assert.FileExists(t, filepath.Join(in, "notes.txt"))
}

func TestProcessCmd_OutputFromConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	in, out := t.TempDir(), t.TempDir()
	img := filepath.Join(in, "cat.jpg")
	require.NoError(t, os.WriteFile(img, []byte("C"), 0o644))

	cfg := catConfig(t, "output_dir: "+out+"\n")
	_, err := execute(t, "process", img, filepath.Join(in, "missing.png"), "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")

	matches, err := filepath.Glob(filepath.Join(out, "*", "cat_without-bg.jpg"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestOutputDir(t *testing.T) {
	old := settings
	t.Cleanup(func() { settings = old })

	settings = config.Default()
	_, err := outputDir("")
	assert.ErrorIs(t, err, errNoOutput)

	dir, err := outputDir("/flag")
	require.NoError(t, err)
	assert.Equal(t, "/flag", dir)

	settings.OutputDir = "/configured"
	dir, err = outputDir("")
	require.NoError(t, err)
	assert.Equal(t, "/configured", dir)
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	printBatch(&buf, &eraser.BatchReport{
		Folder: "/out/18-10-2026_14-30-15",
		Results: []*eraser.Result{
			{Input: "/in/a.png", Output: "/out/18-10-2026_14-30-15/a_without-bg.png", Elapsed: 1500 * time.Millisecond},
		},
		Skipped: []string{"notes.txt"},
	})

	out := buf.String()
	assert.Contains(t, out, "/out/18-10-2026_14-30-15")
	assert.Contains(t, out, "a.png -> /out/18-10-2026_14-30-15/a_without-bg.png")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "1 done, 1 skipped")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf,
		[]*eraser.Result{{Input: "/in/a.png", Output: "/out/x/a_without-bg.png"}},
		[]error{errors.New("/in/b.png: model failed")},
	)

	out := buf.String()
	assert.Contains(t, out, "a_without-bg.png")
	assert.Contains(t, out, "model failed")
	assert.Contains(t, out, "1 done, 1 failed")
}
