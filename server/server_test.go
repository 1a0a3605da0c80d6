package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgeraser/eraser"
)

type fakeRemover struct {
	err error
}

func (f *fakeRemover) Remove(_ context.Context, data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("png:"), data...), nil
}

type countingRemover struct {
	calls int
}

func (f *countingRemover) Remove(_ context.Context, data []byte) ([]byte, error) {
	f.calls++
	return data, nil
}

// trackingReader counts the bytes read from r.
type trackingReader struct {
	r io.Reader
	n int64
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.n += int64(n)
	return n, err
}

type fakeProcessor struct {
	err       error
	gotInput  string
	gotOutput string
}

func (f *fakeProcessor) ProcessFile(_ context.Context, inputPath, outputDir string) (*eraser.Result, error) {
	f.gotInput, f.gotOutput = inputPath, outputDir
	if f.err != nil {
		return nil, f.err
	}
	return &eraser.Result{JobID: "job-1", Input: inputPath, Output: outputDir + "/x_without-bg.png"}, nil
}

func newTestServer(t *testing.T, r *fakeRemover, p *fakeProcessor) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(Config{
		MaxUploadMB: 1,
		OutputDir:   "/srv/out",
		Roots:       []string{"/in", "/out", "/srv/out"},
		Remover:     r,
		Processor:   p,
	})
	require.NoError(t, err)
	return s
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{Processor: &fakeProcessor{}})
	assert.Error(t, err)
	_, err = New(Config{Remover: &fakeRemover{}})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Preserved(t *testing.T) {
	s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "test-id-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "test-id-123", w.Header().Get(RequestIDHeader))
}

func TestRemoveImage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})
		body, ct := multipartBody(t, "cat.jpg", []byte("jpeg"))

		req := httptest.NewRequest(http.MethodPost, "/api/remove", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "cat_without-bg.jpg")
		assert.Equal(t, "png:jpeg", w.Body.String())
	})

	t.Run("no file", func(t *testing.T) {
		s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/remove", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, w).Error.Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})
		body, ct := multipartBody(t, "notes.txt", []byte("text"))

		req := httptest.NewRequest(http.MethodPost, "/api/remove", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, "UNSUPPORTED_TYPE", decodeError(t, w).Error.Code)
	})

	t.Run("too large", func(t *testing.T) {
		s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})
		body, ct := multipartBody(t, "big.png", bytes.Repeat([]byte{1}, 2<<20))

		req := httptest.NewRequest(http.MethodPost, "/api/remove", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("too large without content length", func(t *testing.T) {
		remover := &countingRemover{}
		gin.SetMode(gin.TestMode)
		s, err := New(Config{MaxUploadMB: 1, Remover: remover, Processor: &fakeProcessor{}})
		require.NoError(t, err)

		payload, ct := multipartBody(t, "big.png", bytes.Repeat([]byte{1}, 8<<20))
		body := &trackingReader{r: payload}
		req := httptest.NewRequest(http.MethodPost, "/api/remove", body)
		req.Header.Set("Content-Type", ct)
		req.ContentLength = -1
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.NotEqual(t, http.StatusOK, w.Code)
		assert.Zero(t, remover.calls)
		assert.Less(t, body.n, int64(2<<20), "upload must not be read past the limit")
	})

	t.Run("remover error", func(t *testing.T) {
		s := newTestServer(t, &fakeRemover{err: errors.New("model down")}, &fakeProcessor{})
		body, ct := multipartBody(t, "cat.png", []byte("png"))

		req := httptest.NewRequest(http.MethodPost, "/api/remove", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		res := decodeError(t, w)
		assert.Equal(t, "REMOVAL_FAILED", res.Error.Code)
		assert.Equal(t, w.Header().Get(RequestIDHeader), res.RequestID)
	})
}

func TestCreateJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		procErr    error
		wantStatus int
		wantCode   string
		wantOutput string
	}{
		{
			name:       "success",
			body:       `{"input_path":"/in/cat.png","output_dir":"/out"}`,
			wantStatus: http.StatusCreated,
			wantOutput: "/out",
		},
		{
			name:       "default output dir",
			body:       `{"input_path":"/in/cat.png"}`,
			wantStatus: http.StatusCreated,
			wantOutput: "/srv/out",
		},
		{
			name:       "input outside roots",
			body:       `{"input_path":"/etc/cat.png","output_dir":"/out"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN_PATH",
		},
		{
			name:       "output outside roots",
			body:       `{"input_path":"/in/cat.png","output_dir":"/tmp/elsewhere"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN_PATH",
		},
		{
			name:       "traversal out of a root",
			body:       `{"input_path":"/in/../etc/cat.png","output_dir":"/out"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN_PATH",
		},
		{
			name:       "missing input",
			body:       `{"output_dir":"/out"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unsupported",
			body:       `{"input_path":"/in/notes.txt"}`,
			procErr:    fmt.Errorf("notes.txt: %w", eraser.ErrUnsupported),
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "UNSUPPORTED_TYPE",
		},
		{
			name:       "not found",
			body:       `{"input_path":"/in/gone.png"}`,
			procErr:    fmt.Errorf("stat input: %w", fs.ErrNotExist),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "processing failed",
			body:       `{"input_path":"/in/cat.png"}`,
			procErr:    errors.New("model down"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "PROCESSING_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{err: tt.procErr}
			s := newTestServer(t, &fakeRemover{}, proc)

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
				return
			}

			var res eraser.Result
			require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
			assert.Equal(t, "job-1", res.JobID)
			assert.Equal(t, tt.wantOutput, proc.gotOutput)
		})
	}
}

func TestCreateJob_NoRootsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	proc := &fakeProcessor{}
	s, err := New(Config{Remover: &fakeRemover{}, Processor: proc})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs",
		strings.NewReader(`{"input_path":"/in/cat.png","output_dir":"/out"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "JOBS_DISABLED", decodeError(t, w).Error.Code)
	assert.Empty(t, proc.gotInput)
}

func TestCreateJob_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	gin.SetMode(gin.TestMode)

	root, outside := t.TempDir(), t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	proc := &fakeProcessor{}
	s, err := New(Config{Remover: &fakeRemover{}, Processor: proc, Roots: []string{root}})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"input_path":%q,"output_dir":%q}`,
		filepath.Join(root, "link", "cat.png"), filepath.Join(root, "out"))
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, proc.gotInput)
}

func TestWithinRoots(t *testing.T) {
	roots := []string{"/srv/in"}

	assert.True(t, withinRoots("/srv/in", roots))
	assert.True(t, withinRoots("/srv/in/a/cat.png", roots))
	assert.False(t, withinRoots("/srv/input/cat.png", roots))
	assert.False(t, withinRoots("/srv/cat.png", roots))
	assert.False(t, withinRoots("/srv/in/cat.png", nil))
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, &fakeRemover{}, &fakeProcessor{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
