package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/bgeraser/eraser"
	"github.com/chaos-io/bgeraser/logging"
	"github.com/chaos-io/bgeraser/rembg"
)

// multipartOverhead is the room left for boundaries and part headers on top
// of the upload limit.
const multipartOverhead = 64 << 10

type jobRequest struct {
	InputPath string `json:"input_path" binding:"required"`
	OutputDir string `json:"output_dir"`
}

func registerRoutes(r *gin.Engine, s *Server) {
	r.GET("/healthz", Healthz())

	api := r.Group("/api")
	api.POST("/remove", RemoveImage(s.remover, s.maxUpload))
	api.POST("/jobs", CreateJob(s.processor, s.outputDir, s.roots))
}

// Healthz is a liveness probe.
func Healthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// RemoveImage removes the background of the uploaded `file` and responds
// with the PNG result.
//
//	curl -F file=@cat.jpg http://localhost:8080/api/remove -o cat.png
func RemoveImage(remover rembg.Remover, maxUpload int64) gin.HandlerFunc {
	tooLarge := func(c *gin.Context) {
		writeError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", maxUpload))
	}

	return func(c *gin.Context) {
		if maxUpload > 0 {
			limit := maxUpload + multipartOverhead
			if c.Request.ContentLength > limit {
				tooLarge(c)
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				tooLarge(c)
				return
			}
			writeError(c, http.StatusBadRequest, "FILE_REQUIRED", "multipart field 'file' is required")
			return
		}
		if !eraser.IsSupported(fh.Filename) {
			writeError(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
				fmt.Sprintf("supported extensions: %v", eraser.SupportedExts))
			return
		}
		if maxUpload > 0 && fh.Size > maxUpload {
			tooLarge(c)
			return
		}

		f, err := fh.Open()
		if err != nil {
			writeError(c, http.StatusBadRequest, "FILE_UNREADABLE", "cannot read uploaded file")
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			writeError(c, http.StatusBadRequest, "FILE_UNREADABLE", "cannot read uploaded file")
			return
		}

		out, err := remover.Remove(c.Request.Context(), data)
		if err != nil {
			logging.From(c.Request.Context()).Error("remove background", "file", fh.Filename, "error", err)
			writeError(c, http.StatusBadGateway, "REMOVAL_FAILED", err.Error())
			return
		}

		c.Header("Content-Disposition", mime.FormatMediaType("attachment",
			map[string]string{"filename": eraser.OutputName(fh.Filename)}))
		c.Data(http.StatusOK, "image/png", out)
	}
}

// CreateJob runs ProcessFile on a path on the server's file system.
// An empty output_dir falls back to defaultOutput. Both paths must lie within
// roots, which are expected to be resolved already; without roots every job
// is refused.
func CreateJob(proc Processor, defaultOutput string, roots []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roots) == 0 {
			writeError(c, http.StatusForbidden, "JOBS_DISABLED", "no server roots configured")
			return
		}

		var req jobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "input_path is required")
			return
		}
		if req.OutputDir == "" {
			req.OutputDir = defaultOutput
		}
		if req.OutputDir == "" {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "output_dir is required")
			return
		}

		input, err := resolvePath(req.InputPath)
		if err != nil || !withinRoots(input, roots) {
			writeError(c, http.StatusForbidden, "FORBIDDEN_PATH", "input_path is outside the allowed roots")
			return
		}
		output, err := resolvePath(req.OutputDir)
		if err != nil || !withinRoots(output, roots) {
			writeError(c, http.StatusForbidden, "FORBIDDEN_PATH", "output_dir is outside the allowed roots")
			return
		}

		res, err := proc.ProcessFile(c.Request.Context(), input, output)
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, res)
		case errors.Is(err, eraser.ErrUnsupported):
			writeError(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", err.Error())
		case errors.Is(err, fs.ErrNotExist):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "input file not found")
		default:
			logging.From(c.Request.Context()).Error("process job", "input", req.InputPath, "error", err)
			writeError(c, http.StatusInternalServerError, "PROCESSING_FAILED", err.Error())
		}
	}
}
