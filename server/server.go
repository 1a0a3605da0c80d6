// Package server exposes background removal over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/bgeraser/eraser"
	"github.com/chaos-io/bgeraser/rembg"
)

const shutdownTimeout = 10 * time.Second

// Processor runs a full job on local files.
type Processor interface {
	ProcessFile(ctx context.Context, inputPath, outputDir string) (*eraser.Result, error)
}

// Config holds server configuration.
type Config struct {
	Listen      string
	MaxUploadMB int
	// OutputDir is used by /api/jobs when the request omits output_dir.
	OutputDir string
	// Roots limit the paths /api/jobs accepts. Empty disables /api/jobs.
	Roots     []string
	Remover   rembg.Remover
	Processor Processor
	Logger    *slog.Logger
}

type Server struct {
	listen    string
	maxUpload int64
	outputDir string
	roots     []string
	remover   rembg.Remover
	processor Processor
	logger    *slog.Logger
	engine    *gin.Engine
}

func New(cfg Config) (*Server, error) {
	if cfg.Remover == nil {
		return nil, errors.New("remover is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	roots, err := resolveRoots(cfg.Roots)
	if err != nil {
		return nil, fmt.Errorf("resolve roots: %w", err)
	}

	s := &Server{
		listen:    cfg.Listen,
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		outputDir: cfg.OutputDir,
		roots:     roots,
		remover:   cfg.Remover,
		processor: cfg.Processor,
		logger:    cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.logger))
	if s.maxUpload > 0 {
		r.MaxMultipartMemory = s.maxUpload
	}
	registerRoutes(r, s)
	if len(roots) == 0 {
		s.logger.Warn("no server roots configured, /api/jobs is disabled")
	}
	s.engine = r

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
