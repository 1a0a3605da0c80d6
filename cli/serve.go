package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/chaos-io/bgeraser/server"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serves POST /api/remove (multipart upload, responds with the PNG) and\n" +
			"POST /api/jobs (processes a file on this machine into a timestamped folder).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = settings.Server.Listen
			}
			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, remover, err := newEraser(ctx)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Config{
				Listen:      listen,
				MaxUploadMB: settings.Server.MaxUploadMB,
				OutputDir:   settings.OutputDir,
				Roots:       settings.Server.Roots,
				Remover:     remover,
				Processor:   e,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, 127.0.0.1:8080)")

	return cmd
}
