package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaos-io/bgeraser/eraser"
	"github.com/chaos-io/bgeraser/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		output   string
		schedule string
		poll     bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process images as they appear in a folder",
		Long: "Processes the images already in <dir>, then every new one. --schedule adds a\n" +
			"cron-driven sweep, --poll replaces file system events with polling.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := outputDir(output)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("schedule") {
				schedule = settings.Watch.Schedule
			}
			if !cmd.Flags().Changed("poll") {
				poll = settings.Watch.Poll
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, _, err := newEraser(ctx)
			if err != nil {
				return err
			}

			w, err := watch.New(watch.Config{
				Dir:          args[0],
				OutputDir:    dir,
				Processor:    e,
				PollMode:     poll,
				PollInterval: settings.Watch.PollInterval,
				Debounce:     settings.Watch.Debounce,
				Schedule:     schedule,
				OnResult: func(path string, res *eraser.Result, err error) {
					printWatchLine(os.Stdout, path, res, err)
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output folder")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec for a full sweep, e.g. \"*/10 * * * *\"")
	cmd.Flags().BoolVar(&poll, "poll", false, "poll instead of using file system events")

	return cmd
}
