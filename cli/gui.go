package cli

import (
	"context"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/chaos-io/bgeraser/gui"
)

const appID = "io.github.chaos-io.bgeraser"

func newGUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI()
		},
	}
}

func runGUI() error {
	e, _, err := newEraser(context.Background())
	if err != nil {
		return err
	}

	logger.Info("starting window", "backend", settings.Backend)

	w := gui.NewMainWindow(&gui.MainWindowConfig{
		App:       app.NewWithID(appID),
		Processor: e,
		OutputDir: settings.OutputDir,
		Logger:    logger,
	})
	w.ShowAndRun()
	return nil
}
