package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chaos-io/bgeraser/config"
	"github.com/chaos-io/bgeraser/logging"
)

// Version and Commit are set via LDFLAGS at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	verbose    bool
	configFile string
	envFile    string

	settings *config.Settings
	logger   = slog.Default()
	closeLog = func() error { return nil }
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bgeraser",
		Short: "Remove image backgrounds and keep results organized",
		Long: "bgeraser removes the background of images with a segmentation model and stores the result\n" +
			"together with the moved original in a timestamped folder. Without a subcommand it opens the window.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLog()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with environment overrides")

	root.AddCommand(newGUICmd())
	root.AddCommand(newProcessCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// setup loads settings and configures logging for every command.
func setup() error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	s, err := config.LoadSettings(path)
	if err != nil {
		return err
	}
	s.ApplyEnv()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	settings = s

	logCfg := logging.DefaultConfig()
	logCfg.Level = s.Log.SlogLevel()
	if verbose {
		logCfg.Level = slog.LevelDebug
	}
	logCfg.Dir = s.Log.Dir

	l, closeFn, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	logger, closeLog = l, closeFn

	logger.Debug("settings loaded", "path", path, "backend", s.Backend)
	return nil
}
