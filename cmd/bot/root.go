package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Purpose-arch/tgbotaimult/internal/config"
)

type globalFlags struct {
	envFile   string
	logLevel  string
	logFormat string
	logSource bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "neurobot",
		Short:         "Telegram bot that relays chats to LLMs through OpenRouter",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "Path to a dotenv file (optional).")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Logging format: text|json.")
	cmd.PersistentFlags().BoolVar(&flags.logSource, "log-source", false, "Include source file and line in log records.")

	run := newRunCmd(flags)
	cmd.RunE = run.RunE

	cmd.AddCommand(run)
	cmd.AddCommand(newModelsCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup builds the logger and loads the configuration shared by every
// subcommand.
func (f *globalFlags) setup() (config.Config, *slog.Logger, error) {
	logger, err := config.NewLogger(os.Stderr, config.LoggerConfig{
		Level:     f.logLevel,
		Format:    f.logFormat,
		AddSource: f.logSource,
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(f.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
