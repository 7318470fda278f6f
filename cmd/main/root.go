package main

import (
	"fmt"
	"log/slog"
	"os"

	"ai-zoo-bot/pkg/config"
	"ai-zoo-bot/pkg/logging"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	envFile  string
	schedule bool
	cfg      *config.Config
	debug    *slog.Logger
	cleanup  func()
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ai-zoo-bot",
		Short:         "Discord bots that play characters and chat with each other",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "path of the .env file to load")

	root.AddCommand(
		a.botCmd("main", "Runs the primary bot, which answers every message", primaryBot),
		a.botCmd("secondary", "Runs the secondary bot, which answers with a probability", secondaryBot),
		a.allCmd(),
		a.scheduledCmd(),
		a.cronCmd(),
		a.charactersCmd(),
	)
	return root
}

// close flushes sentry and closes the debug log. It runs after the command
// has returned, including when it failed.
func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	debug, cleanup, err := logging.Setup(logging.Options{
		Level:        cfg.LogLevel,
		SentryDSN:    cfg.SentryDSN,
		Environment:  cfg.Environment,
		DebugLogPath: cfg.DebugLogPath,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error while setting up logging:", err)
		return err
	}
	a.cfg, a.debug, a.cleanup = cfg, debug, cleanup
	a.debug.Debug("config: loaded",
		slog.String("primary", cfg.PrimaryName),
		slog.String("secondary", cfg.SecondaryName),
		slog.Any("channel.id", cfg.ChannelID),
		slog.String("database.driver", cfg.DatabaseDriver),
		slog.String("tz", cfg.Timezone))
	return nil
}
