package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/ferumlab/ferum-hub/internal/bot"
	"github.com/ferumlab/ferum-hub/internal/config"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Start the Telegram bot",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.ReadConfig()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		// Supervisor: a crashed polling loop is logged and restarted after a
		// fixed backoff. Only a signal exits the process, with status 0.
		for {
			err := runBotOnce(conf, stop)
			if err == nil {
				slog.Info("Bot stopped gracefully")
				os.Exit(0)
			}

			slog.Error("Bot crashed, restarting", slog.Any("error", err), slog.Duration("backoff", bot.RestartBackoff))
			select {
			case <-stop:
				slog.Info("Interrupt during backoff, exiting")
				os.Exit(0)
			case <-time.After(bot.RestartBackoff):
			}
		}
	},
}

func runBotOnce(conf *config.Config, stop <-chan os.Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in bot loop", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = bot.ErrCrashed
		}
	}()

	b, err := bot.New(conf)
	if err != nil {
		return err
	}

	return b.Run(stop)
}

// Register the "bot" command
func init() {
	rootCmd.AddCommand(botCmd)
}
