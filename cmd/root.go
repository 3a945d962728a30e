package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/logging"
	"github.com/BioHazard786/Warpmeet/internal/ui"
	"github.com/BioHazard786/Warpmeet/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpmeet",
	Short:   "Join and host video meetings from the terminal",
	Long:    `Warpmeet joins video meetings over WebRTC from the command line. It shows the participant roster and chat in the terminal, publishes microphone, camera and screen from capture files, and can run its own coordination server.`,
	Version: version.Version,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("backend-url", "", "Backend base URL for signaling, tokens and media")
	f.String("web-domain", "", "Domain used in room links")
	f.String("stun-server", "", "STUN server URL")
	f.String("turn-server", "", "TURN server host")
	f.String("turn-user", "", "TURN username")
	f.String("turn-pass", "", "TURN password")
	f.Bool("force-relay", false, "Force media through the TURN relay")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-file", "", "Write logs to this file")
}

// loadConfig reads configuration with cmd's flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Flags())
}

// setupLogging points the global logger at the configured destination.
// Interactive views never log to the terminal.
func setupLogging(cfg *config.Config, interactive bool) (io.Closer, error) {
	if cfg.LogFile == "" && !interactive {
		logging.Init(cfg.LogLevel, nil)
		return io.NopCloser(nil), nil
	}
	w, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, w)
	return w, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
