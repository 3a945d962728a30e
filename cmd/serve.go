package cmd

import (
	"github.com/BioHazard786/Warpmeet/internal/signalserver"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a coordination server",
	Long: `Run a coordination server that hosts rooms, relays chat and issues media tokens.

Examples:
  warpmeet serve
  warpmeet serve --listen-addr :9000 --jwt-secret s3cret
  WARPMEET_JWT_SECRET=s3cret warpmeet serve --mode debug`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		closer, err := setupLogging(cfg, false)
		if err != nil {
			return err
		}
		defer closer.Close()

		srv := signalserver.New(signalserver.Options{
			ListenAddr: cfg.ListenAddr,
			WebDomain:  cfg.WebDomain,
			JWTSecret:  cfg.JWTSecret,
			TokenTTL:   cfg.TokenTTL,
			Mode:       cfg.Mode,
		})
		return srv.Run(cmd.Context())
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("listen-addr", "", "Address to listen on")
	f.String("jwt-secret", "", "Secret used to sign media tokens")
	f.Duration("token-ttl", 0, "Lifetime of issued media tokens")
	f.String("mode", "", "Server mode: debug, release or test")
	rootCmd.AddCommand(serveCmd)
}
