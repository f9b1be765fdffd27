package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"authapi/internal/app"
	"authapi/internal/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "authapi",
		Short:         "Authentication API with a rate-limited private route",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml if present)")

	root.AddCommand(newServeCmd(v, &cfgFile), newVersionCmd())
	return root
}

func newServeCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. SIGINT or SIGTERM triggers a graceful shutdown.

Configuration is read from defaults, the config file, .env and AUTHAPI_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigWith(v, *cfgFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			logger := app.MustLogger(cfg.Log.Level)
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting authapi",
				zap.String("version", version),
				zap.String("address", cfg.App.ListenAddress()),
				zap.String("store", cfg.Store.Driver),
				zap.String("notifier", cfg.Notifier.Driver))

			a, err := app.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().String("address", "", "listen address, overrides app.address and PORT")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("app.address", cmd.Flags().Lookup("address"))
	_ = v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authapi %s (%s, %s)\n", version, commit, runtime.Version())
		},
	}
}
