package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/phenrril/attarstore/internal/app"
	"github.com/phenrril/attarstore/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "attarstore",
	Short:         "Storefront catalog and cart service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	if err := rootCmd.Execute(); err != nil {
		zlog.Fatal().Err(err).Msg("attarstore")
	}
}

// loadApp reads the configuration and builds the application graph.
func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	return app.NewApp(cfg)
}
