package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := loadApp()
		if err != nil {
			return err
		}
		if err := application.Migrate(cmd.Context()); err != nil {
			return err
		}

		ln, err := net.Listen("tcp", ":"+application.Config.Port)
		if err != nil {
			return err
		}
		server := &http.Server{Handler: application.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error().Err(err).Msg("serve")
			}
		}()
		zlog.Info().Str("addr", ln.Addr().String()).Str("cart_store", application.Config.CartStore).Msg("listening")

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		defer stopSweep()
		idle := application.Config.SessionIdle
		go application.Sessions.Run(sweepCtx, sweepInterval(idle), idle)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		stopSweep()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		return application.Close(ctx)
	},
}

// sweepInterval checks for idle sessions a few times per idle window.
func sweepInterval(idle time.Duration) time.Duration {
	if d := idle / 4; d > time.Second {
		return d
	}
	return time.Second
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
