package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"libreplexity/internal/relay"
)

func newRelayCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a standalone CORS relay for outbound fetches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Relay
			if listen != "" {
				cfg.Listen = listen
			}
			log := opts.log
			h := relay.NewHandler(relay.Options{
				Timeout:    cfg.Timeout(),
				RatePerSec: cfg.RatePerSec,
				Burst:      cfg.Burst,
				Logger:     &log,
				TrustProxy: opts.cfg.TrustProxy,
			})
			srv := &http.Server{Addr: cfg.Listen, Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}
			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Listen).Float64("rate", cfg.RatePerSec).Int("burst", cfg.Burst).Msg("relay listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errc <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-stop:
			case err := <-errc:
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (defaults to relay.listen)")
	return cmd
}
