package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"libreplexity/internal/httpapi"
	"libreplexity/internal/relay"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		corsOrigins   string
		maxStreams    int
		streamTimeout int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			log := opts.log
			if corsOrigins != "" {
				cfg.CORS.Enabled = true
				cfg.CORS.Origins = splitCSV(corsOrigins)
			}

			// Base context canceled on shutdown so open streams end too.
			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()

			a, err := newApp(baseCtx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.session.Start(baseCtx); err != nil {
				return err
			}

			httpapi.SetLogger(log)
			httpapi.SetBaseContext(baseCtx)
			httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
			httpapi.SetTrustProxy(cfg.TrustProxy)
			httpapi.SetMaxStreams(maxStreams)
			httpapi.SetStreamTimeoutSeconds(streamTimeout)
			httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
			if cfg.Relay.Mount {
				rh := relay.NewHandler(relay.Options{
					Timeout:    cfg.Relay.Timeout(),
					RatePerSec: cfg.Relay.RatePerSec,
					Burst:      cfg.Relay.Burst,
					Logger:     &log,
					TrustProxy: cfg.TrustProxy,
				})
				httpapi.SetRelay("/relay", rh.Router())
			}

			mux := httpapi.NewMux(&httpapi.Backend{Searches: a.pipeline, Models: a.session})
			srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("engine", cfg.Inference.Engine).Msg("libreplexity listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errc <- err
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-stop:
			case err := <-errc:
				return err
			}
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", opts.Addr, "HTTP listen address, e.g. :8080 (defaults LIBREPLEXITY_ADDR)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma separated allowed CORS origins; enables CORS")
	cmd.Flags().IntVar(&maxStreams, "max-streams", 64, "Maximum concurrent /search/stream responses")
	cmd.Flags().Int64Var(&streamTimeout, "stream-timeout", 0, "Seconds before a /search/stream response is closed (0 disables)")
	return cmd
}
