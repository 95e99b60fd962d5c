package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/spatial/internal/api"
	"github.com/UnknownOlympus/spatial/internal/config"
	"github.com/UnknownOlympus/spatial/internal/geocoding"
	"github.com/UnknownOlympus/spatial/internal/metrics"
	"github.com/UnknownOlympus/spatial/internal/service"
	"github.com/UnknownOlympus/spatial/internal/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has loaded the configuration.
type app struct {
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "spatial",
		Short:        "Build and geocode spatial points",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	root.PersistentFlags().Int("default-srid", 0, "default SRID for points built without one")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		if err = cfg.BindFlag(config.KeyDefaultSRID, root.PersistentFlags().Lookup("default-srid")); err != nil {
			return err
		}

		a.cfg = cfg
		a.log = setupLogger(cfg.Env, cmd.ErrOrStderr())

		return nil
	}

	root.AddCommand(a.newPointCmd(), a.newGeocodeCmd(), a.newServeCmd())

	return root
}

func (a *app) newPointCmd() *cobra.Command {
	var lat, lng float64
	var srid int

	cmd := &cobra.Command{
		Use:   "point",
		Short: "Build a point; omitted values fall back to their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []spatial.Option
			if cmd.Flags().Changed("lat") {
				opts = append(opts, spatial.WithLat(lat))
			}
			if cmd.Flags().Changed("lng") {
				opts = append(opts, spatial.WithLng(lng))
			}
			if cmd.Flags().Changed("srid") {
				opts = append(opts, spatial.WithSRID(srid))
			}

			point := spatial.NewPoint(a.cfg, opts...)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), point)

			return err
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().IntVar(&srid, "srid", 0, "spatial reference identifier")

	return cmd
}

func (a *app) newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode ADDRESS...",
		Short: "Geocode addresses with the configured provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := a.newBatchGeocoder(prometheus.NewRegistry())
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range batch.GeocodeAll(cmd.Context(), args) {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", res.Address, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.Address, res.Point)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d addresses could not be geocoded", failed, len(args))
			}

			return nil
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			batch, err := a.newBatchGeocoder(reg)
			if err != nil {
				return err
			}

			return a.serve(ctx, api.NewRouter(a.log, spatial.NewFactory(a.cfg, batch.metrics.ObservePoint), batch, reg))
		},
	}
}

// batchGeocoder keeps the metrics next to the service so serve can reuse them for the point factory.
type batchGeocoder struct {
	*service.BatchGeocoder
	metrics *metrics.Metrics
}

func (a *app) newBatchGeocoder(reg prometheus.Registerer) (batchGeocoder, error) {
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(a.cfg.ProviderType),
		APIKey:    a.cfg.APIKey,
		RateLimit: a.cfg.RateLimit,
		Logger:    a.log,
	})
	if err != nil {
		return batchGeocoder{}, fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	appMetrics := metrics.NewMetrics(reg)
	a.log.Info("Geocoding provider initialized", "type", a.cfg.ProviderType)

	return batchGeocoder{
		BatchGeocoder: service.NewBatchGeocoder(
			a.log, provider, a.cfg.ProviderType, appMetrics, a.cfg.Workers, a.cfg.AddrPrefix,
		),
		metrics: appMetrics,
	}, nil
}

// serve runs handler until ctx is cancelled, then shuts the server down gracefully.
func (a *app) serve(ctx context.Context, handler http.Handler) error {
	const (
		readTimeout     = 5 * time.Second
		writeTimeout    = 60 * time.Second
		shutdownTimeout = 10 * time.Second
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.InfoContext(ctx, "Starting HTTP server", "port", a.cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	a.log.InfoContext(ctx, "Shutdown signal received. Stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	a.log.InfoContext(ctx, "Server stopped gracefully.")

	return nil
}
