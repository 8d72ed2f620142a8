package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mumuon/drivefinder/kml-service/internal/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			return a.serve()
		},
	}

	cmd.Flags().String("host", "0.0.0.0", "server host")
	cmd.Flags().Int("port", 8080, "server port")
	cmd.Flags().Int("store-size", 100, "number of recent conversions kept in memory")
	cmd.Flags().Bool("metrics", true, "expose Prometheus metrics")
	cmd.Flags().StringSlice("allowed-schemes", nil, "URI schemes clients may ask the server to fetch (file, s3, azblob, http, https); uploads are always accepted")

	_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.store_size", cmd.Flags().Lookup("store-size"))
	_ = viper.BindPFlag("metrics.enabled", cmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("server.allowed_schemes", cmd.Flags().Lookup("allowed-schemes"))

	return cmd
}

func (a *app) serve() error {
	logger := a.logger

	serverOpts := []api.Option{api.WithLogger(logger), api.WithVersion(version)}
	if a.collector != nil {
		serverOpts = append(serverOpts, api.WithMetrics(a.collector, a.cfg.Metrics.Path))
	}
	server := api.NewServer(a.cfg.Server, a.service, serverOpts...)

	logger.Info("starting kml-service",
		"version", version,
		"address", a.cfg.Server.Address(),
		"max_points", a.cfg.Converter.MaxPoints,
		"metrics", a.collector != nil,
		"allowed_schemes", a.cfg.Server.AllowedSchemes,
	)
	for _, scheme := range a.cfg.Server.AllowedSchemes {
		if strings.EqualFold(scheme, "file") {
			logger.Warn("clients may convert any readable local file", "allowed_schemes", a.cfg.Server.AllowedSchemes)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
