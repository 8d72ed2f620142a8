// Package main provides the kml-service command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	converter "github.com/mumuon/drivefinder/kml-service"
	"github.com/mumuon/drivefinder/kml-service/internal/config"
	"github.com/mumuon/drivefinder/kml-service/internal/metrics"
	"github.com/mumuon/drivefinder/kml-service/internal/service"
	"github.com/mumuon/drivefinder/kml-service/internal/source"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "kml-service",
		Short: "Convert KML and KMZ documents to GeoJSON",
		Long: `kml-service converts KML and KMZ documents into GeoJSON feature collections.

Documents can be read from local paths, file://, s3://, azblob://, http:// and
https:// URIs. Long lines are decimated to keep the output small.

Commands:
  convert   Write the GeoJSON for one document
  summary   Count features by geometry type
  details   List every feature with its length and location
  serve     Run the HTTP API
  watch     Convert files as they appear in a directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: ./kml-service.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")
	root.PersistentFlags().Int("max-points", converter.DefaultMaxPoints, "longest line or ring kept without decimation")

	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("converter.max_points", root.PersistentFlags().Lookup("max-points"))

	root.AddCommand(
		newConvertCmd(opts),
		newReportCmd(opts, reportSummary),
		newReportCmd(opts, reportDetails),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kml-service %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
		},
	}
}

// app holds the components built from the loaded configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	service   *service.ConversionService
}

// newApp loads the configuration and wires the conversion pipeline. The
// metrics collector is only created when withMetrics is set and metrics are
// enabled.
func newApp(opts *rootOptions, withMetrics bool) (*app, error) {
	if opts.debug {
		viper.Set("logging.level", "debug")
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	resolver, err := source.New(cfg.Sources, source.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initializing sources: %w", err)
	}

	conv := converter.NewConverter(
		converter.WithMaxPoints(cfg.Converter.MaxPoints),
		converter.WithLogger(logger),
	)

	a := &app{cfg: cfg, logger: logger}
	svcOpts := []service.Option{service.WithLogger(logger)}
	if withMetrics && cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace)
		svcOpts = append(svcOpts, service.WithObserver(a.collector))
	}
	a.service = service.NewConversionService(resolver, conv, svcOpts...)

	return a, nil
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
