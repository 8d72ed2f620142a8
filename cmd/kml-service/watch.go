package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mumuon/drivefinder/kml-service/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Convert KML and KMZ files as they appear in a directory",
		Long: `Watch converts every KML and KMZ file in a directory to <file>.geojson, then
keeps converting files as they are created or modified. Deleting a source
file removes its output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				viper.Set("watch.dir", args[0])
			}

			a, err := newApp(opts, false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.watch(ctx, once)
		},
	}

	cmd.Flags().String("output-dir", "", "directory for GeoJSON output (default: next to each input)")
	cmd.Flags().Duration("debounce", 0, "quiet period before a changed file is converted (default 500ms)")
	cmd.Flags().BoolVar(&once, "once", false, "convert the existing files and exit")

	_ = viper.BindPFlag("watch.output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("watch.debounce", cmd.Flags().Lookup("debounce"))

	return cmd
}

func (a *app) watch(ctx context.Context, once bool) error {
	cfg := a.cfg.Watch
	handler := watcher.GeoJSONWriter(a.service, cfg.OutputDir, a.logger)

	w, err := watcher.New(cfg.Dir, cfg.Debounce, handler, a.logger)
	if err != nil {
		return err
	}

	if err := w.Scan(ctx); err != nil {
		return err
	}
	if once {
		return w.Close()
	}

	return w.Run(ctx)
}
