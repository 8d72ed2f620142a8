package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mumuon/drivefinder/kml-service/internal/render"
	"github.com/mumuon/drivefinder/kml-service/internal/service"
)

// stdinURI reads the document from standard input.
const stdinURI = "-"

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "convert <uri>",
		Short: "Convert a KML or KMZ document to GeoJSON",
		Example: `  kml-service convert roads.kmz -o roads.geojson
  kml-service convert s3://maps/us-oregon.kmz --max-points 500
  cat roads.kml | kml-service convert -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}

			c, err := a.convert(cmd, args[0])
			if err != nil {
				return err
			}

			var data []byte
			if pretty {
				data, err = json.MarshalIndent(c.Result.GeoJSON(), "", "  ")
			} else {
				data, err = json.Marshal(c.Result.GeoJSON())
			}
			if err != nil {
				return fmt.Errorf("encoding GeoJSON: %w", err)
			}

			if output == "" || output == stdinURI {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			a.logger.Info("wrote GeoJSON", "path", output, "features", len(c.Result.Collection), "method", c.Result.Method)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the GeoJSON output")

	return cmd
}

type reportKind string

const (
	reportSummary reportKind = "summary"
	reportDetails reportKind = "details"
)

func newReportCmd(opts *rootOptions, kind reportKind) *cobra.Command {
	var format string

	short := "Count features by geometry type"
	if kind == reportDetails {
		short = "List every feature with its length and geohash"
	}

	cmd := &cobra.Command{
		Use:   string(kind) + " <uri>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := newApp(opts, false)
			if err != nil {
				return err
			}

			c, err := a.convert(cmd, args[0])
			if err != nil {
				return err
			}

			if kind == reportDetails {
				return render.Details(cmd.OutOrStdout(), f, c.Detail)
			}
			return render.Summary(cmd.OutOrStdout(), f, c.Summary)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatTable), "output format (table, json, yaml)")

	return cmd
}

// convert runs one conversion, canceling it on SIGINT or SIGTERM. The uri "-"
// reads from the command's input.
func (a *app) convert(cmd *cobra.Command, uri string) (*service.Conversion, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		c   *service.Conversion
		err error
	)
	if uri == stdinURI {
		c, err = a.convertStdin(ctx, cmd.InOrStdin())
	} else {
		c, err = a.service.Convert(ctx, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", service.ErrorCode(err), err)
	}
	return c, nil
}

func (a *app) convertStdin(ctx context.Context, r io.Reader) (*service.Conversion, error) {
	limit := a.cfg.Sources.MaxBytes
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return a.service.ConvertBytes(ctx, "stdin", data)
}
