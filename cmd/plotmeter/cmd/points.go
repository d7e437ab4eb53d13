package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/spf13/cobra"
)

func newPointsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points <file.json|->",
		Short: "Measure a boundary given as pixel coordinates",
		Long: `Measure a boundary traced by hand. The input is either a bare array of
points or a request object:

  [[10, 10], [110, 10], [110, 110], [10, 110]]
  {"points": [{"x": 10, "y": 10}, ...], "reference_pixels": 100, "reference_length": 25}

Scale flags given on the command line replace the scale in the file.
Use - to read from standard input.

Examples:
  plotmeter points boundary.json
  cat boundary.json | plotmeter points - --zoom 19 --lat 48.1 --summary --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			req, pts, err := measure.DecodePointsRequest(data)
			if err != nil {
				return err
			}

			ref, hint := req.Scale()
			if scaleFlagsSet(cmd) {
				ref, hint = scaleFromFlags(cmd)
			}

			eng, err := a.engine()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep, err := eng.FromPoints(ctx, pts, ref, hint)
			if err != nil {
				return err
			}

			a.addSummary(cmd, rep, req.ZoneType)
			return writeReport(cmd.OutOrStdout(), rep, a.cfg.Output.Format)
		},
	}

	addScaleFlags(cmd)
	addSummaryFlag(cmd)
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: the path is the command argument
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
