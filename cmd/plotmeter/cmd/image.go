package cmd

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/pdf"
	"github.com/MeKo-Tech/plotmeter/internal/render"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/spf13/cobra"
)

func newImageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Measure the boundary drawn on an image or PDF plan",
		Long: `Detect the hand-drawn boundary on a map, satellite image or plan and print
its length and enclosed area.

Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP and PDF (largest
embedded raster of the selected pages).

Examples:
  plotmeter image plot.png
  plotmeter image plot.png --zoom 18 --lat 52.5 --summary
  plotmeter image plan.pdf --page 3 --reference-pixels 200 --reference-length 50 --reference-unit feet
  plotmeter image plot.jpg --overlay plot-measured.png --format text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, img, err := a.measureFile(cmd, args[0])
			if err != nil {
				return err
			}

			if out, _ := cmd.Flags().GetString("overlay"); out != "" {
				if err := writeOverlay(out, img, rep); err != nil {
					return err
				}
				a.logger.Info("wrote overlay", "file", out)
			}

			a.addSummary(cmd, rep, "")
			return writeReport(cmd.OutOrStdout(), rep, a.cfg.Output.Format)
		},
	}

	addInputFlags(cmd)
	addScaleFlags(cmd)
	addSummaryFlag(cmd)
	cmd.Flags().String("overlay", "", "also write the input overlaid with the boundary to this PNG file")
	return cmd
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("page", "", "PDF pages to search for the plan image, e.g. 2 or 1-3")
	cmd.Flags().String("password", "", "password of an encrypted PDF")
}

// measureFile loads path, measures it with the configured engine and returns
// the report together with the image it was measured on.
func (a *app) measureFile(cmd *cobra.Command, path string) (*measure.Report, image.Image, error) {
	img, err := a.loadInput(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	eng, err := a.engine()
	if err != nil {
		return nil, nil, err
	}

	ref, hint := scaleFromFlags(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := eng.FromImage(ctx, img, ref, hint)
	if err != nil {
		return nil, nil, fmt.Errorf("measure %s: %w", path, err)
	}
	a.logger.Debug("measured image", "file", path, "found", rep.Found, "unit", rep.Result.Unit)
	return rep, img, nil
}

func (a *app) loadInput(cmd *cobra.Command, path string) (image.Image, error) {
	if !pdf.IsPDF(path) {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return img, nil
	}

	pages, _ := cmd.Flags().GetString("page")
	password, _ := cmd.Flags().GetString("password")
	img, page, err := pdf.LoadPlan(path, pages, password)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	a.logger.Debug("using embedded pdf image", "file", path, "page", page)
	return img, nil
}

func writeOverlay(path string, img image.Image, rep *measure.Report) error {
	out := render.Overlay(img, rep.Boundary, rep.Result, render.DefaultOptions())
	if err := utils.SavePNG(path, out); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	return nil
}
