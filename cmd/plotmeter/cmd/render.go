package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Write the input image overlaid with the measured boundary",
		Long: `Measure the boundary on an image or PDF plan and write a PNG with the
boundary filled and outlined and the length and area printed on it.

Examples:
  plotmeter render plot.png -o plot-measured.png
  plotmeter render plan.pdf --page 2 -o plan.png --reference-pixels 120 --reference-length 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			rep, img, err := a.measureFile(cmd, args[0])
			if err != nil {
				return err
			}
			if err := writeOverlay(out, img, rep); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s %s, %s %s²)\n",
				out, rep.Result.LineLength, rep.Result.Unit, rep.Result.Area, rep.Result.Unit)
			return err
		},
	}

	cmd.Flags().StringP("output", "o", "", "output PNG file")
	_ = cmd.MarkFlagRequired("output")
	addInputFlags(cmd)
	addScaleFlags(cmd)
	return cmd
}
