package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
	outputFormatYAML = "yaml"
	outputFormatCSV  = "csv"
)

// output is what the measuring commands print.
type output struct {
	measure.Result `yaml:",inline"`
	Zones          *measure.Zones `json:"zones,omitempty" yaml:"zones,omitempty"`
}

func addScaleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("reference-pixels", 0, "pixel length of a known reference distance")
	f.Float64("reference-length", 0, "real length of the reference distance")
	f.String("reference-unit", "meters", "unit of --reference-length (meters, feet, yards, inches, cm, mm, miles)")
	f.Int("zoom", 0, "web map zoom level, used to estimate the scale when no reference is given")
	f.Float64("lat", 0, "latitude of the image center, used with --zoom")
}

func addSummaryFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("summary", false, "add a zone summary in several units (needs a scale)")
}

// scaleFromFlags returns the scale inputs given on the command line. Only
// flags the user set count, so a zoom of 0 is distinguishable from none.
func scaleFromFlags(cmd *cobra.Command) (*scale.Reference, *scale.ZoomHint) {
	f := cmd.Flags()
	refPixels, _ := f.GetFloat64("reference-pixels")
	refLength, _ := f.GetFloat64("reference-length")
	refUnit, _ := f.GetString("reference-unit")

	var zoom *int
	if f.Changed("zoom") {
		z, _ := f.GetInt("zoom")
		zoom = &z
	}
	var lat *float64
	if f.Changed("lat") {
		l, _ := f.GetFloat64("lat")
		lat = &l
	}
	return measure.ScaleInputs(refPixels, refLength, refUnit, zoom, lat)
}

// addSummary attaches a zone summary when --summary is set. Uncalibrated
// reports have none and only log why.
func (a *app) addSummary(cmd *cobra.Command, rep *measure.Report, zoneType string) {
	if on, _ := cmd.Flags().GetBool("summary"); !on {
		return
	}
	z, err := measure.Summary(rep, zoneType)
	if err != nil {
		a.logger.Warn("no zone summary", "reason", err)
		return
	}
	rep.Zones = z
}

func scaleFlagsSet(cmd *cobra.Command) bool {
	for _, name := range []string{"reference-pixels", "reference-length", "zoom"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// writeReport prints rep in format, with its zone summary when present.
func writeReport(w io.Writer, rep *measure.Report, format string) error {
	out := output{Result: rep.Result, Zones: rep.Zones}

	switch strings.ToLower(format) {
	case outputFormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case outputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(out)
	case outputFormatText:
		return writeText(w, out)
	case outputFormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"line_length", "area", "unit", "notes"})
		_ = cw.Write([]string{out.LineLength, out.Area, out.Unit, out.Notes})
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeText(w io.Writer, out output) error {
	unit := cases.Title(language.English).String(out.Unit)
	var b strings.Builder
	fmt.Fprintf(&b, "Line length: %s %s\n", out.LineLength, out.Unit)
	fmt.Fprintf(&b, "Area:        %s %s²\n", out.Area, out.Unit)
	fmt.Fprintf(&b, "Unit:        %s\n", unit)
	fmt.Fprintf(&b, "Notes:       %s\n", out.Notes)
	if out.Zones != nil {
		b.WriteString("Perimeter:\n")
		writeUnits(&b, out.Zones.Perimeter)
		b.WriteString("Area by unit:\n")
		writeUnits(&b, out.Zones.Area)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeUnits(b *strings.Builder, m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %-14s %v\n", strings.ReplaceAll(k, "_", " "), m[k])
	}
}
