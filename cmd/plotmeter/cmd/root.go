// Package cmd implements the plotmeter command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/config"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds a fresh command tree with its own viper instance,
// so repeated in-process runs do not share flag state.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: slog.Default()}

	root := &cobra.Command{
		Use:   "plotmeter",
		Short: "Measure hand-drawn plot boundaries on maps and plans",
		Long: `plotmeter finds a boundary drawn on a map, satellite image or site plan
and reports its length and enclosed area, in meters when a scale reference
or zoom level is given and in pixels otherwise.

Examples:
  plotmeter image plot.png
  plotmeter image plan.pdf --page 2 --reference-pixels 120 --reference-length 10
  plotmeter points boundary.json --format yaml
  plotmeter serve --port 8080`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is plotmeter.yaml in ., $HOME, $XDG_CONFIG_HOME/plotmeter, /etc/plotmeter)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.StringP("format", "f", "json", "output format: json, text, yaml or csv")
	pf.Float64("min-area", 50, "ignore candidate contours at or below this area in px²")
	pf.Float64("close-epsilon", 5, "gap in px below which an open boundary counts as closed")
	pf.String("backend", "native", "detection backend: native or gocv")
	pf.Int("max-dimension", 0, "downscale images whose longer side exceeds this; 0 keeps full size")

	a.bindFlags(root, map[string]string{
		"log_level":                "log-level",
		"verbose":                  "verbose",
		"output.format":            "format",
		"detector.min_area":        "min-area",
		"selector.close_epsilon":   "close-epsilon",
		"detector.backend":         "backend",
		"preprocess.max_dimension": "max-dimension",
	})

	root.AddCommand(
		newImageCommand(a),
		newPointsCommand(a),
		newRenderCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// bindFlags binds config keys to flags of cmd. Persistent flags are looked
// up first.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			f = cmd.Flags().Lookup(name)
		}
		if f == nil {
			panic(fmt.Sprintf("flag --%s is not defined on %s", name, cmd.Name()))
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			panic(err)
		}
	}
}

// init loads the configuration and installs the logger. It runs before
// every subcommand.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.NewLoaderWithViper(a.v).LoadWithFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := parseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// engine builds a measurement engine from the loaded configuration.
func (a *app) engine() (*measure.Engine, error) {
	mc, err := a.cfg.ToMeasureConfig()
	if err != nil {
		return nil, err
	}
	eng, err := measure.NewBuilder().WithConfig(mc).WithLogger(a.logger).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build measurement engine: %w", err)
	}
	return eng, nil
}
