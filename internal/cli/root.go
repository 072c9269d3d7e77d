// Package cli implements the metakit command line.
//
// Global flags select the configuration file and log level; subcommands
// read their defaults from the loaded configuration and let flags override
// individual values.
package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/metakit/internal/config"
	"github.com/born-ml/metakit/internal/device"
	"github.com/born-ml/metakit/internal/logging"
)

const name = "metakit"

type app struct {
	version string
	cfg     *config.Config

	// enumerator replaces nvidia-smi when set.
	enumerator device.Enumerator
}

// NewCommand returns the root metakit command.
func NewCommand(version string) *cli.Command {
	return (&app{version: version}).command()
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Version:               a.version,
		EnableShellCompletion: true,
		Usage:                 "Meta-learning toolkit: GPU selection, learning-rate schedule and meta-updates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file (default: built-in defaults)",
				Sources: cli.EnvVars("METAKIT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.gpusCmd(),
			a.lrCmd(),
			a.metaStepCmd(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logging.SetDefaultStructuredLoggerWithLevel(name, a.version, cmd.String("log-level"))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	a.cfg = cfg
	slog.Debug("configuration loaded", "path", cmd.String("config"))
	return ctx, nil
}

func (a *app) deviceEnumerator() device.Enumerator {
	if a.enumerator != nil {
		return a.enumerator
	}
	e := device.NewSMIEnumerator()
	e.Timeout = a.cfg.Device.SMITimeout
	return e
}

func intOr(cmd *cli.Command, flag string, def int) int {
	if cmd.IsSet(flag) {
		return cmd.Int(flag)
	}
	return def
}

func floatOr(cmd *cli.Command, flag string, def float64) float64 {
	if cmd.IsSet(flag) {
		return cmd.Float(flag)
	}
	return def
}

func stringOr(cmd *cli.Command, flag, def string) string {
	if cmd.IsSet(flag) {
		return cmd.String(flag)
	}
	return def
}
