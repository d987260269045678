package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/danmuck/sproto"
	"github.com/danmuck/sproto/internal/config"
	"github.com/danmuck/sproto/internal/logging"
	"github.com/danmuck/sproto/internal/observability"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type state struct {
	configPath string
	schemaPath string
	logLevel   string
	metrics    string
	cfg        config.Config
}

func Instance() *cli.App {
	st := &state{}
	defaultPath, err := config.DefaultPath()
	if err != nil {
		defaultPath = config.DefaultFile
	}
	return &cli.App{
		Name:  "sprotoctl",
		Usage: "encode, decode and pack sproto messages against a schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "config file path",
				EnvVars:     []string{"SPROTOCTL_CONFIG"},
				Destination: &st.configPath,
				Value:       defaultPath,
			},
			&cli.StringFlag{
				Name:        "schema",
				Aliases:     []string{"s"},
				Usage:       "schema definition file (.toml, .yaml, .yml, .json); overrides the config",
				EnvVars:     []string{"SPROTOCTL_SCHEMA"},
				Destination: &st.schemaPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Verbosity of log, valid values are: trace, debug, info, warn, error",
				Destination: &st.logLevel,
			},
			&cli.StringFlag{
				Name:        "metrics-file",
				Usage:       "write codec and host metrics to this file (Prometheus text format) on exit",
				EnvVars:     []string{"SPROTOCTL_METRICS_FILE"},
				Destination: &st.metrics,
			},
		},
		Before: func(ctx *cli.Context) error {
			observability.InitLogger("sprotoctl")
			explicit := ctx.IsSet("config") && ctx.Args().First() != "config"
			if err := st.load(explicit); err != nil {
				return err
			}
			level := st.cfg.LogLevel
			if st.logLevel != "" {
				level = st.logLevel
			}
			lvl, ok := logging.ParseLevel(level)
			if !ok {
				return fmt.Errorf("unknown log level %q", level)
			}
			zerolog.SetGlobalLevel(lvl)
			return nil
		},
		After: func(ctx *cli.Context) error {
			if st.metrics == "" {
				return nil
			}
			if err := observability.WriteMetrics(st.metrics); err != nil {
				return fmt.Errorf("metrics %s: %w", st.metrics, err)
			}
			return nil
		},
		Commands: []*cli.Command{
			checkCmd(st),
			encodeCmd(st),
			decodeCmd(st),
			packCmd(st),
			unpackCmd(st),
			configCmd(st),
		},
	}
}

// load reads the config file. A missing file is fine unless it was named
// explicitly.
func (st *state) load(explicit bool) error {
	st.cfg = config.DefaultConfig()
	if _, err := os.Stat(st.configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config %s: %w", st.configPath, err)
	}
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	st.cfg = cfg
	return nil
}

func (st *state) sproto() (*sproto.Sproto, error) {
	path := st.schemaPath
	if path == "" {
		path = st.cfg.Schema
	}
	if path == "" {
		return nil, errors.New("no schema: pass --schema or set schema in the config file")
	}
	return sproto.Load(path, sproto.WithOptions(st.cfg.Codec()))
}

func noSchema(st *state) *sproto.Sproto {
	return sproto.FromSchema(nil, sproto.WithOptions(st.cfg.Codec()))
}
