package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zillow/mcp-expenses/config"
	"github.com/zillow/mcp-expenses/logging"
	"github.com/zillow/mcp-expenses/transport"
)

type appRuntime struct {
	cfg       config.Config
	logger    *log.Logger
	logCloser io.Closer
}

func (r *appRuntime) Close() error {
	return r.logCloser.Close()
}

func loadRuntime(cmd *cobra.Command, deps commandDeps) (*appRuntime, error) {
	opts := config.LoadOptions{
		ConfigPath: deps.globals.ConfigPath,
		DotEnvPath: deps.globals.EnvFile,
	}
	flags := cmd.Flags()
	if flags.Changed("transport") {
		opts.Flags.Transport = &deps.globals.Transport
	}
	if flags.Changed("addr") {
		opts.Flags.Addr = &deps.globals.Addr
	}
	if flags.Changed("log-level") {
		opts.Flags.LogLevel = &deps.globals.LogLevel
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, withExitCode(ExitCodeConfig, err)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}, deps.streams.Err)
	if err != nil {
		return nil, withExitCode(ExitCodeConfig, err)
	}

	return &appRuntime{cfg: cfg, logger: logger, logCloser: closer}, nil
}

func (r *appRuntime) transportOptions(deps commandDeps) transport.Options {
	return transport.Options{
		Kind: r.cfg.Server.Transport,
		HTTP: transport.HTTPOptions{
			Addr:    r.cfg.Server.Addr,
			BaseURL: r.cfg.Server.BaseURL,
			Token:   r.cfg.Server.Token,
			Logger:  r.logger,
		},
		Stdin:  deps.streams.In,
		Stdout: deps.streams.Out,
	}
}
