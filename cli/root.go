// Package cli wires configuration, logging, storage and transports into the
// mcp-demo command tree.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Streams are the process standard streams. The stdio transport owns In and
// Out, so logs default to Err.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type globalFlags struct {
	ConfigPath string
	EnvFile    string
	Transport  string
	Addr       string
	LogLevel   string
}

type commandDeps struct {
	streams Streams
	build   BuildInfo
	globals *globalFlags
}

func NewRootCommand(streams Streams, build BuildInfo) *cobra.Command {
	globals := &globalFlags{}
	deps := commandDeps{streams: streams, build: build, globals: globals}

	cmd := &cobra.Command{
		Use:           "mcp-demo",
		Short:         "Demonstration MCP servers: a calculator and an expense tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.Err)

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to a TOML config file (default mcp-demo.toml if present)")
	flags.StringVar(&globals.EnvFile, "env-file", "", "Path to a .env file (default .env if present)")
	flags.StringVar(&globals.Transport, "transport", "", "Transport: stdio, sse or http")
	flags.StringVar(&globals.Addr, "addr", "", "Listen address for the sse and http transports")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newVersionCommand(deps))
	cmd.AddCommand(newCalculatorCommand(deps))
	cmd.AddCommand(newExpensesCommand(deps))
	return cmd
}
