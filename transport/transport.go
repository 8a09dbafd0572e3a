// Package transport runs an MCP server over stdio, SSE or streamable HTTP.
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/server"
)

const (
	KindStdio = "stdio"
	KindSSE   = "sse"
	KindHTTP  = "http"
)

// Options selects and configures a transport.
type Options struct {
	Kind string
	HTTP HTTPOptions

	Stdin  io.Reader
	Stdout io.Writer
}

// Run serves s with the selected transport until ctx is done.
func Run(ctx context.Context, s *server.MCPServer, opts Options) error {
	logger := opts.HTTP.logger()

	switch opts.Kind {
	case "", KindStdio:
		return ServeStdio(ctx, s, opts.Stdin, opts.Stdout, logger)
	case KindSSE:
		return ListenAndServe(ctx, opts.HTTP.Addr, NewSSEHandler(s, opts.HTTP), logger.With("transport", KindSSE))
	case KindHTTP:
		return ListenAndServe(ctx, opts.HTTP.Addr, NewStreamableHandler(s, opts.HTTP), logger.With("transport", KindHTTP))
	default:
		return fmt.Errorf("unknown transport %q", opts.Kind)
	}
}
