// Package mcptest runs a fully configured MCP server over in-memory stdio
// pipes so tests can talk to it through a real MCP client.
package mcptest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server connects an MCP server and an initialized client through pipes.
type Server struct {
	mcpServer *server.MCPServer

	ctx    context.Context
	cancel func()

	serverReader *io.PipeReader
	serverWriter *io.PipeWriter
	clientReader *io.PipeReader
	clientWriter *io.PipeWriter

	logBuffer bytes.Buffer

	transport transport.Interface
	client    *client.Client

	wg sync.WaitGroup
}

// NewServer starts s and returns a harness whose client is already
// initialized. The harness is closed when the test ends.
func NewServer(t *testing.T, s *server.MCPServer) (*Server, error) {
	t.Helper()

	srv := &Server{mcpServer: s}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	srv.serverReader, srv.clientWriter = io.Pipe()
	srv.clientReader, srv.serverWriter = io.Pipe()

	if err := srv.start(t.Name()); err != nil {
		srv.Close()
		return nil, err
	}
	t.Cleanup(srv.Close)
	return srv, nil
}

func (s *Server) start(clientName string) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger := log.New(&s.logBuffer, "", 0)

		stdioServer := server.NewStdioServer(s.mcpServer)
		stdioServer.SetErrorLogger(logger)

		if err := stdioServer.Listen(s.ctx, s.serverReader, s.serverWriter); err != nil {
			logger.Println("StdioServer.Listen failed:", err)
		}
	}()

	s.transport = transport.NewIO(s.clientReader, s.clientWriter, io.NopCloser(&s.logBuffer))
	if err := s.transport.Start(s.ctx); err != nil {
		return fmt.Errorf("transport.Start(): %w", err)
	}

	s.client = client.NewClient(s.transport)

	var initReq mcp.InitializeRequest
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "1.0.0"}
	if _, err := s.client.Initialize(s.ctx, initReq); err != nil {
		return fmt.Errorf("client.Initialize(): %w", err)
	}
	return nil
}

// Close stops the server and releases the pipes. It is safe to call more
// than once.
func (s *Server) Close() {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
		s.client = nil
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	// Unblock a server still waiting on input before waiting for it.
	if s.serverReader != nil {
		s.serverWriter.Close()
		s.serverReader.Close()
		s.clientWriter.Close()
		s.clientReader.Close()
	}

	s.wg.Wait()
	s.serverReader, s.serverWriter = nil, nil
	s.clientReader, s.clientWriter = nil, nil
}

// Client returns the initialized MCP client.
func (s *Server) Client() *client.Client {
	return s.client
}

// CallTool invokes a tool by name and returns its result.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return s.client.CallTool(ctx, req)
}

// ReadResource reads a resource by URI and returns the text of its first
// text content.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	var req mcp.ReadResourceRequest
	req.Params.URI = uri
	res, err := s.client.ReadResource(ctx, req)
	if err != nil {
		return "", err
	}
	for _, c := range res.Contents {
		if text, ok := c.(mcp.TextResourceContents); ok {
			return text.Text, nil
		}
	}
	return "", fmt.Errorf("resource %s has no text contents", uri)
}

// ResultText concatenates the text contents of a tool result.
func ResultText(result *mcp.CallToolResult) (string, error) {
	var b bytes.Buffer
	for _, content := range result.Content {
		text, ok := content.(mcp.TextContent)
		if !ok {
			return "", fmt.Errorf("unsupported content type: %T", content)
		}
		b.WriteString(text.Text)
	}
	return b.String(), nil
}
