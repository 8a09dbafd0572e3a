package mcptest_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillow/mcp-expenses/mcptest"
)

func TestServer(t *testing.T) {
	ctx := context.Background()

	s := server.NewMCPServer("hello", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.AddTool(mcp.NewTool("hello",
		mcp.WithDescription("Says hello to the provided name, or world."),
		mcp.WithString("name", mcp.Description("The name to say hello to.")),
	), helloWorldHandler)
	s.AddResource(mcp.NewResource("test://greeting", "greeting"),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: "test://greeting", MIMEType: "text/plain", Text: "hi"},
			}, nil
		})

	srv, err := mcptest.NewServer(t, s)
	require.NoError(t, err)

	result, err := srv.CallTool(ctx, "hello", map[string]any{"name": "Claude"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	got, err := mcptest.ResultText(result)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Claude!", got)

	text, err := srv.ReadResource(ctx, "test://greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	tools, err := srv.Client().ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "hello", tools.Tools[0].Name)
}

func TestServerCloseIsIdempotent(t *testing.T) {
	s := server.NewMCPServer("noop", "1.0.0")

	srv, err := mcptest.NewServer(t, s)
	require.NoError(t, err)

	srv.Close()
	srv.Close()
}

func helloWorldHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := request.GetArguments()["name"].(string)
	if !ok {
		name = "World"
	}

	return mcp.NewToolResultText(fmt.Sprintf("Hello, %s!", name)), nil
}
