// Package calculator is a small MCP server exposing integer math tools and a
// server-info resource.
package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "simple calculator"
	ServerVersion = "1.0.0"

	InfoURI = "info://server"

	defaultMaxValue = 100
)

// CalculationError represents an error during calculation
type CalculationError struct {
	Message string
}

func (e CalculationError) Error() string {
	return e.Message
}

var Handlers = map[string]server.ToolHandlerFunc{
	"add":           HandleAdd,
	"random_number": HandleRandomNumber,
}

var Tools = []mcp.Tool{
	mcp.NewTool("add",
		mcp.WithDescription("Add two numbers together and return the sum of a and b."),
		mcp.WithNumber("a", mcp.Required(), mcp.Description("First number")),
		mcp.WithNumber("b", mcp.Required(), mcp.Description("Second number")),
	),
	mcp.NewTool("random_number",
		mcp.WithDescription("Generate a random integer between min_val and max_val, inclusive."),
		mcp.WithNumber("min_val", mcp.Required(), mcp.Description("Minimum value")),
		mcp.WithNumber("max_val", mcp.DefaultNumber(defaultMaxValue), mcp.Description("Maximum value (default: 100)")),
	),
}

// Info is the document served by the info://server resource.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"Version"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Author      string   `json:"author"`
}

// NewServer builds the calculator MCP server with its tools and info resource.
func NewServer(opts ...server.ServerOption) *server.MCPServer {
	opts = append([]server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	}, opts...)
	s := server.NewMCPServer(ServerName, ServerVersion, opts...)

	for _, tool := range Tools {
		s.AddTool(tool, Handlers[tool.Name])
	}
	s.AddResource(
		mcp.NewResource(InfoURI, "server_info",
			mcp.WithResourceDescription("Get information about this server."),
			mcp.WithMIMEType("application/json"),
		),
		HandleServerInfo,
	)
	return s
}

// integerArg extracts a whole number argument. JSON numbers arrive as
// float64, and numeric strings are accepted as well.
func integerArg(args map[string]any, name string, def *int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if def != nil {
			return *def, nil
		}
		return 0, &CalculationError{Message: fmt.Sprintf("parameter '%s' is required", name)}
	}

	var i int64
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, &CalculationError{Message: fmt.Sprintf("parameter '%s' must be an integer", name)}
		}
		if math.Abs(n) > math.MaxInt32 {
			return 0, outOfRange(name)
		}
		i = int64(n)
	case int:
		i = int64(n)
	case int64:
		i = n
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, outOfRange(name)
		}
		if err != nil {
			return 0, &CalculationError{Message: fmt.Sprintf("parameter '%s' must be an integer", name)}
		}
		i = parsed
	default:
		return 0, &CalculationError{Message: fmt.Sprintf("parameter '%s' must be a number", name)}
	}
	// Bounded so that sums and random ranges cannot overflow int.
	if i < -math.MaxInt32 || i > math.MaxInt32 {
		return 0, outOfRange(name)
	}
	return int(i), nil
}

func outOfRange(name string) error {
	return &CalculationError{Message: fmt.Sprintf("parameter '%s' is out of range", name)}
}

func formatResult(result int) *mcp.CallToolResult {
	return mcp.NewToolResultText(strconv.Itoa(result))
}

func HandleAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	a, err := integerArg(args, "a", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := integerArg(args, "b", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(a + b), nil
}

func HandleRandomNumber(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	lo, err := integerArg(args, "min_val", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def := defaultMaxValue
	hi, err := integerArg(args, "max_val", &def)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if lo > hi {
		return mcp.NewToolResultError(CalculationError{
			Message: fmt.Sprintf("min_val (%d) must not exceed max_val (%d)", lo, hi),
		}.Error()), nil
	}
	return formatResult(lo + rand.IntN(hi-lo+1)), nil
}

func HandleServerInfo(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info := Info{
		Name:        "Simple Calculator Server.",
		Version:     ServerVersion,
		Description: "A basic MCP Server with math tools",
		Tools:       toolNames(),
		Author:      "mcp-demo",
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      InfoURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func toolNames() []string {
	names := make([]string, 0, len(Tools))
	for _, t := range Tools {
		names = append(names, t.Name)
	}
	return names
}
