// Package expenses is the expense tracker MCP server: add, list and summarize
// tools over an expense.Store plus a categories resource.
package expenses

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "ExpenseTracker"
	ServerVersion = "1.0.0"

	CategoriesURI = "expense://categories"
)

var (
	AddExpenseTool = mcp.NewTool("add_expense",
		mcp.WithDescription("Add a new expense entry to the database."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Expense date as YYYY-MM-DD")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount spent")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Expense category")),
		mcp.WithString("subcategory", mcp.DefaultString(""), mcp.Description("Optional subcategory")),
		mcp.WithString("note", mcp.DefaultString(""), mcp.Description("Optional free-text note")),
	)

	ListExpensesTool = mcp.NewTool("list_expenses",
		mcp.WithDescription("List expense entries within an inclusive date range."),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("First date of the range, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("Last date of the range, YYYY-MM-DD")),
	)

	SummarizeTool = mcp.NewTool("summarize",
		mcp.WithDescription("Summarize expenses by category within an inclusive date range."),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("First date of the range, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("Last date of the range, YYYY-MM-DD")),
		mcp.WithString("category", mcp.Description("Only summarize this category")),
	)

	CategoriesResource = mcp.NewResource(CategoriesURI, "categories",
		mcp.WithResourceDescription("Get available expense categories."),
		mcp.WithMIMEType("application/json"),
	)
)

// NewServer builds the expense tracker MCP server around h.
func NewServer(h *Handlers, opts ...server.ServerOption) *server.MCPServer {
	opts = append([]server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	}, opts...)
	s := server.NewMCPServer(ServerName, ServerVersion, opts...)

	s.AddTools(
		server.ServerTool{Tool: AddExpenseTool, Handler: h.HandleAddExpense},
		server.ServerTool{Tool: ListExpensesTool, Handler: h.HandleListExpenses},
		server.ServerTool{Tool: SummarizeTool, Handler: h.HandleSummarize},
	)
	s.AddResource(CategoriesResource, h.HandleCategories)
	return s
}
