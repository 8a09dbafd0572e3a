package expenses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zillow/mcp-expenses/expense"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// ReadOnlyMessage is returned by add_expense when the database refuses
	// writes.
	ReadOnlyMessage = "Database is read-only. Check file permissions."

	defaultCallTimeout = 10 * time.Second
)

// Store is the storage engine used by the tool handlers.
type Store interface {
	Insert(ctx context.Context, e expense.NewExpense) (int64, error)
	ListRange(ctx context.Context, start, end string) ([]expense.Expense, error)
	Summarize(ctx context.Context, start, end, category string) ([]expense.CategorySummary, error)
}

// CategorySource supplies the JSON document served as the categories
// resource.
type CategorySource interface {
	Categories(ctx context.Context) ([]byte, error)
}

// Handlers adapts MCP tool calls to the store and wraps every outcome in a
// {"status": ...} envelope. Storage failures never escape as protocol errors.
type Handlers struct {
	store       Store
	categories  CategorySource
	callTimeout time.Duration
	logger      *log.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithCallTimeout bounds each tool call. Zero or negative disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Handlers) {
		h.callTimeout = d
	}
}

// WithLogger sets the logger used to report failed calls.
func WithLogger(l *log.Logger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandlers returns handlers backed by store and categories.
func NewHandlers(store Store, categories CategorySource, opts ...Option) *Handlers {
	h := &Handlers{
		store:       store,
		categories:  categories,
		callTimeout: defaultCallTimeout,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type addExpenseResult struct {
	Status  string `json:"status"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type listExpensesResult struct {
	Status   string            `json:"status"`
	Expenses []expense.Expense `json:"expenses"`
}

type summarizeResult struct {
	Status  string                    `json:"status"`
	Summary []expense.CategorySummary `json:"summary"`
}

type errorResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.callTimeout)
}

// HandleAddExpense inserts one expense.
func (h *Handlers) HandleAddExpense(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var (
		e   expense.NewExpense
		err error
	)
	if e.Date, err = stringArg(args, "date", true); err != nil {
		return invalidArguments(err), nil
	}
	if e.Amount, err = numberArg(args, "amount"); err != nil {
		return invalidArguments(err), nil
	}
	if e.Category, err = stringArg(args, "category", true); err != nil {
		return invalidArguments(err), nil
	}
	if e.Subcategory, err = stringArg(args, "subcategory", false); err != nil {
		return invalidArguments(err), nil
	}
	if e.Note, err = stringArg(args, "note", false); err != nil {
		return invalidArguments(err), nil
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	id, err := h.store.Insert(ctx, e)
	if err != nil {
		h.logger.Error("add_expense failed", "date", e.Date, "category", e.Category, "err", err)
		switch {
		case expense.IsReadOnly(err):
			return errorEnvelope(ReadOnlyMessage), nil
		case errors.Is(err, expense.ErrOperational):
			return errorEnvelope("Database operational error: " + causeMessage(err)), nil
		default:
			return errorEnvelope("Unexpected error: " + err.Error()), nil
		}
	}

	h.logger.Debug("expense added", "id", id, "date", e.Date, "category", e.Category)
	return jsonResult(addExpenseResult{
		Status:  StatusSuccess,
		ID:      id,
		Message: "Expense added successfully",
	})
}

// HandleListExpenses lists the expenses within an inclusive date range.
func (h *Handlers) HandleListExpenses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	start, err := stringArg(args, "start_date", true)
	if err != nil {
		return invalidArguments(err), nil
	}
	end, err := stringArg(args, "end_date", true)
	if err != nil {
		return invalidArguments(err), nil
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	expenses, err := h.store.ListRange(ctx, start, end)
	if err != nil {
		h.logger.Error("list_expenses failed", "start", start, "end", end, "err", err)
		return errorEnvelope("Error listing expenses: " + causeMessage(err)), nil
	}
	if expenses == nil {
		expenses = []expense.Expense{}
	}
	return jsonResult(listExpensesResult{Status: StatusSuccess, Expenses: expenses})
}

// HandleSummarize totals expenses by category within an inclusive date
// range, optionally restricted to one category.
func (h *Handlers) HandleSummarize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	start, err := stringArg(args, "start_date", true)
	if err != nil {
		return invalidArguments(err), nil
	}
	end, err := stringArg(args, "end_date", true)
	if err != nil {
		return invalidArguments(err), nil
	}
	category, err := stringArg(args, "category", false)
	if err != nil {
		return invalidArguments(err), nil
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	summary, err := h.store.Summarize(ctx, start, end, category)
	if err != nil {
		h.logger.Error("summarize failed", "start", start, "end", end, "category", category, "err", err)
		return errorEnvelope("Error summarizing expenses: " + causeMessage(err)), nil
	}
	if summary == nil {
		summary = []expense.CategorySummary{}
	}
	return jsonResult(summarizeResult{Status: StatusSuccess, Summary: summary})
}

// HandleCategories serves the category list. A read failure is reported in
// the same {"status": "error"} envelope the tools use.
func (h *Handlers) HandleCategories(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := h.categories.Categories(ctx)
	if err != nil {
		h.logger.Error("categories failed", "err", err)
		data, err = json.Marshal(errorResult{
			Status:  StatusError,
			Message: "Could not load categories: " + err.Error(),
		})
		if err != nil {
			return nil, err
		}
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CategoriesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorEnvelope("Unexpected error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorEnvelope(message string) *mcp.CallToolResult {
	data, _ := json.Marshal(errorResult{Status: StatusError, Message: message})
	return mcp.NewToolResultError(string(data))
}

func invalidArguments(err error) *mcp.CallToolResult {
	return errorEnvelope("Invalid arguments: " + err.Error())
}

// causeMessage returns the driver's message for operational errors and the
// full error otherwise.
func causeMessage(err error) string {
	var opErr *expense.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}

func stringArg(args map[string]any, name string, required bool) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%s is required", name)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return s, nil
}

func numberArg(args map[string]any, name string) (float64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", name)
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", name)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", name)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
	// Inf and NaN cannot be encoded back out as JSON once stored.
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return f, nil
}
