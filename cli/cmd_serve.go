package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zillow/mcp-expenses/expense"
	"github.com/zillow/mcp-expenses/servers/calculator"
	"github.com/zillow/mcp-expenses/servers/expenses"
	"github.com/zillow/mcp-expenses/transport"
)

func newCalculatorCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "calculator",
		Short: "Serve the calculator tools (add, random_number)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd, deps)
			if err != nil {
				return err
			}
			defer rt.Close()

			s := calculator.NewServer()
			rt.logger.Info("starting server", "name", calculator.ServerName, "transport", rt.cfg.Server.Transport)
			return transport.Run(cmd.Context(), s, rt.transportOptions(deps))
		},
	}
}

func newExpensesCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "expenses",
		Short: "Serve the expense tracker tools and categories resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd, deps)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			db := rt.cfg.Database
			store, err := expense.Open(ctx, expense.StoreConfig{
				Driver:       db.Driver,
				Path:         db.Path,
				DSN:          db.DSN,
				MaxOpenConns: db.MaxOpenConns,
				BusyTimeout:  db.BusyTimeout,
			})
			if err != nil {
				rt.logger.Error("database initialization failed", "driver", db.Driver, "path", db.Path, "err", err)
				return withExitCode(ExitCodeStorage, err)
			}
			defer store.Close()

			count, err := store.Count(ctx)
			if err != nil {
				return withExitCode(ExitCodeStorage, fmt.Errorf("count expenses: %w", err))
			}
			rt.logger.Info("database ready", "driver", store.Driver(), "path", store.Path(), "expenses", count)

			handlers := expenses.NewHandlers(store,
				expense.NewCategoryProvider(rt.cfg.Expenses.CategoriesFile),
				expenses.WithCallTimeout(rt.cfg.Expenses.CallTimeout),
				expenses.WithLogger(rt.logger),
			)
			s := expenses.NewServer(handlers)

			rt.logger.Info("starting server", "name", expenses.ServerName, "transport", rt.cfg.Server.Transport)
			return transport.Run(ctx, s, rt.transportOptions(deps))
		},
	}
}
