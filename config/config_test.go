package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zillow/mcp-expenses/expense"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadOptions{DotEnvPath: missingDotEnv(t)})
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, filepath.Join(os.TempDir(), "expenses.db"), cfg.Database.Path)
	require.Equal(t, TransportStdio, cfg.Server.Transport)
	require.Equal(t, expense.DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "0.0.0.0:8000", cfg.Server.Addr)
	require.Equal(t, 10*time.Second, cfg.Expenses.CallTimeout)
}

func TestLoadConfigPrecedenceFlagOverEnv(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "config.toml", `
[server]
transport = "sse"
`)

	transport := TransportHTTP
	cfg, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotEnvPath: missingDotEnv(t),
		Env:        map[string]string{"MCP_DEMO_TRANSPORT": "stdio"},
		Flags:      FlagOverrides{Transport: &transport},
	})
	require.NoError(t, err)
	require.Equal(t, TransportHTTP, cfg.Server.Transport)
}

func TestLoadConfigPrecedenceEnvOverFile(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "config.toml", `
[expenses]
call_timeout = "3s"
`)

	cfg, err := Load(LoadOptions{
		ConfigPath: cfgPath,
		DotEnvPath: missingDotEnv(t),
		Env:        map[string]string{"MCP_DEMO_CALL_TIMEOUT": "7s"},
	})
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, cfg.Expenses.CallTimeout)
}

func TestLoadConfigPrecedenceFileOverDefault(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "config.toml", `
[logging]
level = "debug"
`)

	cfg, err := Load(LoadOptions{ConfigPath: cfgPath, DotEnvPath: missingDotEnv(t)})
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigProcessEnvOverDotEnv(t *testing.T) {
	dotEnv := writeFile(t, ".env", "MCP_DEMO_DATABASE_PATH=/from/dotenv.db\nMCP_DEMO_ADDR=127.0.0.1:9000\n")
	t.Setenv("MCP_DEMO_DATABASE_PATH", "/from/process.db")

	cfg, err := Load(LoadOptions{DotEnvPath: dotEnv})
	require.NoError(t, err)
	require.Equal(t, "/from/process.db", cfg.Database.Path)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadConfigFromTOMLParsesAllSupportedFields(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, "config.toml", `
[database]
driver = "postgres"
path = "/var/lib/expenses.db"
dsn = "postgres://localhost/expenses?sslmode=disable"
max_open_conns = 4
busy_timeout = "2s"

[expenses]
categories_file = "/etc/mcp-demo/categories.json"
call_timeout = "30s"

[server]
transport = "http"
addr = "127.0.0.1:8080"
base_url = "http://localhost:8080"
token = "secret"

[logging]
level = "warn"
format = "json"
file = "/var/log/mcp-demo.log"
max_size_mb = 20
max_files = 3
`)

	cfg, err := Load(LoadOptions{ConfigPath: cfgPath, DotEnvPath: missingDotEnv(t)})
	require.NoError(t, err)
	require.Equal(t, Config{
		Database: DatabaseConfig{
			Driver:       expense.DriverPostgres,
			Path:         "/var/lib/expenses.db",
			DSN:          "postgres://localhost/expenses?sslmode=disable",
			MaxOpenConns: 4,
			BusyTimeout:  2 * time.Second,
		},
		Expenses: ExpensesConfig{
			CategoriesFile: "/etc/mcp-demo/categories.json",
			CallTimeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Transport: TransportHTTP,
			Addr:      "127.0.0.1:8080",
			BaseURL:   "http://localhost:8080",
			Token:     "secret",
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Format:    "json",
			File:      "/var/log/mcp-demo.log",
			MaxSizeMB: 20,
			MaxFiles:  3,
		},
	}, cfg)
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{
		ConfigPath: filepath.Join(t.TempDir(), "nope.toml"),
		DotEnvPath: missingDotEnv(t),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		toml string
		env  map[string]string
	}{
		{name: "malformed toml", toml: "[server\n"},
		{name: "bad duration", toml: "[expenses]\ncall_timeout = \"soon\"\n"},
		{name: "negative timeout", env: map[string]string{"MCP_DEMO_CALL_TIMEOUT": "-1s"}},
		{name: "bad int", env: map[string]string{"MCP_DEMO_LOG_MAX_FILES": "many"}},
		{name: "unknown driver", env: map[string]string{"MCP_DEMO_DATABASE_DRIVER": "oracle"}},
		{name: "postgres without dsn", env: map[string]string{"MCP_DEMO_DATABASE_DRIVER": "postgres"}},
		{name: "unknown transport", env: map[string]string{"MCP_DEMO_TRANSPORT": "websocket"}},
		{name: "http without addr", env: map[string]string{"MCP_DEMO_TRANSPORT": "http", "MCP_DEMO_ADDR": ""}},
		{name: "unknown level", env: map[string]string{"MCP_DEMO_LOG_LEVEL": "verbose"}},
		{name: "unknown format", env: map[string]string{"MCP_DEMO_LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := LoadOptions{DotEnvPath: missingDotEnv(t), Env: tt.env}
			if tt.toml != "" {
				opts.ConfigPath = writeFile(t, "config.toml", tt.toml)
			}

			_, err := Load(opts)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func missingDotEnv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".env")
}

func TestDefaultCategoriesFileSitsNextToExecutable(t *testing.T) {
	t.Parallel()

	exe, err := os.Executable()
	require.NoError(t, err)
	exe, err = filepath.EvalSymlinks(exe)
	require.NoError(t, err)

	got := DefaultCategoriesFile()
	require.True(t, filepath.IsAbs(got))
	require.Equal(t, filepath.Join(filepath.Dir(exe), "categories.json"), got)
}
