package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/zillow/mcp-expenses/expense"
)

const (
	envPrefix = "MCP_DEMO_"

	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"

	defaultDriver         = expense.DriverSQLite
	defaultMaxOpenConns   = 8
	defaultBusyTimeout    = 5 * time.Second
	categoriesFileName    = "categories.json"
	defaultCallTimeout    = 10 * time.Second
	defaultTransport      = TransportStdio
	defaultAddr           = "0.0.0.0:8000"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultLogMaxSizeMB   = 10
	defaultLogMaxFiles    = 5
	defaultDotEnvPath     = ".env"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Expenses ExpensesConfig `toml:"expenses"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Driver       string        `toml:"driver"`
	Path         string        `toml:"path"`
	DSN          string        `toml:"dsn"`
	MaxOpenConns int           `toml:"max_open_conns"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
}

type ExpensesConfig struct {
	CategoriesFile string        `toml:"categories_file"`
	CallTimeout    time.Duration `toml:"call_timeout"`
}

type ServerConfig struct {
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// LoadOptions controls where Load looks for settings. Env takes precedence
// over the process environment, which takes precedence over the .env file.
type LoadOptions struct {
	ConfigPath string
	DotEnvPath string
	Env        map[string]string
	Flags      FlagOverrides
}

// FlagOverrides carries command-line values. Nil fields were not set.
type FlagOverrides struct {
	Transport *string
	Addr      *string
	LogLevel  *string
}

func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       defaultDriver,
			Path:         DefaultDatabasePath(),
			MaxOpenConns: defaultMaxOpenConns,
			BusyTimeout:  defaultBusyTimeout,
		},
		Expenses: ExpensesConfig{
			CategoriesFile: DefaultCategoriesFile(),
			CallTimeout:    defaultCallTimeout,
		},
		Server: ServerConfig{
			Transport: defaultTransport,
			Addr:      defaultAddr,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// DefaultDatabasePath places the database in the system temp directory,
// which stays writable in sandboxed environments.
func DefaultDatabasePath() string {
	return filepath.Join(os.TempDir(), "expenses.db")
}

// DefaultCategoriesFile is categories.json next to the running executable, so
// the override file is found regardless of the working directory. It falls
// back to a working-directory relative name when the executable path is
// unknown.
func DefaultCategoriesFile() string {
	exe, err := os.Executable()
	if err != nil {
		return categoriesFileName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), categoriesFileName)
}

// Load resolves the configuration: defaults, then the TOML file, then the
// environment, then flags.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	env, err := newEnvLookup(opts)
	if err != nil {
		return Config{}, err
	}

	configPath, explicit := resolveConfigPath(opts, env)
	if err := loadAndApplyFile(configPath, explicit, &cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envLookup struct {
	explicit map[string]string
	dotenv   map[string]string
}

func newEnvLookup(opts LoadOptions) (envLookup, error) {
	path := opts.DotEnvPath
	if path == "" {
		path = defaultDotEnvPath
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return envLookup{}, fmt.Errorf("%w: read env file %q: %v", ErrInvalidConfig, path, err)
		}
		values = nil
	}
	return envLookup{explicit: opts.Env, dotenv: values}, nil
}

func (e envLookup) lookup(key string) (string, bool) {
	if value, ok := e.explicit[key]; ok {
		return value, true
	}
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	value, ok := e.dotenv[key]
	return value, ok
}

func resolveConfigPath(opts LoadOptions, env envLookup) (string, bool) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, true
	}
	if value, ok := env.lookup(envPrefix + "CONFIG"); ok && value != "" {
		return value, true
	}
	return "mcp-demo.toml", false
}

type rawConfig struct {
	Database *rawDatabase `toml:"database"`
	Expenses *rawExpenses `toml:"expenses"`
	Server   *rawServer   `toml:"server"`
	Logging  *rawLogging  `toml:"logging"`
}

type rawDatabase struct {
	Driver       *string `toml:"driver"`
	Path         *string `toml:"path"`
	DSN          *string `toml:"dsn"`
	MaxOpenConns *int    `toml:"max_open_conns"`
	BusyTimeout  *string `toml:"busy_timeout"`
}

type rawExpenses struct {
	CategoriesFile *string `toml:"categories_file"`
	CallTimeout    *string `toml:"call_timeout"`
}

type rawServer struct {
	Transport *string `toml:"transport"`
	Addr      *string `toml:"addr"`
	BaseURL   *string `toml:"base_url"`
	Token     *string `toml:"token"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, explicit bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	return applyRawConfig(cfg, raw)
}

func applyRawConfig(cfg *Config, raw rawConfig) error {
	if raw.Database != nil {
		setString(raw.Database.Driver, &cfg.Database.Driver)
		setString(raw.Database.Path, &cfg.Database.Path)
		setString(raw.Database.DSN, &cfg.Database.DSN)
		setInt(raw.Database.MaxOpenConns, &cfg.Database.MaxOpenConns)
		if err := setDuration("database.busy_timeout", raw.Database.BusyTimeout, &cfg.Database.BusyTimeout); err != nil {
			return err
		}
	}

	if raw.Expenses != nil {
		setString(raw.Expenses.CategoriesFile, &cfg.Expenses.CategoriesFile)
		if err := setDuration("expenses.call_timeout", raw.Expenses.CallTimeout, &cfg.Expenses.CallTimeout); err != nil {
			return err
		}
	}

	if raw.Server != nil {
		setString(raw.Server.Transport, &cfg.Server.Transport)
		setString(raw.Server.Addr, &cfg.Server.Addr)
		setString(raw.Server.BaseURL, &cfg.Server.BaseURL)
		setString(raw.Server.Token, &cfg.Server.Token)
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env envLookup) error {
	stringVars := []struct {
		key    string
		target *string
	}{
		{"DATABASE_DRIVER", &cfg.Database.Driver},
		{"DATABASE_PATH", &cfg.Database.Path},
		{"DATABASE_DSN", &cfg.Database.DSN},
		{"CATEGORIES_FILE", &cfg.Expenses.CategoriesFile},
		{"TRANSPORT", &cfg.Server.Transport},
		{"ADDR", &cfg.Server.Addr},
		{"BASE_URL", &cfg.Server.BaseURL},
		{"TOKEN", &cfg.Server.Token},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"LOG_FILE", &cfg.Logging.File},
	}
	for _, s := range stringVars {
		if value, ok := env.lookup(envPrefix + s.key); ok {
			*s.target = value
		}
	}

	intVars := []struct {
		key    string
		target *int
	}{
		{"DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB},
		{"LOG_MAX_FILES", &cfg.Logging.MaxFiles},
	}
	for _, i := range intVars {
		value, ok := env.lookup(envPrefix + i.key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse %s%s: %v", ErrInvalidConfig, envPrefix, i.key, err)
		}
		*i.target = parsed
	}

	durationVars := []struct {
		key    string
		target *time.Duration
	}{
		{"DATABASE_BUSY_TIMEOUT", &cfg.Database.BusyTimeout},
		{"CALL_TIMEOUT", &cfg.Expenses.CallTimeout},
	}
	for _, d := range durationVars {
		value, ok := env.lookup(envPrefix + d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse %s%s: %v", ErrInvalidConfig, envPrefix, d.key, err)
		}
		*d.target = parsed
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setString(flags.Transport, &cfg.Server.Transport)
	setString(flags.Addr, &cfg.Server.Addr)
	setString(flags.LogLevel, &cfg.Logging.Level)
}

func validate(cfg Config) error {
	switch cfg.Database.Driver {
	case expense.DriverSQLite:
		if cfg.Database.Path == "" {
			return fmt.Errorf("%w: database.path must not be empty", ErrInvalidConfig)
		}
	case expense.DriverPostgres:
		if cfg.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: database.driver must be %q or %q, got %q", ErrInvalidConfig, expense.DriverSQLite, expense.DriverPostgres, cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns < 0 {
		return fmt.Errorf("%w: database.max_open_conns must be >= 0", ErrInvalidConfig)
	}
	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("%w: database.busy_timeout must be >= 0", ErrInvalidConfig)
	}
	if cfg.Expenses.CallTimeout < 0 {
		return fmt.Errorf("%w: expenses.call_timeout must be >= 0", ErrInvalidConfig)
	}

	switch cfg.Server.Transport {
	case TransportStdio:
	case TransportSSE, TransportHTTP:
		if cfg.Server.Addr == "" {
			return fmt.Errorf("%w: server.addr is required for the %s transport", ErrInvalidConfig, cfg.Server.Transport)
		}
	default:
		return fmt.Errorf("%w: server.transport must be one of stdio, sse, http, got %q", ErrInvalidConfig, cfg.Server.Transport)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: logging.level %q is not one of debug, info, warn, error, fatal", ErrInvalidConfig, cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("%w: logging.format %q is not one of text, json, logfmt", ErrInvalidConfig, cfg.Logging.Format)
	}
	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}
