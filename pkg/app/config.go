package app

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"buffet/pkg/catalog"
)

// Config captures CLI flags so the buffet service can run with a single Run call.
type Config struct {
	showVersion   bool
	configFile    string
	port          int
	store         string
	storePath     string
	dsn           string
	spreadsheetID string
	credentials   string
	redisURL      string
	commitTimeout time.Duration
	seed          bool

	File FileConfig
}

// FileConfig is the optional YAML file given with -config. Zero values keep the defaults.
type FileConfig struct {
	StockSheet        string          `yaml:"stock_sheet"`
	SalesSheet        string          `yaml:"sales_sheet"`
	SpacePrefix       string          `yaml:"space_prefix"`
	Layout            *catalog.Layout `yaml:"layout"`
	CatalogAttempts   int             `yaml:"catalog_attempts"`
	CatalogRetryDelay time.Duration   `yaml:"catalog_retry_delay"`
	QueueTimeout      time.Duration   `yaml:"queue_timeout"`
}

// Store backends accepted by -store.
const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
	storePgx    = "pgx"
	storeSheets = "sheets"
)

// address converts CLI port configuration into a binding string.
func (c Config) address() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + strconv.Itoa(c.port)
}

// layout returns the configured column layout or the default one.
func (c Config) layout() catalog.Layout {
	if c.File.Layout != nil {
		return *c.File.Layout
	}
	return catalog.DefaultLayout()
}

// parseFlags uses a dedicated FlagSet so Run can be called from multiple entry points.
// Environment variables supply defaults that explicit flags override.
func parseFlags(args []string) (Config, error) {
	set := flag.NewFlagSet("buffet", flag.ContinueOnError)
	set.SetOutput(io.Discard)

	var cfg Config
	set.BoolVar(&cfg.showVersion, "version", false, "Show the application version")
	set.StringVar(&cfg.configFile, "config", getEnv("BUFFET_CONFIG", ""), "YAML file with sheet names, column layout and retry settings")
	set.IntVar(&cfg.port, "port", 8765, "Port for the HTTP server; the PORT variable takes precedence")
	set.StringVar(&cfg.store, "store", getEnv("BUFFET_STORE", storeMemory), "Backend: memory, sqlite, pgx (PostgreSQL) or sheets (Google Sheets)")
	set.StringVar(&cfg.storePath, "store-path", getEnv("BUFFET_STORE_PATH", ""), "Snapshot file for memory, database file for sqlite")
	set.StringVar(&cfg.dsn, "dsn", getEnv("DATABASE_URL", ""), "PostgreSQL connection string for -store pgx")
	set.StringVar(&cfg.spreadsheetID, "spreadsheet-id", getEnv("GOOGLE_SPREADSHEET_ID", ""), "Spreadsheet for -store sheets")
	set.StringVar(&cfg.credentials, "credentials", getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""), "Service account key file for -store sheets")
	set.StringVar(&cfg.redisURL, "redis-url", getEnv("REDIS_URL", ""), "Share the commit lock through Redis when several replicas run")
	set.DurationVar(&cfg.commitTimeout, "commit-timeout", 10*time.Second, "Upper bound for one order commit")
	set.BoolVar(&cfg.seed, "seed", false, "Fill an empty stock sheet with a demo catalog")

	if err := set.Parse(args); err != nil {
		return Config{}, err
	}

	switch cfg.store {
	case storeMemory, storeSQLite, storePgx, storeSheets:
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.store)
	}
	if cfg.store == storePgx && cfg.dsn == "" {
		return Config{}, fmt.Errorf("-store pgx needs -dsn or DATABASE_URL")
	}
	if cfg.store == storeSheets && cfg.spreadsheetID == "" {
		return Config{}, fmt.Errorf("-store sheets needs -spreadsheet-id or GOOGLE_SPREADSHEET_ID")
	}

	if cfg.configFile != "" {
		file, err := loadFile(cfg.configFile)
		if err != nil {
			return Config{}, err
		}
		cfg.File = file
	}
	if err := cfg.layout().Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	var file FileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return file, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
