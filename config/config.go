package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// MinRAM is the smallest amount of guest memory a session accepts.
	MinRAM uint64 = 100 * 1024 * 1024

	// DefaultCatalogURL serves the quickget OS list.
	DefaultCatalogURL = "https://quickemu-project.github.io/quickget_data/os_list.json"
)

type Config struct {
	DB       DBConfig       `yaml:"db"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Download DownloadConfig `yaml:"download"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

type DBConfig struct {
	DBPath string `yaml:"path"`   // Path to store db file
	DBFile string `yaml:"file"`   // Name of database file
	Bucket string `yaml:"bucket"` // Prefix for all buckets

	MaxHistory int `yaml:"max_history"` // Finished sessions kept in the history, 0 keeps all
}

type CatalogConfig struct {
	URL  string `yaml:"url"`  // Remote JSON catalog
	File string `yaml:"file"` // Local JSON or YAML catalog, takes precedence over URL
}

type DownloadConfig struct {
	Dir           string `yaml:"dir"`             // Fallback VM directory when none is remembered
	RAM           uint64 `yaml:"ram"`             // Default guest RAM in bytes
	UserAgent     string `yaml:"user_agent"`      // User-Agent sent with every HTTP transfer
	MaxParallel   int    `yaml:"max_parallel"`    // Concurrent transfers per session, 0 for no limit
	CancelOnError bool   `yaml:"cancel_on_error"` // Stop sibling transfers after the first failure
}

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`         // Listen address of the control API
	CORSOrigins []string `yaml:"cors_origins"` // Browser origins allowed to call the API
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Defaults holds the default configuration values which can be overridden by environment variables
var Defaults = Config{
	DB: DBConfig{
		DBPath: getEnv("VMGET_DB_PATH", defaultDataDir()),
		DBFile: getEnv("VMGET_DB_FILE", "vmget.db"),
		Bucket: getEnv("VMGET_DB_BUCKET", "vmget"),

		MaxHistory: getEnvInt("VMGET_MAX_HISTORY", 100),
	},
	Catalog: CatalogConfig{
		URL:  getEnv("VMGET_CATALOG_URL", DefaultCatalogURL),
		File: getEnv("VMGET_CATALOG_FILE", ""),
	},
	Download: DownloadConfig{
		Dir:         getEnv("VMGET_VM_DIR", defaultVMDir()),
		RAM:         getEnvUint("VMGET_RAM", 4*1024*1024*1024),
		UserAgent:   getEnv("VMGET_USER_AGENT", "vmget"),
		MaxParallel: getEnvInt("VMGET_MAX_PARALLEL", 0),
	},
	HTTP: HTTPConfig{
		Addr: getEnv("VMGET_HTTP_ADDR", "127.0.0.1:8080"),
	},
	Log: LogConfig{
		Level:  getEnv("VMGET_LOG_LEVEL", "info"),
		Format: getEnv("VMGET_LOG_FORMAT", "text"),
	},
}

// LoadDefault returns a copy of Defaults after applying any .env file in the working directory.
func LoadDefault() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := Defaults
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from a YAML file on top of the defaults.
// Environment variables referenced as ${VAR} in the file are expanded.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadDefault()
	}
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := Defaults
	applyEnv(&cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors and fills derived defaults
func (c *Config) Validate() error {
	if c.DB.DBFile == "" {
		return fmt.Errorf("db.file is required")
	}
	if c.DB.Bucket == "" {
		return fmt.Errorf("db.bucket is required")
	}
	if c.Catalog.URL == "" && c.Catalog.File == "" {
		return fmt.Errorf("catalog.url or catalog.file is required")
	}
	if c.DB.MaxHistory < 0 {
		return fmt.Errorf("db.max_history must not be negative")
	}
	if c.Download.MaxParallel < 0 {
		return fmt.Errorf("download.max_parallel must not be negative")
	}
	if c.Download.RAM < MinRAM {
		return fmt.Errorf("download.ram must be at least %d bytes", MinRAM)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}

	if c.DB.DBPath == "" {
		c.DB.DBPath = "."
	}
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = "vmget"
	}
	return nil
}

// DBFilePath returns the full path of the bbolt database file
func (c *Config) DBFilePath() string {
	return filepath.Join(c.DB.DBPath, c.DB.DBFile)
}

// loadDotEnv loads a .env file from the working directory if there is one.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// applyEnv re-reads environment overrides so values from a .env file loaded
// after package initialisation still take effect.
func applyEnv(cfg *Config) {
	cfg.DB.DBPath = getEnv("VMGET_DB_PATH", cfg.DB.DBPath)
	cfg.DB.DBFile = getEnv("VMGET_DB_FILE", cfg.DB.DBFile)
	cfg.DB.Bucket = getEnv("VMGET_DB_BUCKET", cfg.DB.Bucket)
	cfg.DB.MaxHistory = getEnvInt("VMGET_MAX_HISTORY", cfg.DB.MaxHistory)
	cfg.Catalog.URL = getEnv("VMGET_CATALOG_URL", cfg.Catalog.URL)
	cfg.Catalog.File = getEnv("VMGET_CATALOG_FILE", cfg.Catalog.File)
	cfg.Download.Dir = getEnv("VMGET_VM_DIR", cfg.Download.Dir)
	cfg.Download.RAM = getEnvUint("VMGET_RAM", cfg.Download.RAM)
	cfg.Download.UserAgent = getEnv("VMGET_USER_AGENT", cfg.Download.UserAgent)
	cfg.Download.MaxParallel = getEnvInt("VMGET_MAX_PARALLEL", cfg.Download.MaxParallel)
	cfg.HTTP.Addr = getEnv("VMGET_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Log.Level = getEnv("VMGET_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("VMGET_LOG_FORMAT", cfg.Log.Format)
}

// getEnv returns the value of the environment variable key if it exists, otherwise it returns the fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vmget")
	}
	return "."
}

func defaultVMDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
