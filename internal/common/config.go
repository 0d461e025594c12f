package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Delivery modes
const (
	DeliveryModeFile     = "file"
	DeliveryModeSendGrid = "sendgrid"
	DeliveryModeSMTP     = "smtp"
)

// Config represents the application configuration
type Config struct {
	Environment     string         `toml:"environment"`      // "development" or "production"
	CredentialsFile string         `toml:"credentials_file"` // Account document (YAML or TOML) with Central credentials and allow-list
	EnvFile         string         `toml:"env_file"`         // Optional .env file loaded before environment overrides
	Central         CentralConfig  `toml:"central"`
	Report          ReportConfig   `toml:"report"`
	Delivery        DeliveryConfig `toml:"delivery"`
	Storage         StorageConfig  `toml:"storage"`
	Logging         LoggingConfig  `toml:"logging"`
}

// CentralConfig holds Aruba Central API client settings
type CentralConfig struct {
	PageLimit       int    `toml:"page_limit" validate:"min=1,max=1000"` // Records requested per RAPIDS page
	IncludeSuspects bool   `toml:"include_suspects"`                     // Also pull /rapids/v1/suspect_aps
	RequestTimeout  string `toml:"request_timeout" validate:"required"`  // e.g. "30s"
	RateLimit       int    `toml:"rate_limit" validate:"min=1"`          // Requests per second
	MaxRetries      int    `toml:"max_retries" validate:"min=0,max=10"`  // 0 disables retry
	RetryInterval   string `toml:"retry_interval"`                       // Initial backoff interval
	TokenMargin     string `toml:"token_margin"`                         // Refresh this long before expiry
}

// ReportConfig controls report content
type ReportConfig struct {
	Title      string `toml:"title" validate:"required"`
	IncludeAll bool   `toml:"include_all"` // Append every fetched RAPIDS record after the rogues
}

// DeliveryConfig selects where the rendered report goes
type DeliveryConfig struct {
	Mode        string `toml:"mode" validate:"oneof=file sendgrid smtp"`
	OutputPath  string `toml:"output_path" validate:"required"` // File mode destination, fallback copy in email modes
	Required    bool   `toml:"required"`                        // Email failure exits non-zero when true
	SendGridURL string `toml:"sendgrid_url" validate:"required,url"`
}

// StorageConfig configures the token cache
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Database directory path
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                       // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment:     "production",
		CredentialsFile: ".env.yaml",
		EnvFile:         ".env",
		Central: CentralConfig{
			PageLimit:       80, // RAPIDS default page size used by the Central UI
			IncludeSuspects: true,
			RequestTimeout:  "30s",
			RateLimit:       5, // Central allows 7 calls/second per account
			MaxRetries:      0,
			RetryInterval:   "500ms",
			TokenMargin:     "5m",
		},
		Report: ReportConfig{
			Title: "Wireless Rogue AP Report",
		},
		Delivery: DeliveryConfig{
			Mode:        DeliveryModeFile,
			OutputPath:  "./reports/rogues.html",
			SendGridURL: "https://api.sendgrid.com",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./temp/tokens",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> .env -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Source: path, Err: fmt.Errorf("failed to read config file: %w", err)}
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, &ConfigError{Source: path, Err: fmt.Errorf("failed to parse config file (file %d of %d): %w", i+1, len(paths), err)}
		}
	}

	if err := loadEnvFile(config.EnvFile); err != nil {
		return nil, err
	}

	applyEnvOverrides(config)

	return config, nil
}

// loadEnvFile populates the process environment from a dotenv file when it exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Source: path, Err: fmt.Errorf("failed to load env file: %w", err)}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ROGUES_ENV"); env != "" {
		config.Environment = env
	}
	if path := os.Getenv("ROGUES_CREDENTIALS_FILE"); path != "" {
		config.CredentialsFile = path
	}

	// Central configuration
	if limit := os.Getenv("ROGUES_CENTRAL_PAGE_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Central.PageLimit = l
		}
	}
	if suspects := os.Getenv("ROGUES_CENTRAL_INCLUDE_SUSPECTS"); suspects != "" {
		if s, err := strconv.ParseBool(suspects); err == nil {
			config.Central.IncludeSuspects = s
		}
	}
	if timeout := os.Getenv("ROGUES_CENTRAL_REQUEST_TIMEOUT"); timeout != "" {
		config.Central.RequestTimeout = timeout
	}
	if retries := os.Getenv("ROGUES_CENTRAL_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Central.MaxRetries = r
		}
	}

	// Report configuration
	if includeAll := os.Getenv("ROGUES_REPORT_INCLUDE_ALL"); includeAll != "" {
		if i, err := strconv.ParseBool(includeAll); err == nil {
			config.Report.IncludeAll = i
		}
	}

	// Delivery configuration
	if mode := os.Getenv("ROGUES_DELIVERY_MODE"); mode != "" {
		config.Delivery.Mode = strings.ToLower(mode)
	}
	if output := os.Getenv("ROGUES_DELIVERY_OUTPUT_PATH"); output != "" {
		config.Delivery.OutputPath = output
	}
	if required := os.Getenv("ROGUES_DELIVERY_REQUIRED"); required != "" {
		if r, err := strconv.ParseBool(required); err == nil {
			config.Delivery.Required = r
		}
	}

	// Storage configuration
	if badgerPath := os.Getenv("ROGUES_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if enabled := os.Getenv("ROGUES_BADGER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Badger.Enabled = e
		}
	}

	// Logging configuration
	if level := os.Getenv("ROGUES_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("ROGUES_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, credentialsFile, outputPath string) {
	if credentialsFile != "" {
		config.CredentialsFile = credentialsFile
	}
	if outputPath != "" {
		config.Delivery.OutputPath = outputPath
	}
}

// Validate checks struct constraints and duration fields
func (c *Config) Validate() error {
	if err := validateStruct("config", c); err != nil {
		return err
	}

	durations := map[string]string{
		"central.request_timeout": c.Central.RequestTimeout,
		"central.retry_interval":  c.Central.RetryInterval,
		"central.token_margin":    c.Central.TokenMargin,
	}
	var problems []string
	for _, field := range sortedKeys(durations) {
		value := durations[field]
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid duration %q", field, value))
		}
	}
	if len(problems) > 0 {
		return &ConfigError{Source: "config", Problems: problems}
	}

	return nil
}

// RequestTimeout returns the parsed Central HTTP timeout
func (c *Config) RequestTimeout() time.Duration {
	return parseDurationOr(c.Central.RequestTimeout, 30*time.Second)
}

// RetryInterval returns the parsed initial backoff interval
func (c *Config) RetryInterval() time.Duration {
	return parseDurationOr(c.Central.RetryInterval, 500*time.Millisecond)
}

// TokenMargin returns how long before expiry a cached access token is considered stale
func (c *Config) TokenMargin() time.Duration {
	return parseDurationOr(c.Central.TokenMargin, 5*time.Minute)
}

// FallbackPath returns the absolute-or-relative report path used by every delivery mode
func (c *Config) FallbackPath() string {
	return filepath.Clean(c.Delivery.OutputPath)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	return fallback
}
