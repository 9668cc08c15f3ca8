// Package config handles configuration management with validation
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"margin_maker/internal/core"
	"margin_maker/internal/risk"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Managers    []ManagerConfig   `yaml:"managers"`
	Risk        RiskConfig        `yaml:"risk"`
	Timing      TimingConfig      `yaml:"timing"`
	Oracle      OracleConfig      `yaml:"oracle"`
	Store       StoreConfig       `yaml:"store"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Alert       AlertConfig       `yaml:"alert"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Network core.Network `yaml:"network"`
	DryRun  bool         `yaml:"dry_run"` // Log decisions instead of handing them to an executor
}

// ManagerConfig identifies one margin manager to watch
type ManagerConfig struct {
	Key        string     `yaml:"key"`
	Address    string     `yaml:"address"`
	PoolKey    string     `yaml:"pool_key"`
	BaseAsset  core.Asset `yaml:"base_asset"`
	QuoteAsset core.Asset `yaml:"quote_asset"`
}

// RiskConfig contains the evaluation thresholds and rebalance policy
type RiskConfig struct {
	Thresholds      core.Thresholds `yaml:"thresholds"`
	CooldownSeconds int             `yaml:"cooldown_seconds"`
	WithdrawExcess  bool            `yaml:"withdraw_excess"`
	MinWithdraw     float64         `yaml:"min_withdraw"` // quote units
}

// TimingConfig contains timing-related settings
type TimingConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	OracleTimeoutMs     int `yaml:"oracle_timeout_ms"`
}

// OracleConfig overrides the per-network price service settings
type OracleConfig struct {
	Endpoint   string `yaml:"endpoint"` // Empty means the network's Hermes endpoint
	MaxRetries int    `yaml:"max_retries"`
}

// StoreConfig selects the rebalance ledger backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console or json
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	EvalPoolSize   int `yaml:"eval_pool_size"`
	EvalPoolBuffer int `yaml:"eval_pool_buffer"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort      int     `yaml:"metrics_port"`
	EnableMetrics    bool    `yaml:"enable_metrics"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
	TraceFile        string  `yaml:"trace_file"` // Empty drops spans
	ExportLogs       bool    `yaml:"export_logs"`
}

// AlertConfig contains alert delivery settings
type AlertConfig struct {
	SlackWebhookURL    Secret `yaml:"slack_webhook_url"`
	MinIntervalSeconds int    `yaml:"min_interval_seconds"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML content on top of DefaultConfig and validates the result
func ParseConfig(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	checks := []func() error{
		c.validateAppConfig,
		c.validateManagers,
		c.validateRiskConfig,
		c.validateTimingConfig,
		c.validateOracleConfig,
		c.validateStoreConfig,
		c.validateSystemConfig,
		c.validateConcurrencyConfig,
		c.validateTelemetryConfig,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	if _, err := NetworkConfigFor(c.App.Network); err != nil {
		return ValidationError{
			Field:   "app.network",
			Value:   c.App.Network,
			Message: "must be one of: mainnet, testnet",
		}
	}
	return nil
}

func (c *Config) validateManagers() error {
	if len(c.Managers) == 0 {
		return ValidationError{
			Field:   "managers",
			Message: "at least one margin manager must be configured",
		}
	}

	seen := make(map[string]bool, len(c.Managers))
	for i, m := range c.Managers {
		field := fmt.Sprintf("managers[%d]", i)
		if m.Key == "" {
			return ValidationError{Field: field + ".key", Message: "manager key is required"}
		}
		if seen[m.Key] {
			return ValidationError{Field: field + ".key", Value: m.Key, Message: "duplicate manager key"}
		}
		seen[m.Key] = true

		if m.BaseAsset == m.QuoteAsset {
			return ValidationError{
				Field:   field,
				Value:   m.BaseAsset,
				Message: "base and quote asset must differ",
			}
		}
		for _, a := range []core.Asset{m.BaseAsset, m.QuoteAsset} {
			if _, err := a.Decimals(); err != nil {
				return ValidationError{Field: field, Value: a, Message: err.Error()}
			}
		}
	}
	return nil
}

func (c *Config) validateRiskConfig() error {
	if err := risk.ValidateThresholds(c.Risk.Thresholds); err != nil {
		return ValidationError{
			Field:   "risk.thresholds",
			Value:   c.Risk.Thresholds,
			Message: err.Error(),
		}
	}
	if c.Risk.CooldownSeconds < 0 {
		return ValidationError{
			Field:   "risk.cooldown_seconds",
			Value:   c.Risk.CooldownSeconds,
			Message: "cooldown must not be negative",
		}
	}
	if c.Risk.MinWithdraw < 0 {
		return ValidationError{
			Field:   "risk.min_withdraw",
			Value:   c.Risk.MinWithdraw,
			Message: "minimum withdrawal must not be negative",
		}
	}
	return nil
}

func (c *Config) validateTimingConfig() error {
	if c.Timing.PollIntervalSeconds < 1 || c.Timing.PollIntervalSeconds > 3600 {
		return ValidationError{
			Field:   "timing.poll_interval_seconds",
			Value:   c.Timing.PollIntervalSeconds,
			Message: "must be between 1 and 3600",
		}
	}
	if c.Timing.OracleTimeoutMs < 1 {
		return ValidationError{
			Field:   "timing.oracle_timeout_ms",
			Value:   c.Timing.OracleTimeoutMs,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validateOracleConfig() error {
	if c.Oracle.Endpoint != "" {
		u, err := url.Parse(c.Oracle.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{
				Field:   "oracle.endpoint",
				Value:   c.Oracle.Endpoint,
				Message: "must be an absolute URL",
			}
		}
	}
	if c.Oracle.MaxRetries < 0 {
		return ValidationError{
			Field:   "oracle.max_retries",
			Value:   c.Oracle.MaxRetries,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateStoreConfig() error {
	switch c.Store.Driver {
	case "memory":
		return nil
	case "sqlite":
		if c.Store.Path == "" {
			return ValidationError{
				Field:   "store.path",
				Message: "path is required for the sqlite driver",
			}
		}
		return nil
	default:
		return ValidationError{
			Field:   "store.driver",
			Value:   c.Store.Driver,
			Message: "must be one of: memory, sqlite",
		}
	}
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	if f := strings.ToLower(c.System.LogFormat); f != "" && f != "console" && f != "json" {
		return ValidationError{
			Field:   "system.log_format",
			Value:   c.System.LogFormat,
			Message: "must be one of: console, json",
		}
	}
	return nil
}

func (c *Config) validateConcurrencyConfig() error {
	if c.Concurrency.EvalPoolSize < 1 || c.Concurrency.EvalPoolSize > 100 {
		return ValidationError{
			Field:   "concurrency.eval_pool_size",
			Value:   c.Concurrency.EvalPoolSize,
			Message: "must be between 1 and 100",
		}
	}
	return nil
}

func (c *Config) validateTelemetryConfig() error {
	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort < 1 || c.Telemetry.MetricsPort > 65535) {
		return ValidationError{
			Field:   "telemetry.metrics_port",
			Value:   c.Telemetry.MetricsPort,
			Message: "must be a valid TCP port when metrics are enabled",
		}
	}
	if c.Telemetry.TraceSampleRatio < 0 || c.Telemetry.TraceSampleRatio > 1 {
		return ValidationError{
			Field:   "telemetry.trace_sample_ratio",
			Value:   c.Telemetry.TraceSampleRatio,
			Message: "must be between 0 and 1",
		}
	}
	return nil
}

// Cooldown returns the configured rebalance cooldown. An omitted
// cooldown_seconds keeps the DefaultConfig value; an explicit 0 disables it.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Risk.CooldownSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timing.PollIntervalSeconds) * time.Second
}

func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Timing.OracleTimeoutMs) * time.Millisecond
}

func (c *Config) AlertInterval() time.Duration {
	return time.Duration(c.Alert.MinIntervalSeconds) * time.Second
}

// OracleEndpoint returns the configured override or the network default
func (c *Config) OracleEndpoint() (string, error) {
	if c.Oracle.Endpoint != "" {
		return c.Oracle.Endpoint, nil
	}
	nc, err := NetworkConfigFor(c.App.Network)
	if err != nil {
		return "", err
	}
	return nc.PriceServiceEndpoint, nil
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Network: core.NetworkMainnet,
			DryRun:  true,
		},
		Managers: []ManagerConfig{
			{
				Key:        "primary",
				PoolKey:    "SUI_USDC",
				BaseAsset:  core.AssetSUI,
				QuoteAsset: core.AssetUSDC,
			},
		},
		Risk: RiskConfig{
			Thresholds: core.Thresholds{
				Target:      2.0,
				Warning:     1.5,
				Danger:      1.2,
				Liquidation: 1.05,
			},
			CooldownSeconds: int(risk.DefaultCooldown / time.Second),
			WithdrawExcess:  false,
			MinWithdraw:     1.0,
		},
		Timing: TimingConfig{
			PollIntervalSeconds: 30,
			OracleTimeoutMs:     5000,
		},
		Oracle: OracleConfig{
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		System: SystemConfig{
			LogLevel:  "INFO",
			LogFormat: "console",
		},
		Concurrency: ConcurrencyConfig{
			EvalPoolSize:   4,
			EvalPoolBuffer: 64,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:      9090,
			EnableMetrics:    true,
			TraceSampleRatio: 0.1,
		},
		Alert: AlertConfig{
			MinIntervalSeconds: 300,
		},
	}
}
