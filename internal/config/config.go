package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cleanops/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Lifecycle     LifecycleConfig    `yaml:"lifecycle"`
	Notifications NotificationConfig `yaml:"notifications"`
	Telegram      TelegramConfig     `yaml:"telegram"`
	Evidence      EvidenceConfig     `yaml:"evidence"`
	Invoices      InvoiceConfig      `yaml:"invoices"`
	Jobs          JobsConfig         `yaml:"jobs"`
	CatalogPath   string             `yaml:"catalog_path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"` // cron expression with seconds
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// LifecycleConfig tunes the order state machine.
type LifecycleConfig struct {
	DefaultDurationMinutes int           `yaml:"default_duration_minutes"`
	LocationTimeout        time.Duration `yaml:"location_timeout"`
	LocationMaxAge         time.Duration `yaml:"location_max_age"`
	UploadTimeout          time.Duration `yaml:"upload_timeout"`
	ChecklistGate          string        `yaml:"checklist_gate"` // required | all
	RequireAfterPhotos     bool          `yaml:"require_after_photos"`
	PingRateLimit          int           `yaml:"ping_rate_limit"`
	PingRateWindow         time.Duration `yaml:"ping_rate_window"`
}

type NotificationConfig struct {
	WebhookURL      string        `yaml:"webhook_url"`
	WebhookToken    string        `yaml:"webhook_token"`
	Timeout         time.Duration `yaml:"timeout"`
	DefaultLanguage string        `yaml:"default_language"`
	MaxRetries      int           `yaml:"max_retries"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	BotToken          string        `yaml:"bot_token"`
	Debug             bool          `yaml:"debug"`
	RateLimitMessages int           `yaml:"rate_limit_messages"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

type EvidenceConfig struct {
	Mode                  string `yaml:"mode"` // local | azure
	LocalBasePath         string `yaml:"local_base_path"`
	PublicBaseURL         string `yaml:"public_base_url"`
	AzureConnectionString string `yaml:"azure_connection_string"`
	AzureContainer        string `yaml:"azure_container"`
}

type InvoiceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	Currency    string `yaml:"currency"`
	CompanyName string `yaml:"company_name"`
}

type JobsConfig struct {
	OutboxSweepSchedule string        `yaml:"outbox_sweep_schedule"`
	OutboxStaleAfter    time.Duration `yaml:"outbox_stale_after"`
}

const (
	GateRequired = "required"
	GateAll      = "all"
)

func Load(configPath string) (*Config, error) {
	// optional .env file
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// expand ${VAR} references before parsing
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.API.Auth.JWTSecret == "" || c.API.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("api.auth.jwt_secret is required")
	}
	switch c.Lifecycle.ChecklistGate {
	case GateRequired, GateAll:
	default:
		return fmt.Errorf("lifecycle.checklist_gate must be %q or %q", GateRequired, GateAll)
	}
	switch c.Evidence.Mode {
	case "local":
	case "azure":
		if c.Evidence.AzureConnectionString == "" {
			return errors.New("evidence.azure_connection_string is required for azure mode")
		}
	default:
		return fmt.Errorf("unsupported evidence mode: %s", c.Evidence.Mode)
	}
	if lang := c.Notifications.DefaultLanguage; lang != models.LanguageEN && lang != models.LanguageES {
		return fmt.Errorf("unsupported notification language: %s", lang)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.HTTP.MaxUploadMB == 0 {
		c.API.HTTP.MaxUploadMB = 10
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = "cleanops"
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Lifecycle.DefaultDurationMinutes == 0 {
		c.Lifecycle.DefaultDurationMinutes = models.DefaultDurationMinutes
	}
	if c.Lifecycle.LocationTimeout == 0 {
		c.Lifecycle.LocationTimeout = 10 * time.Second
	}
	if c.Lifecycle.LocationMaxAge == 0 {
		c.Lifecycle.LocationMaxAge = 5 * time.Minute
	}
	if c.Lifecycle.UploadTimeout == 0 {
		c.Lifecycle.UploadTimeout = 30 * time.Second
	}
	if c.Lifecycle.ChecklistGate == "" {
		c.Lifecycle.ChecklistGate = GateRequired
	}
	if c.Lifecycle.PingRateLimit == 0 {
		c.Lifecycle.PingRateLimit = 30
	}
	if c.Lifecycle.PingRateWindow == 0 {
		c.Lifecycle.PingRateWindow = time.Minute
	}

	if c.Notifications.Timeout == 0 {
		c.Notifications.Timeout = 10 * time.Second
	}
	if c.Notifications.DefaultLanguage == "" {
		c.Notifications.DefaultLanguage = models.LanguageEN
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Notifications.PollInterval == 0 {
		c.Notifications.PollInterval = 2 * time.Second
	}

	if c.Telegram.RateLimitMessages == 0 {
		c.Telegram.RateLimitMessages = 20
	}
	if c.Telegram.RateLimitWindow == 0 {
		c.Telegram.RateLimitWindow = time.Minute
	}

	if c.Evidence.Mode == "" {
		c.Evidence.Mode = "local"
	}
	if c.Evidence.LocalBasePath == "" {
		c.Evidence.LocalBasePath = "data/evidence"
	}
	if c.Evidence.AzureContainer == "" {
		c.Evidence.AzureContainer = "evidence"
	}
	if c.Invoices.Path == "" {
		c.Invoices.Path = "data/invoices"
	}
	if c.Invoices.Currency == "" {
		c.Invoices.Currency = "USD"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 0 3 * * *"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Jobs.OutboxSweepSchedule == "" {
		c.Jobs.OutboxSweepSchedule = "0 */5 * * * *"
	}
	if c.Jobs.OutboxStaleAfter == 0 {
		c.Jobs.OutboxStaleAfter = 10 * time.Minute
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
}

// LoadCatalog reads services, checklist templates and employees from a YAML file.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := ValidateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &catalog, nil
}

func ValidateCatalog(c *models.Catalog) error {
	services := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if strings.TrimSpace(s.ServiceType) == "" {
			return errors.New("service with empty service_type")
		}
		if services[s.ServiceType] {
			return fmt.Errorf("duplicate service type: %s", s.ServiceType)
		}
		if s.BasePrice < 0 || s.PricePerAreaUnit < 0 {
			return fmt.Errorf("service %s has negative price", s.ServiceType)
		}
		services[s.ServiceType] = true
	}

	itemIDs := make(map[int64]bool, len(c.ChecklistItems))
	for _, item := range c.ChecklistItems {
		if item.ID == 0 {
			return fmt.Errorf("checklist item '%s' has invalid ID 0", item.TextEN)
		}
		if itemIDs[item.ID] {
			return fmt.Errorf("duplicate checklist item ID found: %d", item.ID)
		}
		if !services[item.ServiceType] {
			return fmt.Errorf("checklist item %d references unknown service %s", item.ID, item.ServiceType)
		}
		if item.Frequency != "" && !models.IsValidFrequency(item.Frequency) {
			return fmt.Errorf("checklist item %d has invalid frequency %s", item.ID, item.Frequency)
		}
		itemIDs[item.ID] = true
	}

	employeeIDs := make(map[int64]bool, len(c.Employees))
	for _, e := range c.Employees {
		if e.ID == 0 {
			return fmt.Errorf("employee '%s' has invalid ID 0", e.Name)
		}
		if employeeIDs[e.ID] {
			return fmt.Errorf("duplicate employee ID found: %d", e.ID)
		}
		employeeIDs[e.ID] = true
	}
	return nil
}
