package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"fieldbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig        `yaml:"app"`
	Database    DatabaseConfig   `yaml:"database"`
	Redis       RedisConfig      `yaml:"redis"`
	Backup      BackupConfig     `yaml:"backup"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Logging     LoggingConfig    `yaml:"logging"`
	API         APIConfig        `yaml:"api"`
	Booking     BookingConfig    `yaml:"booking"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Google      GoogleConfig     `yaml:"google"`
	Sync        SyncConfig       `yaml:"sync"`
	Exports     ExportConfig     `yaml:"exports"`
	CatalogPath string           `yaml:"catalog_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// BookingConfig holds the booking rules shared by every stadium.
type BookingConfig struct {
	Timezone           string        `yaml:"timezone"`
	MaxAdvanceDays     int           `yaml:"max_advance_days"`
	MaxOccurrences     int           `yaml:"max_occurrences"`
	FullRefundHours    int           `yaml:"full_refund_hours"`
	PartialRefundHours int           `yaml:"partial_refund_hours"`
	SlotLockTTL        time.Duration `yaml:"slot_lock_ttl"`
	SlotLockWait       time.Duration `yaml:"slot_lock_wait"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	Debug        bool    `yaml:"debug"`
	ManagerChats []int64 `yaml:"manager_chats"`
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
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
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

type GoogleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	CredentialsFile string        `yaml:"credentials_file"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	SheetName       string        `yaml:"sheet_name"`
	CacheRefresh    time.Duration `yaml:"cache_refresh"`
}

// SyncConfig настройки ретраев воркера синхронизации
type SyncConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking timezone %q: %w", c.Booking.Timezone, err)
	}
	if c.Booking.PartialRefundHours > c.Booking.FullRefundHours {
		return errors.New("partial_refund_hours must not exceed full_refund_hours")
	}
	if c.Booking.MaxOccurrences < 0 || c.Booking.MaxAdvanceDays < 0 {
		return errors.New("booking limits must not be negative")
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		return errors.New("telegram bot token is required")
	}
	if c.Google.Enabled && (c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "") {
		return errors.New("google credentials_file and spreadsheet_id are required")
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

// ValidateAPIKeys rejects empty and duplicate keys.
func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fieldbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Booking defaults
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = models.DefaultTimezone
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if c.Booking.MaxOccurrences == 0 {
		c.Booking.MaxOccurrences = models.DefaultMaxOccurrences
	}
	if c.Booking.FullRefundHours == 0 {
		c.Booking.FullRefundHours = models.FullRefundHours
	}
	if c.Booking.PartialRefundHours == 0 {
		c.Booking.PartialRefundHours = models.PartialRefundHours
	}
	if c.Booking.SlotLockTTL == 0 {
		c.Booking.SlotLockTTL = models.SlotLockTTL * time.Second
	}
	if c.Booking.SlotLockWait == 0 {
		c.Booking.SlotLockWait = 2 * time.Second
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Reservations"
	}
	if c.Google.CacheRefresh == 0 {
		c.Google.CacheRefresh = 10 * time.Minute
	}

	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 5
	}
	if c.Sync.InitialDelay == 0 {
		c.Sync.InitialDelay = 2 * time.Second
	}
	if c.Sync.MaxDelay == 0 {
		c.Sync.MaxDelay = 5 * time.Minute
	}
	if c.Sync.BackoffFactor == 0 {
		c.Sync.BackoffFactor = 2
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
	if c.Backup.Interval <= 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./data/backups"
	}
}

// LoadCatalog reads the stadium, field, schedule and staff seed file.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := ValidateCatalog(&catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// ValidateCatalog checks ids are unique and references resolve.
func ValidateCatalog(c *models.Catalog) error {
	stadiums := make(map[string]bool)
	for _, s := range c.Stadiums {
		if s.ID == "" {
			return fmt.Errorf("stadium '%s' has empty id", s.Name)
		}
		if stadiums[s.ID] {
			return fmt.Errorf("duplicate stadium id: %s", s.ID)
		}
		stadiums[s.ID] = true
	}

	fields := make(map[string]bool)
	for _, f := range c.Fields {
		if f.ID == "" {
			return fmt.Errorf("field '%s' has empty id", f.Name)
		}
		if fields[f.ID] {
			return fmt.Errorf("duplicate field id: %s", f.ID)
		}
		if !stadiums[f.StadiumID] {
			return fmt.Errorf("field %s references unknown stadium %s", f.ID, f.StadiumID)
		}
		if f.BaseHourlyRate < 0 {
			return fmt.Errorf("field %s has negative hourly rate", f.ID)
		}
		fields[f.ID] = true
	}

	for _, s := range c.Schedules {
		if !fields[s.FieldID] {
			return fmt.Errorf("schedule references unknown field %s", s.FieldID)
		}
	}

	staff := make(map[string]bool)
	for _, m := range c.Staff {
		if m.ID == "" {
			return errors.New("staff member has empty id")
		}
		if staff[m.ID] {
			return fmt.Errorf("duplicate staff id: %s", m.ID)
		}
		if !stadiums[m.StadiumID] {
			return fmt.Errorf("staff %s references unknown stadium %s", m.ID, m.StadiumID)
		}
		staff[m.ID] = true
	}
	return nil
}
