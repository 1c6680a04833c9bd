package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rcsync/internal/domain"
	"rcsync/internal/extract"
	"rcsync/internal/fetch"
	"rcsync/internal/reconcile"
	"rcsync/internal/scheduler"
	"rcsync/internal/source"
	"rcsync/internal/store"
)

const (
	DefaultConfigPath = "config.yaml"
	DefaultDBPath     = "./rcsync.db"
	DefaultOutputFile = "transaction_status.json"

	defaultSourceTimeoutSeconds = int(source.DefaultTimeout / time.Second)
	defaultFetchTimeoutSeconds  = int(fetch.DefaultTimeout / time.Second)
)

type Config struct {
	SourceDriver         string `yaml:"source_driver"`
	SourceURL            string `yaml:"source_url"`
	SourcePath           string `yaml:"source_path"`
	SourceTimeoutSeconds int    `yaml:"source_timeout_seconds"`

	StatusURLTemplate   string `yaml:"status_url_template"`
	UserAgent           string `yaml:"user_agent"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	Workers             int    `yaml:"workers"`

	Policy            string   `yaml:"policy"`
	ResolvedStatuses  []string `yaml:"resolved_statuses"`
	ExtractStrategy   string   `yaml:"extract_strategy"`
	MarkerPhrase      string   `yaml:"marker_phrase"`
	CommodityLabel    string   `yaml:"commodity_label"`
	AllowedQuantities []string `yaml:"allowed_quantities"`
	ReportingMonth    string   `yaml:"reporting_month"`
	Timezone          string   `yaml:"timezone"`

	StoreDriver string `yaml:"store_driver"`
	OutputFile  string `yaml:"output_file"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Key       string `yaml:"s3_key"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`

	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`

	DBPath string `yaml:"db_path"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	RunSchedule string `yaml:"run_schedule"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadDotEnv loads .env.local then .env. Variables already set win.
func LoadDotEnv() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}
	return nil
}

// ConfigPath picks the file to read: the explicit path, then CONFIG_PATH,
// then config.yaml.
func ConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return DefaultConfigPath
}

// Load reads the YAML file at path if it exists, applies env overrides and
// defaults, and validates the result.
func Load(path string) (Config, error) {
	// Preseeded so an explicit empty db_path disables history.
	cfg := Config{DBPath: DefaultDBPath}

	path = ConfigPath(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig is Load for entrypoints that cannot continue without config.
func LoadConfig() Config {
	if err := LoadDotEnv(); err != nil {
		log.Fatalf("Error loading env files: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.SourceDriver, "SOURCE_DRIVER")
	envOverride(&cfg.SourceURL, "SOURCE_URL")
	envOverride(&cfg.SourcePath, "SOURCE_PATH")
	envOverride(&cfg.StatusURLTemplate, "STATUS_URL_TEMPLATE")
	envOverride(&cfg.UserAgent, "USER_AGENT")
	envOverride(&cfg.Policy, "POLICY")
	envOverrideList(&cfg.ResolvedStatuses, "RESOLVED_STATUSES")
	envOverride(&cfg.ExtractStrategy, "EXTRACT_STRATEGY")
	envOverride(&cfg.MarkerPhrase, "MARKER_PHRASE")
	envOverride(&cfg.CommodityLabel, "COMMODITY_LABEL")
	envOverrideList(&cfg.AllowedQuantities, "ALLOWED_QUANTITIES")
	envOverride(&cfg.ReportingMonth, "REPORTING_MONTH")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.StoreDriver, "STORE_DRIVER")
	envOverride(&cfg.OutputFile, "OUTPUT_FILE")
	envOverride(&cfg.S3Bucket, "S3_BUCKET")
	envOverride(&cfg.S3Key, "S3_KEY")
	envOverride(&cfg.S3Region, "S3_REGION")
	envOverride(&cfg.S3Endpoint, "S3_ENDPOINT")
	envOverride(&cfg.S3AccessKeyID, "S3_ACCESS_KEY_ID")
	envOverride(&cfg.S3SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	envOverrideAllowEmpty(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.RunSchedule, "RUN_SCHEDULE")
	envOverride(&cfg.MetricsAddr, "METRICS_ADDR")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")

	for _, err := range []error{
		envOverrideInt(&cfg.SourceTimeoutSeconds, "SOURCE_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.FetchTimeoutSeconds, "FETCH_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.Workers, "WORKERS"),
		envOverrideBool(&cfg.S3PathStyle, "S3_PATH_STYLE"),
		envOverrideBool(&cfg.LogDevelopment, "LOG_DEVELOPMENT"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.SourceDriver == "" {
		cfg.SourceDriver = source.DriverHTTP
	}
	if cfg.SourceTimeoutSeconds == 0 {
		cfg.SourceTimeoutSeconds = defaultSourceTimeoutSeconds
	}
	if cfg.StatusURLTemplate == "" {
		cfg.StatusURLTemplate = fetch.DefaultURLTemplate
	}
	if cfg.FetchTimeoutSeconds == 0 {
		cfg.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if cfg.Workers == 0 {
		cfg.Workers = reconcile.DefaultWorkers
	}
	if cfg.Policy == "" {
		cfg.Policy = reconcile.PolicyUnresolved
	}
	if cfg.ExtractStrategy == "" {
		cfg.ExtractStrategy = extract.StrategyQuantity
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = store.DriverFile
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = DefaultOutputFile
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.SourceDriver {
	case source.DriverHTTP:
		if c.SourceURL == "" {
			return errors.New("source_url is required when source_driver=http")
		}
	case source.DriverFile:
		if c.SourcePath == "" {
			return errors.New("source_path is required when source_driver=file")
		}
	case source.DriverStore:
	default:
		return fmt.Errorf("source_driver must be 'http', 'file' or 'store', got '%s'", c.SourceDriver)
	}

	switch c.StoreDriver {
	case store.DriverFile:
	case store.DriverS3:
		if c.S3Bucket == "" || c.S3Key == "" {
			return errors.New("s3_bucket and s3_key are required when store_driver=s3")
		}
	default:
		return fmt.Errorf("store_driver must be 'file' or 's3', got '%s'", c.StoreDriver)
	}

	if !strings.Contains(c.StatusURLTemplate, "{id}") {
		return fmt.Errorf("invalid status_url_template '%s': missing {id} placeholder", c.StatusURLTemplate)
	}
	if c.Workers < 1 || c.Workers > reconcile.MaxWorkers {
		return fmt.Errorf("invalid workers '%d': must be between 1 and %d", c.Workers, reconcile.MaxWorkers)
	}
	if c.SourceTimeoutSeconds < 1 {
		return fmt.Errorf("invalid source_timeout_seconds '%d': must be >= 1", c.SourceTimeoutSeconds)
	}
	if c.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("invalid fetch_timeout_seconds '%d': must be >= 1", c.FetchTimeoutSeconds)
	}
	if _, err := c.ResolvedPolicy(); err != nil {
		return err
	}
	if _, err := extract.New(c.ExtractStrategy, c.ExtractOptions()); err != nil {
		return err
	}
	for _, q := range c.AllowedQuantities {
		if !strings.HasSuffix(q, ".000") {
			return fmt.Errorf("invalid allowed_quantities entry '%s': must look like 10.000", q)
		}
	}
	if c.ReportingMonth != "" {
		if _, err := domain.ParsePeriod(c.ReportingMonth); err != nil {
			return fmt.Errorf("invalid reporting_month: %w", err)
		}
	}
	if c.RunSchedule != "" {
		if _, err := scheduler.Parse(c.RunSchedule); err != nil {
			return fmt.Errorf("invalid run_schedule: %w", err)
		}
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}
	return nil
}

func (c Config) ResolvedPolicy() (reconcile.Policy, error) {
	return reconcile.PolicyByName(c.Policy, c.ResolvedStatuses)
}

func (c Config) ExtractOptions() extract.Options {
	return extract.Options{
		MarkerPhrase:      c.MarkerPhrase,
		CommodityLabel:    c.CommodityLabel,
		AllowedQuantities: c.AllowedQuantities,
	}
}

// Period is the configured reporting month, or the current month in the
// configured timezone.
func (c Config) Period(now time.Time) domain.ReportingPeriod {
	if c.ReportingMonth != "" {
		if p, err := domain.ParsePeriod(c.ReportingMonth); err == nil {
			return p
		}
	}
	return domain.CurrentPeriod(now, c.Location)
}

func (c Config) SourceConfig() source.Config {
	return source.Config{
		Driver:  c.SourceDriver,
		URL:     c.SourceURL,
		Path:    c.SourcePath,
		Timeout: time.Duration(c.SourceTimeoutSeconds) * time.Second,
	}
}

func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver: c.StoreDriver,
		Path:   c.OutputFile,
		S3: store.S3Config{
			Bucket:    c.S3Bucket,
			Key:       c.S3Key,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,

			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
		},
	}
}

func (c Config) HistoryEnabled() bool { return c.DBPath != "" }

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideList(field *[]string, envKey string) {
	if raw := os.Getenv(envKey); raw != "" {
		*field = nil
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				*field = append(*field, item)
			}
		}
	}
}
