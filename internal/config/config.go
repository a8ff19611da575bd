package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the portal.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	PortalAPI PortalAPIConfig `yaml:"portal_api"`
	Org       OrgConfig       `yaml:"org"`
	CRM       CRMConfig       `yaml:"crm"`
	Billing   BillingConfig   `yaml:"billing"`
	Cache     CacheConfig     `yaml:"cache"`
	Images    ImagesConfig    `yaml:"images"`
	Content   ContentConfig   `yaml:"content"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig holds settings for the local stub backend.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetAddr returns the host:port address to bind.
func (c ServerConfig) GetAddr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// PortalAPIConfig holds connection settings for the portal REST backend.
type PortalAPIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the request timeout as a duration.
func (c PortalAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OrgConfig identifies the organization and project the portal operates on.
type OrgConfig struct {
	OrgID     string `yaml:"org_id"`
	OrgType   string `yaml:"org_type"` // "agency" or "client"
	ProjectID string `yaml:"project_id"`
	UserEmail string `yaml:"user_email"`
	Role      string `yaml:"role"` // "org_admin" or "member"
}

// CRMConfig holds pipeline behavior settings.
type CRMConfig struct {
	SearchDebounceMS    int `yaml:"search_debounce_ms"`
	StageUpdateTimeoutS int `yaml:"stage_update_timeout_seconds"`
	DetailLoadTimeoutS  int `yaml:"detail_load_timeout_seconds"`
}

// SearchDebounce returns the search debounce interval.
func (c CRMConfig) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// StageUpdateTimeout returns the per-call timeout for stage updates.
// An unbounded hang would leave a card in a state the server never confirmed.
func (c CRMConfig) StageUpdateTimeout() time.Duration {
	return time.Duration(c.StageUpdateTimeoutS) * time.Second
}

// DetailLoadTimeout returns the timeout for detail-panel sub-loads.
func (c CRMConfig) DetailLoadTimeout() time.Duration {
	return time.Duration(c.DetailLoadTimeoutS) * time.Second
}

// BillingConfig holds invoice behavior settings.
type BillingConfig struct {
	SuccessWindowSeconds int `yaml:"success_window_seconds"`
	MaxReminders         int `yaml:"max_reminders"`
}

// SuccessWindow returns how long the quick-invoice success state is shown
// before the form resets.
func (c BillingConfig) SuccessWindow() time.Duration {
	return time.Duration(c.SuccessWindowSeconds) * time.Second
}

// CacheConfig holds optional Redis cache settings for stage configuration.
type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the stage-cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ImagesConfig holds S3/CDN settings for commerce image hosting.
type ImagesConfig struct {
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucket_name"`
	CDNDomain  string `yaml:"cdn_domain"`
}

// ContentConfig holds blog content tooling settings.
type ContentConfig struct {
	FeedURL        string `yaml:"feed_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the feed fetch timeout.
func (c ContentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotifyConfig holds notification preference persistence settings.
type NotifyConfig struct {
	PreferencesPath string `yaml:"preferences_path"`
	MaxToasts       int    `yaml:"max_toasts"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file read.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.PortalAPI.BaseURL == "" {
		cfg.PortalAPI.BaseURL = "http://localhost:8080"
	}
	if cfg.PortalAPI.TimeoutSeconds == 0 {
		cfg.PortalAPI.TimeoutSeconds = 30
	}
	if cfg.PortalAPI.MaxRetries == 0 {
		cfg.PortalAPI.MaxRetries = 3
	}
	if cfg.Org.OrgType == "" {
		cfg.Org.OrgType = "client"
	}
	if cfg.Org.Role == "" {
		cfg.Org.Role = "org_admin"
	}
	if cfg.CRM.SearchDebounceMS == 0 {
		cfg.CRM.SearchDebounceMS = 300
	}
	if cfg.CRM.StageUpdateTimeoutS == 0 {
		cfg.CRM.StageUpdateTimeoutS = 15
	}
	if cfg.CRM.DetailLoadTimeoutS == 0 {
		cfg.CRM.DetailLoadTimeoutS = 30
	}
	if cfg.Billing.SuccessWindowSeconds == 0 {
		cfg.Billing.SuccessWindowSeconds = 5
	}
	if cfg.Billing.MaxReminders == 0 {
		cfg.Billing.MaxReminders = 3
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Images.Region == "" {
		cfg.Images.Region = "us-east-1"
	}
	if cfg.Content.TimeoutSeconds == 0 {
		cfg.Content.TimeoutSeconds = 20
	}
	if cfg.Notify.MaxToasts == 0 {
		cfg.Notify.MaxToasts = 50
	}
	if cfg.Notify.PreferencesPath == "" {
		cfg.Notify.PreferencesPath = defaultPreferencesPath()
	}
}

func defaultPreferencesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".portal-preferences.json"
	}
	return home + "/.portal-preferences.json"
}

// LoadFromEnv loads config from file, then overrides with environment variables.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORTAL_API_BASE_URL"); v != "" {
		cfg.PortalAPI.BaseURL = v
	}
	if v := os.Getenv("PORTAL_API_TOKEN"); v != "" {
		cfg.PortalAPI.Token = v
	}
	if v := os.Getenv("PORTAL_ORG_ID"); v != "" {
		cfg.Org.OrgID = v
	}
	if v := os.Getenv("PORTAL_ORG_TYPE"); v != "" {
		cfg.Org.OrgType = v
	}
	if v := os.Getenv("PORTAL_PROJECT_ID"); v != "" {
		cfg.Org.ProjectID = v
	}
	if v := os.Getenv("PORTAL_ORG_ROLE"); v != "" {
		cfg.Org.Role = v
	}
	if v := os.Getenv("PORTAL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("PORTAL_IMAGES_BUCKET"); v != "" {
		cfg.Images.BucketName = v
	}
	if v := os.Getenv("PORTAL_IMAGES_REGION"); v != "" {
		cfg.Images.Region = v
	}
	if v := os.Getenv("PORTAL_CDN_DOMAIN"); v != "" {
		cfg.Images.CDNDomain = v
	}
	if v := os.Getenv("PORTAL_FEED_URL"); v != "" {
		cfg.Content.FeedURL = v
	}

	return cfg, nil
}
