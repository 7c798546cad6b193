// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SERVICE_FUSION_CLIENT_ID
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders inside string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Service Fusion credentials
	if cfg.ServiceFusion.ClientID == "" {
		if val := os.Getenv("SF_CLIENT_ID"); val != "" {
			cfg.ServiceFusion.ClientID = val
		}
	}
	if cfg.ServiceFusion.ClientSecret == "" {
		if val := os.Getenv("SF_CLIENT_SECRET"); val != "" {
			cfg.ServiceFusion.ClientSecret = val
		}
	}

	// GoHighLevel credentials
	if cfg.GoHighLevel.APIKey == "" {
		if val := os.Getenv("GHL_API_KEY"); val != "" {
			cfg.GoHighLevel.APIKey = val
		}
	}
	if cfg.GoHighLevel.LocationID == "" {
		if val := os.Getenv("GHL_LOCATION_ID"); val != "" {
			cfg.GoHighLevel.LocationID = val
		}
	}
	if cfg.GoHighLevel.PipelineID == "" {
		if val := os.Getenv("GHL_PIPELINE_ID"); val != "" {
			cfg.GoHighLevel.PipelineID = val
		}
	}

	// Alert webhook
	if cfg.Notifications.WebhookURL == "" {
		if val := os.Getenv("ALERT_WEBHOOK_URL"); val != "" {
			cfg.Notifications.WebhookURL = val
		}
	}

	// Redis overrides
	if cfg.State.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.State.Redis.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// API defaults
	if cfg.ServiceFusion.BaseURL == "" {
		cfg.ServiceFusion.BaseURL = "https://api.servicefusion.com/v1"
	}
	if cfg.ServiceFusion.Timeout == 0 {
		cfg.ServiceFusion.Timeout = 30000
	}
	if cfg.ServiceFusion.Timezone == "" {
		cfg.ServiceFusion.Timezone = "America/New_York"
	}
	if cfg.GoHighLevel.BaseURL == "" {
		cfg.GoHighLevel.BaseURL = "https://services.leadconnectorhq.com"
	}
	if cfg.GoHighLevel.Timeout == 0 {
		cfg.GoHighLevel.Timeout = 30000
	}
	if cfg.GoHighLevel.CustomFields.WorkOrderFieldKey == "" {
		cfg.GoHighLevel.CustomFields.WorkOrderFieldKey = "crm_job_id"
	}

	// Sync loop defaults
	if cfg.Sync.IntervalMinutes == 0 {
		cfg.Sync.IntervalMinutes = 5
	}
	if cfg.Sync.LookbackHours == 0 {
		cfg.Sync.LookbackHours = 24
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.MaxResults == 0 {
		cfg.Sync.MaxResults = 100
	}

	// State defaults
	if cfg.State.Backend == "" {
		cfg.State.Backend = "file"
	}
	if cfg.State.FilePath == "" {
		cfg.State.FilePath = "sync_state.json"
	}
	if cfg.State.Redis.KeyPrefix == "" {
		cfg.State.Redis.KeyPrefix = "sfsync"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Notification defaults
	if cfg.Notifications.Channel == "" {
		if cfg.Notifications.WebhookURL != "" {
			cfg.Notifications.Channel = "webhook"
		} else {
			cfg.Notifications.Channel = "none"
		}
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.ServiceFusion.ClientID == "" {
		return fmt.Errorf("service_fusion.client_id is required")
	}
	if cfg.ServiceFusion.ClientSecret == "" {
		return fmt.Errorf("service_fusion.client_secret is required")
	}

	if cfg.GoHighLevel.APIKey == "" {
		return fmt.Errorf("gohighlevel.api_key is required")
	}
	if cfg.GoHighLevel.LocationID == "" {
		return fmt.Errorf("gohighlevel.location_id is required")
	}
	if cfg.GoHighLevel.PipelineID == "" {
		return fmt.Errorf("gohighlevel.pipeline_id is required")
	}

	if cfg.State.Backend == "redis" && cfg.State.Redis.Address == "" {
		return fmt.Errorf("state.redis.address is required when state.backend is redis")
	}
	if cfg.State.Backend != "file" && cfg.State.Backend != "redis" {
		return fmt.Errorf("state.backend must be \"file\" or \"redis\", got %q", cfg.State.Backend)
	}

	if cfg.Notifications.Channel == "sns" && cfg.Notifications.AWS.TopicARN == "" {
		return fmt.Errorf("notifications.aws.topic_arn is required when notifications.channel is sns")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// Interval returns the polling interval as a duration.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Lookback returns the fallback window used when no cursor exists.
func (s SyncConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackHours) * time.Hour
}
