// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	ServiceFusion ServiceFusionConfig `mapstructure:"service_fusion"`
	GoHighLevel   GoHighLevelConfig   `mapstructure:"gohighlevel"`
	Sync          SyncConfig          `mapstructure:"sync"`
	State         StateConfig         `mapstructure:"state"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServiceFusionConfig holds credentials and behavior for the field service API.
type ServiceFusionConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"`  // milliseconds
	Timezone     string `mapstructure:"timezone"` // zone the API's fake-UTC timestamps are actually in
}

// GoHighLevelConfig holds credentials and identifiers for the CRM API.
type GoHighLevelConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	LocationID string `mapstructure:"location_id"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	PipelineID string `mapstructure:"pipeline_id"`

	CustomFields CustomFieldsConfig `mapstructure:"custom_fields"`
	Stages       StagesConfig       `mapstructure:"stages"`
}

// CustomFieldsConfig identifies the CRM custom fields the sync writes to.
type CustomFieldsConfig struct {
	ContactCustomerID      string `mapstructure:"contact_customer_id"`       // contact field id holding the source customer id
	ContactLastSync        string `mapstructure:"contact_last_sync"`         // contact field id stamped with the last sync time
	ContactUpdatedAt       string `mapstructure:"contact_updated_at"`        // contact field id mirroring the customer's updated_at
	OpportunityWorkOrderID string `mapstructure:"opportunity_work_order_id"` // opportunity field id holding the source job/estimate id
	WorkOrderFieldKey      string `mapstructure:"work_order_field_key"`      // opportunity field key used for key-based updates
}

// StagesConfig maps the pipeline stage identifiers used by the status translator.
type StagesConfig struct {
	JobScheduled      string `mapstructure:"job_scheduled"`
	JobInProgress     string `mapstructure:"job_in_progress"`
	Canceled          string `mapstructure:"canceled"`
	ReviewReferral    string `mapstructure:"review_referral"`
	EstimateScheduled string `mapstructure:"estimate_scheduled"`
	EstimateSent      string `mapstructure:"estimate_sent"`
	EstimateStop      string `mapstructure:"estimate_stop"`
}

// SyncConfig controls the polling loop.
type SyncConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	LookbackHours   int `mapstructure:"lookback_hours"`
	PageSize        int `mapstructure:"page_size"`
	MaxResults      int `mapstructure:"max_results"`
}

// StateConfig selects and configures the cursor store backend.
type StateConfig struct {
	Backend  string      `mapstructure:"backend"` // "file" or "redis"
	FilePath string      `mapstructure:"file_path"`
	Redis    RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// NotificationConfig selects the alert delivery channel.
type NotificationConfig struct {
	Channel    string `mapstructure:"channel"` // "webhook", "sns" or "none"
	WebhookURL string `mapstructure:"webhook_url"`
	AWS        struct {
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
