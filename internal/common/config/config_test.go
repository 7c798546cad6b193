package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
service_fusion:
  client_id: "sf-client"
  client_secret: "sf-secret"
gohighlevel:
  api_key: "ghl-key"
  location_id: "loc-1"
  pipeline_id: "pipe-1"
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://api.servicefusion.com/v1", cfg.ServiceFusion.BaseURL)
	assert.Equal(t, "America/New_York", cfg.ServiceFusion.Timezone)
	assert.Equal(t, "https://services.leadconnectorhq.com", cfg.GoHighLevel.BaseURL)
	assert.Equal(t, "crm_job_id", cfg.GoHighLevel.CustomFields.WorkOrderFieldKey)

	assert.Equal(t, 5, cfg.Sync.IntervalMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval())
	assert.Equal(t, 24, cfg.Sync.LookbackHours)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Lookback())
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, 100, cfg.Sync.MaxResults)

	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, "sync_state.json", cfg.State.FilePath)
	assert.Equal(t, "sfsync", cfg.State.Redis.KeyPrefix)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "none", cfg.Notifications.Channel)
}

func TestLoadFromFile_ChannelDefaultsToWebhookWhenURLSet(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig+`
notifications:
  webhook_url: "https://hooks.example.com/alerts"
`))
	require.NoError(t, err)
	assert.Equal(t, "webhook", cfg.Notifications.Channel)
}

func TestLoadFromFile_MissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing client id",
			content: `
service_fusion:
  client_secret: "sf-secret"
gohighlevel:
  api_key: "ghl-key"
  location_id: "loc-1"
  pipeline_id: "pipe-1"
`,
			wantErr: "service_fusion.client_id is required",
		},
		{
			name: "missing pipeline id",
			content: `
service_fusion:
  client_id: "sf-client"
  client_secret: "sf-secret"
gohighlevel:
  api_key: "ghl-key"
  location_id: "loc-1"
`,
			wantErr: "gohighlevel.pipeline_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_RedisBackendNeedsAddress(t *testing.T) {
	_, err := LoadFromFile(writeConfigFile(t, minimalConfig+`
state:
  backend: "redis"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state.redis.address is required")
}

func TestLoadFromFile_UnknownBackendRejected(t *testing.T) {
	_, err := LoadFromFile(writeConfigFile(t, minimalConfig+`
state:
  backend: "dynamo"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `state.backend must be "file" or "redis"`)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("SF_CLIENT_ID", "from-env")

	cfg, err := LoadFromFile(writeConfigFile(t, `
service_fusion:
  client_secret: "sf-secret"
gohighlevel:
  api_key: "ghl-key"
  location_id: "loc-1"
  pipeline_id: "pipe-1"
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ServiceFusion.ClientID)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration(30000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestServerConfig_Addr(t *testing.T) {
	cfg := ServerConfig{Port: 9090}
	assert.Equal(t, ":9090", cfg.Addr())
}
