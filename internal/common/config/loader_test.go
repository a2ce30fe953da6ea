package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
portal:
  base_url: http://localhost:8000
auth:
  mode: static
  token: abc
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "geoincra-portal", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "RO", cfg.Municipality.DefaultState)
	assert.Equal(t, 300, cfg.Municipality.DebounceMs)
	assert.Equal(t, 2, cfg.Municipality.MinQueryLength)
	assert.Equal(t, ResolverHTTP, cfg.Municipality.Resolver)
	assert.Equal(t, "municipios", cfg.Municipality.Index)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30000, cfg.Portal.Timeout)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PORTAL_URL", "http://portal.internal")
	path := writeConfig(t, `
portal:
  base_url: ${TEST_PORTAL_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://portal.internal", cfg.Portal.BaseURL)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	path := writeConfig(t, `
portal:
  base_url: http://localhost:8000
workers:
  resolve-municipality:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "resolve-municipality")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)

	missing := GetWorkerConfig(cfg, "generate-proposal")
	assert.False(t, missing.Enabled)
}

func writeConfigDir(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "configs"), 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", name), []byte(content), 0o600))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const baseConfig = `
portal:
  base_url: http://localhost:8000
auth:
  mode: static
  token: abc
`

func TestLoad_Overlay(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		files   map[string]string
		wantErr string
		level   string
	}{
		{
			name:  "overlay applied",
			env:   "staging",
			files: map[string]string{"config.yaml": baseConfig, "config.staging.yaml": "logging:\n  level: debug\n"},
			level: "debug",
		},
		{
			name:  "missing overlay ignored",
			env:   "production",
			files: map[string]string{"config.yaml": baseConfig},
			level: "info",
		},
		{
			name:    "broken overlay rejected",
			env:     "staging",
			files:   map[string]string{"config.yaml": baseConfig, "config.staging.yaml": "logging: [level: debug\n"},
			wantErr: "error reading staging config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfigDir(t, tt.files)
			t.Setenv("APP_ENVIRONMENT", tt.env)

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, cfg.Logging.Level)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Portal.BaseURL = "http://localhost:8000"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing base url", func(c *Config) { c.Portal.BaseURL = "" }, "portal.base_url"},
		{"keycloak without realm", func(c *Config) {
			c.Auth.Mode = AuthModeKeycloak
			c.Auth.Keycloak.URL = "http://kc"
			c.Auth.Keycloak.ClientID = "portal"
		}, "keycloak"},
		{"login without password", func(c *Config) {
			c.Auth.Mode = AuthModeLogin
			c.Auth.Login.Email = "a@b.c"
		}, "auth.login"},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "saml" }, "auth.mode"},
		{"elasticsearch resolver without addresses", func(c *Config) {
			c.Municipality.Resolver = ResolverElasticsearch
		}, "elasticsearch.addresses"},
		{"unknown resolver", func(c *Config) { c.Municipality.Resolver = "ibge" }, "municipality.resolver"},
		{"shared cache without redis", func(c *Config) { c.Municipality.SharedCache = true }, "redis.address"},
		{"persisted sessions without postgres", func(c *Config) { c.Sessions.Persist = true }, "postgres"},
		{"camunda without broker", func(c *Config) { c.Camunda.Enabled = true }, "broker_address"},
		{"email without recipients", func(c *Config) {
			c.Notifications.Email.Enabled = true
			c.Notifications.Email.FromEmail = "no-reply@geoincra.com.br"
		}, "notifications.email"},
		{"sms without phone", func(c *Config) { c.Notifications.SMS.Enabled = true }, "phone_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 300*time.Millisecond, GetDuration(300))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "geo", Password: "pw", Database: "portal", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=geo password=pw dbname=portal sslmode=disable", p.GetDSN())
}
