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

const (
	AuthModeStatic   = "static"
	AuthModeKeycloak = "keycloak"
	AuthModeLogin    = "login"

	ResolverHTTP          = "http"
	ResolverElasticsearch = "elasticsearch"
)

// Load reads configs/config.yaml, overlays configs/config.<APP_ENVIRONMENT>.yaml
// and environment variables, then applies defaults and validates.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// the overlay is optional, but a broken one is an error
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading %s config: %w", env, err)
		}
	}

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found from the working directory upward.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
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
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known variables when the files leave them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Auth.Token, "PORTAL_TOKEN")
	setIfEmpty(&cfg.Auth.Keycloak.ClientSecret, "KEYCLOAK_CLIENT_SECRET")
	setIfEmpty(&cfg.Auth.Login.Email, "PORTAL_LOGIN_EMAIL")
	setIfEmpty(&cfg.Auth.Login.Password, "PORTAL_LOGIN_PASSWORD")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(target *string, envKey string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*target = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "geoincra-portal"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}

	if cfg.Portal.Timeout == 0 {
		cfg.Portal.Timeout = 30000
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeStatic
	}

	if cfg.Municipality.DefaultState == "" {
		cfg.Municipality.DefaultState = "RO"
	}
	if cfg.Municipality.DebounceMs == 0 {
		cfg.Municipality.DebounceMs = 300
	}
	if cfg.Municipality.MinQueryLength == 0 {
		cfg.Municipality.MinQueryLength = 2
	}
	if cfg.Municipality.Resolver == "" {
		cfg.Municipality.Resolver = ResolverHTTP
	}
	if cfg.Municipality.Index == "" {
		cfg.Municipality.Index = "municipios"
	}
	if cfg.Municipality.LookupTimeout == 0 {
		cfg.Municipality.LookupTimeout = 10000
	}

	if cfg.Sessions.IdleTimeout == 0 {
		cfg.Sessions.IdleTimeout = 3600000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "sa-east-1"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}

	switch cfg.Auth.Mode {
	case AuthModeStatic:
	case AuthModeKeycloak:
		if cfg.Auth.Keycloak.URL == "" || cfg.Auth.Keycloak.Realm == "" || cfg.Auth.Keycloak.ClientID == "" {
			return fmt.Errorf("auth.keycloak.url, realm and client_id are required in keycloak mode")
		}
	case AuthModeLogin:
		if cfg.Auth.Login.Email == "" || cfg.Auth.Login.Password == "" {
			return fmt.Errorf("auth.login.email and password are required in login mode")
		}
	default:
		return fmt.Errorf("auth.mode must be one of static, keycloak, login (got %q)", cfg.Auth.Mode)
	}

	switch cfg.Municipality.Resolver {
	case ResolverHTTP:
	case ResolverElasticsearch:
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch resolver")
		}
	default:
		return fmt.Errorf("municipality.resolver must be http or elasticsearch (got %q)", cfg.Municipality.Resolver)
	}

	if cfg.Municipality.MinQueryLength < 1 {
		return fmt.Errorf("municipality.min_query_length must be positive")
	}
	if cfg.Municipality.SharedCache && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when municipality.shared_cache is on")
	}

	if cfg.Sessions.Persist {
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" || cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required when sessions.persist is on")
		}
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Notifications.Email.Enabled && (cfg.Notifications.Email.FromEmail == "" || len(cfg.Notifications.Email.To) == 0) {
		return fmt.Errorf("notifications.email.from_email and to are required when email is enabled")
	}
	if cfg.Notifications.SMS.Enabled && cfg.Notifications.SMS.PhoneNumber == "" {
		return fmt.Errorf("notifications.sms.phone_number is required when sms is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       false,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}
