// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Portal        PortalConfig            `mapstructure:"portal"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Municipality  MunicipalityConfig      `mapstructure:"municipality"`
	Sessions      SessionsConfig          `mapstructure:"sessions"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// PortalConfig points at the GeoINCRA REST backend the wizards submit to.
type PortalConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// AuthConfig selects the credential provider used for bearer tokens.
// Mode is one of "static", "keycloak" or "login".
type AuthConfig struct {
	Mode  string `mapstructure:"mode"`
	Token string `mapstructure:"token"`

	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`

	Login struct {
		Email    string `mapstructure:"email"`
		Password string `mapstructure:"password"`
	} `mapstructure:"login"`
}

// MunicipalityConfig drives the lookup cache and the debounced search.
type MunicipalityConfig struct {
	DefaultState   string `mapstructure:"default_state"`
	DebounceMs     int    `mapstructure:"debounce_ms"`
	MinQueryLength int    `mapstructure:"min_query_length"`
	Resolver       string `mapstructure:"resolver"` // http | elasticsearch
	Index          string `mapstructure:"index"`
	SharedCache    bool   `mapstructure:"shared_cache"`
	LookupTimeout  int    `mapstructure:"lookup_timeout"` // milliseconds
}

type SessionsConfig struct {
	IdleTimeout int  `mapstructure:"idle_timeout"` // milliseconds
	Persist     bool `mapstructure:"persist"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig controls the messages sent after a proposal is generated.
type NotificationConfig struct {
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled     bool   `mapstructure:"enabled"`
		PhoneNumber string `mapstructure:"phone_number"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
