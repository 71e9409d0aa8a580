package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
)

// Config holds the application configuration
type Config struct {
	// Identity store backend: "memory" or "sql"
	Store string

	// Database connection string (DSN), used by the sql store
	DatabaseURL string

	// Maximum database connection pool size (PostgreSQL only)
	MaxDBConnections int

	// Server bind address (host:port)
	ServerAddr string

	// Enable debug logging
	Debug bool

	// Origins allowed to call the API from a browser
	CORSOrigins []string

	Security      SecurityConfig
	Identity      IdentityConfig
	Observability ObservabilityConfig
}

// SecurityConfig controls who may reach the admin API.
type SecurityConfig struct {
	// LocalhostOnly rejects requests whose remote address is not loopback.
	LocalhostOnly bool
}

// IdentityConfig tunes the identity store.
type IdentityConfig struct {
	// PasswordCost is the bcrypt cost for password hashes.
	PasswordCost int
	// SeedDemo loads the demo users and roles into an empty store at startup.
	SeedDemo bool
}

// ObservabilityConfig holds OpenTelemetry settings. An empty OTLPEndpoint
// disables export.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store", StoreMemory)
	v.SetDefault("database_url", "file:idmgr.db?cache=shared")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("server_addr", "localhost:5000")
	v.SetDefault("debug", false)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("security.localhost_only", true)
	v.SetDefault("identity.password_cost", bcrypt.DefaultCost)
	v.SetDefault("identity.seed_demo", false)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http/protobuf")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.service_name", "idmgr")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
}

// Load reads configuration from the global viper instance. Values come from,
// in order of precedence: IDMGR_ environment variables, bound flags, the
// config file already read into viper, defaults.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("IDMGR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Store:            strings.ToLower(v.GetString("store")),
		DatabaseURL:      v.GetString("database_url"),
		MaxDBConnections: v.GetInt("max_db_connections"),
		ServerAddr:       v.GetString("server_addr"),
		Debug:            v.GetBool("debug"),
		CORSOrigins:      v.GetStringSlice("cors_origins"),
		Security: SecurityConfig{
			LocalhostOnly: v.GetBool("security.localhost_only"),
		},
		Identity: IdentityConfig{
			PasswordCost: v.GetInt("identity.password_cost"),
			SeedDemo:     v.GetBool("identity.seed_demo"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   v.GetString("observability.otlp_endpoint"),
			OTLPProtocol:   v.GetString("observability.otlp_protocol"),
			OTLPInsecure:   v.GetBool("observability.otlp_insecure"),
			ServiceName:    v.GetString("observability.service_name"),
			ServiceVersion: v.GetString("observability.service_version"),
			Environment:    v.GetString("observability.environment"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when store is %q", StoreSQL)
		}
	default:
		return fmt.Errorf("unknown store %q (want %q or %q)", c.Store, StoreMemory, StoreSQL)
	}

	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.Identity.PasswordCost < bcrypt.MinCost || c.Identity.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("identity.password_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
