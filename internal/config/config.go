package config

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	GSA     GSAConfig     `yaml:"gsa" mapstructure:"gsa"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// GSAConfig holds GSA per diem API settings.
type GSAConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// GeocodeConfig holds zippopotam.us settings.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AuthConfig holds the single-user login and session settings.
type AuthConfig struct {
	Username        string `yaml:"username" mapstructure:"username"`
	Password        string `yaml:"password" mapstructure:"password"`
	SessionSecret   string `yaml:"session_secret" mapstructure:"session_secret"`
	SessionTTLHours int    `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	SecureCookie    bool   `yaml:"secure_cookie" mapstructure:"secure_cookie"`
}

// StoreConfig configures the expense database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	StaticDir      string   `yaml:"static_dir" mapstructure:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PERDIEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("gsa.base_url", "https://api.gsa.gov/travel/perdiem/v2")
	v.SetDefault("gsa.api_key", "")
	v.SetDefault("gsa.timeout_secs", 10)
	v.SetDefault("gsa.user_agent", "PerDiemCalculator/1.0")
	v.SetDefault("gsa.rate_limit", 5.0)
	v.SetDefault("gsa.breaker_failures", 5)
	v.SetDefault("gsa.breaker_reset_secs", 30)
	v.SetDefault("geocode.base_url", "http://api.zippopotam.us")
	v.SetDefault("geocode.timeout_secs", 5)
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl_hours", 24)
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "perdiem.db")
	v.SetDefault("server.port", 3002)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Auth.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.SessionSecret = secret
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are
// present. Modes: "lookup" (GSA-facing commands), "serve" (web server),
// "store" (expense commands). A missing GSA key or login pair is fatal: the
// process must not start and serve degraded responses.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "lookup":
		missing = append(missing, c.validateLookup()...)
	case "serve":
		missing = append(missing, c.validateLookup()...)
		missing = append(missing, c.validateStore()...)
		if c.Auth.Username == "" {
			missing = append(missing, "auth.username is required")
		}
		if c.Auth.Password == "" {
			missing = append(missing, "auth.password is required")
		}
		if c.Auth.SessionTTLHours <= 0 {
			missing = append(missing, "auth.session_ttl_hours must be > 0")
		}
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "store":
		missing = append(missing, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(missing, "; "))
	}
	return nil
}

func (c *Config) validateLookup() []string {
	var missing []string
	if strings.TrimSpace(c.GSA.APIKey) == "" {
		missing = append(missing, "gsa.api_key is required")
	}
	if c.GSA.TimeoutSecs <= 0 {
		missing = append(missing, "gsa.timeout_secs must be > 0")
	}
	if c.Geocode.TimeoutSecs <= 0 {
		missing = append(missing, "geocode.timeout_secs must be > 0")
	}
	return missing
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "config: generate session secret")
	}
	return hex.EncodeToString(buf), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
