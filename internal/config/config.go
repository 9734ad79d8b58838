package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Email    EmailConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // HTTPS-only cookies
	Environment string // "development", "production", "test"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig points at the S3-compatible object store that holds message
// attachments and profile photos. An empty endpoint disables media uploads.
type StorageConfig struct {
	Endpoint  string
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"` // base URL attachments resolve under
}

type EmailConfig struct {
	Provider     string // "resend", "smtp", "console"
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
}

type LogConfig struct {
	Level string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// DefaultConfigFile is consulted when no explicit path is given.
const DefaultConfigFile = "config.json"

// Load resolves configuration with environment variables taking priority over
// the JSON config file, which takes priority over built-in defaults.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

func LoadFrom(file string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			// A missing file just means env/defaults only.
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("reading config file %s: %w", file, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secure", false)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "connectsphere")
	v.SetDefault("database.password", "connectsphere")
	v.SetDefault("database.name", "connectsphere")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "connectsphere-media")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.public_url", "")

	v.SetDefault("email.provider", "console")
	v.SetDefault("email.from_address", "noreply@connectsphere.app")
	v.SetDefault("email.from_name", "ConnectSphere")
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 1025)

	v.SetDefault("log.level", "info")
}

// Validate reports every missing backend setting at once so an operator sees
// the full setup work remaining, not one item per restart.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Host == "" {
		missing = append(missing, "database.host (DATABASE_HOST)")
	}
	if c.Database.User == "" {
		missing = append(missing, "database.user (DATABASE_USER)")
	}
	if c.Database.Name == "" {
		missing = append(missing, "database.name (DATABASE_NAME)")
	}
	if c.Redis.Host == "" {
		missing = append(missing, "redis.host (REDIS_HOST)")
	}
	if c.Storage.Enabled() {
		if c.Storage.AccessKey == "" {
			missing = append(missing, "storage.access_key (STORAGE_ACCESS_KEY)")
		}
		if c.Storage.SecretKey == "" {
			missing = append(missing, "storage.secret_key (STORAGE_SECRET_KEY)")
		}
	}
	if c.Email.Provider == "resend" && c.Email.ResendAPIKey == "" {
		missing = append(missing, "email.resend_api_key (EMAIL_RESEND_API_KEY)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("incomplete configuration, set: %s", strings.Join(missing, ", "))
	}
	return nil
}
