package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

const EnvPrefix = "WORMACEPTOR"

type Config struct {
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Buffer    BufferConfig    `mapstructure:"buffer" yaml:"buffer"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
}

type AppConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level"`
	CORSAllowOrigin string `mapstructure:"cors_allow_origin" yaml:"cors_allow_origin"`
	// InsecureTLS skips upstream certificate checks in /proxy
	InsecureTLS bool `mapstructure:"insecure_tls" yaml:"insecure_tls"`
}

type StorageConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"` // sqlite | memory | mongo
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
	// MaxRecords caps the memory driver; 0 is unlimited
	MaxRecords int `mapstructure:"max_records" yaml:"max_records"`
}

type CaptureConfig struct {
	MaxContentLength int64    `mapstructure:"max_content_length" yaml:"max_content_length"`
	Decompress       bool     `mapstructure:"decompress" yaml:"decompress"`
	AsyncWrites      bool     `mapstructure:"async_writes" yaml:"async_writes"`
	QueueSize        int      `mapstructure:"queue_size" yaml:"queue_size"`
	RedactHeaders    []string `mapstructure:"redact_headers" yaml:"redact_headers"`
	RedactBodyKeys   []string `mapstructure:"redact_body_keys" yaml:"redact_body_keys"`
}

type BufferConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type RetentionConfig struct {
	Period          string        `mapstructure:"period" yaml:"period"`
	CheckInterval   time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	CooldownHourly  time.Duration `mapstructure:"cooldown_hourly" yaml:"cooldown_hourly"`
	CooldownDefault time.Duration `mapstructure:"cooldown_default" yaml:"cooldown_default"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.addr", ":9091")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.cors_allow_origin", "*")
	v.SetDefault("app.insecure_tls", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "~/.wormaceptor/transactions.db")
	v.SetDefault("storage.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo_database", "wormaceptor")
	v.SetDefault("storage.max_records", 0)

	v.SetDefault("capture.max_content_length", 250000)
	v.SetDefault("capture.decompress", true)
	v.SetDefault("capture.async_writes", true)
	v.SetDefault("capture.queue_size", 1024)
	v.SetDefault("capture.redact_headers", []string{"Authorization", "Cookie", "Set-Cookie", "Proxy-Authorization"})
	v.SetDefault("capture.redact_body_keys", []string{"password", "access_token", "refresh_token", "id_token"})

	v.SetDefault("buffer.capacity", 10)

	v.SetDefault("retention.period", string(domain.RetentionOneWeek))
	v.SetDefault("retention.check_interval", 5*time.Minute)
	v.SetDefault("retention.cooldown_hourly", 30*time.Minute)
	v.SetDefault("retention.cooldown_default", 2*time.Hour)
}

// Load builds the configuration from defaults, then the YAML file at path
// (or ./wormaceptor.yaml when path is empty and the file exists), then
// WORMACEPTOR_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wormaceptor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment applied.
// It panics if the built-in defaults fail to decode.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory", "mongo":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if _, err := domain.ParseRetentionPeriod(c.Retention.Period); err != nil {
		return fmt.Errorf("retention.period: %w", err)
	}
	if c.Capture.MaxContentLength < 0 {
		return fmt.Errorf("capture.max_content_length: must not be negative")
	}
	if c.Buffer.Capacity < 0 {
		return fmt.Errorf("buffer.capacity: must not be negative")
	}
	return nil
}

// RetentionPeriod returns the parsed default period. Validate has checked it.
func (c Config) RetentionPeriod() domain.RetentionPeriod {
	p, _ := domain.ParseRetentionPeriod(c.Retention.Period)
	return p
}

func (c Config) Cooldowns() domain.Cooldowns {
	return domain.Cooldowns{Hourly: c.Retention.CooldownHourly, Default: c.Retention.CooldownDefault}
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
