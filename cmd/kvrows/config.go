package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "KVROWS"

// Config is the CLI configuration. Precedence: flags > KVROWS_* env >
// config file > defaults.
type Config struct {
	Backend  string      `mapstructure:"backend"`
	Path     string      `mapstructure:"path"`
	Bucket   string      `mapstructure:"bucket"`
	Encoding string      `mapstructure:"encoding"`
	Verbose  bool        `mapstructure:"verbose"`
	Redis    RedisConfig `mapstructure:"redis"`
	Log      LogConfig   `mapstructure:"log"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Prefix  string        `mapstructure:"prefix"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"backend":       "backend",
	"path":          "path",
	"bucket":        "bucket",
	"encoding":      "encoding",
	"verbose":       "verbose",
	"redis-url":     "redis.url",
	"redis-prefix":  "redis.prefix",
	"redis-timeout": "redis.timeout",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "config file path (yaml, json or toml)")
	flags.String("backend", "bolt", "storage backend: bolt, pebble, redis or memory")
	flags.StringP("path", "p", "", "database file (bolt) or directory (pebble)")
	flags.String("bucket", "", "bolt bucket holding the keys")
	flags.String("encoding", "msgpack", "value encoding: msgpack or json")
	flags.BoolP("verbose", "v", false, "trace every storage call")
	flags.String("redis-url", "", "redis URL, e.g. redis://localhost:6379/0")
	flags.String("redis-prefix", "", "prefix of the redis keys")
	flags.Duration("redis-timeout", 5*time.Second, "redis operation timeout")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "bolt")
	v.SetDefault("path", "")
	v.SetDefault("bucket", "")
	v.SetDefault("encoding", "msgpack")
	v.SetDefault("verbose", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "")
	v.SetDefault("redis.timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// loadConfig reads the configuration file named by the --config flag (if
// any), the environment and the flags that were set explicitly.
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile, _ := flags.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case "bolt", "pebble":
		if c.Path == "" {
			errs = append(errs, fmt.Errorf("path is required for the %s backend", c.Backend))
		}
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.Encoding {
	case "", "msgpack", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown encoding %q", c.Encoding))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
