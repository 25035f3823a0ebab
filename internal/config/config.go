package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TOKENSYNC"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string

	DBDriver   string
	PGDSN      string
	SQLitePath string

	ToBlock      uint64
	BatchSize    uint64
	Follow       bool
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	Journal             string
	KeyMap              map[string]string
	SkipContracts       []string
	VerifyOwner         bool
	LenientValuesLength bool

	MetricsAddr string
	LogLevel    string

	// Block is the target of init-cursor and decode.
	Block uint64
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db-driver", "sqlite")
	v.SetDefault("sqlite-path", "./data/tokensync.sqlite")
	v.SetDefault("batch-size", uint64(100))
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		DBDriver:            strings.ToLower(v.GetString("db-driver")),
		PGDSN:               v.GetString("pg-dsn"),
		SQLitePath:          v.GetString("sqlite-path"),
		ToBlock:             v.GetUint64("to"),
		BatchSize:           v.GetUint64("batch-size"),
		Follow:              v.GetBool("follow"),
		PollInterval:        v.GetDuration("poll-interval"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		Journal:             v.GetString("journal"),
		KeyMap:              getStringMap(v, "key-map"),
		SkipContracts:       getStringSlice(v, "skip-contract"),
		VerifyOwner:         v.GetBool("verify-owner"),
		LenientValuesLength: v.GetBool("lenient-values-length"),
		MetricsAddr:         v.GetString("metrics-addr"),
		LogLevel:            v.GetString("log-level"),
		Block:               v.GetUint64("block"),
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
