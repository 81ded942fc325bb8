package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds the chat server settings. Values come from the environment,
// optionally seeded from a .env file and an optional YAML file.
type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	Region           string        `mapstructure:"region"`
	KnowledgeBaseID  string        `mapstructure:"kb_id"`
	ModelARN         string        `mapstructure:"model_arn"`
	NumberOfResults  int           `mapstructure:"number_of_results"`
	ManifestPath     string        `mapstructure:"manifest_path"`
	ContentPrefix    string        `mapstructure:"content_prefix"`
	WelcomeFile      string        `mapstructure:"welcome_file"`
	RedisURL         string        `mapstructure:"redis_url"`
	CacheSize        int           `mapstructure:"cache_size"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	LogLevel         string        `mapstructure:"log_level"`
	BreakerThreshold float64       `mapstructure:"breaker_threshold"`
}

// envBindings maps config keys onto the environment variables the server reads.
var envBindings = map[string][]string{
	"addr":              {"CHAT_ADDR", "PORT"},
	"region":            {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"kb_id":             {"BEDROCK_KB_ID"},
	"model_arn":         {"BEDROCK_MODEL_ARN"},
	"number_of_results": {"BEDROCK_NUMBER_OF_RESULTS"},
	"manifest_path":     {"CONTENT_MANIFEST_PATH"},
	"content_prefix":    {"CONTENT_PREFIX"},
	"welcome_file":      {"CHAT_WELCOME_FILE"},
	"redis_url":         {"REDIS_URL"},
	"cache_size":        {"CHAT_CACHE_SIZE"},
	"cache_ttl":         {"CHAT_CACHE_TTL"},
	"allowed_origins":   {"CHAT_ALLOWED_ORIGINS"},
	"request_timeout":   {"CHAT_REQUEST_TIMEOUT"},
	"log_level":         {"LOG_LEVEL"},
	"breaker_threshold": {"CHAT_BREAKER_THRESHOLD"},
}

// LoadServerConfig reads .env (when present), then an optional YAML file, then the environment.
func LoadServerConfig(envFile, configFile string) (*ServerConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setServerDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read the file %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error reading the config %w", err)
	}

	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	// PORT style values carry no colon.
	if !strings.Contains(cfg.Addr, ":") {
		cfg.Addr = ":" + cfg.Addr
	}

	return &cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("region", DefaultRegion)
	v.SetDefault("model_arn", DefaultModelARN)
	v.SetDefault("manifest_path", DefaultUploadDir+"/"+DefaultManifestFile)
	v.SetDefault("content_prefix", DefaultUploadDir+"/")
	v.SetDefault("welcome_file", "configs/welcome.md")
	v.SetDefault("cache_size", 256)
	v.SetDefault("cache_ttl", 10*time.Minute)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("breaker_threshold", 0.6)
}

// splitList flattens comma separated entries coming from a single env var.
func splitList(in []string) []string {
	var out []string

	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// MissingSettings lists the environment variables the chat needs but that are unset.
func (s *ServerConfig) MissingSettings() []string {
	var missing []string

	if s.KnowledgeBaseID == "" {
		missing = append(missing, "BEDROCK_KB_ID")
	}

	if s.ModelARN == "" {
		missing = append(missing, "BEDROCK_MODEL_ARN")
	}

	return missing
}
