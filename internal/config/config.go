package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFileName = ".deliverynotify.yaml"
	DefaultEnvFile        = ".env"
	DefaultServerAddr     = "localhost:50051"
	DefaultHTTPAddr       = ":8080"
	DefaultAPIURL         = "http://localhost:8080"
	EnvPrefix             = "DELIVERYNOTIFY_"
)

type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr" validate:"required"`
	GRPCAddr     string `yaml:"grpc_addr" validate:"required"`
	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	NATSURL      string `yaml:"nats_url"`
	AdminAPIKey  string `yaml:"admin_api_key"`
	AppBaseURL   string `yaml:"app_base_url" validate:"omitempty,url"`
	AnalyticsURL string `yaml:"analytics_url" validate:"omitempty,url"`
	LogLevel     string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFile      string `yaml:"log_file"`
}

type AgentConfig struct {
	Version         string        `yaml:"version"`
	UserID          string        `yaml:"user_id"`
	PushTimeout     time.Duration `yaml:"push_timeout" validate:"gt=0"`
	MaxDeliveries   int           `yaml:"max_deliveries" validate:"gte=1"`
	RedeliveryDelay time.Duration `yaml:"redelivery_delay" validate:"gt=0"`
}

type ClientConfig struct {
	ServerAddr string `yaml:"server_addr" validate:"required"`
	APIURL     string `yaml:"api_url" validate:"required,url"`
	APIKey     string `yaml:"api_key"`
	UserID     string `yaml:"user_id"`
	StateDir   string `yaml:"state_dir"`
	Route      string `yaml:"route"`
}

type ToastConfig struct {
	Capacity     int           `yaml:"capacity" validate:"gte=1"`
	DedupWindow  time.Duration `yaml:"dedup_window" validate:"gte=0"`
	Duration     time.Duration `yaml:"duration" validate:"gt=0"`
	ChatDuration time.Duration `yaml:"chat_duration" validate:"gt=0"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Agent  AgentConfig  `yaml:"agent"`
	Client ClientConfig `yaml:"client"`
	Toast  ToastConfig  `yaml:"toast"`
}

func DefaultConfig() *Config {
	stateDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, ".deliverynotify")
	}
	return &Config{
		Server: ServerConfig{
			HTTPAddr:   DefaultHTTPAddr,
			GRPCAddr:   ":50051",
			AppBaseURL: "http://localhost:3000",
			LogLevel:   "info",
			LogFile:    "deliverynotify.log",
		},
		Agent: AgentConfig{
			Version:         "v1",
			PushTimeout:     10 * time.Second,
			MaxDeliveries:   5,
			RedeliveryDelay: 2 * time.Second,
		},
		Client: ClientConfig{
			ServerAddr: DefaultServerAddr,
			APIURL:     DefaultAPIURL,
			StateDir:   stateDir,
			Route:      "/",
		},
		Toast: ToastConfig{
			Capacity:     3,
			DedupWindow:  30 * time.Second,
			Duration:     6 * time.Second,
			ChatDuration: 4 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Load reads defaults, then the YAML file, then the optional .env file and
// DELIVERYNOTIFY_* variables, and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultConfigFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DefaultEnvFile, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"HTTP_ADDR":     &cfg.Server.HTTPAddr,
		"GRPC_ADDR":     &cfg.Server.GRPCAddr,
		"DATABASE_URL":  &cfg.Server.DatabaseURL,
		"REDIS_URL":     &cfg.Server.RedisURL,
		"NATS_URL":      &cfg.Server.NATSURL,
		"ADMIN_API_KEY": &cfg.Server.AdminAPIKey,
		"APP_BASE_URL":  &cfg.Server.AppBaseURL,
		"ANALYTICS_URL": &cfg.Server.AnalyticsURL,
		"LOG_LEVEL":     &cfg.Server.LogLevel,
		"LOG_FILE":      &cfg.Server.LogFile,
		"AGENT_VERSION": &cfg.Agent.Version,
		"AGENT_USER_ID": &cfg.Agent.UserID,
		"SERVER_ADDR":   &cfg.Client.ServerAddr,
		"API_URL":       &cfg.Client.APIURL,
		"API_KEY":       &cfg.Client.APIKey,
		"USER_ID":       &cfg.Client.UserID,
		"STATE_DIR":     &cfg.Client.StateDir,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"PUSH_TIMEOUT":       &cfg.Agent.PushTimeout,
		"REDELIVERY_DELAY":   &cfg.Agent.RedeliveryDelay,
		"TOAST_DEDUP_WINDOW": &cfg.Toast.DedupWindow,
		"TOAST_DURATION":     &cfg.Toast.Duration,
	}
	for name, dst := range durations {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"TOAST_CAPACITY": &cfg.Toast.Capacity,
		"MAX_DELIVERIES": &cfg.Agent.MaxDeliveries,
	}
	for name, dst := range ints {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	return nil
}
