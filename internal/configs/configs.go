/*
Package configs is responsible for loading and validating the application's configuration.

Settings are layered, each layer overriding the previous one: built-in defaults, the
base YAML file, the profile YAML file, and finally the process environment read through
envconfig tags. An optional .env file is loaded into the environment first without
overriding variables that are already set. The result is checked with validator struct
tags before use.
*/
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is where application.yaml and its profile overlays are looked up.
	DefaultConfigDir = "config"

	// DefaultEnvFile is the dotenv file loaded when present.
	DefaultEnvFile = ".env"

	// ProfileDevelopment is the default profile; it enables console logging.
	ProfileDevelopment = "development"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Settings
	AppName     string `yaml:"app_name" envconfig:"APP_NAME" validate:"required"`
	AppVersion  string `yaml:"app_version" envconfig:"APP_VERSION"`
	Environment string `yaml:"profile" ignored:"true" validate:"required"`
	Verbose     bool   `yaml:"log_verbose" envconfig:"LOG_VERBOSE"`

	// Chat Listener Settings
	ChatHost             string        `yaml:"chat_host" envconfig:"CHAT_HOST"`
	ChatPort             int           `yaml:"chat_port" envconfig:"CHAT_PORT" validate:"gte=0,lte=65535"`
	MaxNameLength        int           `yaml:"max_name_length" envconfig:"MAX_NAME_LENGTH" validate:"gte=1,lte=256"`
	MaxLineBytes         int           `yaml:"max_line_bytes" envconfig:"MAX_LINE_BYTES" validate:"gte=64"`
	SendQueueSize        int           `yaml:"send_queue_size" envconfig:"SEND_QUEUE_SIZE" validate:"gte=1"`
	UnknownCommandPolicy string        `yaml:"unknown_command_policy" envconfig:"UNKNOWN_COMMAND_POLICY" validate:"oneof=swallow forward"`
	ShutdownGrace        time.Duration `yaml:"shutdown_grace" envconfig:"SHUTDOWN_GRACE" validate:"gte=1ms"`
	ForceCloseWait       time.Duration `yaml:"force_close_wait" envconfig:"FORCE_CLOSE_WAIT" validate:"gte=1ms"`

	// Abuse Protection Settings (a zero rate disables the limiter)
	MessageRate  float64 `yaml:"message_rate" envconfig:"MESSAGE_RATE" validate:"gte=0"`
	MessageBurst int     `yaml:"message_burst" envconfig:"MESSAGE_BURST" validate:"gte=0"`
	ConnectRate  float64 `yaml:"connect_rate" envconfig:"CONNECT_RATE" validate:"gte=0"`
	ConnectBurst int     `yaml:"connect_burst" envconfig:"CONNECT_BURST" validate:"gte=0"`

	// Admin Server Settings
	AdminHost      string   `yaml:"admin_host" envconfig:"ADMIN_HOST"`
	AdminPort      int      `yaml:"admin_port" envconfig:"ADMIN_PORT" validate:"gte=0,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// Default returns the built-in configuration used before any file or variable is applied.
func Default() *AppConfig {
	return &AppConfig{
		AppName:              "RelayChat",
		AppVersion:           "dev",
		Environment:          ProfileDevelopment,
		ChatPort:             5000,
		MaxNameLength:        32,
		MaxLineBytes:         8192,
		SendQueueSize:        256,
		UnknownCommandPolicy: "swallow",
		ShutdownGrace:        5 * time.Second,
		ForceCloseWait:       2 * time.Second,
		MessageRate:          5,
		MessageBurst:         10,
		ConnectRate:          1,
		ConnectBurst:         5,
		AdminPort:            8081,
		AllowedOrigins:       []string{},
	}
}

// IsDevelopment reports whether the active profile is a development one.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == ProfileDevelopment || c.Environment == "dev"
}

// ChatAddr is the listen address of the chat acceptor.
func (c *AppConfig) ChatAddr() string {
	return fmt.Sprintf("%s:%d", c.ChatHost, c.ChatPort)
}

// AdminAddr is the listen address of the admin HTTP server.
func (c *AppConfig) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.AdminHost, c.AdminPort)
}

var validate = validator.New()

// Validate checks the struct tags of the configuration.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig reads the configuration from CONFIG_DIR (default "config"), the ENV_FILE
// dotenv file (default ".env") and the environment.
func LoadConfig() (*AppConfig, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = DefaultConfigDir
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	return Load(dir, envFile)
}

// Load builds the configuration from the given config directory and dotenv file.
// Missing files are skipped; malformed ones are errors.
func Load(dir, envFile string) (*AppConfig, error) {
	cfg := Default()

	// Existing process variables win over the dotenv file.
	if envFile != "" && fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := loadYAML(filepath.Join(dir, "application.yaml"), cfg); err != nil {
		return nil, err
	}

	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		profile = cfg.Environment
	}

	if err := loadYAML(filepath.Join(dir, "application-"+profile+".yaml"), cfg); err != nil {
		return nil, err
	}
	cfg.Environment = profile

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadYAML decodes path on top of cfg. A missing file is not an error.
func loadYAML(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with every variable that is set, using the envconfig tags.
func applyEnv(cfg *AppConfig) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("invalid environment variable: %w", err)
	}

	cfg.UnknownCommandPolicy = strings.ToLower(strings.TrimSpace(cfg.UnknownCommandPolicy))
	cfg.AllowedOrigins = lo.Compact(lo.Map(cfg.AllowedOrigins, func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	}))

	return nil
}
