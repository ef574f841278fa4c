package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderReply is the fixed text the response stub answers with.
const PlaceholderReply = "This is a placeholder response. The orchestrator will be connected later."

// Responder modes.
const (
	ModeStub     = "stub"
	ModePipeline = "pipeline"
)

// Config holds the application configuration
type Config struct {
	Responder ResponderConfig
	UI        UIConfig
	Server    ServerConfig
	Log       LogConfig
	Audit     AuditConfig
}

// ResponderConfig selects and tunes the component that produces AI turns.
type ResponderConfig struct {
	Mode    string        `mapstructure:"mode"`
	Delay   time.Duration `mapstructure:"delay"`
	Text    string        `mapstructure:"text"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UIConfig holds the static copy shown by the chat surfaces
type UIConfig struct {
	Title       string `mapstructure:"title"`
	Subtitle    string `mapstructure:"subtitle"`
	Placeholder string `mapstructure:"placeholder"`
	EmptyState  string `mapstructure:"empty_state"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// AuditConfig holds the transcript audit configuration
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("responder.mode", ModeStub)
	v.SetDefault("responder.delay", 500*time.Millisecond)
	v.SetDefault("responder.text", PlaceholderReply)
	v.SetDefault("responder.timeout", 30*time.Second)

	v.SetDefault("ui.title", "Healthcare AI Chat")
	v.SetDefault("ui.subtitle", "CMPS 411 Capstone Project")
	v.SetDefault("ui.placeholder", "Type a message...")
	v.SetDefault("ui.empty_state", "Welcome! Send a message to start the conversation.")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.db_path", "audit.db")
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH) and HEALTHCHAT_* environment variables. A missing file is
// not an error; every key has a default.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("healthchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Responder.Mode {
	case ModeStub, ModePipeline:
	default:
		return fmt.Errorf("unsupported responder mode %q (want %q or %q)", c.Responder.Mode, ModeStub, ModePipeline)
	}
	if c.Responder.Delay < 0 {
		return fmt.Errorf("responder delay must not be negative, got %s", c.Responder.Delay)
	}
	if strings.TrimSpace(c.Responder.Text) == "" {
		return errors.New("responder text must not be blank")
	}
	return nil
}
