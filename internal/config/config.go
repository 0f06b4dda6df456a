package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Protocol selects which publishing protocol a configured blog speaks.
const (
	ProtocolAtom       = "atom"
	ProtocolAtom03     = "atom03"
	ProtocolBlogger    = "blogger"
	ProtocolMetaWeblog = "metaweblog"
)

// Config holds all configuration for the application
type Config struct {
	// Blog endpoint settings
	APIURL   string `json:"api_url"`
	BlogID   string `json:"blog_id"`
	Protocol string `json:"protocol"` // "atom", "atom03", "blogger" or "metaweblog"

	// Credentials
	Username string `json:"username"`
	Password string `json:"-"` // Don't expose in JSON

	// Category settings
	CategoryScheme    string `json:"category_scheme"`
	HasCategoryScheme bool   `json:"-"`

	// Logging
	LogLevel string `json:"log_level"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	scheme, hasScheme := os.LookupEnv("BLOG_CATEGORY_SCHEME")

	config := &Config{
		APIURL:            getEnvOrDefault("BLOG_API_URL", ""),
		BlogID:            getEnvOrDefault("BLOG_ID", ""),
		Protocol:          strings.ToLower(getEnvOrDefault("BLOG_PROTOCOL", ProtocolAtom)),
		Username:          getEnvOrDefault("BLOG_USERNAME", ""),
		Password:          getEnvOrDefault("BLOG_PASSWORD", ""),
		CategoryScheme:    scheme,
		HasCategoryScheme: hasScheme,
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return config, config.validate()
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if c.APIURL == "" {
		return &ConfigError{Field: "BLOG_API_URL", Message: "blog API URL is required"}
	}
	switch c.Protocol {
	case ProtocolAtom, ProtocolAtom03, ProtocolBlogger, ProtocolMetaWeblog:
	default:
		return &ConfigError{
			Field:   "BLOG_PROTOCOL",
			Message: fmt.Sprintf("unknown protocol %q", c.Protocol),
		}
	}
	if c.Username == "" {
		return &ConfigError{Field: "BLOG_USERNAME", Message: "username is required"}
	}
	if c.Password == "" {
		return &ConfigError{Field: "BLOG_PASSWORD", Message: "password is required"}
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
