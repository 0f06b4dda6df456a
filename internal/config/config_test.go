package config

import (
	"errors"
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BLOG_API_URL", "https://blog.example.com/service")
	t.Setenv("BLOG_USERNAME", "alice")
	t.Setenv("BLOG_PASSWORD", "secret")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BLOG_ID", "https://blog.example.com/posts")
	t.Setenv("BLOG_PROTOCOL", "Blogger")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.APIURL != "https://blog.example.com/service" {
		t.Errorf("Expected APIURL to be 'https://blog.example.com/service', got '%s'", cfg.APIURL)
	}
	if cfg.BlogID != "https://blog.example.com/posts" {
		t.Errorf("Expected BlogID to be 'https://blog.example.com/posts', got '%s'", cfg.BlogID)
	}
	if cfg.Protocol != ProtocolBlogger {
		t.Errorf("Expected Protocol to be lowercased 'blogger', got '%s'", cfg.Protocol)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel to be 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Protocol != ProtocolAtom {
		t.Errorf("Expected default protocol 'atom', got '%s'", cfg.Protocol)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.HasCategoryScheme {
		t.Error("Expected HasCategoryScheme to be false when unset")
	}
}

func TestCategorySchemePresence(t *testing.T) {
	setRequiredEnv(t)
	// An empty value is still a configured scheme; presence and
	// emptiness are distinct.
	t.Setenv("BLOG_CATEGORY_SCHEME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.HasCategoryScheme {
		t.Error("Expected HasCategoryScheme to be true for empty-but-set variable")
	}
	if cfg.CategoryScheme != "" {
		t.Errorf("Expected empty CategoryScheme, got '%s'", cfg.CategoryScheme)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		unset     string
		wantField string
	}{
		{"missing API URL", "BLOG_API_URL", "BLOG_API_URL"},
		{"missing username", "BLOG_USERNAME", "BLOG_USERNAME"},
		{"missing password", "BLOG_PASSWORD", "BLOG_PASSWORD"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			setRequiredEnv(t)
			os.Unsetenv(test.unset)

			_, err := Load()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != test.wantField {
				t.Errorf("Expected error field '%s', got '%s'", test.wantField, cfgErr.Field)
			}
		})
	}
}

func TestUnknownProtocol(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BLOG_PROTOCOL", "gopher")

	_, err := Load()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "BLOG_PROTOCOL" {
		t.Errorf("Expected error field 'BLOG_PROTOCOL', got '%s'", cfgErr.Field)
	}
}
