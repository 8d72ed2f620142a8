package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Converter.MaxPoints != 1000 {
		t.Errorf("expected max points 1000, got %d", cfg.Converter.MaxPoints)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Watch.Debounce)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("unexpected address %s", cfg.Server.Address())
	}
	if len(cfg.Server.AllowedSchemes) != 0 {
		t.Errorf("the API must not fetch URIs by default, got %v", cfg.Server.AllowedSchemes)
	}
}

func TestLoadFrom_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
converter:
  max_points: 250
sources:
  s3:
    endpoint: https://r2.example.com
    access_key_id: key
    secret_access_key: secret
logging:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Converter.MaxPoints != 250 {
		t.Errorf("expected max points 250, got %d", cfg.Converter.MaxPoints)
	}
	if cfg.Sources.S3.Endpoint != "https://r2.example.com" {
		t.Errorf("unexpected endpoint %q", cfg.Sources.S3.Endpoint)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestLoadFrom_Environment(t *testing.T) {
	t.Setenv("KMLSVC_SERVER_PORT", "7070")
	t.Setenv("KMLSVC_CONVERTER_MAX_POINTS", "42")
	t.Setenv("KMLSVC_SERVER_ALLOWED_SCHEMES", "s3,https")

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Converter.MaxPoints != 42 {
		t.Errorf("expected max points 42, got %d", cfg.Converter.MaxPoints)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedSchemes, []string{"s3", "https"}) {
		t.Errorf("expected allowed schemes [s3 https], got %v", cfg.Server.AllowedSchemes)
	}
}

func TestLoadFrom_PrefersLocalEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")

	if err := os.WriteFile(envPath, []byte("KMLSVC_SERVER_PORT=1111\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath+".local", []byte("KMLSVC_SERVER_PORT=2222\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := preferLocal(envPath); got != envPath+".local" {
		t.Errorf("expected .env.local to be preferred, got %s", got)
	}
	if got := preferLocal(filepath.Join(dir, "config.yaml")); !strings.HasSuffix(got, "config.yaml") {
		t.Errorf("non-env paths must be returned unchanged, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080, MaxBodyBytes: 1, StoreSize: 1},
			Converter: ConverterConfig{MaxPoints: 1000},
			Sources:   SourcesConfig{MaxBytes: 1},
			Logging:   LoggingConfig{Level: "info", Format: "text"},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{name: "Port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "Port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "Max points too small", mutate: func(c *Config) { c.Converter.MaxPoints = 1 }, wantErr: true},
		{name: "Empty store", mutate: func(c *Config) { c.Server.StoreSize = 0 }, wantErr: true},
		{name: "Unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "Unknown log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "S3 key without secret", mutate: func(c *Config) { c.Sources.S3.AccessKeyID = "k" }, wantErr: true},
		{name: "Negative debounce", mutate: func(c *Config) { c.Watch.Debounce = -time.Second }, wantErr: true},
		{name: "Allowed schemes", mutate: func(c *Config) { c.Server.AllowedSchemes = []string{"s3", "HTTPS"} }},
		{name: "Unknown allowed scheme", mutate: func(c *Config) { c.Server.AllowedSchemes = []string{"gopher"} }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
