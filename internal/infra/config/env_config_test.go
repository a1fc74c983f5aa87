package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	. "github.com/mkrupp/itemcatalog/internal/infra/config"
)

type testConfig struct {
	EnvConfig

	StringValue   string        `env:"STRING_VALUE" default:"default"`
	IntValue      int           `env:"INT_VALUE" default:"42"`
	Int64Value    int64         `env:"INT64_VALUE" default:"5242880"`
	BoolValue     bool          `env:"BOOL_VALUE" default:"true"`
	DurationValue time.Duration `env:"DURATION_VALUE" default:"24h"`
	ListValue     []string      `env:"LIST_VALUE" default:"a, b"`
	NoEnvTag      string
	Nested        testNestedConfig `envPrefix:"NESTED_"`
}

type testNestedConfig struct {
	NestedString string `env:"STRING" default:"nested-default"`
}

func defaults() testConfig {
	return testConfig{
		StringValue:   "default",
		IntValue:      42,
		Int64Value:    5242880,
		BoolValue:     true,
		DurationValue: 24 * time.Hour,
		ListValue:     []string{"a", "b"},
		Nested:        testNestedConfig{NestedString: "nested-default"},
	}
}

//nolint:paralleltest
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		envVars map[string]string
		modify  func(*testConfig)
		wantErr bool
	}{
		{
			name:    "uses default values when env vars not set",
			envVars: map[string]string{},
		},
		{
			name: "reads environment variables",
			envVars: map[string]string{
				"STRING_VALUE":   "env-value",
				"INT_VALUE":      "123",
				"BOOL_VALUE":     "false",
				"DURATION_VALUE": "90m",
				"NESTED_STRING":  "env-nested",
			},
			modify: func(c *testConfig) {
				c.StringValue = "env-value"
				c.IntValue = 123
				c.BoolValue = false
				c.DurationValue = 90 * time.Minute
				c.Nested.NestedString = "env-nested"
			},
		},
		{
			name:    "handles prefix correctly",
			prefix:  "APP",
			envVars: map[string]string{"APP_STRING_VALUE": "prefixed-value"},
			modify:  func(c *testConfig) { c.StringValue = "prefixed-value" },
		},
		{
			name:   "prefers more specific prefix",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"APP_STRING_VALUE":         "less-specific",
				"APP_SERVICE_STRING_VALUE": "more-specific",
			},
			modify: func(c *testConfig) { c.StringValue = "more-specific" },
		},
		{
			name:    "falls back to unprefixed name",
			prefix:  "APP_SERVICE",
			envVars: map[string]string{"INT_VALUE": "7"},
			modify:  func(c *testConfig) { c.IntValue = 7 },
		},
		{
			name:    "splits and trims lists",
			envVars: map[string]string{"LIST_VALUE": "accounts.google.com, https://accounts.google.com,,"},
			modify: func(c *testConfig) {
				c.ListValue = []string{"accounts.google.com", "https://accounts.google.com"}
			},
		},
		{
			name:    "handles empty string values",
			envVars: map[string]string{"STRING_VALUE": ""},
			modify:  func(c *testConfig) { c.StringValue = "" },
		},
		{
			name:    "fails on invalid int value",
			envVars: map[string]string{"INT_VALUE": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "fails on invalid bool value",
			envVars: map[string]string{"BOOL_VALUE": "not-a-bool"},
			wantErr: true,
		},
		{
			name:    "fails on invalid duration value",
			envVars: map[string]string{"DURATION_VALUE": "tomorrow"},
			wantErr: true,
		},
	}

	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := &testConfig{}
			err := Parse(ctx, cfg, tt.prefix)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			want := defaults()
			if tt.modify != nil {
				tt.modify(&want)
			}

			cfg.EnvConfig = EnvConfig{}
			if !reflect.DeepEqual(*cfg, want) {
				t.Errorf("Parse() = %+v, want %+v", *cfg, want)
			}
		})
	}
}

func TestParseRequiredVar(t *testing.T) {
	t.Parallel()

	cfg := &struct {
		EnvConfig

		Secret string `env:"CONFIG_TEST_REQUIRED_SECRET"`
	}{}

	err := Parse(context.Background(), cfg, "")
	if !errors.Is(err, ErrVarNotSet) {
		t.Errorf("expected %v, got %v", ErrVarNotSet, err)
	}
}

func TestParseInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  any
	}{
		{name: "non-pointer config", cfg: testConfig{}},
		{name: "non-struct pointer", cfg: new(string)},
		{name: "missing EnvConfig embedding", cfg: &struct {
			Value string `env:"VALUE"`
		}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Parse(context.Background(), tt.cfg, "")
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected error %v, got %v", ErrInvalidConfig, err)
			}
		})
	}
}

//nolint:paralleltest
func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")

	if err := os.WriteFile(file, []byte("CONFIG_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_TEST_DOTENV", "")
	os.Unsetenv("CONFIG_TEST_DOTENV")

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), file); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}

	if got := os.Getenv("CONFIG_TEST_DOTENV"); got != "from-file" {
		t.Errorf("CONFIG_TEST_DOTENV = %q, want %q", got, "from-file")
	}
}
