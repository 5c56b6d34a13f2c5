package config

import (
	"os"
	"strings"
	"testing"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `ofiflow:
  name: "TestApp"
  version: "1.0"
analysis:
  levels: 3
  instruments: ["AAPL", "MSFT"]
  max_workers: 2
data:
  dir: "data"
writer:
  output_dir: "results"
storage:
  s3:
    enabled: false
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ofiflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Ofiflow.Name)
	}
	if cfg.Analysis.Levels != 3 {
		t.Errorf("unexpected levels: %d", cfg.Analysis.Levels)
	}
	if len(cfg.Analysis.Instruments) != 2 {
		t.Errorf("unexpected instruments: %v", cfg.Analysis.Instruments)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	content := `ofiflow:
  name: "TestApp"
  version: "1.0"
analysis:
  instruments: ["AAPL"]
data:
  dir: "data"
writer:
  output_dir: "results"
`
	path := writeTempConfig(t, content)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Analysis.Levels != 5 {
		t.Errorf("default levels = %d, want 5", cfg.Analysis.Levels)
	}
	if cfg.Analysis.MaxWorkers != 1 {
		t.Errorf("default max_workers = %d, want 1", cfg.Analysis.MaxWorkers)
	}
}

func TestLoadConfigRejectsDuplicateInstruments(t *testing.T) {
	content := strings.Replace(minimalConfig, `["AAPL", "MSFT"]`, `["AAPL", "AAPL"]`, 1)
	path := writeTempConfig(t, content)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for duplicate instruments")
	}
}

func TestLoadConfigRejectsZeroLevels(t *testing.T) {
	content := strings.Replace(minimalConfig, "levels: 3", "levels: -1", 1)
	path := writeTempConfig(t, content)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for non-positive levels")
	}
}

const databentoConfig = `ofiflow:
  name: "TestApp"
  version: "1.0"
analysis:
  levels: 3
  instruments: ["AAPL"]
  max_workers: 1
data:
  dir: "data"
  databento:
    enabled: true
    url: "https://hist.databento.com"
    dataset: "XNAS.ITCH"
    schema: "mbp-10"
    start: "2024-11-04"
    end: "2024-11-12"
writer:
  output_dir: "results"
`

func TestLoadConfigDatabentoNeedsKeyInProduction(t *testing.T) {
	t.Setenv("DATABENTO_API_KEY", "")
	t.Setenv("APP_ENV", "production")
	path := writeTempConfig(t, databentoConfig)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing API key")
	}

	t.Setenv("DATABENTO_API_KEY", "db-test-key")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with env key failed: %v", err)
	}
	if cfg.Data.Databento.APIKey != "db-test-key" {
		t.Errorf("API key not picked up from environment: %q", cfg.Data.Databento.APIKey)
	}
	if !cfg.Data.Databento.Enabled {
		t.Error("fetcher should stay enabled when the key is present")
	}
}

func TestLoadConfigMissingKeyDisablesFetcherInDevelopment(t *testing.T) {
	t.Setenv("DATABENTO_API_KEY", "")
	t.Setenv("APP_ENV", "development")
	path := writeTempConfig(t, databentoConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig in development failed: %v", err)
	}
	if cfg.Data.Databento.Enabled {
		t.Error("fetcher should be disabled without an API key in development")
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	cases := []struct {
		env  string
		want string
	}{
		{"", EnvironmentDevelopment},
		{"prod", EnvironmentProduction},
		{"stag", EnvironmentStaging},
		{"Production", EnvironmentProduction},
	}
	for _, c := range cases {
		t.Setenv("APP_ENV", c.env)
		if got := AppEnvironment(); got != c.want {
			t.Errorf("AppEnvironment with APP_ENV=%q = %q, want %q", c.env, got, c.want)
		}
	}
}

func TestIsProductionLike(t *testing.T) {
	if !IsProductionLike(EnvironmentProduction) || !IsProductionLike(EnvironmentStaging) {
		t.Error("production and staging must be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development must not be production-like")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
