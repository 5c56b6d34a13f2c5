package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"ofiflow/logger"
)

type Config struct {
	Ofiflow  OfiflowConfig  `yaml:"ofiflow"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Data     DataConfig     `yaml:"data"`
	Writer   WriterConfig   `yaml:"writer"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type OfiflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type AnalysisConfig struct {
	// Levels is the book depth used for the OFI computation. Every
	// instrument's data must carry at least this many levels.
	Levels int `yaml:"levels"`
	// Instruments is the analysis universe; order fixes the order of the
	// regression coefficient vectors.
	Instruments []string `yaml:"instruments"`
	MaxWorkers  int      `yaml:"max_workers"`
	// AlignToleranceMs bounds how far the nearest-timestamp alignment may
	// reach when mapping an instrument's series onto the reference grid.
	// Zero disables the bound.
	AlignToleranceMs int `yaml:"align_tolerance_ms"`
}

type DataConfig struct {
	Dir       string          `yaml:"dir"`
	Databento DatabentoConfig `yaml:"databento"`
}

type DatabentoConfig struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	Dataset           string `yaml:"dataset"`
	Schema            string `yaml:"schema"`
	Start             string `yaml:"start"`
	End               string `yaml:"end"`
	APIKey            string `yaml:"api_key"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
	TimeoutMs         int    `yaml:"timeout_ms"`
	MaxIdleConns      int    `yaml:"max_idle_conns"`
	MaxConnsPerHost   int    `yaml:"max_conns_per_host"`
}

type WriterConfig struct {
	OutputDir string        `yaml:"output_dir"`
	Formats   FormatsConfig `yaml:"formats"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Analysis: AnalysisConfig{
			Levels:     5,
			MaxWorkers: 1,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override credentials from environment variables if available
	if v := os.Getenv("DATABENTO_API_KEY"); v != "" {
		config.Data.Databento.APIKey = strings.TrimSpace(v)
	}
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	// A missing Databento API key is fatal in production-like environments.
	// In development the fetcher is disabled instead, so local data files
	// can be analyzed without credentials.
	if config.Data.Databento.Enabled && config.Data.Databento.APIKey == "" && !IsProductionLike(AppEnvironment()) {
		logger.GetLogger().WithComponent("config").WithFields(logger.Fields{
			"environment": AppEnvironment(),
		}).Warn("databento fetcher disabled: no API key configured")
		config.Data.Databento.Enabled = false
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Ofiflow.Name == "" {
		return fmt.Errorf("ofiflow.name is required")
	}

	if cfg.Ofiflow.Version == "" {
		return fmt.Errorf("ofiflow.version is required")
	}

	if cfg.Analysis.Levels <= 0 {
		return fmt.Errorf("analysis.levels must be greater than 0")
	}

	if len(cfg.Analysis.Instruments) == 0 {
		return fmt.Errorf("analysis.instruments must list at least one instrument")
	}
	seen := make(map[string]struct{}, len(cfg.Analysis.Instruments))
	for _, sym := range cfg.Analysis.Instruments {
		if sym == "" {
			return fmt.Errorf("analysis.instruments must not contain empty symbols")
		}
		if _, dup := seen[sym]; dup {
			return fmt.Errorf("analysis.instruments contains duplicate symbol '%s'", sym)
		}
		seen[sym] = struct{}{}
	}

	if cfg.Analysis.MaxWorkers <= 0 {
		return fmt.Errorf("analysis.max_workers must be greater than 0")
	}

	if cfg.Analysis.AlignToleranceMs < 0 {
		return fmt.Errorf("analysis.align_tolerance_ms must not be negative")
	}

	if cfg.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}

	if cfg.Data.Databento.Enabled {
		if cfg.Data.Databento.URL == "" {
			return fmt.Errorf("data.databento.url is required when the fetcher is enabled")
		}
		if cfg.Data.Databento.Dataset == "" || cfg.Data.Databento.Schema == "" {
			return fmt.Errorf("data.databento.dataset and data.databento.schema are required when the fetcher is enabled")
		}
		if cfg.Data.Databento.Start == "" || cfg.Data.Databento.End == "" {
			return fmt.Errorf("data.databento.start and data.databento.end are required when the fetcher is enabled")
		}
		if cfg.Data.Databento.APIKey == "" {
			return fmt.Errorf("data.databento.api_key (or DATABENTO_API_KEY) is required when the fetcher is enabled")
		}
	}

	if cfg.Writer.OutputDir == "" {
		return fmt.Errorf("writer.output_dir is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
