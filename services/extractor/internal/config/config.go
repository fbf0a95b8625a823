package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location relative to the service
// working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	ExtractStream string `yaml:"extractStream"`
	Concurrency   int    `yaml:"concurrency"`
	CatalogURL    string `yaml:"catalogURL"`
	AssistantURL  string `yaml:"assistantURL"`
	OCRServiceURL string `yaml:"ocrServiceURL"`
	InternalToken string `yaml:"internalToken"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("OCR_SERVICE_URL"); v != "" {
		cfg.OCRServiceURL = v
	}
	if v := os.Getenv("SKUCATALOG_INTERNAL_TOKEN"); v != "" {
		cfg.InternalToken = v
	}
	if v := os.Getenv("EXTRACTOR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if cfg.ExtractStream == "" {
		cfg.ExtractStream = "skucatalog:extract"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml)")
	}
	if cfg.CatalogURL == "" {
		return errors.New("config: catalogURL is required (set in config.yaml)")
	}
	if cfg.AssistantURL == "" {
		return errors.New("config: assistantURL is required (set in config.yaml)")
	}
	if cfg.OCRServiceURL == "" {
		return errors.New("config: ocrServiceURL is required (set in config.yaml)")
	}
	if cfg.InternalToken == "" {
		return errors.New("config: internalToken is required (set in config.yaml or SKUCATALOG_INTERNAL_TOKEN)")
	}
	return nil
}
