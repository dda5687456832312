package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the config file used when neither -config nor
// STOREFRONT_CONFIG is set.
const ConfigPath = "config.yaml"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMinio    = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string   `yaml:"port"`
	BindAddr                string   `yaml:"bindAddr"`
	LogLevel                string   `yaml:"logLevel"`
	CatalogBaseURL          string   `yaml:"catalogBaseURL"`
	RequestTimeout          string   `yaml:"requestTimeout"`
	AllowedOrigins          []string `yaml:"allowedOrigins"`
	StorageDriver           string   `yaml:"storageDriver"`
	StoragePath             string   `yaml:"storagePath"`
	StorageKeyPrefix        string   `yaml:"storageKeyPrefix"`
	StorageEncryptionKey    string   `yaml:"storageEncryptionKey"`
	StorageTimeout          string   `yaml:"storageTimeout"`
	RedisAddr               string   `yaml:"redisAddr"`
	RedisPassword           string   `yaml:"redisPassword"`
	RedisDB                 int      `yaml:"redisDB"`
	DatabaseURL             string   `yaml:"databaseURL"`
	MinioEndpoint           string   `yaml:"minioEndpoint"`
	MinioAccessKey          string   `yaml:"minioAccessKey"`
	MinioSecretKey          string   `yaml:"minioSecretKey"`
	MinioBucket             string   `yaml:"minioBucket"`
	MinioUseSSL             bool     `yaml:"minioUseSSL"`
	LoginRateLimitPerMinute int      `yaml:"loginRateLimitPerMinute"`
}

// ResolvePath picks the config file: the flag value, then STOREFRONT_CONFIG,
// then ConfigPath.
func ResolvePath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result.
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
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("STOREFRONT_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_BIND_ADDR"); v != "" {
		cfg.BindAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_CATALOG_URL"); v != "" {
		cfg.CatalogBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("STOREFRONT_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_STORAGE_PATH"); v != "" {
		cfg.StoragePath = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOREFRONT_STORAGE_KEY"); v != "" {
		cfg.StorageEncryptionKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("STOREFRONT_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CatalogBaseURL == "" {
		cfg.CatalogBaseURL = "https://dummyjson.com"
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = DriverFile
	}
	if cfg.StorageDriver == DriverFile && cfg.StoragePath == "" {
		cfg.StoragePath = "data/storefront.json"
	}
	if cfg.StorageDriver == DriverMinio && cfg.MinioBucket == "" {
		cfg.MinioBucket = "storefront"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or STOREFRONT_PORT)")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("config: port must be numeric, got %q", cfg.Port)
	}
	switch cfg.StorageDriver {
	case DriverMemory, DriverFile:
	case DriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for storageDriver redis")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for storageDriver postgres")
		}
	case DriverMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
			return errors.New("config: minioEndpoint, minioAccessKey and minioSecretKey are required for storageDriver minio")
		}
	default:
		return fmt.Errorf("config: unknown storageDriver %q", cfg.StorageDriver)
	}
	if key := strings.TrimSpace(cfg.StorageEncryptionKey); key != "" && len(key) != 64 {
		return errors.New("config: storageEncryptionKey must be 64 hex characters")
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if _, err := ParseDuration("requestTimeout", cfg.RequestTimeout, 0); err != nil {
		return err
	}
	if _, err := ParseDuration("storageTimeout", cfg.StorageTimeout, 0); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses an optional duration setting, returning fallback when
// it is empty.
func ParseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("invalid %s duration: must be positive", name)
	}
	return dur, nil
}
