package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"

	defaultKafkaTopic       = "estufa.documents.accepted"
	defaultMaxDocumentBytes = 10 << 20
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	Port              int
	SchemaPath        string
	SchemaWatch       bool
	RangeLimitsPath   string
	StorageBackend    string
	DataDir           string
	DatabaseURL       string
	KafkaBrokers      []string
	KafkaTopic        string
	MaxDocumentBytes  int64
	QueryDefaultLimit int
	LogLevel          string
	LogFormat         string
	MetricsEnabled    bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function; Load uses os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		Port:              8080,
		StorageBackend:    BackendFile,
		DataDir:           "data",
		KafkaTopic:        defaultKafkaTopic,
		MaxDocumentBytes:  defaultMaxDocumentBytes,
		QueryDefaultLimit: 500,
		LogLevel:          "info",
		LogFormat:         "json",
		MetricsEnabled:    true,
	}

	if portStr := get("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := get("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	cfg.SchemaPath = get("SCHEMA_PATH")
	if v := get("SCHEMA_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SCHEMA_WATCH: %s", v)
		}
		cfg.SchemaWatch = b
	}
	if cfg.SchemaWatch && cfg.SchemaPath == "" {
		return cfg, errors.New("SCHEMA_WATCH requires SCHEMA_PATH")
	}

	cfg.RangeLimitsPath = get("RANGE_LIMITS_PATH")

	if backend := strings.ToLower(get("STORAGE_BACKEND")); backend != "" {
		switch backend {
		case BackendFile, BackendPostgres:
			cfg.StorageBackend = backend
		default:
			return cfg, fmt.Errorf("invalid STORAGE_BACKEND: %s", backend)
		}
	}

	if dir := get("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}

	cfg.DatabaseURL = get("DATABASE_URL")
	if cfg.StorageBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if brokers := get("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if topic := get("KAFKA_TOPIC"); topic != "" {
		cfg.KafkaTopic = topic
	}

	if sizeStr := get("MAX_DOCUMENT_BYTES"); sizeStr != "" {
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil && size > 0 {
			cfg.MaxDocumentBytes = size
		} else {
			return cfg, fmt.Errorf("invalid MAX_DOCUMENT_BYTES: %s", sizeStr)
		}
	}

	if limitStr := get("QUERY_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.QueryDefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid QUERY_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	if level := strings.ToLower(get("LOG_LEVEL")); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			return cfg, fmt.Errorf("invalid LOG_LEVEL: %s", level)
		}
	}

	if format := strings.ToLower(get("LOG_FORMAT")); format != "" {
		switch format {
		case "json", "text":
			cfg.LogFormat = format
		default:
			return cfg, fmt.Errorf("invalid LOG_FORMAT: %s", format)
		}
	}

	if v := get("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid METRICS_ENABLED: %s", v)
		}
		cfg.MetricsEnabled = b
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
