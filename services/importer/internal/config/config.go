package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apiconfig "github.com/02loveslollipop/estufa-iot/services/api/config"
)

const defaultRequestTimeout = 30 * time.Second

// Config holds runtime configuration for the importer. Storage, schema and
// logging settings are shared with the API.
type Config struct {
	API            apiconfig.Config
	ImportDir      string
	ImportURLs     []string
	RequestTimeout time.Duration
	DryRun         bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	api, err := apiconfig.FromEnv(getenv)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{API: api, RequestTimeout: defaultRequestTimeout}

	cfg.ImportDir = get("IMPORT_DIR")
	if urls := get("IMPORT_URLS"); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ImportURLs = append(cfg.ImportURLs, u)
			}
		}
	}
	if cfg.ImportDir == "" && len(cfg.ImportURLs) == 0 {
		return cfg, errors.New("IMPORT_DIR or IMPORT_URLS is required")
	}

	if v := get("IMPORT_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid IMPORT_REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}

	if v := get("DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DRY_RUN: %s", v)
		}
		cfg.DryRun = b
	}

	return cfg, nil
}
