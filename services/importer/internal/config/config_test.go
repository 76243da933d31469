package config

import (
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"IMPORT_DIR": "./inbox"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ImportDir != "./inbox" || cfg.DryRun || cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.API.DataDir != "data" {
		t.Fatalf("api defaults not applied: %+v", cfg.API)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"IMPORT_URLS":            " http://a/1.xml, ,http://b/2.xml ",
		"IMPORT_REQUEST_TIMEOUT": "5s",
		"DRY_RUN":                "true",
		"DATA_DIR":               "/var/lib/estufa",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ImportURLs) != 2 || cfg.ImportURLs[1] != "http://b/2.xml" {
		t.Fatalf("unexpected urls %v", cfg.ImportURLs)
	}
	if !cfg.DryRun || cfg.RequestTimeout != 5*time.Second || cfg.API.DataDir != "/var/lib/estufa" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	cases := []map[string]string{
		{},
		{"IMPORT_DIR": "x", "DRY_RUN": "maybe"},
		{"IMPORT_DIR": "x", "IMPORT_REQUEST_TIMEOUT": "soon"},
		{"IMPORT_DIR": "x", "PORT": "-1"},
	}
	for i, env := range cases {
		if _, err := FromEnv(envOf(env)); err == nil {
			t.Fatalf("case %d: expected an error", i)
		}
	}
}
