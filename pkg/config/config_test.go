package config

import (
	"log/slog"
	"testing"

	"github.com/shipcost/shipcost/pkg/models"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MONGO_DB_URL", "mongodb://localhost:27017")
	t.Setenv("TEST_SIZE", "0.25")
	t.Setenv("SPLIT_SOURCE", "cleaned")
	t.Setenv("ACCEPTANCE_POLICY", "within_tolerance")
	t.Setenv("ACCEPTANCE_TOLERANCE", "0.02")
	t.Setenv("OBJECT_STORE", "Filesystem")
	t.Setenv("REMOVE_LOCAL_MODEL", "true")
	t.Setenv("ARTEFACTS_DIR", "/tmp/arts")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.TestSize != 0.25 {
		t.Errorf("Expected TestSize 0.25, got %v", cfg.TestSize)
	}
	if cfg.SplitSource != models.SplitCleaned {
		t.Errorf("Expected split source cleaned, got %s", cfg.SplitSource)
	}
	if cfg.AcceptancePolicy != models.AcceptWithinTolerance {
		t.Errorf("Expected within_tolerance, got %s", cfg.AcceptancePolicy)
	}
	if cfg.AcceptanceTolerance != 0.02 {
		t.Errorf("Expected tolerance 0.02, got %v", cfg.AcceptanceTolerance)
	}
	if cfg.ObjectStore != ObjectStoreFilesystem {
		t.Errorf("Expected filesystem object store, got %s", cfg.ObjectStore)
	}
	if !cfg.RemoveLocalModel {
		t.Error("Expected RemoveLocalModel true")
	}
	if cfg.RunDB != "/tmp/arts/runs.db" {
		t.Errorf("Expected run db under artefacts dir, got %s", cfg.RunDB)
	}
	if err := cfg.RequireMongo(); err != nil {
		t.Errorf("Expected mongo url to satisfy RequireMongo, got %v", err)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.MongoDatabase != "shipmentdata" {
		t.Errorf("Expected database 'shipmentdata', got '%s'", cfg.MongoDatabase)
	}
	if cfg.MongoCollection != "ship" {
		t.Errorf("Expected collection 'ship', got '%s'", cfg.MongoCollection)
	}
	if cfg.TestSize != 0.2 {
		t.Errorf("Expected TestSize 0.2, got %v", cfg.TestSize)
	}
	if cfg.SplitSource != models.SplitRaw {
		t.Errorf("Expected raw split source, got %s", cfg.SplitSource)
	}
	if cfg.AcceptancePolicy != models.AcceptAlways {
		t.Errorf("Expected always policy, got %s", cfg.AcceptancePolicy)
	}
	if cfg.RemoveLocalModel {
		t.Error("Expected RemoveLocalModel false by default")
	}
	if cfg.SchemaFile != "config/schema.yaml" || cfg.ModelConfigFile != "config/model.yaml" {
		t.Errorf("Unexpected config file defaults: %s %s", cfg.SchemaFile, cfg.ModelConfigFile)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", cfg.SlogLevel())
	}
	if err := cfg.RequireMongo(); err == nil {
		t.Error("Expected RequireMongo to fail without MONGO_DB_URL")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"test size too large": {"TEST_SIZE", "1.5"},
		"unknown policy":      {"ACCEPTANCE_POLICY", "coin_flip"},
		"unknown split":       {"SPLIT_SOURCE", "sideways"},
		"unknown store":       {"OBJECT_STORE", "ftp"},
		"negative tolerance":  {"ACCEPTANCE_TOLERANCE", "-1"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := LoadConfig(); err == nil {
				t.Errorf("Expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
