package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shipcost/shipcost/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Environment string
	LogLevel    string
	LogFile     string

	MongoURL        string
	MongoDatabase   string
	MongoCollection string

	ArtefactsDir    string
	SchemaFile      string
	ModelConfigFile string

	ObjectStore     string // s3 or filesystem
	ObjectStorePath string
	ModelBucket     string
	ModelKey        string
	AWSRegion       string
	S3Endpoint      string

	TestSize            float64
	SplitSource         models.SplitSource
	AcceptancePolicy    models.AcceptancePolicy
	AcceptanceTolerance float64
	RemoveLocalModel    bool

	RunDB           string
	RetrainSchedule string
}

const (
	ObjectStoreS3         = "s3"
	ObjectStoreFilesystem = "filesystem"

	DefaultModelBucket = "shipment-price-model"
	DefaultModelKey    = "shipping_price_model.pkl"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	artefactsDir := getEnv("ARTEFACTS_DIR", "artefacts")
	config := &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", "logs/shipcost.log"),
		MongoURL:            getEnv("MONGO_DB_URL", ""),
		MongoDatabase:       getEnv("MONGO_DB_NAME", "shipmentdata"),
		MongoCollection:     getEnv("MONGO_COLLECTION", "ship"),
		ArtefactsDir:        artefactsDir,
		SchemaFile:          getEnv("SCHEMA_FILE", "config/schema.yaml"),
		ModelConfigFile:     getEnv("MODEL_CONFIG_FILE", "config/model.yaml"),
		ObjectStore:         strings.ToLower(getEnv("OBJECT_STORE", ObjectStoreS3)),
		ObjectStorePath:     getEnv("OBJECT_STORE_PATH", "buckets"),
		ModelBucket:         getEnv("MODEL_BUCKET", DefaultModelBucket),
		ModelKey:            getEnv("MODEL_KEY", DefaultModelKey),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		TestSize:            getEnvAsFloat("TEST_SIZE", 0.2),
		AcceptanceTolerance: getEnvAsFloat("ACCEPTANCE_TOLERANCE", 0.0),
		RemoveLocalModel:    getEnvAsBool("REMOVE_LOCAL_MODEL", false),
		RunDB:               getEnv("RUN_DB", artefactsDir+"/runs.db"),
		RetrainSchedule:     getEnv("RETRAIN_SCHEDULE", "0 2 * * *"),
	}

	var err error
	if config.SplitSource, err = models.ParseSplitSource(os.Getenv("SPLIT_SOURCE")); err != nil {
		return nil, err
	}
	if config.AcceptancePolicy, err = models.ParseAcceptancePolicy(os.Getenv("ACCEPTANCE_POLICY")); err != nil {
		return nil, err
	}

	// Validate configuration
	if config.TestSize <= 0 || config.TestSize >= 1 {
		return nil, fmt.Errorf("TEST_SIZE must be in (0, 1), got %v", config.TestSize)
	}
	if config.AcceptanceTolerance < 0 {
		return nil, fmt.Errorf("ACCEPTANCE_TOLERANCE must not be negative")
	}
	if config.ObjectStore != ObjectStoreS3 && config.ObjectStore != ObjectStoreFilesystem {
		return nil, fmt.Errorf("OBJECT_STORE must be %q or %q, got %q", ObjectStoreS3, ObjectStoreFilesystem, config.ObjectStore)
	}
	if config.ModelBucket == "" || config.ModelKey == "" {
		return nil, fmt.Errorf("MODEL_BUCKET and MODEL_KEY are required")
	}

	return config, nil
}

// RequireMongo reports an error when no document store connection string is set
func (c *Config) RequireMongo() error {
	if c.MongoURL == "" {
		return fmt.Errorf("MONGO_DB_URL is required")
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level
func (c *Config) SlogLevel() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
