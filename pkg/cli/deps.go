package cli

import (
	"context"
	"fmt"

	"github.com/shipcost/shipcost/pkg/config"
	"github.com/shipcost/shipcost/pkg/metadatastore"
	"github.com/shipcost/shipcost/pkg/pipeline"
	"github.com/shipcost/shipcost/pkg/storage"
)

// openObjectStore returns the configured model bucket backend
func openObjectStore(ctx context.Context, c *config.Config) (storage.ObjectStore, error) {
	switch c.ObjectStore {
	case config.ObjectStoreFilesystem:
		fs, err := storage.NewFilesystemStore(c.ObjectStorePath)
		if err != nil {
			return nil, err
		}
		if err := fs.HealthCheck(); err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return storage.NewS3Store(ctx, storage.S3Options{Region: c.AWSRegion, Endpoint: c.S3Endpoint})
	}
}

func openDocuments(ctx context.Context, c *config.Config) (*storage.MongoStore, error) {
	if err := c.RequireMongo(); err != nil {
		return nil, err
	}
	return storage.NewMongoStore(ctx, c.MongoURL)
}

func loadSettings(c *config.Config) (pipeline.Settings, error) {
	schema, err := config.LoadSchema(c.SchemaFile)
	if err != nil {
		return pipeline.Settings{}, err
	}
	model, err := config.LoadModelConfig(c.ModelConfigFile)
	if err != nil {
		return pipeline.Settings{}, err
	}
	return pipeline.SettingsFromConfig(c, schema, model), nil
}

// session holds the clients a training run needs
type session struct {
	runner *pipeline.Runner
	docs   *storage.MongoStore
	ledger *metadatastore.SQLiteStore
}

func newSession(ctx context.Context, c *config.Config, splitSeed *int64) (*session, error) {
	settings, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	settings.SplitSeed = splitSeed

	objects, err := openObjectStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	docs, err := openDocuments(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	ledger, err := metadatastore.NewSQLiteStore(c.RunDB)
	if err != nil {
		_ = docs.Close(ctx)
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	return &session{
		runner: &pipeline.Runner{
			ArtefactsDir: c.ArtefactsDir,
			Settings:     settings,
			Deps:         pipeline.Dependencies{Documents: docs, Objects: objects},
			Recorder:     ledger,
			Logger:       logger,
		},
		docs:   docs,
		ledger: ledger,
	}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.ledger.Close(); err != nil {
		logger.Warn("Failed to close run ledger", "error", err)
	}
	if err := s.docs.Close(ctx); err != nil {
		logger.Warn("Failed to disconnect from mongodb", "error", err)
	}
}
