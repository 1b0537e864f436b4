package pipeline

import (
	"context"
	"log/slog"

	"github.com/shipcost/shipcost/pkg/models"
	"github.com/shipcost/shipcost/pkg/stageerr"
	"github.com/shipcost/shipcost/pkg/storage"
)

// Pusher publishes the accepted model to the object store
type Pusher struct {
	cfg    PusherConfig
	store  storage.ObjectStore
	logger *slog.Logger
}

// NewPusher creates the pusher stage
func NewPusher(cfg PusherConfig, store storage.ObjectStore, logger *slog.Logger) *Pusher {
	return &Pusher{cfg: cfg, store: store, logger: logger}
}

// Run uploads the trained model once. There is no retry.
func (s *Pusher) Run(ctx context.Context, trained *models.TrainerArtefact) (*models.PusherArtefact, error) {
	s.logger.Info("Publishing model",
		"path", trained.TrainedModelPath, "bucket", s.cfg.Bucket, "key", s.cfg.Key)

	if err := s.store.Upload(ctx, trained.TrainedModelPath, s.cfg.Key, s.cfg.Bucket, s.cfg.RemoveLocal); err != nil {
		err = stageerr.New(stageerr.Publish, "failed to upload model", err)
		s.logger.Error("Publish failed", "error", err)
		return nil, err
	}
	s.logger.Info("Published model", "bucket", s.cfg.Bucket, "key", s.cfg.Key, "removed_local", s.cfg.RemoveLocal)

	return &models.PusherArtefact{BucketName: s.cfg.Bucket, RemoteModelKey: s.cfg.Key}, nil
}
