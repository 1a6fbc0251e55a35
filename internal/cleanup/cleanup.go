// Package cleanup contains the idempotent sweepers behind the repeatable
// cleanup schedules: expiring abandoned upload sessions and purging
// stale trending topics. Running a sweeper twice is safe; each pass only
// touches rows whose deadline has passed.
package cleanup

import (
	"context"
	"time"

	"github.com/storyloom/storyloom-api/internal/platform/logger"
	"github.com/storyloom/storyloom-api/internal/queue"
	"github.com/storyloom/storyloom-api/internal/store"
	"github.com/storyloom/storyloom-api/internal/telemetry"
)

// Job names handled by the sweepers.
const (
	JobExpireMedia   = "expire_media"
	JobPurgeTrending = "purge_trending"
)

// MediaSweeper expires pending media whose upload session outlived its TTL.
type MediaSweeper struct {
	media store.MediaStore
}

// NewMediaSweeper wires the media sweeper.
func NewMediaSweeper(media store.MediaStore) *MediaSweeper {
	return &MediaSweeper{media: media}
}

// HandleExpireMedia processes one expire_media job.
func (s *MediaSweeper) HandleExpireMedia(ctx context.Context, job *queue.Job) error {
	expired, err := s.media.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	telemetry.SweeperReaped.WithLabelValues("media").Add(float64(expired))
	logger.FromContext(ctx).Info("pending media sweep complete", "expired", expired)
	return nil
}

// TrendingSweeper removes trending topics whose 48h visibility window
// has closed. Evergreen entries carry no expiry and are never touched.
type TrendingSweeper struct {
	topics store.TopicStore
}

// NewTrendingSweeper wires the trending sweeper.
func NewTrendingSweeper(topics store.TopicStore) *TrendingSweeper {
	return &TrendingSweeper{topics: topics}
}

// HandlePurgeTrending processes one purge_trending job.
func (s *TrendingSweeper) HandlePurgeTrending(ctx context.Context, job *queue.Job) error {
	deleted, err := s.topics.DeleteExpiredTrending(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	telemetry.SweeperReaped.WithLabelValues("trending").Add(float64(deleted))
	logger.FromContext(ctx).Info("trending sweep complete", "deleted", deleted)
	return nil
}
