package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"planted-staging/internal/db"
	"planted-staging/internal/logger"
	"planted-staging/internal/model"
	"planted-staging/internal/queue"

	"github.com/rs/zerolog"
)

// EventSource delivers raw staging events, e.g. a queue.Consumer.
type EventSource interface {
	Consume(ctx context.Context, handler queue.MessageHandler) error
}

// AuditWorker persists staging events published by the API.
type AuditWorker struct {
	repo        db.Repository
	source      EventSource
	workerCount int
	workerPool  *WorkerPool
	log         zerolog.Logger
}

func NewAuditWorker(repo db.Repository, source EventSource, workerCount int) *AuditWorker {
	if workerCount < 1 {
		workerCount = 1
	}
	return &AuditWorker{
		repo:        repo,
		source:      source,
		workerCount: workerCount,
		workerPool:  NewWorkerPool(workerCount),
		log:         logger.Component("audit-worker"),
	}
}

// Start runs workerCount consumers and blocks until ctx is cancelled or one
// of them fails.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.log.Info().Int("worker_count", w.workerCount).Msg("Starting audit worker")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make([]Job, w.workerCount)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) error {
			err := w.source.Consume(ctx, w.handleMessage)
			if err != nil && !stderrors.Is(err, context.Canceled) {
				cancel()
			}
			return err
		}
	}

	for _, err := range w.workerPool.Run(ctx, jobs) {
		if err != nil && !stderrors.Is(err, context.Canceled) {
			return err
		}
	}
	w.log.Info().Msg("Audit worker stopped")
	return nil
}

func (w *AuditWorker) handleMessage(ctx context.Context, data []byte) error {
	var event model.StagingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal staging event")
		return err
	}
	if event.UploadID == "" || event.Type == "" {
		return fmt.Errorf("staging event %q carries no upload id or type", event.ID)
	}

	if err := w.repo.InsertEvent(ctx, event); err != nil {
		w.log.Error().Err(err).Str("upload_id", event.UploadID).Str("type", string(event.Type)).Msg("Failed to store staging event")
		return err
	}

	w.log.Debug().Str("upload_id", event.UploadID).Str("type", string(event.Type)).Msg("Staging event stored")
	return nil
}

// EventRecorder writes events straight into the repository. It replaces the
// Redis producer when Redis is disabled.
type EventRecorder struct {
	repo db.Repository
}

func NewEventRecorder(repo db.Repository) *EventRecorder {
	return &EventRecorder{repo: repo}
}

func (r *EventRecorder) Publish(ctx context.Context, event model.StagingEvent) error {
	return r.repo.InsertEvent(ctx, event)
}
