package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mkallaste/podforge/internal/pipeline"
	"github.com/mkallaste/podforge/internal/queue"
)

// PodcastWorker runs the generation pipeline for dequeued jobs.
type PodcastWorker struct {
	orchestrator *pipeline.Orchestrator
}

func NewPodcastWorker(orchestrator *pipeline.Orchestrator) *PodcastWorker {
	return &PodcastWorker{orchestrator: orchestrator}
}

func (w *PodcastWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PodcastGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	slog.Info("processing podcast job", "job_id", payload.JobID, "input", payload.OriginalFilename)

	// Pipeline failures are terminal and already recorded in the
	// registry; returning nil keeps asynq from retrying or archiving.
	if err := w.orchestrator.Run(ctx, payload.JobID, payload.InputPath, payload.OriginalFilename); err != nil {
		slog.Error("podcast job failed", "job_id", payload.JobID, "error", err)
	}
	return nil
}
