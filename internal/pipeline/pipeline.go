// Package pipeline drives one podcast generation job from source
// document to combined audio artifact: script generation, synthesis
// fan-out, in-order fan-in, and assembly, with the job registry updated
// at every stage transition.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkallaste/podforge/internal/audio"
	"github.com/mkallaste/podforge/internal/registry"
	"github.com/mkallaste/podforge/internal/script"
)

// SynthesisGateway is the remote text-to-speech collaborator.
type SynthesisGateway interface {
	Submit(ctx context.Context, text, voiceRef, language string) (string, error)
	Poll(ctx context.Context, remoteID string) ([]byte, error)
}

type Config struct {
	// SpeakerVoices maps script speaker codes to synthesis voice
	// references. Segments with unmapped codes are skipped, not fatal.
	SpeakerVoices map[string]string
	Language      string
	OutputDir     string
	IntroPath     string
	SpacerPath    string
}

// Orchestrator runs jobs. One instance serves many jobs; each Run call
// owns its job id exclusively and is the only writer of that record.
type Orchestrator struct {
	reg      registry.Registry
	scripts  script.Generator
	synth    SynthesisGateway
	combiner audio.Combiner
	cfg      Config
}

func NewOrchestrator(reg registry.Registry, gen script.Generator, synth SynthesisGateway, combiner audio.Combiner, cfg Config) *Orchestrator {
	return &Orchestrator{
		reg:      reg,
		scripts:  gen,
		synth:    synth,
		combiner: combiner,
		cfg:      cfg,
	}
}

// task pairs one script segment with its remote synthesis state. A nil
// audio after fan-in means the segment failed at some stage.
type task struct {
	segment  script.Segment
	voiceRef string
	remoteID string
	audio    []byte
}

// Run executes the full pipeline for one job. The returned error is
// already reflected in the registry; callers should not retry.
func (o *Orchestrator) Run(ctx context.Context, jobID, inputPath, originalFilename string) (err error) {
	log := slog.With("job_id", jobID)
	outputPath := o.outputPath(jobID, originalFilename)
	rec := registry.Record{Status: registry.StatusProcessing, Message: "Generating script..."}

	// The temp input is released on every terminal transition, success
	// or failure. Panics in any stage become a terminal FAILED record.
	defer func() {
		if r := recover(); r != nil {
			err = o.fail(ctx, log, jobID, rec, fmt.Errorf("panic: %v", r), outputPath)
		}
		if rmErr := os.Remove(inputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove temp input", "path", inputPath, "error", rmErr)
		}
	}()

	o.putStatus(ctx, log, jobID, rec)

	segments, err := o.scripts.Generate(ctx, inputPath)
	if err == nil && len(segments) == 0 {
		err = fmt.Errorf("script generation returned an empty script")
	}
	if err != nil {
		return o.fail(ctx, log, jobID, rec, fmt.Errorf("script generation: %w", err), "")
	}
	log.Info("script generated", "segments", len(segments))

	rec.Message = fmt.Sprintf("Submitting %d synthesis requests...", len(segments))
	o.putStatus(ctx, log, jobID, rec)
	tasks := o.submitAll(ctx, log, segments)

	tasks = o.pollAll(ctx, log, jobID, &rec, tasks)

	successCount, failureCount := 0, 0
	for _, t := range tasks {
		if t.audio != nil {
			successCount++
		} else {
			failureCount++
		}
	}
	summary := fmt.Sprintf("Synthesized: %d segments, failed/skipped: %d segments.", successCount, failureCount)
	log.Info("synthesis fan-in complete", "succeeded", successCount, "failed", failureCount)

	if successCount == 0 {
		rec.Message = summary
		return o.fail(ctx, log, jobID, rec, fmt.Errorf("synthesis failed for all %d segments", len(tasks)), "")
	}

	rec.Message = "Combining audio segments..."
	o.putStatus(ctx, log, jobID, rec)

	buffers := o.assembleBuffers(log, tasks)
	if err := o.combiner.Combine(ctx, buffers, o.cfg.IntroPath, outputPath); err != nil {
		rec.Message = summary
		return o.fail(ctx, log, jobID, rec, fmt.Errorf("audio assembly: %w", err), outputPath)
	}

	rec.Status = registry.StatusCompleted
	rec.Message = fmt.Sprintf("Podcast generated successfully. %s", summary)
	rec.ResultPath = outputPath
	rec.Error = ""
	o.putStatus(ctx, log, jobID, rec)
	log.Info("job completed", "result", outputPath)
	return nil
}

// submitAll makes one submission attempt per valid segment, in order.
// Unknown speaker codes, empty text, and submit errors leave the task
// without a remote id; they are counted as failures later.
func (o *Orchestrator) submitAll(ctx context.Context, log *slog.Logger, segments []script.Segment) []task {
	tasks := make([]task, len(segments))
	for i, seg := range segments {
		tasks[i].segment = seg

		voiceRef, ok := o.cfg.SpeakerVoices[seg.Speaker]
		if !ok || strings.TrimSpace(seg.Text) == "" {
			log.Warn("skipping segment", "index", i, "speaker", seg.Speaker, "reason", "unknown speaker or empty text")
			continue
		}
		tasks[i].voiceRef = voiceRef

		remoteID, err := o.synth.Submit(ctx, seg.Text, voiceRef, o.cfg.Language)
		if err != nil {
			log.Warn("synthesis submission failed", "index", i, "speaker", seg.Speaker, "error", err)
			continue
		}
		tasks[i].remoteID = remoteID
		log.Info("synthesis submitted", "index", i, "remote_id", remoteID)
	}
	return tasks
}

// pollAll collects results strictly in segment order. A failed or
// timed-out poll leaves that task's audio nil and never blocks the rest.
func (o *Orchestrator) pollAll(ctx context.Context, log *slog.Logger, jobID string, rec *registry.Record, tasks []task) []task {
	for i := range tasks {
		rec.Message = fmt.Sprintf("Generating audio segment %d/%d...", i+1, len(tasks))
		o.putStatus(ctx, log, jobID, *rec)

		if tasks[i].remoteID == "" {
			continue
		}
		audioBytes, err := o.synth.Poll(ctx, tasks[i].remoteID)
		if err != nil {
			log.Warn("synthesis poll failed", "index", i, "remote_id", tasks[i].remoteID, "error", err)
			continue
		}
		tasks[i].audio = audioBytes
	}
	return tasks
}

// assembleBuffers builds the combiner input: optional spacer first, then
// each segment's audio in original order (nil entries are skipped by the
// combiner). The intro is handed to the combiner as a file path so it
// always leads.
func (o *Orchestrator) assembleBuffers(log *slog.Logger, tasks []task) [][]byte {
	var buffers [][]byte
	if o.cfg.SpacerPath != "" {
		spacer, err := os.ReadFile(o.cfg.SpacerPath)
		if err != nil {
			log.Warn("spacer asset missing, combining without it", "path", o.cfg.SpacerPath, "error", err)
		} else {
			buffers = append(buffers, spacer)
		}
	}
	for _, t := range tasks {
		buffers = append(buffers, t.audio)
	}
	return buffers
}

// fail records the terminal FAILED state, keeping the most recent
// progress message as context, and removes any partial artifact.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID string, rec registry.Record, cause error, partialArtifact string) error {
	log.Error("job failed", "error", cause)

	if partialArtifact != "" {
		if err := os.Remove(partialArtifact); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove partial artifact", "path", partialArtifact, "error", err)
		}
	}

	rec.Status = registry.StatusFailed
	if rec.Message == "" {
		rec.Message = cause.Error()
	}
	rec.Error = cause.Error()
	rec.ResultPath = ""
	o.putStatus(ctx, log, jobID, rec)
	return cause
}

// putStatus writes the record, logging and swallowing store errors: a
// degraded registry must not abort an in-flight job.
func (o *Orchestrator) putStatus(ctx context.Context, log *slog.Logger, jobID string, rec registry.Record) {
	if err := o.reg.Put(ctx, jobID, rec); err != nil {
		log.Warn("registry write failed", "status", rec.Status, "error", err)
	}
}

// outputPath derives the artifact location from the original upload's
// base name plus a fixed suffix. The job id prefix keeps concurrent
// jobs with identical upload names from sharing one artifact in the
// output dir.
func (o *Orchestrator) outputPath(jobID, originalFilename string) string {
	stem := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	return filepath.Join(o.cfg.OutputDir, jobID+"_"+stem+"_podcast.wav")
}
