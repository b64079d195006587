package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mkallaste/podforge/internal/audio"
	"github.com/mkallaste/podforge/internal/config"
	"github.com/mkallaste/podforge/internal/pipeline"
	"github.com/mkallaste/podforge/internal/queue"
	"github.com/mkallaste/podforge/internal/queue/workers"
	"github.com/mkallaste/podforge/internal/registry"
	"github.com/mkallaste/podforge/internal/script"
	"github.com/mkallaste/podforge/internal/synthesis"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	reg, closeReg, err := registry.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize job registry", "backend", cfg.Registry.Backend, "error", err)
		os.Exit(1)
	}
	defer closeReg()

	// Postgres has no key expiry; expired rows are reaped here.
	if pg, ok := reg.(*registry.PostgresRegistry); ok {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				removed, err := pg.Sweep(ctx)
				if err != nil {
					slog.Warn("registry sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("swept expired job records", "removed", removed)
				}
			}
		}()
	}

	gen, err := script.NewGenerator(cfg.Script)
	if err != nil {
		slog.Error("failed to initialize script generator", "error", err)
		os.Exit(1)
	}

	gateway := synthesis.NewGateway(synthesis.Config{
		EndpointURL:  cfg.Synthesis.EndpointURL,
		APIKey:       cfg.Synthesis.APIKey,
		PollInterval: cfg.Synthesis.PollInterval,
		PollTimeout:  cfg.Synthesis.PollTimeout,
	})

	combiner := audio.NewFFmpegCombiner(cfg.Audio.FFmpegBin)

	orchestrator := pipeline.NewOrchestrator(reg, gen, gateway, combiner, pipeline.Config{
		SpeakerVoices: cfg.Audio.SpeakerVoices,
		Language:      cfg.Synthesis.Language,
		OutputDir:     cfg.Audio.OutputDir,
		IntroPath:     cfg.Audio.IntroPath,
		SpacerPath:    cfg.Audio.SpacerPath,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Jobs are minutes-scale and dominated by remote synthesis
			// waits; a small pool keeps ffmpeg contention down.
			Concurrency: 4,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePodcastGenerate, workers.NewPodcastWorker(orchestrator).ProcessTask)

	slog.Info("starting worker", "concurrency", 4, "registry", cfg.Registry.Backend)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
