// Package audio assembles synthesized segment buffers into one output
// file by driving an external ffmpeg binary.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Output profile applied to every combined file.
const (
	outputSampleRate = "48000"
	outputChannels   = "2"
	outputCodec      = "pcm_s16le"
)

// Combiner concatenates ordered audio buffers into a single artifact.
// Nil buffers are skipped without disturbing the order of the rest.
type Combiner interface {
	Combine(ctx context.Context, buffers [][]byte, introPath, outputPath string) error
}

// FFmpegCombiner implements Combiner with a single ffmpeg invocation
// using the concat filter, normalizing all inputs to the output profile.
type FFmpegCombiner struct {
	bin string
}

func NewFFmpegCombiner(bin string) *FFmpegCombiner {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegCombiner{bin: bin}
}

func (c *FFmpegCombiner) Combine(ctx context.Context, buffers [][]byte, introPath, outputPath string) error {
	if _, err := exec.LookPath(c.bin); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	var inputs []string

	if introPath != "" {
		if _, err := os.Stat(introPath); err != nil {
			slog.Warn("intro asset missing, combining without it", "path", introPath)
		} else {
			inputs = append(inputs, introPath)
		}
	}

	tempDir, err := os.MkdirTemp("", "podforge-segments-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			slog.Warn("failed to remove segment temp dir", "dir", tempDir, "error", err)
		}
	}()

	for i, buf := range buffers {
		if buf == nil {
			continue
		}
		path := filepath.Join(tempDir, fmt.Sprintf("segment_%04d.wav", i))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return fmt.Errorf("write segment %d: %w", i, err)
		}
		inputs = append(inputs, path)
	}

	if len(inputs) == 0 {
		return fmt.Errorf("no audio inputs to combine")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := buildConcatArgs(inputs, outputPath)
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Error("ffmpeg failed", "error", err, "stderr", stderr.String())
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove partial output", "path", outputPath, "error", rmErr)
		}
		return fmt.Errorf("audio combination failed")
	}

	return nil
}

// buildConcatArgs produces the ffmpeg argument list for concatenating
// the inputs' audio streams (no video) into outputPath.
func buildConcatArgs(inputs []string, outputPath string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	var filter bytes.Buffer
	for i := range inputs {
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[outa]", len(inputs))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outa]",
		"-ar", outputSampleRate,
		"-ac", outputChannels,
		"-acodec", outputCodec,
		outputPath,
	)
	return args
}
