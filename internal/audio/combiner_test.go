package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConcatArgs(t *testing.T) {
	args := buildConcatArgs([]string{"intro.wav", "seg0.wav", "seg1.wav"}, "out.wav")

	assert.Equal(t, []string{
		"-y",
		"-i", "intro.wav",
		"-i", "seg0.wav",
		"-i", "seg1.wav",
		"-filter_complex", "[0:a][1:a][2:a]concat=n=3:v=0:a=1[outa]",
		"-map", "[outa]",
		"-ar", "48000",
		"-ac", "2",
		"-acodec", "pcm_s16le",
		"out.wav",
	}, args)
}

func TestBuildConcatArgs_SingleInput(t *testing.T) {
	args := buildConcatArgs([]string{"only.wav"}, "out.wav")
	assert.Contains(t, args, "[0:a]concat=n=1:v=0:a=1[outa]")
}

func TestCombine_MissingToolIsHardFailure(t *testing.T) {
	c := NewFFmpegCombiner("ffmpeg-binary-that-does-not-exist")

	err := c.Combine(context.Background(), [][]byte{[]byte("wav")}, "", filepath.Join(t.TempDir(), "out.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestCombine_NoInputs(t *testing.T) {
	// "true" stands in for ffmpeg so the availability check passes; the
	// empty input list fails before any invocation.
	c := NewFFmpegCombiner("true")

	err := c.Combine(context.Background(), [][]byte{nil, nil}, "", filepath.Join(t.TempDir(), "out.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio inputs")
}

func TestCombine_ToolFailureRemovesPartialOutput(t *testing.T) {
	// "false" exits nonzero for any arguments, standing in for a failing
	// ffmpeg run.
	c := NewFFmpegCombiner("false")

	outputPath := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, os.WriteFile(outputPath, []byte("partial"), 0o644))

	err := c.Combine(context.Background(), [][]byte{[]byte("wav")}, "", outputPath)
	require.Error(t, err)
	assert.EqualError(t, err, "audio combination failed")

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCombine_MissingIntroIsSkippedNotFatal(t *testing.T) {
	c := NewFFmpegCombiner("false")

	// The missing intro is only warned about; the run still reaches the
	// tool invocation, which fails here by construction.
	err := c.Combine(context.Background(), [][]byte{[]byte("wav")},
		filepath.Join(t.TempDir(), "missing_intro.wav"),
		filepath.Join(t.TempDir(), "out.wav"))
	require.Error(t, err)
	assert.EqualError(t, err, "audio combination failed")
}
