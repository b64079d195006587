package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallaste/podforge/internal/pipeline"
	"github.com/mkallaste/podforge/internal/registry"
	"github.com/mkallaste/podforge/internal/script"
)

// --- fakes ---

type fakeGenerator struct {
	segments []script.Segment
	err      error
}

func (f *fakeGenerator) Generate(context.Context, string) ([]script.Segment, error) {
	return f.segments, f.err
}

type fakeGateway struct {
	// submitErrs and pollErrs are keyed by segment text.
	submitErrs map[string]error
	pollErrs   map[string]error
	submitted  []string
}

func (f *fakeGateway) Submit(_ context.Context, text, voiceRef, language string) (string, error) {
	if err := f.submitErrs[text]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, text)
	return "remote-" + text, nil
}

func (f *fakeGateway) Poll(_ context.Context, remoteID string) ([]byte, error) {
	text := remoteID[len("remote-"):]
	if err := f.pollErrs[text]; err != nil {
		return nil, err
	}
	return []byte("audio:" + text), nil
}

type fakeCombiner struct {
	err     error
	buffers [][]byte
	intro   string
	output  string
}

func (f *fakeCombiner) Combine(_ context.Context, buffers [][]byte, introPath, outputPath string) error {
	f.buffers = buffers
	f.intro = introPath
	f.output = outputPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("combined"), 0o644)
}

// failingPutRegistry rejects every write and never finds a record.
type failingPutRegistry struct {
	puts int
}

func (r *failingPutRegistry) Put(context.Context, string, registry.Record) error {
	r.puts++
	return registry.ErrUnavailable
}

func (r *failingPutRegistry) Get(context.Context, string) (registry.Record, bool, error) {
	return registry.Record{}, false, registry.ErrUnavailable
}

func (r *failingPutRegistry) Ping(context.Context) error { return registry.ErrUnavailable }

type env struct {
	reg       *registry.MemoryRegistry
	gateway   *fakeGateway
	combiner  *fakeCombiner
	orch      *pipeline.Orchestrator
	inputPath string
	outputDir string
}

func newEnv(t *testing.T, gen script.Generator, gateway *fakeGateway, combiner *fakeCombiner, spacerPath string) *env {
	t.Helper()
	reg := registry.NewMemoryRegistry(time.Hour)
	outputDir := t.TempDir()

	inputPath := filepath.Join(t.TempDir(), "job1_paper.pdf")
	require.NoError(t, os.WriteFile(inputPath, []byte("%PDF-1.4"), 0o644))

	orch := pipeline.NewOrchestrator(reg, gen, gateway, combiner, pipeline.Config{
		SpeakerVoices: map[string]string{"A": "philip.wav", "B": "oskar.wav"},
		Language:      "en",
		OutputDir:     outputDir,
		SpacerPath:    spacerPath,
	})
	return &env{reg: reg, gateway: gateway, combiner: combiner, orch: orch, inputPath: inputPath, outputDir: outputDir}
}

func segs(texts ...string) []script.Segment {
	out := make([]script.Segment, len(texts))
	for i, text := range texts {
		speaker := "A"
		if i%2 == 1 {
			speaker = "B"
		}
		out[i] = script.Segment{Speaker: speaker, Text: text}
	}
	return out
}

// --- tests ---

func TestRun_AllSegmentsSucceed(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one", "two", "three")}
	e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.NoError(t, err)

	rec, found, err := e.reg.Get(context.Background(), "job1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Equal(t, filepath.Join(e.outputDir, "job1_paper_podcast.wav"), rec.ResultPath)
	assert.Contains(t, rec.Message, "3 segments")
	assert.Empty(t, rec.Error)

	// Buffers reach the combiner in original segment order.
	require.Len(t, e.combiner.buffers, 3)
	assert.Equal(t, []byte("audio:one"), e.combiner.buffers[0])
	assert.Equal(t, []byte("audio:two"), e.combiner.buffers[1])
	assert.Equal(t, []byte("audio:three"), e.combiner.buffers[2])
}

func TestRun_SubmissionFailureOmitsSegmentButCompletes(t *testing.T) {
	// Scenario: 3 segments, segment 1's submission fails, 0 and 2 succeed.
	gen := &fakeGenerator{segments: segs("zero", "one", "two")}
	gw := &fakeGateway{submitErrs: map[string]error{"one": fmt.Errorf("boom")}}
	e := newEnv(t, gen, gw, &fakeCombiner{}, "")

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.NoError(t, err)

	rec, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Contains(t, rec.Message, "Synthesized: 2 segments")
	assert.Contains(t, rec.Message, "failed/skipped: 1 segments")

	// The failed segment is a nil buffer in its original position.
	require.Len(t, e.combiner.buffers, 3)
	assert.Equal(t, []byte("audio:zero"), e.combiner.buffers[0])
	assert.Nil(t, e.combiner.buffers[1])
	assert.Equal(t, []byte("audio:two"), e.combiner.buffers[2])
}

func TestRun_EmptyScriptFails(t *testing.T) {
	gen := &fakeGenerator{segments: nil}
	gw := &fakeGateway{}
	e := newEnv(t, gen, gw, &fakeCombiner{}, "")

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.Error(t, err)

	rec, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, registry.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "empty script")

	// No synthesis requests were submitted.
	assert.Empty(t, gw.submitted)
}

func TestRun_AllSynthesisFailuresFailWithoutAssembly(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one", "two")}
	gw := &fakeGateway{pollErrs: map[string]error{
		"one": fmt.Errorf("timed out"),
		"two": fmt.Errorf("remote failed"),
	}}
	combiner := &fakeCombiner{}
	e := newEnv(t, gen, gw, combiner, "")

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.Error(t, err)

	rec, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, registry.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "all 2 segments")

	// Assembly never ran and no artifact exists.
	assert.Nil(t, combiner.buffers)
	_, statErr := os.Stat(filepath.Join(e.outputDir, "job1_paper_podcast.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_CombinerFailureRemovesPartialArtifact(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one")}
	combiner := &fakeCombiner{err: fmt.Errorf("audio combination failed")}
	e := newEnv(t, gen, &fakeGateway{}, combiner, "")

	// Simulate a partially written output.
	outputPath := filepath.Join(e.outputDir, "job1_paper_podcast.wav")
	require.NoError(t, os.WriteFile(outputPath, []byte("partial"), 0o644))

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.Error(t, err)

	rec, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, registry.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "audio combination failed")
	// The error detail is retrievable, and the partial output is gone.
	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_UnknownSpeakerSkippedWithoutReordering(t *testing.T) {
	gen := &fakeGenerator{segments: []script.Segment{
		{Speaker: "A", Text: "first"},
		{Speaker: "X", Text: "mystery"},
		{Speaker: "B", Text: "last"},
	}}
	gw := &fakeGateway{}
	e := newEnv(t, gen, gw, &fakeCombiner{}, "")

	err := e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf")
	require.NoError(t, err)

	// The unknown speaker was never submitted.
	assert.Equal(t, []string{"first", "last"}, gw.submitted)

	require.Len(t, e.combiner.buffers, 3)
	assert.Equal(t, []byte("audio:first"), e.combiner.buffers[0])
	assert.Nil(t, e.combiner.buffers[1])
	assert.Equal(t, []byte("audio:last"), e.combiner.buffers[2])

	rec, _, _ := e.reg.Get(context.Background(), "job1")
	assert.Contains(t, rec.Message, "failed/skipped: 1 segments")
}

func TestRun_EmptyTextSegmentSkipped(t *testing.T) {
	gen := &fakeGenerator{segments: []script.Segment{
		{Speaker: "A", Text: "   "},
		{Speaker: "B", Text: "real"},
	}}
	gw := &fakeGateway{}
	e := newEnv(t, gen, gw, &fakeCombiner{}, "")

	require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))
	assert.Equal(t, []string{"real"}, gw.submitted)
}

func TestRun_SpacerPrependedToBuffers(t *testing.T) {
	spacerPath := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, os.WriteFile(spacerPath, []byte("silence"), 0o644))

	gen := &fakeGenerator{segments: segs("one")}
	combiner := &fakeCombiner{}
	e := newEnv(t, gen, &fakeGateway{}, combiner, spacerPath)

	require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))

	require.Len(t, combiner.buffers, 2)
	assert.Equal(t, []byte("silence"), combiner.buffers[0])
	assert.Equal(t, []byte("audio:one"), combiner.buffers[1])
}

func TestRun_MissingSpacerIsNotFatal(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one")}
	combiner := &fakeCombiner{}
	e := newEnv(t, gen, &fakeGateway{}, combiner, filepath.Join(t.TempDir(), "nope.wav"))

	require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))
	require.Len(t, combiner.buffers, 1)
}

func TestRun_TempInputRemovedOnSuccessAndFailure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{segments: segs("one")}
		e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")
		require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))
		_, err := os.Stat(e.inputPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("failure", func(t *testing.T) {
		gen := &fakeGenerator{err: fmt.Errorf("provider down")}
		e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")
		require.Error(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))
		_, err := os.Stat(e.inputPath)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestRun_StatusIdempotentAfterCompletion(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one")}
	e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")

	require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))

	first, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	second, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, first, second)
}

func TestRun_RegistryWriteFailuresDoNotAbortJob(t *testing.T) {
	reg := &failingPutRegistry{}
	gen := &fakeGenerator{segments: segs("one", "two")}
	combiner := &fakeCombiner{}
	outputDir := t.TempDir()
	inputPath := filepath.Join(t.TempDir(), "job1_paper.pdf")
	require.NoError(t, os.WriteFile(inputPath, []byte("%PDF-1.4"), 0o644))

	orch := pipeline.NewOrchestrator(reg, gen, &fakeGateway{}, combiner, pipeline.Config{
		SpeakerVoices: map[string]string{"A": "philip.wav", "B": "oskar.wav"},
		Language:      "en",
		OutputDir:     outputDir,
	})

	require.NoError(t, orch.Run(context.Background(), "job1", inputPath, "paper.pdf"))

	// Every stage write was rejected, yet the pipeline ran to completion
	// on its in-process state and produced the artifact.
	assert.Greater(t, reg.puts, 0)
	require.Len(t, combiner.buffers, 2)
	_, statErr := os.Stat(filepath.Join(outputDir, "job1_paper_podcast.wav"))
	assert.NoError(t, statErr)
}

func TestRun_SameFilenameJobsKeepDistinctArtifacts(t *testing.T) {
	gen := &fakeGenerator{segments: segs("one")}
	e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")
	require.NoError(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))

	// A second job uploads the same filename and fails at assembly; its
	// cleanup must not remove the first job's completed artifact.
	input2 := filepath.Join(t.TempDir(), "job2_paper.pdf")
	require.NoError(t, os.WriteFile(input2, []byte("%PDF-1.4"), 0o644))
	orch2 := pipeline.NewOrchestrator(e.reg, gen, &fakeGateway{}, &fakeCombiner{err: fmt.Errorf("audio combination failed")}, pipeline.Config{
		SpeakerVoices: map[string]string{"A": "philip.wav", "B": "oskar.wav"},
		Language:      "en",
		OutputDir:     e.outputDir,
	})
	require.Error(t, orch2.Run(context.Background(), "job2", input2, "paper.pdf"))

	rec, found, _ := e.reg.Get(context.Background(), "job1")
	require.True(t, found)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	_, statErr := os.Stat(rec.ResultPath)
	assert.NoError(t, statErr)

	rec2, found, _ := e.reg.Get(context.Background(), "job2")
	require.True(t, found)
	assert.Equal(t, registry.StatusFailed, rec2.Status)
	assert.Empty(t, rec2.ResultPath)
}

func TestRun_FailurePreservesStageMessageAsContext(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("provider down")}
	e := newEnv(t, gen, &fakeGateway{}, &fakeCombiner{}, "")

	require.Error(t, e.orch.Run(context.Background(), "job1", e.inputPath, "paper.pdf"))

	rec, _, _ := e.reg.Get(context.Background(), "job1")
	assert.Equal(t, "Generating script...", rec.Message)
	assert.Contains(t, rec.Error, "provider down")
}
