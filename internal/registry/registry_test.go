package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetRoundtrip(t *testing.T) {
	reg := NewMemoryRegistry(time.Hour)
	ctx := context.Background()

	rec := Record{Status: StatusProcessing, Message: "Generating script..."}
	require.NoError(t, reg.Put(ctx, "job1", rec))

	got, found, err := reg.Get(ctx, "job1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)
}

func TestMemory_GetMissing(t *testing.T) {
	reg := NewMemoryRegistry(time.Hour)

	_, found, err := reg.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_PutOverwritesAndRefreshesTTL(t *testing.T) {
	reg := NewMemoryRegistry(time.Hour)
	ctx := context.Background()

	base := time.Now()
	reg.now = func() time.Time { return base }
	require.NoError(t, reg.Put(ctx, "job1", Record{Status: StatusPending}))

	// Rewriting near the first deadline refreshes it.
	reg.now = func() time.Time { return base.Add(59 * time.Minute) }
	require.NoError(t, reg.Put(ctx, "job1", Record{Status: StatusCompleted, ResultPath: "out.wav"}))

	reg.now = func() time.Time { return base.Add(90 * time.Minute) }
	got, found, err := reg.Get(ctx, "job1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "out.wav", got.ResultPath)
}

func TestMemory_ExpiredRecordIsGone(t *testing.T) {
	reg := NewMemoryRegistry(time.Minute)
	ctx := context.Background()

	base := time.Now()
	reg.now = func() time.Time { return base }
	require.NoError(t, reg.Put(ctx, "job1", Record{Status: StatusCompleted}))

	reg.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, found, err := reg.Get(ctx, "job1")
	require.NoError(t, err)
	assert.False(t, found)
}
