package registry

import (
	"context"
	"errors"
)

// Job statuses. A job is created PENDING, moves to PROCESSING when the
// worker picks it up, and ends in exactly one of COMPLETED or FAILED.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Record is the persisted status of one generation job. The message is
// overwritten at each stage transition; ResultPath is set only on
// COMPLETED and Error only on FAILED.
type Record struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ResultPath string `json:"result_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ErrUnavailable is returned when the underlying store cannot be reached.
// Callers must distinguish it from a missing record: an unreachable store
// degrades status visibility but never implies the job is gone.
var ErrUnavailable = errors.New("registry unavailable")

// Registry is the job status store. Put upserts the record and refreshes
// its TTL; Get reports found=false for absent or expired records.
// Exactly one background task writes a given id, so no read-modify-write
// coordination is needed; reads may happen concurrently from any caller.
type Registry interface {
	Put(ctx context.Context, id string, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Ping(ctx context.Context) error
}
