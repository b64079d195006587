package script

import "context"

// Segment is one turn of generated dialogue. Order is significant and is
// preserved all the way to audio assembly.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Generator turns a source document into an ordered two-speaker script.
// An empty segment list signals failure.
type Generator interface {
	Generate(ctx context.Context, documentPath string) ([]Segment, error)
}

// Provider is a single-shot text completion backend used by the default
// Generator implementation.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}
