package script

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mkallaste/podforge/pkg/textextract"
)

const (
	speakerAPrefix = "Speaker A:"
	speakerBPrefix = "Speaker B:"

	// Document text beyond this is dropped from the prompt to stay well
	// inside completion context windows.
	maxDocumentChars = 60000
)

const promptTemplate = `You are a podcast script writer. Below is the text of a document titled "%s". Your task is to convert its content into a conversational podcast script between two distinct speakers: "Speaker A" and "Speaker B".

Instructions:
1. Create a natural-sounding conversation where Speaker A and Speaker B discuss the main points and key information from the document.
2. Generally alternate between Speaker A and Speaker B, but a speaker may occasionally take two consecutive turns if it improves the flow. Keep a reasonable balance overall.
3. Keep the tone informative yet engaging, suitable for a podcast format.
4. Aim for individual speaking turns of around 150-200 characters, with occasional longer contributions (up to 400-500 characters) when explaining a complex point.
5. The script should cover the core information but does not need every detail. Target a podcast duration of roughly 3-5 minutes.
6. Crucially, format the output ONLY as follows: each line must start with either "Speaker A:" or "Speaker B:", followed by that speaker's dialogue. No titles, introductions, or any other text outside this format.

Document text:
---
%s
---

Generate the podcast script based only on the document text above.`

// LLMGenerator produces scripts by extracting the document's text locally
// and asking a completion provider to write the dialogue.
type LLMGenerator struct {
	provider Provider
}

func NewLLMGenerator(provider Provider) *LLMGenerator {
	return &LLMGenerator{provider: provider}
}

func (g *LLMGenerator) Generate(ctx context.Context, documentPath string) ([]Segment, error) {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), filepath.Ext(documentPath))
	if err != nil {
		return nil, fmt.Errorf("extract document text: %w", err)
	}

	text := extracted.Content
	if len(text) > maxDocumentChars {
		slog.Warn("document text truncated for prompt",
			"path", documentPath,
			"chars", len(text),
			"limit", maxDocumentChars,
		)
		// Cut on a rune boundary so the prompt stays valid UTF-8.
		cut := maxDocumentChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s contains no extractable text", filepath.Base(documentPath))
	}

	prompt := fmt.Sprintf(promptTemplate, filepath.Base(documentPath), text)

	raw, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("script completion (%s): %w", g.provider.Name(), err)
	}

	segments := ParseScript(raw)
	if len(segments) == 0 {
		return nil, fmt.Errorf("provider %s returned no usable dialogue lines", g.provider.Name())
	}
	return segments, nil
}

// ParseScript extracts ordered dialogue segments from raw completion
// output. Lines not starting with a known speaker prefix are ignored.
func ParseScript(raw string) []Segment {
	var segments []Segment
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, speakerAPrefix):
			if text := strings.TrimSpace(strings.TrimPrefix(line, speakerAPrefix)); text != "" {
				segments = append(segments, Segment{Speaker: "A", Text: text})
			}
		case strings.HasPrefix(line, speakerBPrefix):
			if text := strings.TrimSpace(strings.TrimPrefix(line, speakerBPrefix)); text != "" {
				segments = append(segments, Segment{Speaker: "B", Text: text})
			}
		}
	}
	return segments
}
