// Package synthesis talks to a remote RunPod-style text-to-speech
// endpoint: one async submit per script segment, then status polling
// until the remote job completes, fails, or the wall-clock budget runs
// out.
package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Remote job statuses. Anything not listed here is treated as
// non-terminal and polled again; the backend's status set is not
// assumed to be exhaustive.
const (
	remoteCompleted  = "COMPLETED"
	remoteFailed     = "FAILED"
	remoteInQueue    = "IN_QUEUE"
	remoteInProgress = "IN_PROGRESS"
)

type Config struct {
	EndpointURL  string
	APIKey       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Gateway submits synthesis requests and polls them to completion.
// Safe for concurrent use.
type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func NewGateway(cfg Config) *Gateway {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	return &Gateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type submitRequest struct {
	Input submitInput `json:"input"`
}

type submitInput struct {
	Text            string `json:"text"`
	SpeakerFilename string `json:"speaker_filename"`
	Language        string `json:"language"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string       `json:"status"`
	Output statusOutput `json:"output"`
}

type statusOutput struct {
	AudioBase64 string `json:"audio_base64"`
}

// Submit sends one synthesis request and returns the remote job id.
// A single attempt; any transport or protocol error fails the submission.
func (g *Gateway) Submit(ctx context.Context, text, voiceRef, language string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		Input: submitInput{Text: text, SpeakerFilename: voiceRef, Language: language},
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.runURL(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit failed (status %d): %s", resp.StatusCode, string(body))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if sr.ID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}
	return sr.ID, nil
}

// Poll reads the remote status at the configured interval until the job
// reports COMPLETED (audio returned), FAILED, or the wall-clock budget
// elapses. Transport and decode errors are transient: the wait doubles,
// capped at four intervals, but the overall budget is never extended.
func (g *Gateway) Poll(ctx context.Context, remoteID string) ([]byte, error) {
	deadline := time.Now().Add(g.cfg.PollTimeout)
	wait := g.cfg.PollInterval
	maxWait := 4 * g.cfg.PollInterval

	for time.Now().Before(deadline) {
		status, err := g.fetchStatus(ctx, remoteID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("transient poll error", "remote_id", remoteID, "error", err)
			wait = min(wait*2, maxWait)
			if err := sleepUntil(ctx, wait, deadline); err != nil {
				return nil, err
			}
			continue
		}

		switch status.Status {
		case remoteCompleted:
			if status.Output.AudioBase64 == "" {
				return nil, fmt.Errorf("remote job %s completed without audio payload", remoteID)
			}
			audio, err := base64.StdEncoding.DecodeString(status.Output.AudioBase64)
			if err != nil {
				return nil, fmt.Errorf("decode audio for remote job %s: %w", remoteID, err)
			}
			return audio, nil
		case remoteFailed:
			return nil, fmt.Errorf("remote job %s failed", remoteID)
		case remoteInQueue, remoteInProgress:
			wait = g.cfg.PollInterval
		default:
			slog.Warn("unexpected remote status, polling again", "remote_id", remoteID, "status", status.Status)
			wait = g.cfg.PollInterval
		}

		if err := sleepUntil(ctx, wait, deadline); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("remote job %s timed out after %s", remoteID, g.cfg.PollTimeout)
}

func (g *Gateway) fetchStatus(ctx context.Context, remoteID string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.statusURL(remoteID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status failed (status %d): %s", resp.StatusCode, string(body))
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &sr, nil
}

func (g *Gateway) runURL() string {
	return strings.TrimSuffix(g.cfg.EndpointURL, "/") + "/run"
}

func (g *Gateway) statusURL(remoteID string) string {
	return strings.TrimSuffix(g.cfg.EndpointURL, "/") + "/status/" + remoteID
}

// sleepUntil waits for d but never past the poll deadline, and returns
// early if ctx is cancelled.
func sleepUntil(ctx context.Context, d time.Duration, deadline time.Time) error {
	if remaining := time.Until(deadline); d > remaining {
		d = remaining
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
