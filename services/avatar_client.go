package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"avatar-chat-backend/internal/config"
)

// AvatarClient forwards generated answers to the avatar session service so
// the avatar speaks them aloud. All calls are best-effort: the answer has
// already been returned to the user by the time this runs.
type AvatarClient struct {
	httpClient *http.Client
	baseURL    string
}

// SpeakRequest is the payload sent to the avatar session text endpoint.
type SpeakRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// NewAvatarClient creates a client for the avatar session service. An empty
// base URL disables speaking; Speak becomes a no-op.
func NewAvatarClient(cfg *config.Config) *AvatarClient {
	return &AvatarClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.AvatarSessionURL,
	}
}

// Speak posts the text to the avatar session endpoint. Callers run this on
// its own goroutine; the returned error is for logging only.
func (c *AvatarClient) Speak(ctx context.Context, sessionID, text string) error {
	if c.baseURL == "" {
		return nil
	}

	payload, err := json.Marshal(SpeakRequest{SessionID: sessionID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal speak request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create speak request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("avatar session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("avatar session returned status %d", resp.StatusCode)
	}
	return nil
}
