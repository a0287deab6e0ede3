// Package embedder is the HTTP client for the external detect-and-embed
// service. The service owns face detection and embedding extraction; this
// side only sees opaque float vectors.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/engine"
)

// Client talks to the embedder service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the embedder at baseURL.
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("embedder URL is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// detectResponse is the embedder's wire format.
type detectResponse struct {
	Detections []struct {
		Embedding []float32 `json:"embedding"`
		BBox      []float64 `json:"bbox"`
	} `json:"detections"`
}

// DetectAndEmbed sends an encoded image and returns one detection per face
// found. Zero detections is a normal result, not an error.
func (c *Client) DetectAndEmbed(ctx context.Context, image []byte) ([]engine.Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedder request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("could not unmarshal embedder response: %w", err)
	}

	now := time.Now()
	detections := make([]engine.Detection, 0, len(decoded.Detections))
	for _, d := range decoded.Detections {
		detections = append(detections, engine.Detection{
			Embedding:  d.Embedding,
			BBox:       d.BBox,
			ObservedAt: now,
		})
	}
	return detections, nil
}
