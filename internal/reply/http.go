package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/cohort/internal/script"
)

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("reply endpoint error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("reply endpoint error (%d)", e.Status)
}

type wirePersona struct {
	Key              string `json:"key"`
	DisplayName      string `json:"displayName"`
	PersonalityClass string `json:"personalityClass"`
}

type wireRequest struct {
	Request
	Roster []wirePersona `json:"personaRoster"`
}

// HTTPClient posts requests as JSON to an external completion endpoint.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient validates endpoint and returns a client. A nil hc gets a
// client with a 30 second timeout; the orchestrator's own reply timeout is
// normally the tighter bound.
func NewHTTPClient(endpoint string, hc *http.Client) (*HTTPClient, error) {
	value := strings.TrimSpace(endpoint)
	if value == "" {
		return nil, fmt.Errorf("reply url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid reply url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("reply url must use http or https, got %q", parsed.Scheme)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{endpoint: value, httpClient: hc}, nil
}

// Generate implements Generator.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (Response, error) {
	payload := wireRequest{Request: req, Roster: rosterToWire(req.Roster)}
	payload.Recent = Recent(req.Recent)

	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("encode reply request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("build reply request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("reply request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read reply response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, fmt.Errorf("decode reply response: %w", err)
	}
	if err := out.Validate(); err != nil {
		return Response{}, fmt.Errorf("invalid reply response: %w", err)
	}
	return out, nil
}

func rosterToWire(roster script.Roster) []wirePersona {
	out := make([]wirePersona, len(roster))
	for i, p := range roster {
		out[i] = wirePersona{Key: p.Key, DisplayName: p.DisplayName, PersonalityClass: string(p.Class)}
	}
	return out
}
