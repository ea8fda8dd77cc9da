package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/metrics"
)

const maxErrorBody = 512

// Client handles communication with the generation endpoint
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	stubMode   bool
	stubDelay  time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStubDelay sets the simulated processing delay of stub mode.
func WithStubDelay(d time.Duration) Option {
	return func(c *Client) { c.stubDelay = d }
}

// NewClient creates a generation client. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL, secret string, timeout time.Duration, stubMode bool, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		stubMode:   stubMode,
		stubDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateBriefing turns a conversation transcript into a briefing document.
// Blank input is rejected before any request is made. Transport failures,
// non-2xx replies and unusable documents are reported as
// briefing.NetworkError; there is no retry.
func (c *Client) GenerateBriefing(ctx context.Context, conversation, userID string) (*briefing.Document, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, briefing.ValidationError("generate", "conversation is empty")
	}

	start := time.Now()
	doc, err := c.generate(ctx, conversation, userID)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	metrics.GenerationRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	return doc, err
}

func (c *Client) generate(ctx context.Context, conversation, userID string) (*briefing.Document, error) {
	if c.stubMode {
		return c.stub(ctx, conversation)
	}

	jsonData, err := json.Marshal(GenerateRequest{Conversation: conversation, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-briefing", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("X-N8N-SECRET", c.secret)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, briefing.NetworkError("generate", fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, briefing.NetworkError("generate", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, briefing.NetworkError("generate", fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, truncateBody(body, maxErrorBody)))
	}

	doc, err := DecodeResponse(body)
	if err != nil {
		return nil, briefing.NetworkError("generate", err)
	}
	if err := briefing.Validate(*doc); err != nil {
		// The caller's input was fine; the endpoint answered with a bad document.
		return nil, briefing.NetworkError("generate", fmt.Errorf("endpoint returned an invalid briefing: %v", err))
	}
	return doc, nil
}

// truncateBody cuts body to at most n bytes without splitting a rune.
func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}

// DecodeResponse accepts a bare document or one nested under
// structured_briefing, itself either an object or JSON text.
func DecodeResponse(body []byte) (*briefing.Document, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) > 0 && raw[0] == '{' {
		var envelope generateResponse
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(bytes.TrimSpace(envelope.StructuredBriefing)) > 0 {
			raw = envelope.StructuredBriefing
		}
	}

	doc, err := briefing.DecodeContent(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode briefing: %w", err)
	}
	return &doc, nil
}

// stub returns canned content after a simulated delay, for development
// without a generation endpoint.
func (c *Client) stub(ctx context.Context, conversation string) (*briefing.Document, error) {
	select {
	case <-ctx.Done():
		return nil, briefing.NetworkError("generate", ctx.Err())
	case <-time.After(c.stubDelay):
	}

	objective := []rune(strings.TrimSpace(conversation))
	if len(objective) > 120 {
		objective = objective[:120]
	}
	return &briefing.Document{
		Objective:      string(objective),
		TargetAudience: "Existing customers and new prospects",
		References:     []string{"Current brand guidelines", "Competitor landing pages"},
		Deadlines: briefing.Deadlines{
			Start:              time.Now().Format("2006-01-02"),
			Delivery:           time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
			IntermediateStages: "Weekly review checkpoints",
		},
		Budget: briefing.Budget{Total: 5000, PerStage: 1250},
		Notes:  []string{"Generated by the stub generator"},
	}, nil
}
