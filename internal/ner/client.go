package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client calls an entity-recognition service over HTTP.
type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client posting to url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Status string `json:"status"`
	Data   struct {
		OriginalText string   `json:"original_text"`
		Entities     []Entity `json:"entities"`
	} `json:"data"`
	Performance Performance `json:"performance"`
}

// Predict submits text and returns the detected entities.
func (c *Client) Predict(ctx context.Context, text string) (*Prediction, error) {
	ctx, span := tracer.Start(ctx, "ner.predict")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshalling ner request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating ner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ner call failed")
		return nil, fmt.Errorf("ner call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("ner call: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding ner response: %w", err)
	}

	span.SetAttributes(
		attribute.Int("pii.entity_count", len(out.Data.Entities)),
		attribute.Float64("ner.latency_ms", out.Performance.LatencyMS),
	)

	return &Prediction{
		Status:       out.Status,
		OriginalText: out.Data.OriginalText,
		Entities:     out.Data.Entities,
		Performance:  out.Performance,
	}, nil
}
