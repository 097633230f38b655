package external

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mealweek/internal/types"
)

// maxUpstreamBodySize caps how much of an upstream response is read (4 MB).
// Generated plans are well under this; the limit protects against a
// misbehaving upstream streaming unbounded output.
const maxUpstreamBodySize = 4 << 20

// CompletionClientConfig holds the configuration for creating a CompletionClient.
type CompletionClientConfig struct {
	APIKey  types.SecretString
	Model   string
	BaseURL string
	Logger  *slog.Logger
}

// completionRequest is the envelope sent to the upstream completion service.
type completionRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// completionEnvelope models the two known upstream response shapes as a
// tagged union: a flat output_text field, or a list of typed output items.
// Unrecognized substructures are simply left zero-valued and skipped by
// Flatten rather than probed ad hoc.
type completionEnvelope struct {
	OutputText string       `json:"output_text,omitempty"`
	Output     []outputItem `json:"output,omitempty"`
}

// outputItem is one entry of the list-shaped envelope. An item carries
// either its own text or a nested list of content chunks.
type outputItem struct {
	Type    string         `json:"type,omitempty"`
	Text    string         `json:"text,omitempty"`
	Content []contentChunk `json:"content,omitempty"`
}

// contentChunk is the innermost typed text fragment.
type contentChunk struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// Flatten reduces any recognized envelope shape to a single text blob,
// concatenating chunk texts in order with newline separators. Missing or
// malformed substructures are skipped, never fatal.
func (e completionEnvelope) Flatten() string {
	if e.OutputText != "" {
		return e.OutputText
	}

	var parts []string
	for _, item := range e.Output {
		if item.Text != "" {
			parts = append(parts, item.Text)
			continue
		}
		for _, chunk := range item.Content {
			if chunk.Text != "" {
				parts = append(parts, chunk.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// CompletionClient invokes the external natural-language completion service
// that produces plan text. It makes exactly one upstream call per Complete
// invocation; any retry policy belongs to the caller, not this layer.
type CompletionClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	model   string
	baseURL string
	logger  *slog.Logger
}

// NewCompletionClient creates a CompletionClient. The httpClient timeout
// bounds the single long-latency call of the pipeline and should allow for
// generation runs on the order of tens of seconds.
func NewCompletionClient(httpClient *http.Client, cfg CompletionClientConfig) *CompletionClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CompletionClient{
		base:    NewBaseClient(httpClient, "completion", "mealweek/1.0"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewCompletionClientWithBase creates a CompletionClient with a
// pre-configured BaseClient. Useful in tests to control breaker behavior.
func NewCompletionClientWithBase(base *BaseClient, cfg CompletionClientConfig) *CompletionClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionClient{
		base:    base,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Complete sends the prompt to the upstream service and returns the
// flattened raw text of the response.
//
// On a non-2xx outcome the upstream error payload is carried verbatim in the
// returned AppError's details under "upstream"; no masked message is
// synthesized in its place.
func (c *CompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{Model: c.model, Input: prompt})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize completion request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create completion request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	c.logger.InfoContext(ctx, "calling completion service",
		slog.String("model", c.model),
		slog.Int("prompt_bytes", len(prompt)),
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamGeneration,
			"failed to read completion response",
			err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "completion service error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)),
		)
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamGeneration,
			"completion service returned an error",
			nil,
			map[string]any{
				"status":   resp.StatusCode,
				"upstream": upstreamPayload(respBody),
			},
		)
	}

	var envelope completionEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamGeneration,
			"failed to decode completion response envelope",
			err,
		)
	}

	text := envelope.Flatten()
	c.logger.InfoContext(ctx, "completion received",
		slog.Int("text_bytes", len(text)),
	)

	return text, nil
}

// upstreamPayload preserves the upstream error body for diagnostics. JSON
// bodies are embedded as structured data, anything else as a string.
func upstreamPayload(body []byte) any {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}
