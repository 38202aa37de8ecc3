package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Span is one candidate value for a schema field, from either layer.
// Start is the byte offset of the first appearance in the source text
// (-1 when the producer cannot locate it).
type Span struct {
	Field      string  `json:"field"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
}

// Model is the trained entity-recognition capability. A failing model is a
// soft failure: the rule layer carries the extraction alone.
type Model interface {
	Spans(ctx context.Context, text string) ([]Span, error)
}

// NopModel contributes nothing; the default when no model service is wired.
type NopModel struct{}

func (NopModel) Spans(context.Context, string) ([]Span, error) { return nil, nil }

// spanSchemaJSON constrains the remote model's response. Responses that do
// not validate are discarded wholesale rather than half-trusted.
const spanSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["spans"],
  "properties": {
    "spans": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["field", "text", "confidence"],
        "properties": {
          "field": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1},
          "confidence": {"type": "number", "minimum": 0.0, "maximum": 1.0},
          "start": {"type": "integer", "minimum": -1}
        }
      }
    }
  }
}`

var spanSchema = jsonschema.MustCompileString("spans.json", spanSchemaJSON)

// ModelClient calls a remote span-extraction service.
type ModelClient struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewModelClient(endpoint string, httpClient *http.Client, logger *slog.Logger) *ModelClient {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &ModelClient{endpoint: endpoint, http: httpClient, logger: logger}
}

func (c *ModelClient) Spans(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("ner.model.body_close_failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := spanSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("model response failed schema validation: %w", err)
	}

	var out struct {
		Spans []Span `json:"spans"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode spans: %w", err)
	}

	// locate unanchored spans so first-appearance ordering stays defined
	for i := range out.Spans {
		if out.Spans[i].Start < 0 {
			out.Spans[i].Start = strings.Index(text, out.Spans[i].Text)
		}
	}
	return out.Spans, nil
}
