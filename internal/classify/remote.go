package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/entity"
)

const verdictSchemaJSON = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["label", "confidence"],
  "properties": {
    "label": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0.0, "maximum": 1.0}
  }
}`

var verdictSchema = jsonschema.MustCompileString("verdict.json", verdictSchemaJSON)

// Remote calls a classifier model service. Unrecognized labels collapse to
// UNKNOWN rather than leaking a foreign vocabulary into the engine.
type Remote struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewRemote(endpoint string, httpClient *http.Client, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Remote{endpoint: endpoint, http: httpClient, logger: logger}
}

func (r *Remote) Classify(ctx context.Context, text string) (entity.Classification, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return entity.Classification{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return entity.Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return entity.Classification{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Warn("classify.body_close_failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.Classification{}, err
	}
	if resp.StatusCode/100 != 2 {
		return entity.Classification{}, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return entity.Classification{}, fmt.Errorf("decode response: %w", err)
	}
	if err := verdictSchema.Validate(generic); err != nil {
		return entity.Classification{}, fmt.Errorf("classifier response failed schema validation: %w", err)
	}

	var out struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return entity.Classification{}, fmt.Errorf("decode verdict: %w", err)
	}

	label, known := constants.CanonicalizeLabel(out.Label)
	if !known {
		r.logger.Warn("classify.unknown_label", "label", out.Label)
	}
	return entity.Classification{Label: label, Confidence: out.Confidence}, nil
}
