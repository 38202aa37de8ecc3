// Package translate wraps the external machine-translation capability.
// Translation is best-effort: failure degrades to the original text with a
// warning, never a pipeline error.
package translate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/proptrust/proptrust/internal/entity"
)

// WarnTranslationUnavailable is the warning annotation attached when the
// provider cannot be reached and the pipeline continues on the original text.
const WarnTranslationUnavailable = "translation_unavailable"

// Translator is Stage 3: cleaned text -> English text.
type Translator interface {
	Translate(ctx context.Context, text, langHint string) (entity.TranslationResult, error)
	Close() error
}

// Passthrough returns input unchanged; used when no endpoint is configured.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) (entity.TranslationResult, error) {
	return entity.TranslationResult{Text: text, Translated: false}, nil
}

func (Passthrough) Close() error { return nil }

type Config struct {
	Endpoint      string
	SourceLang    string // default "kn"
	TargetLang    string // default "en"
	CacheCapacity int    // default 1024
}

// Client calls a JSON translation endpoint and memoizes results by content
// hash so repeat calls for the same cleaned text return identical output.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *lru.Cache[[32]byte, string]
	logger *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "kn"
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "en"
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 1024
	}
	cache, err := lru.New[[32]byte, string](cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("translation cache: %w", err)
	}
	return &Client{cfg: cfg, http: httpClient, cache: cache, logger: logger}, nil
}

type wireRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type wireResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate passes English text through untouched. For non-English hints it
// consults the cache, then the provider; provider failure returns the
// original text with a warning and a nil error.
func (c *Client) Translate(ctx context.Context, text, langHint string) (entity.TranslationResult, error) {
	if langHint == "" || langHint == "en" || text == "" {
		return entity.TranslationResult{Text: text, Translated: false}, nil
	}

	key := sha256.Sum256([]byte(text))
	if cached, ok := c.cache.Get(key); ok {
		return entity.TranslationResult{Text: cached, Translated: true}, nil
	}

	translated, err := c.call(ctx, text)
	if err != nil {
		c.logger.Warn("translate.degraded", "lang", langHint, "error", err)
		return entity.TranslationResult{
			Text:       text,
			Translated: false,
			Warnings:   []string{WarnTranslationUnavailable},
		}, nil
	}

	c.cache.Add(key, translated)
	return entity.TranslationResult{Text: translated, Translated: true}, nil
}

func (c *Client) call(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(wireRequest{Text: text, Source: c.cfg.SourceLang, Target: c.cfg.TargetLang})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("translate.body_close_failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	c.logger.Debug("translate.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	var out wireResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out.TranslatedText, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
