package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Remote is a thin client for a chain gateway exposing the anchoring
// contract over JSON. The gateway's response shapes are mapped onto the
// unified Entry/PutResult forms here; the engine never sees gateway quirks.
type Remote struct {
	endpoint string
	identity string
	http     *http.Client
	logger   *slog.Logger
}

func NewRemote(endpoint, identity string, httpClient *http.Client, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Remote{endpoint: endpoint, identity: identity, http: httpClient, logger: logger}
}

type remotePutRequest struct {
	PropertyID     string `json:"property_id"`
	FingerprintHex string `json:"fingerprint_hex"`
	RiskScore      int    `json:"risk_score"`
	Verifier       string `json:"verifier"`
}

type remotePutResponse struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber int64  `json:"block_number"`
	Timestamp   int64  `json:"timestamp"` // unix seconds
}

type remoteGetResponse struct {
	PropertyID     string `json:"property_id"`
	FingerprintHex string `json:"fingerprint_hex"`
	RiskScore      int    `json:"risk_score"`
	Verifier       string `json:"verifier"`
	BlockNumber    int64  `json:"block_number"`
	Timestamp      int64  `json:"timestamp"`
	Exists         bool   `json:"exists"`
}

type remoteHistoryResponse struct {
	Fingerprints []string `json:"fingerprints_hex"`
}

type remoteStatusResponse struct {
	Connected   bool   `json:"connected"`
	Network     string `json:"network"`
	BlockNumber int64  `json:"block_number"`
	TotalCount  int64  `json:"total_count"`
}

type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Remote) Put(ctx context.Context, propertyID string, fingerprint []byte, riskScore int) (PutResult, error) {
	req := remotePutRequest{
		PropertyID:     propertyID,
		FingerprintHex: hex.EncodeToString(fingerprint),
		RiskScore:      riskScore,
		Verifier:       r.identity,
	}
	var out remotePutResponse
	if err := r.post(ctx, "/v1/anchors", req, &out); err != nil {
		return PutResult{}, err
	}
	return PutResult{
		Handle:          out.TxHash,
		BlockHeight:     out.BlockNumber,
		LedgerTimestamp: time.Unix(out.Timestamp, 0).UTC(),
	}, nil
}

func (r *Remote) Get(ctx context.Context, propertyID string) (Entry, error) {
	var out remoteGetResponse
	if err := r.get(ctx, "/v1/anchors/"+url.PathEscape(propertyID), &out); err != nil {
		return Entry{}, err
	}
	if !out.Exists {
		return Entry{}, ErrNotFound
	}
	fp, err := hex.DecodeString(out.FingerprintHex)
	if err != nil {
		return Entry{}, fmt.Errorf("gateway returned malformed fingerprint: %w", err)
	}
	return Entry{
		PropertyID:      out.PropertyID,
		Fingerprint:     fp,
		RiskScore:       out.RiskScore,
		Verifier:        out.Verifier,
		BlockHeight:     out.BlockNumber,
		LedgerTimestamp: time.Unix(out.Timestamp, 0).UTC(),
	}, nil
}

func (r *Remote) History(ctx context.Context, propertyID string) ([][]byte, error) {
	var out remoteHistoryResponse
	if err := r.get(ctx, "/v1/anchors/"+url.PathEscape(propertyID)+"/history", &out); err != nil {
		return nil, err
	}
	history := make([][]byte, 0, len(out.Fingerprints))
	for _, h := range out.Fingerprints {
		fp, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("gateway returned malformed fingerprint: %w", err)
		}
		history = append(history, fp)
	}
	return history, nil
}

func (r *Remote) Verify(ctx context.Context, propertyID string, fingerprint []byte) (bool, error) {
	e, err := r.Get(ctx, propertyID)
	if err != nil {
		return false, err
	}
	return bytes.Equal(e.Fingerprint, fingerprint), nil
}

func (r *Remote) Status(ctx context.Context) (Status, error) {
	var out remoteStatusResponse
	if err := r.get(ctx, "/v1/status", &out); err != nil {
		return Status{Backend: "remote"}, err
	}
	return Status{
		Connected:         out.Connected,
		Backend:           "remote",
		LatestBlockHeight: out.BlockNumber,
		TotalEntries:      out.TotalCount,
	}, nil
}

func (r *Remote) Close() error {
	r.http.CloseIdleConnections()
	return nil
}

func (r *Remote) post(ctx context.Context, path string, body, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *Remote) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return r.do(req, out)
}

func (r *Remote) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Warn("ledger.remote.body_close_failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	r.logger.Debug("ledger.remote.response",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity, resp.StatusCode == http.StatusConflict:
		var re remoteError
		if json.Unmarshal(raw, &re) == nil && re.Message != "" {
			return fmt.Errorf("%w: %s", ErrRejected, re.Message)
		}
		return ErrRejected
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
