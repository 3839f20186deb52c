package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aml-monitor/internal/config"
	"aml-monitor/internal/models"
)

// RemoteScorer calls the external risk-analysis service. Any transport error,
// non-2xx status or malformed body means "unavailable"; callers fall back to
// the rule scorer and the error never escapes the engine.
type RemoteScorer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteScorer(cfg config.AnalyzerConfig) *RemoteScorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &RemoteScorer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type analyzeResponse struct {
	RiskScore int      `json:"risk_score"`
	RiskLevel string   `json:"risk_level"`
	Flags     []string `json:"flags"`
}

func (s *RemoteScorer) ScoreTransaction(ctx context.Context, features TransactionFeatures) (*Assessment, error) {
	return s.analyze(ctx, "/analyze/transaction", features)
}

func (s *RemoteScorer) ScoreWallet(ctx context.Context, features WalletFeatures) (*Assessment, error) {
	return s.analyze(ctx, "/analyze/wallet", features)
}

func (s *RemoteScorer) analyze(ctx context.Context, endpoint string, payload interface{}) (*Assessment, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}

	// The analyzer's own banding may differ; the score is authoritative and
	// the level is re-derived from the shared thresholds.
	score := clampScore(result.RiskScore)
	flags := result.Flags
	if flags == nil {
		flags = []string{}
	}

	return &Assessment{
		RiskScore: score,
		RiskLevel: models.LevelForScore(score),
		Flags:     flags,
	}, nil
}
