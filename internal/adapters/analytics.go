package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/queryweaver/models"
)

// AnalyticsAdapter serves analytics-type (and chat-type) sources exposed
// as HTTP JSON APIs. The DSN is the base URL; operations name an endpoint
// and pass options as the request body.
type AnalyticsAdapter struct {
	baseURLs   map[string]string
	httpClient *http.Client
}

// NewAnalyticsAdapter creates an adapter over the configured HTTP sources
func NewAnalyticsAdapter(sources []Source) *AnalyticsAdapter {
	a := &AnalyticsAdapter{
		baseURLs:   make(map[string]string),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, src := range sources {
		a.baseURLs[src.ID] = strings.TrimRight(src.DSN, "/")
	}
	return a
}

// analyticsResponse is the tabular shape analytics endpoints return
type analyticsResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Execute POSTs the operation's options to its endpoint and decodes the
// tabular response
func (a *AnalyticsAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	baseURL, ok := a.baseURLs[op.SourceID]
	if !ok {
		return nil, fmt.Errorf("analytics source not configured: %s", op.SourceID)
	}
	if op.Params.Endpoint == "" {
		return nil, fmt.Errorf("analytics operation %s names no endpoint", op.ID)
	}

	body, err := json.Marshal(op.Params.Options)
	if err != nil {
		return nil, err
	}

	url := baseURL + "/" + strings.TrimLeft(op.Params.Endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analytics endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded analyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode analytics response: %w", err)
	}

	return &models.QueryResult{
		Columns:       decoded.Columns,
		Rows:          decoded.Rows,
		RowCount:      len(decoded.Rows),
		ExecutionTime: time.Since(start),
	}, nil
}

// Describe fetches the source's /metadata endpoint, which reports the
// available datasets in the shared schema shape
func (a *AnalyticsAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	baseURL, ok := a.baseURLs[sourceID]
	if !ok {
		return nil, fmt.Errorf("analytics source not configured: %s", sourceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/metadata", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata endpoint returned status %d", resp.StatusCode)
	}

	var schema models.SourceSchema
	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	schema.SourceID = sourceID
	if schema.SourceType == "" {
		schema.SourceType = models.SourceTypeAnalytics
	}

	return &schema, nil
}

// Close is a no-op; the adapter holds no persistent connections
func (a *AnalyticsAdapter) Close() error {
	return nil
}
