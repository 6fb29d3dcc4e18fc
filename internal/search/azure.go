package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rca-copilot/internal/models"
)

const azureAPIVersion = "2023-11-01"

// AzureClient queries hosted Azure AI Search indexes over REST.
type AzureClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewAzureClient builds a client for the given service endpoint, e.g.
// https://myservice.search.windows.net.
func NewAzureClient(endpoint, apiKey string) *AzureClient {
	return &AzureClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type azureSearchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type azureSearchResponse struct {
	Value []models.Document `json:"value"`
}

// Search runs a full-text query against one index.
func (c *AzureClient) Search(ctx context.Context, index, query string, topK int) ([]models.Document, error) {
	body, err := json.Marshal(azureSearchRequest{Search: query, Top: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.endpoint, index, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("search %s: status %d", index, resp.StatusCode)
	}

	var parsed azureSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	// Downstream consumers read relevance under a schema-neutral name.
	for _, doc := range parsed.Value {
		if score, ok := doc["@search.score"]; ok {
			doc["search_score"] = score
		}
	}
	return parsed.Value, nil
}

var _ Service = (*AzureClient)(nil)
