package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/example/keydash/config"
)

const (
	braveUsagePath  = "/res/v1/usage"
	braveSearchPath = "/res/v1/web/search"
)

// BraveService queries the Brave Search API. Whether a usage endpoint exists
// depends on the subscription tier, so its absence is expected rather than
// an error.
type BraveService struct {
	BaseURL string
	Client  *http.Client
}

func NewBraveService() *BraveService {
	return &BraveService{
		BaseURL: config.AppConfig.BraveAPIURL,
		Client:  &http.Client{Timeout: config.AppConfig.ProviderTimeout},
	}
}

type braveUsageResponse struct {
	Requests int64 `json:"requests"`
}

// FetchUsage attempts the usage call and degrades any non-success response
// to ProviderUnsupported: most tiers simply do not have the endpoint.
func (s *BraveService) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*UsageSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+braveUsagePath, nil)
	if err != nil {
		return nil, &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	req.Header.Set("X-Subscription-Token", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Code:   ProviderUnsupported,
			Detail: "usage data is not available for this brave subscription",
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	var usage braveUsageResponse
	if err := json.Unmarshal(body, &usage); err != nil {
		return nil, &ProviderError{
			Code:   ProviderUnsupported,
			Detail: "unrecognized brave usage payload",
		}
	}
	return &UsageSample{Requests: usage.Requests}, nil
}

// TestKey issues a minimal one-result search, the cheapest call that proves
// the subscription token is accepted.
func (s *BraveService) TestKey(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+braveSearchPath+"?q=ping&count=1", nil)
	if err != nil {
		return &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	req.Header.Set("X-Subscription-Token", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, string(body))
	}
	return nil
}
