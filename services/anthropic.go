package services

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/example/keydash/config"
)

const (
	anthropicModelsPath = "/v1/models"
	anthropicVersion    = "2023-06-01"
)

// AnthropicService can validate keys but has no usage endpoint to query, so
// Anthropic keys never contribute to cost totals.
type AnthropicService struct {
	BaseURL string
	Client  *http.Client
}

func NewAnthropicService() *AnthropicService {
	return &AnthropicService{
		BaseURL: config.AppConfig.AnthropicAPIURL,
		Client:  &http.Client{Timeout: config.AppConfig.ProviderTimeout},
	}
}

// FetchUsage returns ProviderUnsupported without any network call.
func (s *AnthropicService) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*UsageSample, error) {
	return nil, &ProviderError{
		Code:   ProviderUnsupported,
		Detail: "anthropic does not expose a usage endpoint",
	}
}

func (s *AnthropicService) TestKey(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+anthropicModelsPath, nil)
	if err != nil {
		return &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

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
