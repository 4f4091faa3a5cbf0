package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/keydash/config"
)

const (
	openAIModelsPath = "/v1/models"
	openAIUsagePath  = "/v1/organization/usage/completions"
	openAICostsPath  = "/v1/organization/costs"

	// Daily buckets; the org endpoints cap a single page at 31 of them.
	openAIBucketWidth = "1d"
	openAIPageLimit   = 31
)

// OpenAIService talks to the OpenAI organization usage and costs endpoints.
// OpenAI is the only provider with a real usage API, and only admin keys
// with the usage-read scope can query it.
type OpenAIService struct {
	BaseURL string
	Client  *http.Client
}

func NewOpenAIService() *OpenAIService {
	return &OpenAIService{
		BaseURL: config.AppConfig.OpenAIAPIURL,
		Client:  &http.Client{Timeout: config.AppConfig.ProviderTimeout},
	}
}

// Bucketed responses from the organization endpoints. Both share the
// data/has_more/next_page envelope; only the per-bucket results differ.

type openAIUsageResponse struct {
	Data []struct {
		Results []struct {
			InputTokens      int64 `json:"input_tokens"`
			OutputTokens     int64 `json:"output_tokens"`
			NumModelRequests int64 `json:"num_model_requests"`
		} `json:"results"`
	} `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

type openAICostsResponse struct {
	Data []struct {
		Results []struct {
			Amount struct {
				Value float64 `json:"value"`
			} `json:"amount"`
		} `json:"results"`
	} `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

// FetchUsage sums tokens and request counts from the usage endpoint and
// dollar cost from the costs endpoint, following continuation tokens until
// the window is exhausted. The sums cover every project visible to the
// admin key.
func (s *OpenAIService) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*UsageSample, error) {
	sample := &UsageSample{}

	page := ""
	for {
		body, err := s.get(ctx, apiKey, openAIUsagePath, start, end, page)
		if err != nil {
			return nil, err
		}
		var resp openAIUsageResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &ProviderError{Code: NetworkError, Detail: fmt.Sprintf("malformed usage response: %v", err)}
		}
		for _, bucket := range resp.Data {
			for _, r := range bucket.Results {
				sample.InputTokens += r.InputTokens
				sample.OutputTokens += r.OutputTokens
				sample.Requests += r.NumModelRequests
			}
		}
		if !resp.HasMore || resp.NextPage == "" {
			break
		}
		page = resp.NextPage
	}

	page = ""
	for {
		body, err := s.get(ctx, apiKey, openAICostsPath, start, end, page)
		if err != nil {
			return nil, err
		}
		var resp openAICostsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &ProviderError{Code: NetworkError, Detail: fmt.Sprintf("malformed costs response: %v", err)}
		}
		for _, bucket := range resp.Data {
			for _, r := range bucket.Results {
				sample.Cost += r.Amount.Value
			}
		}
		if !resp.HasMore || resp.NextPage == "" {
			break
		}
		page = resp.NextPage
	}

	return sample, nil
}

// TestKey probes the models list, the cheapest call that proves the
// credential is accepted.
func (s *OpenAIService) TestKey(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+openAIModelsPath, nil)
	if err != nil {
		return &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

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

func (s *OpenAIService) get(ctx context.Context, apiKey, path string, start, end time.Time, page string) ([]byte, error) {
	u, err := url.Parse(s.BaseURL + path)
	if err != nil {
		return nil, &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	q := u.Query()
	q.Set("start_time", strconv.FormatInt(start.Unix(), 10))
	q.Set("end_time", strconv.FormatInt(end.Unix(), 10))
	q.Set("bucket_width", openAIBucketWidth)
	q.Set("limit", strconv.Itoa(openAIPageLimit))
	if page != "" {
		q.Set("page", page)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ProviderError{Code: NetworkError, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, string(body))
	}
	return body, nil
}
