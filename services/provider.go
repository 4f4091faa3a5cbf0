package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/keydash/keys"
)

// UsageSample is one admin key's summed usage over a time window.
type UsageSample struct {
	Cost         float64 `json:"cost"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Requests     int64   `json:"requests"`
}

func (s *UsageSample) Add(other UsageSample) {
	s.Cost += other.Cost
	s.InputTokens += other.InputTokens
	s.OutputTokens += other.OutputTokens
	s.Requests += other.Requests
}

// ErrorCode is the closed taxonomy of provider-call outcomes. Provider calls
// never fail in any other way: every error crossing a client boundary is a
// *ProviderError carrying one of these codes.
type ErrorCode string

const (
	AuthenticationFailed ErrorCode = "AuthenticationFailed"
	PermissionDenied     ErrorCode = "PermissionDenied"
	RateLimited          ErrorCode = "RateLimited"
	NetworkError         ErrorCode = "NetworkError"
	ProviderUnsupported  ErrorCode = "ProviderUnsupported"
)

type ProviderError struct {
	Code   ErrorCode
	Detail string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// AsProviderError unwraps err into a *ProviderError, falling back to a
// NetworkError wrapper so callers always get a coded outcome.
func AsProviderError(err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProviderError{Code: NetworkError, Detail: err.Error()}
}

// UsageClient is implemented once per provider. FetchUsage reports summed
// usage for the window; TestKey is the cheapest call proving the credential
// is accepted. Neither mutates anything.
type UsageClient interface {
	FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*UsageSample, error)
	TestKey(ctx context.Context, apiKey string) error
}

// Registry holds the closed set of provider clients. Lookups for providers
// without a client fall back to an unsupported stub, so callers never branch
// on provider strings themselves.
type Registry struct {
	clients map[keys.Provider]UsageClient
}

func NewRegistry() *Registry {
	return &Registry{
		clients: map[keys.Provider]UsageClient{
			keys.ProviderOpenAI:    NewOpenAIService(),
			keys.ProviderAnthropic: NewAnthropicService(),
			keys.ProviderBrave:     NewBraveService(),
		},
	}
}

// NewTestRegistry builds a registry from explicit clients, for tests.
func NewTestRegistry(clients map[keys.Provider]UsageClient) *Registry {
	return &Registry{clients: clients}
}

func (r *Registry) For(provider keys.Provider) UsageClient {
	if c, ok := r.clients[provider]; ok {
		return c
	}
	return unsupportedClient{}
}

type unsupportedClient struct{}

func (unsupportedClient) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*UsageSample, error) {
	return nil, &ProviderError{Code: ProviderUnsupported, Detail: "no usage endpoint for this provider"}
}

func (unsupportedClient) TestKey(ctx context.Context, apiKey string) error {
	return &ProviderError{Code: ProviderUnsupported, Detail: "cannot test keys for an unrecognized provider"}
}

// classifyStatus maps a non-success provider response onto the error
// taxonomy with a human-actionable detail, mirroring the failure modes seen
// in practice (403 on usage reads being the dominant one).
func classifyStatus(status int, body string) *ProviderError {
	switch {
	// Scope errors come back under several statuses, 401 included; the
	// body decides before the status does.
	case status == http.StatusForbidden,
		strings.Contains(body, "Missing scopes"),
		strings.Contains(body, "api.model.read"):
		return &ProviderError{
			Code:   PermissionDenied,
			Detail: "API key lacks the required scopes; most keys cannot read usage data",
		}
	case status == http.StatusUnauthorized:
		return &ProviderError{
			Code:   AuthenticationFailed,
			Detail: "API key is invalid, expired, or revoked",
		}
	case status == http.StatusTooManyRequests:
		return &ProviderError{
			Code:   RateLimited,
			Detail: "rate limited by the provider; wait before retrying",
		}
	default:
		return &ProviderError{
			Code:   NetworkError,
			Detail: fmt.Sprintf("provider returned status %d", status),
		}
	}
}

// classifyTransport maps a failed round trip (DNS, refused connection,
// exceeded deadline) onto NetworkError.
func classifyTransport(ctx context.Context, err error) *ProviderError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Code: NetworkError, Detail: "request timed out"}
	}
	return &ProviderError{Code: NetworkError, Detail: fmt.Sprintf("network error: %v", err)}
}
