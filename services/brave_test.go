package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBraveFetchUsageUnsupported(t *testing.T) {
	// Any non-success usage response is expected absence, not an error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	testConfig()
	svc := NewBraveService()
	svc.BaseURL = server.URL

	start, end := window()
	_, err := svc.FetchUsage(context.Background(), "BSAtoken", start, end)
	if err == nil {
		t.Fatal("Expected ProviderUnsupported")
	}
	if perr := AsProviderError(err); perr.Code != ProviderUnsupported {
		t.Errorf("Expected ProviderUnsupported, got %s", perr.Code)
	}
}

func TestBraveFetchUsageAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != braveUsagePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Subscription-Token") != "BSAtoken" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"requests": 42}`))
	}))
	defer server.Close()

	testConfig()
	svc := NewBraveService()
	svc.BaseURL = server.URL

	start, end := window()
	sample, err := svc.FetchUsage(context.Background(), "BSAtoken", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if sample.Requests != 42 {
		t.Errorf("Expected 42 requests, got %d", sample.Requests)
	}
}

func TestBraveTestKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != braveSearchPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Header.Get("X-Subscription-Token") {
		case "BSAgood":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"web": {}}`))
		case "BSAthrottled":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	testConfig()
	svc := NewBraveService()
	svc.BaseURL = server.URL

	if err := svc.TestKey(context.Background(), "BSAgood"); err != nil {
		t.Errorf("Expected valid key, got %v", err)
	}

	err := svc.TestKey(context.Background(), "BSAthrottled")
	if perr := AsProviderError(err); err == nil || perr.Code != RateLimited {
		t.Errorf("Expected RateLimited, got %v", err)
	}

	err = svc.TestKey(context.Background(), "BSAbad")
	if perr := AsProviderError(err); err == nil || perr.Code != AuthenticationFailed {
		t.Errorf("Expected AuthenticationFailed, got %v", err)
	}
}

func TestRegistryFallback(t *testing.T) {
	testConfig()
	r := NewRegistry()

	client := r.For("unknown")
	_, err := client.FetchUsage(context.Background(), "garbage123", time.Time{}, time.Time{})
	if perr := AsProviderError(err); err == nil || perr.Code != ProviderUnsupported {
		t.Errorf("Expected ProviderUnsupported for unknown provider, got %v", err)
	}
	if err := client.TestKey(context.Background(), "garbage123"); err == nil {
		t.Error("Expected error testing a key for an unknown provider")
	}
}
