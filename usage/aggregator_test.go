package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/keydash/keys"
	"github.com/example/keydash/models"
	"github.com/example/keydash/services"
)

type fakeSource struct {
	keys []models.APIKey
}

func (f fakeSource) ListKeys() ([]models.APIKey, error) {
	return f.keys, nil
}

// fakeClient returns canned outcomes keyed by the raw secret.
type fakeClient struct {
	samples map[string]*services.UsageSample
	errs    map[string]*services.ProviderError
	delay   time.Duration

	mu      sync.Mutex
	fetched []string
}

func (f *fakeClient) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*services.UsageSample, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, apiKey)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &services.ProviderError{Code: services.NetworkError, Detail: "request timed out"}
		}
	}
	if err, ok := f.errs[apiKey]; ok {
		return nil, err
	}
	if s, ok := f.samples[apiKey]; ok {
		out := *s
		return &out, nil
	}
	return &services.UsageSample{}, nil
}

func (f *fakeClient) TestKey(ctx context.Context, apiKey string) error {
	if err, ok := f.errs[apiKey]; ok {
		return err
	}
	return nil
}

func testWindow() Window {
	end := time.Now()
	return Window{Start: end.AddDate(0, 0, -30), End: end}
}

func registryWith(client services.UsageClient) *services.Registry {
	return services.NewTestRegistry(map[keys.Provider]services.UsageClient{
		keys.ProviderOpenAI: client,
	})
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregator(fakeSource{}, registryWith(&fakeClient{}), 4)

	report, err := agg.Aggregate(context.Background(), testWindow())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Keys) != 0 {
		t.Errorf("Expected empty key list, got %d", len(report.Keys))
	}
	if report.TotalCost != 0 || report.TotalInputTokens != 0 || report.TotalOutputTokens != 0 || report.TotalRequests != 0 {
		t.Errorf("Expected zero totals, got %+v", report)
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	source := fakeSource{keys: []models.APIKey{
		{ID: 1, Name: "prod", FullKey: "sk-admin-abc123", MaskedKey: "sk-admin-abc...123", Provider: "openai", KeyType: "admin"},
		{ID: 2, Name: "staging", FullKey: "sk-admin-xyz789", MaskedKey: "sk-admin-xyz...789", Provider: "openai", KeyType: "admin"},
	}}
	client := &fakeClient{
		samples: map[string]*services.UsageSample{
			"sk-admin-abc123": {Cost: 12.50, InputTokens: 1000, OutputTokens: 200, Requests: 5},
		},
		errs: map[string]*services.ProviderError{
			"sk-admin-xyz789": {Code: services.PermissionDenied, Detail: "no usage scope"},
		},
	}

	agg := NewAggregator(source, registryWith(client), 4)
	report, err := agg.Aggregate(context.Background(), testWindow())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Keys) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(report.Keys))
	}
	if report.TotalCost != 12.50 {
		t.Errorf("Expected total_cost 12.50, got %f", report.TotalCost)
	}
	if report.TotalInputTokens != 1000 || report.TotalOutputTokens != 200 || report.TotalRequests != 5 {
		t.Errorf("Totals must only cover successful keys: %+v", report)
	}

	var ok, failed *KeyReport
	for i := range report.Keys {
		if report.Keys[i].Name == "prod" {
			ok = &report.Keys[i]
		} else {
			failed = &report.Keys[i]
		}
	}
	if ok == nil || ok.Error != nil {
		t.Fatalf("Expected prod entry without error, got %+v", ok)
	}
	if failed == nil || failed.Error == nil || *failed.Error != "PermissionDenied" {
		t.Fatalf("Expected staging entry with PermissionDenied, got %+v", failed)
	}
	if failed.Cost != 0 {
		t.Errorf("Failed key must contribute zero, got %f", failed.Cost)
	}
}

func TestAggregateProjectGrouping(t *testing.T) {
	adminID := uint(1)
	source := fakeSource{keys: []models.APIKey{
		{ID: 1, Name: "admin", FullKey: "sk-admin-abc123", MaskedKey: "sk-admin-abc...123", Provider: "openai", KeyType: "admin"},
		{ID: 2, Name: "proj-a", FullKey: "sk-proj-aaa", MaskedKey: "***", Provider: "openai", KeyType: "project", AdminKeyID: &adminID},
		{ID: 3, Name: "proj-b", FullKey: "sk-proj-bbb", MaskedKey: "***", Provider: "openai", KeyType: "project", AdminKeyID: &adminID},
		{ID: 4, Name: "orphan", FullKey: "sk-proj-ccc", MaskedKey: "***", Provider: "openai", KeyType: "project"},
	}}
	client := &fakeClient{}

	agg := NewAggregator(source, registryWith(client), 4)
	report, err := agg.Aggregate(context.Background(), testWindow())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Keys) != 1 {
		t.Fatalf("Expected 1 admin entry, got %d", len(report.Keys))
	}
	if len(report.Keys[0].ProjectKeys) != 2 {
		t.Errorf("Expected 2 project keys under admin, got %d", len(report.Keys[0].ProjectKeys))
	}
	if len(report.OrphanProjectKeys) != 1 || report.OrphanProjectKeys[0].Name != "orphan" {
		t.Errorf("Expected 1 orphan, got %+v", report.OrphanProjectKeys)
	}

	// Project keys are never queried directly
	if len(client.fetched) != 1 || client.fetched[0] != "sk-admin-abc123" {
		t.Errorf("Expected only the admin key to be fetched, got %v", client.fetched)
	}
	for _, p := range report.OrphanProjectKeys {
		if p.Key != "***" {
			t.Errorf("Orphan must be masked, got %q", p.Key)
		}
	}
}

func TestAggregateBoundedConcurrency(t *testing.T) {
	var adminKeys []models.APIKey
	for i := 0; i < 8; i++ {
		adminKeys = append(adminKeys, models.APIKey{
			ID: uint(i + 1), Name: "k", FullKey: "sk-admin-k", Provider: "openai", KeyType: "admin",
		})
	}

	var inFlight, maxInFlight atomic.Int64
	client := &concurrencyClient{inFlight: &inFlight, maxInFlight: &maxInFlight}

	agg := NewAggregator(fakeSource{keys: adminKeys}, registryWith(client), 2)
	if _, err := agg.Aggregate(context.Background(), testWindow()); err != nil {
		t.Fatal(err)
	}

	if maxInFlight.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent fetches, saw %d", maxInFlight.Load())
	}
}

type concurrencyClient struct {
	inFlight    *atomic.Int64
	maxInFlight *atomic.Int64
}

func (c *concurrencyClient) FetchUsage(ctx context.Context, apiKey string, start, end time.Time) (*services.UsageSample, error) {
	n := c.inFlight.Add(1)
	for {
		old := c.maxInFlight.Load()
		if n <= old || c.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.inFlight.Add(-1)
	return &services.UsageSample{}, nil
}

func (c *concurrencyClient) TestKey(ctx context.Context, apiKey string) error { return nil }

func TestAggregateDeadline(t *testing.T) {
	source := fakeSource{keys: []models.APIKey{
		{ID: 1, Name: "slow", FullKey: "sk-admin-slow", Provider: "openai", KeyType: "admin"},
	}}
	client := &fakeClient{delay: time.Second}

	agg := NewAggregator(source, registryWith(client), 4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := agg.Aggregate(ctx, testWindow())
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Aggregate did not respect the deadline")
	}

	if len(report.Keys) != 1 {
		t.Fatalf("Expected a complete (partial) report, got %d entries", len(report.Keys))
	}
	entry := report.Keys[0]
	if entry.Error == nil || *entry.Error != "NetworkError" {
		t.Errorf("Expected NetworkError for abandoned fetch, got %+v", entry)
	}
}

func TestAggregateUnknownProvider(t *testing.T) {
	source := fakeSource{keys: []models.APIKey{
		{ID: 1, Name: "mystery", FullKey: "garbage123", MaskedKey: "***", Provider: "unknown", KeyType: "admin"},
	}}

	agg := NewAggregator(source, services.NewTestRegistry(nil), 4)
	report, err := agg.Aggregate(context.Background(), testWindow())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Keys) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(report.Keys))
	}
	if report.Keys[0].Error == nil || *report.Keys[0].Error != "ProviderUnsupported" {
		t.Errorf("Expected ProviderUnsupported, got %+v", report.Keys[0])
	}
}
