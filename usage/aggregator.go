package usage

import (
	"context"
	"sync"
	"time"

	"github.com/example/keydash/keys"
	"github.com/example/keydash/models"
	"github.com/example/keydash/services"
)

// KeySource is the slice of the repository the aggregator needs: one
// consistent read of all stored keys.
type KeySource interface {
	ListKeys() ([]models.APIKey, error)
}

// ProjectRef is a project key surfaced as grouping metadata under its admin
// key. Always masked.
type ProjectRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// KeyReport is one admin key's slot in the report: either a usage sample or
// a coded error, never both.
type KeyReport struct {
	ID           uint         `json:"id"`
	Name         string       `json:"name"`
	Key          string       `json:"key"`
	Provider     string       `json:"provider"`
	KeyType      string       `json:"key_type"`
	AccountID    uint         `json:"account_id"`
	Cost         float64      `json:"cost"`
	InputTokens  int64        `json:"input_tokens"`
	OutputTokens int64        `json:"output_tokens"`
	Requests     int64        `json:"requests"`
	Error        *string      `json:"error"`
	ErrorDetail  string       `json:"error_detail,omitempty"`
	ProjectKeys  []ProjectRef `json:"project_keys"`
}

// Report is the aggregate over all admin keys for one window. Totals cover
// only the keys that returned a sample; failed keys contribute zero and
// carry their error so the caller can tell "no usage" from "could not check".
type Report struct {
	Start             time.Time    `json:"start"`
	End               time.Time    `json:"end"`
	Keys              []KeyReport  `json:"keys"`
	OrphanProjectKeys []ProjectRef `json:"orphaned_project_keys"`
	TotalCost         float64      `json:"total_cost"`
	TotalInputTokens  int64        `json:"total_input_tokens"`
	TotalOutputTokens int64        `json:"total_output_tokens"`
	TotalRequests     int64        `json:"total_requests"`
}

// Aggregator fans usage fetches out across all admin keys with bounded
// concurrency and folds the outcomes into a Report. Each aggregate call is
// independent and side-effect-free.
type Aggregator struct {
	Source   KeySource
	Registry *services.Registry
	Workers  int
}

func NewAggregator(source KeySource, registry *services.Registry, workers int) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{Source: source, Registry: registry, Workers: workers}
}

// Aggregate fetches usage for every admin key over the window. A failure on
// one key is recorded in that key's slot and never aborts the batch; if the
// context deadline cuts fetches short they are reported as NetworkError
// entries and the partial report is still returned. Project keys are never
// queried directly: usage is attributed at the admin-key level, and project
// keys appear only as metadata under their admin key.
func (a *Aggregator) Aggregate(ctx context.Context, w Window) (*Report, error) {
	// One read of the key table; concurrent edits cannot tear the view
	// mid-aggregation.
	snapshot, err := a.Source.ListKeys()
	if err != nil {
		return nil, err
	}

	var admins []models.APIKey
	children := make(map[uint][]ProjectRef)
	var orphans []ProjectRef

	for _, k := range snapshot {
		switch {
		case k.KeyType == string(keys.TypeAdmin):
			admins = append(admins, k)
		case k.AdminKeyID != nil:
			children[*k.AdminKeyID] = append(children[*k.AdminKeyID], ProjectRef{
				ID: k.ID, Name: k.Name, Key: k.MaskedKey,
			})
		default:
			orphans = append(orphans, ProjectRef{ID: k.ID, Name: k.Name, Key: k.MaskedKey})
		}
	}

	report := &Report{
		Start:             w.Start,
		End:               w.End,
		Keys:              []KeyReport{},
		OrphanProjectKeys: orphans,
	}
	if orphans == nil {
		report.OrphanProjectKeys = []ProjectRef{}
	}
	if len(admins) == 0 {
		return report, nil
	}

	// Bounded worker pool; results land in fixed slots so output order
	// matches the snapshot order.
	numWorkers := a.Workers
	if numWorkers > len(admins) {
		numWorkers = len(admins)
	}

	work := make(chan int, len(admins))
	results := make([]KeyReport, len(admins))
	var wg sync.WaitGroup

	for i := range admins {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w0 := 0; w0 < numWorkers; w0++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = a.fetchOne(ctx, admins[idx], children[admins[idx].ID], w)
			}
		}()
	}
	wg.Wait()

	for _, entry := range results {
		if entry.Error == nil {
			report.TotalCost += entry.Cost
			report.TotalInputTokens += entry.InputTokens
			report.TotalOutputTokens += entry.OutputTokens
			report.TotalRequests += entry.Requests
		}
		report.Keys = append(report.Keys, entry)
	}
	return report, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, k models.APIKey, projects []ProjectRef, w Window) KeyReport {
	entry := KeyReport{
		ID:          k.ID,
		Name:        k.Name,
		Key:         k.MaskedKey,
		Provider:    k.Provider,
		KeyType:     k.KeyType,
		AccountID:   k.AccountID,
		ProjectKeys: projects,
	}
	if entry.ProjectKeys == nil {
		entry.ProjectKeys = []ProjectRef{}
	}

	client := a.Registry.For(keys.Provider(k.Provider))
	sample, err := client.FetchUsage(ctx, k.FullKey, w.Start, w.End)
	if err != nil {
		perr := services.AsProviderError(err)
		code := string(perr.Code)
		entry.Error = &code
		entry.ErrorDetail = perr.Detail
		return entry
	}

	entry.Cost = sample.Cost
	entry.InputTokens = sample.InputTokens
	entry.OutputTokens = sample.OutputTokens
	entry.Requests = sample.Requests
	return entry
}
