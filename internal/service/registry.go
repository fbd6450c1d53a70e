package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// Registry holds the connector's service providers and routes tool
// calls to them. Both the REST surface and WebSocket dispatch execute
// through here, so the tool-id shape is guarded in Execute rather than
// at each transport.
type Registry struct {
	services sync.Map
}

// Provider is a service implementation: a definition the UI can list
// and an executor for the tools it advertises.
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider under its definition ID. Registering the
// same ID twice is refused so one surface cannot shadow another.
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}
	if _, loaded := r.services.LoadOrStore(def.ID, provider); loaded {
		return fmt.Errorf("service already registered: %s", def.ID)
	}
	return nil
}

// Unregister removes a service provider
func (r *Registry) Unregister(serviceID string) {
	r.services.Delete(serviceID)
}

// Get retrieves a provider by service ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns registered service definitions, optionally filtered by
// category
func (r *Registry) List(category *types.Category) []types.Service {
	var services []types.Service
	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if category == nil || def.Category == *category {
			services = append(services, def)
		}
		return true
	})
	return services
}

// Discover ranks services against a free-text intent and returns the
// top matches. Tool names and descriptions count toward the score, so
// "start recording" surfaces the recorder even though the service
// description never repeats the word "start".
func (r *Registry) Discover(intent string, limit int) []types.Service {
	type ranked struct {
		service types.Service
		score   int
	}

	terms := strings.Fields(strings.ToLower(intent))
	var results []ranked

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if score := relevance(terms, def); score > 0 {
			results = append(results, ranked{service: def, score: score})
		}
		return true
	})

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	output := make([]types.Service, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		output = append(output, results[i].service)
	}
	return output
}

// Execute routes a dotted tool ID to its provider. Failures return
// both a failed Result for the caller's payload and the error for
// logging and status mapping.
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	serviceID, _, ok := strings.Cut(toolID, ".")
	if !ok {
		return failure("invalid tool ID format"), fmt.Errorf("invalid tool ID format: %s", toolID)
	}

	provider, ok := r.Get(serviceID)
	if !ok {
		return failure(fmt.Sprintf("service not found: %s", serviceID)), fmt.Errorf("service not found: %s", serviceID)
	}

	return provider.Execute(ctx, toolID, params, appCtx)
}

// Stats summarizes the registry for health payloads
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
		return true
	})

	return map[string]interface{}{
		"total_services": total,
		"total_tools":    totalTools,
		"categories":     categories,
	}
}

// relevance scores a definition against intent terms. Identifier hits
// dominate, then capabilities and tools, then description overlap.
func relevance(terms []string, def types.Service) int {
	name := strings.ToLower(def.Name)
	desc := strings.ToLower(def.Description)

	score := 0
	for _, term := range terms {
		switch {
		case term == def.ID || term == string(def.Category):
			score += 10
		case strings.Contains(name, term):
			score += 8
		}

		for _, capability := range def.Capabilities {
			if strings.Contains(strings.ReplaceAll(strings.ToLower(capability), "_", " "), term) {
				score += 4
			}
		}

		for _, tool := range def.Tools {
			if strings.Contains(strings.ToLower(tool.ID), term) ||
				strings.Contains(strings.ToLower(tool.Name), term) {
				score += 3
			}
		}

		if containsWord(desc, term) {
			score += 2
		}
	}
	return score
}

func containsWord(text, term string) bool {
	for _, word := range strings.Fields(text) {
		if word == term {
			return true
		}
	}
	return false
}

func failure(message string) *types.Result {
	return &types.Result{Success: false, Error: &message}
}
