package normalisers

import (
	"sort"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry implements NormaliserRegistry with one normaliser per provider.
type Registry struct {
	mu          sync.RWMutex
	normalisers map[domain.ProviderType]driven.Normaliser
}

// NewRegistry creates a new normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		normalisers: make(map[domain.ProviderType]driven.Normaliser),
	}
}

// Register registers a normaliser, replacing any for the same provider.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers[normaliser.Provider()] = normaliser
}

// Get retrieves the normaliser for a provider.
// Returns nil if no normaliser is registered.
func (r *Registry) Get(provider domain.ProviderType) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.normalisers[provider]
}

// Normalise maps native points into a canonical payload.
// A nil enabled set accepts every mapped type.
func (r *Registry) Normalise(provider domain.ProviderType, points map[string][]domain.DataPoint, enabled map[string]bool) (domain.Payload, int) {
	payload := make(domain.Payload)
	dropped := 0

	n := r.Get(provider)
	for native, batch := range points {
		if len(batch) == 0 {
			continue
		}
		if n == nil {
			dropped += len(batch)
			continue
		}
		canonical, converted, ok := n.Normalise(native, batch)
		if !ok || (enabled != nil && !enabled[canonical]) {
			dropped += len(batch)
			continue
		}
		payload[canonical] = append(payload[canonical], converted...)
	}

	return payload, dropped
}

// List returns all registered providers.
func (r *Registry) List() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]domain.ProviderType, 0, len(r.normalisers))
	for p := range r.normalisers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// DefaultRegistry creates a registry with every built-in provider table registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewMappingNormaliser(domain.ProviderTypeGoogleFit, GoogleFitTypes))
	r.Register(NewMappingNormaliser(domain.ProviderTypeFitbit, FitbitTypes))
	r.Register(NewMappingNormaliser(domain.ProviderTypeStrava, StravaTypes))
	r.Register(NewMappingNormaliser(domain.ProviderTypeAppleHealthKit, HealthKitTypes))

	return r
}

// MappingNormaliser maps native types through a fixed lookup table.
type MappingNormaliser struct {
	provider domain.ProviderType
	table    map[string]string
}

// NewMappingNormaliser creates a normaliser for the given native → canonical table.
func NewMappingNormaliser(provider domain.ProviderType, table map[string]string) *MappingNormaliser {
	return &MappingNormaliser{provider: provider, table: table}
}

func (n *MappingNormaliser) Provider() domain.ProviderType {
	return n.provider
}

func (n *MappingNormaliser) Canonical(nativeType string) (string, bool) {
	canonical, ok := n.table[nativeType]
	return canonical, ok
}

// Normalise stamps the canonical type and provider onto copies of the points.
func (n *MappingNormaliser) Normalise(nativeType string, points []domain.DataPoint) (string, []domain.DataPoint, bool) {
	canonical, ok := n.table[nativeType]
	if !ok {
		return "", nil, false
	}

	out := make([]domain.DataPoint, len(points))
	for i, p := range points {
		p.DataType = canonical
		p.Provider = n.provider
		out[i] = p
	}
	return canonical, out, true
}

// NativeTypes returns the native types producing any of the canonical keys, sorted.
func (n *MappingNormaliser) NativeTypes(canonical []string) []string {
	want := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		want[c] = true
	}

	var natives []string
	for native, c := range n.table {
		if want[c] {
			natives = append(natives, native)
		}
	}
	sort.Strings(natives)
	return natives
}
