package driven

import "github.com/Pulkit07/metric-health-backend/internal/core/domain"

// Normaliser maps one provider's native data types onto canonical keys.
type Normaliser interface {
	// Provider returns the provider this normaliser handles.
	Provider() domain.ProviderType

	// Canonical returns the canonical key for a native type, or false when unmapped.
	Canonical(nativeType string) (string, bool)

	// Normalise converts points of a native type into canonical points.
	// Returns false when the native type is unmapped.
	Normalise(nativeType string, points []domain.DataPoint) (string, []domain.DataPoint, bool)

	// NativeTypes returns the native types that produce the given canonical keys.
	NativeTypes(canonical []string) []string
}

// NormaliserRegistry holds one normaliser per provider.
type NormaliserRegistry interface {
	// Get retrieves the normaliser for a provider, or nil.
	Get(provider domain.ProviderType) Normaliser

	// Register registers a normaliser, replacing any for the same provider.
	Register(normaliser Normaliser)

	// Normalise maps a fetch result into a canonical payload.
	// Unmapped types and types not in enabled are dropped; dropped reports how many points were dropped.
	Normalise(provider domain.ProviderType, points map[string][]domain.DataPoint, enabled map[string]bool) (payload domain.Payload, dropped int)

	// List returns the registered providers.
	List() []domain.ProviderType
}
