package domain

// ProviderType identifies a health data provider
type ProviderType string

const (
	// Token-based providers, pulled by the sync orchestrator
	ProviderTypeGoogleFit ProviderType = "google_fit"
	ProviderTypeFitbit    ProviderType = "fitbit"
	ProviderTypeStrava    ProviderType = "strava"

	// Device-push providers, ingested through the upload endpoint
	ProviderTypeAppleHealthKit ProviderType = "apple_healthkit"
)

// ProviderInfo provides metadata about a provider
type ProviderInfo struct {
	Type        ProviderType `json:"type"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	// Pulled is true when data is fetched by periodic sync rather than pushed by a device
	Pulled bool `json:"pulled"`
}

// CoreProviders returns the providers this service understands
func CoreProviders() []ProviderInfo {
	return []ProviderInfo{
		{Type: ProviderTypeGoogleFit, Name: "Google Fit", Description: "Activity and body metrics from Google Fit", Pulled: true},
		{Type: ProviderTypeFitbit, Name: "Fitbit", Description: "Daily activity summaries from Fitbit", Pulled: true},
		{Type: ProviderTypeStrava, Name: "Strava", Description: "Rides, runs and walks from Strava", Pulled: true},
		{Type: ProviderTypeAppleHealthKit, Name: "Apple HealthKit", Description: "Samples uploaded by the iOS SDK", Pulled: false},
	}
}

// PulledProviders returns the provider types that are swept periodically
func PulledProviders() []ProviderType {
	var out []ProviderType
	for _, p := range CoreProviders() {
		if p.Pulled {
			out = append(out, p.Type)
		}
	}
	return out
}

// IsValid reports whether the provider type is known
func (p ProviderType) IsValid() bool {
	for _, info := range CoreProviders() {
		if info.Type == p {
			return true
		}
	}
	return false
}

// Canonical data type keys delivered to customer webhooks
const (
	DataTypeSteps         = "steps"
	DataTypeCalories      = "calories"
	DataTypeCaloriesBMR   = "calories_bmr"
	DataTypeMoveMinutes   = "move_minutes"
	DataTypeWaterConsumed = "water_consumed"
	DataTypeWeight        = "weight"
	DataTypeHeight        = "height"
	DataTypeSleep         = "sleep"
	DataTypeDistanceMoved = "distance_moved"
	DataTypeBloodOxygen   = "blood_oxygen"
	DataTypeStravaCycling = "strava_cycling"
	DataTypeStravaRun     = "strava_run"
	DataTypeStravaWalk    = "strava_walk"
)

// IsPulled reports whether the provider is swept by periodic sync
func (p ProviderType) IsPulled() bool {
	for _, info := range CoreProviders() {
		if info.Type == p {
			return info.Pulled
		}
	}
	return false
}
