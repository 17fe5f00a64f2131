package normalisers

import "github.com/Pulkit07/metric-health-backend/internal/core/domain"

// GoogleFitTypes maps Google Fit data type names to canonical keys.
var GoogleFitTypes = map[string]string{
	"com.google.active_minutes":    domain.DataTypeMoveMinutes,
	"com.google.step_count.delta":  domain.DataTypeSteps,
	"com.google.calories.expended": domain.DataTypeCalories,
	"com.google.hydration":         domain.DataTypeWaterConsumed,
	"com.google.calories.bmr":      domain.DataTypeCaloriesBMR,
	"com.google.weight":            domain.DataTypeWeight,
	"com.google.height":            domain.DataTypeHeight,
	"com.google.sleep.segment":     domain.DataTypeSleep,
	"com.google.distance.delta":    domain.DataTypeDistanceMoved,
	"com.google.oxygen_saturation": domain.DataTypeBloodOxygen,
}

// FitbitTypes maps Fitbit time-series resources to canonical keys.
var FitbitTypes = map[string]string{
	"activities/steps":    domain.DataTypeSteps,
	"activities/calories": domain.DataTypeCalories,
	"activities/distance": domain.DataTypeDistanceMoved,
}

// StravaTypes maps Strava activity types to canonical keys.
var StravaTypes = map[string]string{
	"Ride": domain.DataTypeStravaCycling,
	"Run":  domain.DataTypeStravaRun,
	"Walk": domain.DataTypeStravaWalk,
}

// HealthKitTypes maps HealthKit upload keys to canonical keys.
var HealthKitTypes = map[string]string{
	"height":               domain.DataTypeHeight,
	"weight":               domain.DataTypeWeight,
	"active_energy_burned": domain.DataTypeCalories,
	"steps":                domain.DataTypeSteps,
	"water":                domain.DataTypeWaterConsumed,
}
