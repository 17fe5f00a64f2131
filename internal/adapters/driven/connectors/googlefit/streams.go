package googlefit

// Native data type names read from Google Fit.
const (
	TypeActiveMinutes    = "com.google.active_minutes"
	TypeStepCount        = "com.google.step_count.delta"
	TypeCaloriesExpended = "com.google.calories.expended"
	TypeHydration        = "com.google.hydration"
	TypeCaloriesBMR      = "com.google.calories.bmr"
	TypeWeight           = "com.google.weight"
	TypeHeight           = "com.google.height"
	TypeSleepSegment     = "com.google.sleep.segment"
	TypeDistanceDelta    = "com.google.distance.delta"
	TypeOxygenSaturation = "com.google.oxygen_saturation"
)

const (
	intVal = "intVal"
	fpVal  = "fpVal"

	// streams with this name carry points the user typed in by hand
	manualStreamName = "user_input"
)

// stream is one Google Fit data source for a data type.
type stream struct {
	Name string
	ID   string
}

// Manual reports whether the stream holds manually entered points.
func (s stream) Manual() bool {
	return s.Name == manualStreamName
}

// dataType describes how a native type is read.
type dataType struct {
	// ValueField is the key inside value[0] holding the measurement
	ValueField string
	Streams    []stream
}

func derived(dataType, name string) stream {
	return stream{Name: name, ID: "derived:" + dataType + ":com.google.android.gms:" + name}
}

func userInput(dataType string) stream {
	return stream{Name: manualStreamName, ID: "raw:" + dataType + ":com.google.android.apps.fitness:user_input"}
}

// dataTypes is the fixed stream table. Stream ids are stable across users,
// so the dataSources listing is never consulted.
var dataTypes = map[string]dataType{
	TypeActiveMinutes: {intVal, []stream{derived(TypeActiveMinutes, "merge_active_minutes"), userInput(TypeActiveMinutes)}},
	TypeStepCount:     {intVal, []stream{derived(TypeStepCount, "estimated_steps"), userInput(TypeStepCount)}},
	TypeCaloriesExpended: {fpVal, []stream{
		derived(TypeCaloriesExpended, "merge_calories_expended"),
		userInput(TypeCaloriesExpended),
	}},
	TypeHydration:        {fpVal, []stream{derived(TypeHydration, "merged_hydration"), userInput(TypeHydration)}},
	TypeCaloriesBMR:      {fpVal, []stream{derived(TypeCaloriesBMR, "merged")}},
	TypeWeight:           {fpVal, []stream{derived(TypeWeight, "merge_weight")}},
	TypeHeight:           {fpVal, []stream{derived(TypeHeight, "merge_height")}},
	TypeSleepSegment:     {intVal, []stream{derived(TypeSleepSegment, "merged")}},
	TypeDistanceDelta:    {fpVal, []stream{derived(TypeDistanceDelta, "merge_distance_delta")}},
	TypeOxygenSaturation: {fpVal, []stream{derived(TypeOxygenSaturation, "merged")}},
}

// NativeTypes returns every native type the connector can read.
func NativeTypes() []string {
	out := make([]string, 0, len(dataTypes))
	for t := range dataTypes {
		out = append(out, t)
	}
	return out
}
