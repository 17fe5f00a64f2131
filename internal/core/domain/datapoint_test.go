package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(n int) []DataPoint {
	out := make([]DataPoint, n)
	for i := range out {
		out[i] = DataPoint{Provider: ProviderTypeGoogleFit, StartTime: int64(i), EndTime: int64(i), Value: 1}
	}
	return out
}

func TestDataPoint_MarshalJSON(t *testing.T) {
	device := "Apple Watch"
	p := DataPoint{
		Provider:     ProviderTypeStrava,
		StartTime:    1000,
		EndTime:      2000,
		Value:        12.5,
		ManualEntry:  true,
		SourceDevice: &device,
		ModifiedTime: 99,
		Stream:       "activities",
		Extra:        map[string]any{"activity_id": 42, "value": "ignored"},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "strava", got["source"])
	assert.Equal(t, float64(1000), got["start_time"])
	assert.Equal(t, float64(2000), got["end_time"])
	assert.Equal(t, 12.5, got["value"])
	assert.Equal(t, true, got["manual_entry"])
	assert.Equal(t, "Apple Watch", got["source_device"])
	assert.Equal(t, float64(42), got["activity_id"])
	assert.NotContains(t, got, "modified_time")
	assert.NotContains(t, got, "stream")
}

func TestDataPoint_MarshalJSON_NullDevice(t *testing.T) {
	data, err := json.Marshal(DataPoint{Provider: ProviderTypeGoogleFit, Value: 10})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	v, ok := got["source_device"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDataPoint_UnmarshalJSON_KeepsExtra(t *testing.T) {
	raw := `{"source":"strava","start_time":5,"end_time":6,"value":3,"manual_entry":false,"source_device":null,"distance":1200.5}`

	var p DataPoint
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, ProviderTypeStrava, p.Provider)
	assert.Equal(t, int64(5), p.StartTime)
	assert.Equal(t, int64(6), p.EndTime)
	assert.Equal(t, 3.0, p.Value)
	assert.Nil(t, p.SourceDevice)
	assert.Equal(t, 1200.5, p.Extra["distance"])
}

func TestPayload_Split(t *testing.T) {
	payload := Payload{
		"steps":    points(600),
		"calories": points(10),
		"weight":   nil,
	}

	chunks := payload.Split(500)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0]["calories"], 10)
	assert.Len(t, chunks[1]["steps"], 500)
	assert.Len(t, chunks[2]["steps"], 100)
	assert.Equal(t, int64(500), chunks[2]["steps"][0].StartTime, "points keep their order across chunks")
}

func TestPayload_CountAndTypes(t *testing.T) {
	payload := Payload{"steps": points(3), "height": points(1), "empty": {}}

	assert.Equal(t, 4, payload.Count())
	assert.Equal(t, []string{"height", "steps"}, payload.Types())
}

func TestMetricsFor(t *testing.T) {
	chunk := Payload{"steps": {{Value: 10}, {Value: 5}}}

	metrics := MetricsFor("acct-1", ProviderTypeFitbit, chunk)

	require.Len(t, metrics, 1)
	assert.Equal(t, 15.0, metrics[0].Value)
	assert.Equal(t, "steps", metrics[0].DataType)
	assert.Equal(t, ProviderTypeFitbit, metrics[0].Provider)
}

func TestProviderLink_MergeWatermarks(t *testing.T) {
	link := &ProviderLink{Watermarks: map[string]int64{"a": 100, "b": 50}}

	link.MergeWatermarks(map[string]int64{"a": 90, "b": 70, "c": 1})

	assert.Equal(t, int64(100), link.Watermarks["a"], "watermarks never decrease")
	assert.Equal(t, int64(70), link.Watermarks["b"])
	assert.Equal(t, int64(1), link.Watermarks["c"])
}

func TestProviderLink_MarkLoggedOut(t *testing.T) {
	link := &ProviderLink{LoggedIn: true, RefreshToken: "r", AccessToken: "a"}

	link.MarkLoggedOut()

	assert.False(t, link.LoggedIn)
	assert.Empty(t, link.RefreshToken)
	assert.Empty(t, link.AccessToken)
	assert.Nil(t, link.AccessTokenExpiry)
}

func TestAccount_StoragePolicy(t *testing.T) {
	tests := []struct {
		option  DataStorageOption
		webhook bool
		storage bool
	}{
		{StorageDeny, true, false},
		{StorageAllow, false, true},
		{StorageBoth, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.option), func(t *testing.T) {
			a := &Account{DataStorageOption: tt.option}
			assert.Equal(t, tt.webhook, a.AllowsWebhook())
			assert.Equal(t, tt.storage, a.AllowsStorage())
		})
	}
}

func TestFetchResult_Observe(t *testing.T) {
	r := NewFetchResult()
	r.Observe("s", 10)
	r.Observe("s", 5)
	r.Observe("s", 20)
	assert.Equal(t, int64(20), r.Watermarks["s"])
}

func TestScopes(t *testing.T) {
	e := &StravaEvent{ObjectID: 1, ObjectType: "activity", AspectType: "create", SubscriptionID: 7, OwnerID: 9, EventTime: 123}
	assert.Equal(t, "strava:1:activity:create:7:9", e.Scope())

	n := &FitbitNotification{CollectionType: "activities", Date: "2024-01-02", OwnerID: "ABC", SubscriptionID: "sub"}
	assert.Equal(t, "fitbit:activities:2024-01-02:ABC:sub", n.Scope())

	assert.Equal(t, "device:conn-1", DeviceUploadScope("conn-1"))
}
