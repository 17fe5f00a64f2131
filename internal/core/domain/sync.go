package domain

import "time"

const (
	// DefaultSyncLockTTL bounds how long one link sync may hold its lock
	DefaultSyncLockTTL = 5 * time.Minute

	// DefaultFanoutSlice bounds how many links of one account are dispatched together
	DefaultFanoutSlice = 300
)

// SyncLockName returns the lock name guarding syncs of one provider link
func SyncLockName(linkID string) string {
	return "sync-link:" + linkID
}

// SyncStats holds statistics for a link sync
type SyncStats struct {
	PointsFetched   int `json:"points_fetched"`
	PointsDelivered int `json:"points_delivered"`
	PointsDropped   int `json:"points_dropped"`
	ChunksPersisted int `json:"chunks_persisted"`
}

// SyncResult represents the outcome of one link sync
type SyncResult struct {
	LinkID   string       `json:"link_id"`
	Provider ProviderType `json:"provider"`
	Success  bool         `json:"success"`
	// Skipped is true when another sync held the link lock or the link was not syncable
	Skipped bool `json:"skipped"`
	// LoggedOut is true when the provider rejected the refresh token during this sync
	LoggedOut bool      `json:"logged_out"`
	Stats     SyncStats `json:"stats"`
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

// SweepResult summarises a periodic sweep over one provider
type SweepResult struct {
	Provider  ProviderType `json:"provider"`
	Eligible  int          `json:"eligible"`
	Synced    int          `json:"synced"`
	Skipped   int          `json:"skipped"`
	LoggedOut int          `json:"logged_out"`
	Failed    int          `json:"failed"`
	Duration  float64      `json:"duration_seconds"`
}

// FetchResult is what a connector returns for one link
type FetchResult struct {
	// Points groups fetched points by provider-native data type
	Points map[string][]DataPoint
	// Watermarks is the buffered stream watermark map, committed only on clean exit
	Watermarks map[string]int64
}

// NewFetchResult creates an empty fetch result
func NewFetchResult() *FetchResult {
	return &FetchResult{
		Points:     make(map[string][]DataPoint),
		Watermarks: make(map[string]int64),
	}
}

// Observe raises the buffered watermark of a stream to at least modified
func (r *FetchResult) Observe(stream string, modified int64) {
	if cur, ok := r.Watermarks[stream]; !ok || modified > cur {
		r.Watermarks[stream] = modified
	}
}

// Count returns the number of fetched points
func (r *FetchResult) Count() int {
	n := 0
	for _, points := range r.Points {
		n += len(points)
	}
	return n
}
