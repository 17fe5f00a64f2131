package domain

import "testing"

func TestSyncLockName(t *testing.T) {
	if got := SyncLockName("link-1"); got != "sync-link:link-1" {
		t.Errorf("expected sync-link:link-1, got %s", got)
	}
	if SyncLockName("a") == SyncLockName("b") {
		t.Error("expected distinct lock names per link")
	}
}

func TestFetchResult_Count(t *testing.T) {
	r := NewFetchResult()
	r.Points["com.google.step_count.delta"] = make([]DataPoint, 3)
	r.Points["com.google.weight"] = make([]DataPoint, 2)

	if r.Count() != 5 {
		t.Errorf("expected 5 points, got %d", r.Count())
	}
}

func TestDeliveryResult_Success(t *testing.T) {
	if !(&DeliveryResult{Sent: 2}).Success() {
		t.Error("expected success with no persisted chunks")
	}
	if (&DeliveryResult{Sent: 1, Persisted: 1}).Success() {
		t.Error("expected failure when a chunk was persisted")
	}
}
