package domain

import (
	"fmt"
	"time"
)

// Connection identifies one end user of a customer account
type Connection struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	UserUUID  string    `json:"user_uuid"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderLink is the per-user, per-provider OAuth connection record.
// It is mutated by connect/reconnect/disconnect actions and by the sync
// that holds its lock.
type ProviderLink struct {
	ID           string       `json:"id"`
	ConnectionID string       `json:"connection_id"`
	Provider     ProviderType `json:"provider"`

	// AccountID is denormalised from the owning connection (read-only)
	AccountID string `json:"account_id"`

	RefreshToken      string     `json:"-"`
	AccessToken       string     `json:"-"`
	AccessTokenExpiry *time.Time `json:"-"`

	LoggedIn bool       `json:"logged_in"`
	LastSync *time.Time `json:"last_sync,omitempty"`

	// Watermarks maps stream id to the highest modified time already consumed
	Watermarks map[string]int64 `json:"watermarks"`

	SyncManualEntries bool     `json:"sync_manual_entries"`
	DeviceUUIDs       []string `json:"device_uuids,omitempty"`

	// ProviderUserID is the provider's identifier for the user (Strava athlete id, Fitbit owner id)
	ProviderUserID string `json:"provider_user_id,omitempty"`

	// SubscriptionID is our identifier for provider push subscriptions (Fitbit)
	SubscriptionID string `json:"subscription_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasValidAccessToken reports whether the cached access token is still usable
func (l *ProviderLink) HasValidAccessToken(now time.Time) bool {
	return l.AccessToken != "" && l.AccessTokenExpiry != nil && l.AccessTokenExpiry.After(now)
}

// Watermark returns the stored watermark for a stream and whether one exists
func (l *ProviderLink) Watermark(stream string) (int64, bool) {
	if l.Watermarks == nil {
		return 0, false
	}
	v, ok := l.Watermarks[stream]
	return v, ok
}

// MarkLoggedOut flips the link to logged-out and clears every credential.
// The state is terminal until the user reconnects.
func (l *ProviderLink) MarkLoggedOut() {
	l.LoggedIn = false
	l.RefreshToken = ""
	l.AccessToken = ""
	l.AccessTokenExpiry = nil
}

// MergeWatermarks merges buffered watermarks into the stored map.
// Stored values never decrease.
func (l *ProviderLink) MergeWatermarks(buffered map[string]int64) {
	if len(buffered) == 0 {
		return
	}
	if l.Watermarks == nil {
		l.Watermarks = make(map[string]int64, len(buffered))
	}
	for stream, v := range buffered {
		if cur, ok := l.Watermarks[stream]; !ok || v > cur {
			l.Watermarks[stream] = v
		}
	}
}

// LinkStatus is the connection-status view surfaced to customers
type LinkStatus struct {
	LinkID   string       `json:"link_id"`
	Provider ProviderType `json:"provider"`
	LoggedIn bool         `json:"logged_in"`
	LastSync *time.Time   `json:"last_sync,omitempty"`
}

// Status returns the connection-status view of the link
func (l *ProviderLink) Status() *LinkStatus {
	return &LinkStatus{
		LinkID:   l.ID,
		Provider: l.Provider,
		LoggedIn: l.LoggedIn,
		LastSync: l.LastSync,
	}
}

// ConnectRequest carries the result of a completed provider OAuth flow (or a
// device registration for push providers)
type ConnectRequest struct {
	AccountID string       `json:"account_id"`
	UserUUID  string       `json:"user_uuid"`
	Provider  ProviderType `json:"provider"`

	RefreshToken string `json:"refresh_token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expires_in,omitempty"`

	ProviderUserID    string   `json:"provider_user_id,omitempty"`
	SyncManualEntries bool     `json:"sync_manual_entries"`
	DeviceUUIDs       []string `json:"device_uuids,omitempty"`
}

// Validate checks the request shape. Pulled providers need a refresh token.
func (r *ConnectRequest) Validate() error {
	if r.AccountID == "" || r.UserUUID == "" {
		return fmt.Errorf("%w: account_id and user_uuid are required", ErrInvalidInput)
	}
	if !r.Provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, r.Provider)
	}
	if r.Provider.IsPulled() && r.RefreshToken == "" {
		return fmt.Errorf("%w: refresh_token is required for %s", ErrInvalidInput, r.Provider)
	}
	return nil
}
