package domain

// DataStorageOption controls where an account's health data goes
type DataStorageOption string

const (
	// StorageDeny forwards data to the webhook only
	StorageDeny DataStorageOption = "deny"
	// StorageAllow stores data on our side only
	StorageAllow DataStorageOption = "allow"
	// StorageBoth forwards to the webhook and stores a copy
	StorageBoth DataStorageOption = "both"
)

// Account is a customer application that receives health data
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Key authenticates device uploads and signs outbound webhook bodies
	Key string `json:"-"`

	// WebhookURL is empty when no webhook is configured or it was auto-disabled
	WebhookURL string `json:"webhook_url,omitempty"`

	DataStorageOption DataStorageOption `json:"data_storage_option"`

	// EnabledDataTypes lists canonical data type keys the account wants
	EnabledDataTypes []string `json:"enabled_data_types"`

	// DebugStoreWebhookLogs keeps a copy of every delivered chunk for a short window
	DebugStoreWebhookLogs bool `json:"debug_store_webhook_logs"`
}

// HasWebhook reports whether a webhook URL is configured
func (a *Account) HasWebhook() bool {
	return a.WebhookURL != ""
}

// AllowsWebhook reports whether the storage policy forwards data to the webhook
func (a *Account) AllowsWebhook() bool {
	return a.DataStorageOption == StorageDeny || a.DataStorageOption == StorageBoth
}

// AllowsStorage reports whether the storage policy keeps a server-side copy
func (a *Account) AllowsStorage() bool {
	return a.DataStorageOption == StorageAllow || a.DataStorageOption == StorageBoth
}

// DataTypeEnabled reports whether the canonical data type is enabled
func (a *Account) DataTypeEnabled(dataType string) bool {
	for _, t := range a.EnabledDataTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// EnabledSet returns the enabled data types as a set
func (a *Account) EnabledSet() map[string]bool {
	set := make(map[string]bool, len(a.EnabledDataTypes))
	for _, t := range a.EnabledDataTypes {
		set[t] = true
	}
	return set
}
