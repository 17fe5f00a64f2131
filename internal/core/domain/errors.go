package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSyncInProgress indicates a sync is already running
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConnectorNotFound indicates no connector is registered for the provider
	ErrConnectorNotFound = errors.New("connector not found")

	// ErrTokenInvalid indicates the admin bearer token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrProviderAuth indicates the provider rejected the refresh token.
	// Terminal until the user reconnects.
	ErrProviderAuth = errors.New("provider rejected credentials")

	// ErrProviderUnavailable indicates a transient provider failure (5xx, timeout)
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoRefreshToken indicates the link has no refresh token to exchange
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrLinkLoggedOut indicates the provider link requires re-authentication
	ErrLinkLoggedOut = errors.New("provider link logged out")

	// ErrWebhookNotConfigured indicates the account has no webhook URL
	ErrWebhookNotConfigured = errors.New("webhook not configured")

	// ErrInvalidSignature indicates an inbound payload failed signature verification
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrDuplicate indicates the payload was already processed for its scope
	ErrDuplicate = errors.New("duplicate payload")
)
