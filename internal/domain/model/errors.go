package model

import "errors"

// Error taxonomy shared by the application and adapters. Adapters wrap these
// with context; callers test with errors.Is.
var (
	// ErrStoreUnavailable is returned when the secure store cannot be opened,
	// read or written.
	ErrStoreUnavailable = errors.New("secure store unavailable")

	// ErrStoreCorrupt is returned when a stored snapshot exists but cannot be
	// decoded. It is never coerced into an empty snapshot.
	ErrStoreCorrupt = errors.New("secure store data corrupt")

	// ErrUnauthenticated is returned when an operation needs an active account
	// or token and none is available.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrProviderRejected is returned when a provider refuses a token.
	ErrProviderRejected = errors.New("provider rejected token")

	// ErrProviderUnreachable is returned on network or unexpected HTTP failures.
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrNotFound is returned when an operation references an unknown account.
	ErrNotFound = errors.New("account not found")

	// ErrCacheNotInitialized is returned by Persist before the cache has been
	// hydrated, since writing then would overwrite the stored accounts.
	ErrCacheNotInitialized = errors.New("credential cache not initialized")

	// ErrUnsupportedProvider is returned when a provider lacks the requested
	// capability.
	ErrUnsupportedProvider = errors.New("operation not supported for provider")

	// ErrInvalidInput is returned when a command argument is malformed.
	ErrInvalidInput = errors.New("invalid input")
)
