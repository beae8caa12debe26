package store

import "errors"

// Domain errors for the store package.
var (
	// ErrUnknownItemType is returned when a persisted item has an unrecognised type tag.
	ErrUnknownItemType = errors.New("store: unknown item type")

	// ErrInvalidItem is returned when a persisted item cannot be decoded.
	ErrInvalidItem = errors.New("store: invalid item")

	// ErrSaveFailed wraps every backend failure during a save.
	ErrSaveFailed = errors.New("store: save failed")

	// ErrLoadFailed wraps every backend failure during a load.
	ErrLoadFailed = errors.New("store: load failed")

	// ErrRemountFailed is returned when a remount command of the mounted backend fails.
	ErrRemountFailed = errors.New("store: remount failed")

	// ErrUnknownBackend is returned for an unrecognised backend kind.
	ErrUnknownBackend = errors.New("store: unknown backend")

	// ErrClosed is returned by SyncManager operations after Close.
	ErrClosed = errors.New("store: sync manager closed")
)
