package schema

import "errors"

var (
	// ErrInvalidMessage indicates a frame that failed schema validation.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrNotConnected indicates the transport is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrCircuitOpen indicates the reconnect budget is exhausted.
	ErrCircuitOpen = errors.New("reconnect attempts exhausted")
	// ErrLastTab indicates an attempt to delete the last remaining tab of a kind.
	ErrLastTab = errors.New("cannot delete the last tab")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrInvalidTabID indicates an empty or malformed tab id.
	ErrInvalidTabID = errors.New("invalid tab id")
	// ErrNoSettings indicates the settings record has not been received yet.
	ErrNoSettings = errors.New("settings not loaded")
	// ErrInvalidKey indicates an unknown global state key.
	ErrInvalidKey = errors.New("invalid global state key")
	// ErrInvalidTheme indicates an unsupported theme name.
	ErrInvalidTheme = errors.New("invalid theme")
	// ErrInvalidLocalState indicates persisted local state failed validation.
	ErrInvalidLocalState = errors.New("invalid local state")
	// ErrInvalidServer indicates a saved server entry failed validation.
	ErrInvalidServer = errors.New("invalid server")
)
