package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownState is returned when a stored state tag is not part of the state machine.
var ErrUnknownState = errors.New("unknown state")

// ErrValidation is returned by collaborators that reject user-provided data
// (malformed email, ungeocodable address).
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned when a referenced record (product, cart item, location) does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoLocationsAvailable is returned when no pizzeria is configured in the backend.
// It matches ErrNotFound.
var ErrNoLocationsAvailable = fmt.Errorf("%w: no locations available", ErrNotFound)

// ErrBackendUnavailable is returned when a collaborator call fails or times out.
var ErrBackendUnavailable = errors.New("backend unavailable")
