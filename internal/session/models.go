package session

import (
	"errors"
	"fmt"
)

// State of the tracking session machine. Transitions are serialized through
// the machine inbox, so a reader always sees a consistent state.
type State string

const (
	StateIdle              State = "idle"
	StatePendingPermission State = "pending_permission"
	StatePendingValidation State = "pending_validation"
	StateActive            State = "active"
)

// Identity is the participant identity a session starts from.
type Identity struct {
	Event     string `json:"main_event"`
	Bib       string `json:"bib"`
	BirthYear string `json:"birth_year"`
	Code      string `json:"code"`
}

// ValidationError is a local form rejection. It never reaches the timing
// server.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate applies the local identity rules before any network call.
func (i Identity) Validate() *ValidationError {
	if i.Event == "" {
		return &ValidationError{Field: "main_event", Reason: "no event selected"}
	}
	if i.Bib == "" {
		return &ValidationError{Field: "bib", Reason: "bib number is required"}
	}
	if len(i.BirthYear) != 4 || !allDigits(i.BirthYear) {
		return &ValidationError{Field: "birth_year", Reason: "birth year must be 4 digits"}
	}
	if len(i.Code) != 6 {
		return &ValidationError{Field: "code", Reason: "race code must be 6 characters"}
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	// ErrTrackingInProgress rejects a start while a session is not idle.
	ErrTrackingInProgress = errors.New("tracking already in progress")
	// ErrNotTracking rejects a stop with no session to stop.
	ErrNotTracking = errors.New("no tracking session in progress")
	// ErrLocationServicesDisabled means the device-wide location switch is off.
	ErrLocationServicesDisabled = errors.New("location services disabled")
)

// Permission names the grant a denied start was missing.
type Permission string

const (
	PermissionNotifications      Permission = "notifications"
	PermissionBackgroundLocation Permission = "background_location"
	PermissionPreciseLocation    Permission = "precise_location"
)

// PermissionDeniedError is a user denial during the permission sequence. It is
// a terminal start outcome, not a retryable failure.
type PermissionDeniedError struct {
	Permission Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s permission denied", e.Permission)
}
