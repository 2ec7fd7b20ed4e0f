/*
errors.go - Centralized error taxonomy for the reservation engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every operation in this package returns one of these kinds; no raw
  storage error escapes to the session layer.

ERROR CATEGORIES:
  1. Input errors      - malformed dates, negative dose counts
  2. Lookup errors     - unknown vaccine or appointment
  3. Invariant errors  - duplicate availability, lost booking races
  4. Authorization     - missing identity, cancel by a non-party
  5. Rejections        - no caregiver free, no doses left
  6. Storage errors    - persistence layer unreachable

USAGE:
  Components wrap sentinels with structured context:

    if errors.Is(err, engine.ErrConflict) {
        // duplicate upload or a race lost
    }

SEE ALSO:
  - booking.go: Maps rejections to booking states
  - store/sqlite: Maps constraint violations to these sentinels
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for malformed input: a date that does
	// not parse, a blank vaccine name, a negative dose count.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a referenced vaccine or appointment
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for a duplicate availability upload, or when
	// a booking or cancellation loses a race after the bounded retry.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when a cancellation is attempted by an
	// identity that is neither the patient nor the caregiver.
	ErrForbidden = errors.New("forbidden")

	// ErrNoCaregiverAvailable rejects a booking when no caregiver is free
	// on the requested date.
	ErrNoCaregiverAvailable = errors.New("no caregiver available")

	// ErrNoDosesAvailable rejects a booking when the requested vaccine is
	// unknown or has no remaining doses.
	ErrNoDosesAvailable = errors.New("no doses available")

	// ErrUnauthenticated is returned when no identity is attached to a
	// request that requires one.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStorageUnavailable is returned when the persistence layer is
	// unreachable. Fatal to the current operation, never retried beyond
	// the single conflict retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateAvailabilityError reports a second upload of the same
// (caregiver, date) pair. Duplicate upload is a user error, not an upsert.
type DuplicateAvailabilityError struct {
	Caregiver string
	Day       Date
}

func (e *DuplicateAvailabilityError) Error() string {
	return fmt.Sprintf("availability already uploaded: %s on %s", e.Caregiver, e.Day)
}

func (e *DuplicateAvailabilityError) Unwrap() error { return ErrConflict }

// DoubleBookingError reports that the (caregiver, date) pair already has an
// active appointment. This is the storage-level last line of defense firing.
type DoubleBookingError struct {
	Caregiver string
	Day       Date
}

func (e *DoubleBookingError) Error() string {
	return fmt.Sprintf("caregiver already booked: %s on %s", e.Caregiver, e.Day)
}

func (e *DoubleBookingError) Unwrap() error { return ErrConflict }

// NotPartyError reports a cancellation attempted by a non-party.
type NotPartyError struct {
	AppointmentID AppointmentID
	Requester     string
}

func (e *NotPartyError) Error() string {
	return fmt.Sprintf("appointment %d does not belong to %s", e.AppointmentID, e.Requester)
}

func (e *NotPartyError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRejection reports whether the error is a booking rejection that leaves
// state unchanged and allows the user to retry with different input.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoCaregiverAvailable) ||
		errors.Is(err, ErrNoDosesAvailable) ||
		errors.Is(err, ErrConflict)
}

// IsClientError reports whether the error is due to invalid client input or
// an authorization failure, as opposed to a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthenticated) ||
		IsRejection(err)
}

// IsFatal reports whether the session layer should treat the error as
// terminal for the session. Only storage unavailability qualifies; every
// other kind is a recoverable per-command failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
