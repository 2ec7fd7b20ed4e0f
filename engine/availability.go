/*
availability.go - Availability Index

PURPOSE:
  Tracks which caregivers declared themselves free on which dates, and which
  of those dates have since been consumed by a booking.

FREENESS IS DERIVED, NEVER CACHED:
  An availability row records only the declaration. "Is this caregiver free
  on D" is computed as: a row for (caregiver, D) exists AND no active
  appointment holds (caregiver, D). Booking does not delete the row and
  cancellation does not restore anything; the next read simply recomputes.
  This eliminates an entire class of lost-update bugs at the cost of making
  every freeness query a join across two tables.

SEE ALSO:
  - appointment.go: Deleting an appointment is what frees a caregiver
  - booking.go: Consumes the ordered free list for deterministic selection
*/
package engine

import (
	"context"
	"fmt"
	"strings"
)

// AvailabilityIndex tracks caregiver free dates.
type AvailabilityIndex struct {
	Store AvailabilityStore
}

// NewAvailabilityIndex creates an Availability Index over the given store.
func NewAvailabilityIndex(store AvailabilityStore) *AvailabilityIndex {
	return &AvailabilityIndex{Store: store}
}

// Upload registers that caregiver is free on day. Uploading the same date
// twice for the same caregiver fails with a Conflict; it is a user error,
// not an upsert.
func (ix *AvailabilityIndex) Upload(ctx context.Context, caregiver string, day Date) error {
	caregiver = strings.TrimSpace(caregiver)
	if caregiver == "" {
		return fmt.Errorf("%w: caregiver username is required", ErrInvalidArgument)
	}
	if day.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidArgument)
	}
	return ix.Store.InsertAvailability(ctx, caregiver, day)
}

// FreeCaregivers returns the caregivers free on day, sorted lexicographically
// ascending by username. The first element is the one booking will select.
func (ix *AvailabilityIndex) FreeCaregivers(ctx context.Context, day Date) ([]string, error) {
	return ix.Store.FreeCaregivers(ctx, day)
}

// Release makes a caregiver visible again as free on day after a
// cancellation. It performs no mutation: the availability row was never
// deleted by booking, and freeness is recomputed from the appointment table
// on every read. It exists so callers know they need not separately restore
// anything.
func (ix *AvailabilityIndex) Release(caregiver string, day Date) {}
