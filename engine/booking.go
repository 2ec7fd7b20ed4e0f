/*
booking.go - Reservation Coordinator

PURPOSE:
  Orchestrates a booking request across the Availability Index, the
  Inventory Ledger, and the Appointment Ledger as one atomic unit. This is
  the only component with cross-entity invariants: no two concurrent
  bookings may double-book a caregiver or oversell a dose.

STATE MACHINE (single booking attempt):
  Requested -> CaregiverSelected -> DoseReserved -> Committed
  with an abort to Rejected at any gate:
    - Requested:         date malformed or vaccine name missing
    - no free caregiver: Rejected(NoCaregiverAvailable)
    - no remaining dose: Rejected(NoDosesAvailable)
    - insert loses race: retry once from caregiver selection, then
                         Rejected(Conflict)

ATOMICITY:
  The whole sequence from the free-caregiver read to the appointment insert
  runs inside one Gateway.WithTx unit of work, invisible to concurrent
  attempts until commit. The storage uniqueness constraint on
  (caregiver, date) backstops isolation: if two coordinators selected the
  same caregiver from reads taken at different times, the second insert
  fails and triggers the bounded retry.

DETERMINISM:
  The free-caregiver list is ordered ascending by username and the first
  entry is always selected, so identical states produce identical choices.

SEE ALSO:
  - store.go: The transactional contract WithTx provides
  - errors.go: The rejection kinds surfaced to the session layer
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// BOOKING STATES
// =============================================================================

// BookingState names how far a single booking attempt progressed.
type BookingState string

const (
	StateRequested         BookingState = "requested"
	StateCaregiverSelected BookingState = "caregiver_selected"
	StateDoseReserved      BookingState = "dose_reserved"
	StateCommitted         BookingState = "committed"
	StateRejected          BookingState = "rejected"
)

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator runs booking attempts. Multiple invocations may run
// concurrently, one per active session.
type Coordinator struct {
	gateway Gateway
	log     zerolog.Logger
}

// NewCoordinator creates a Reservation Coordinator over the gateway.
func NewCoordinator(gateway Gateway, log zerolog.Logger) *Coordinator {
	return &Coordinator{gateway: gateway, log: log}
}

// Reserve books a vaccination appointment for the identity on the given
// boundary-format date. On success it returns the new appointment id and
// the chosen caregiver. On failure the returned error is one of the engine
// kinds and system state is unchanged.
func (c *Coordinator) Reserve(ctx context.Context, id Identity, dateStr, vaccine string) (Confirmation, error) {
	attemptID := uuid.NewString()
	log := c.log.With().Str("attempt_id", attemptID).Str("patient", id.Username).Logger()

	// Requested: validate identity, date, and vaccine name.
	if !id.Valid() {
		return Confirmation{}, ErrUnauthenticated
	}
	if id.Role != RolePatient {
		return Confirmation{}, fmt.Errorf("%w: only patients may reserve", ErrForbidden)
	}
	day, err := ParseDate(dateStr)
	if err != nil {
		return Confirmation{}, err
	}
	vaccine = strings.TrimSpace(vaccine)
	if vaccine == "" {
		return Confirmation{}, fmt.Errorf("%w: vaccine name is required", ErrInvalidArgument)
	}

	// One retry on a lost race, then surface the conflict. The coordinator
	// never silently loops.
	conf, state, err := c.attempt(ctx, id, day, vaccine, attemptID)
	if err != nil && errors.Is(err, ErrConflict) {
		log.Warn().Str("state", string(state)).Msg("booking attempt lost a race, retrying once")
		conf, state, err = c.attempt(ctx, id, day, vaccine, attemptID)
	}

	if err != nil {
		log.Info().
			Str("state", string(StateRejected)).
			Str("reached", string(state)).
			Str("date", day.String()).
			Str("vaccine", vaccine).
			Err(err).
			Msg("booking rejected")
		return Confirmation{}, err
	}

	log.Info().
		Str("state", string(StateCommitted)).
		Int64("appointment_id", int64(conf.AppointmentID)).
		Str("caregiver", conf.Caregiver).
		Str("date", day.String()).
		Str("vaccine", vaccine).
		Msg("booking committed")
	return conf, nil
}

// attempt runs one pass of the state machine inside a single transaction.
// It returns the furthest state reached alongside any error.
func (c *Coordinator) attempt(ctx context.Context, id Identity, day Date, vaccine, attemptID string) (Confirmation, BookingState, error) {
	var conf Confirmation
	state := StateRequested

	err := c.gateway.WithTx(ctx, func(uow UnitOfWork) error {
		// Gate 1: a caregiver must be free on the date.
		free, err := NewAvailabilityIndex(uow).FreeCaregivers(ctx, day)
		if err != nil {
			return err
		}
		if len(free) == 0 {
			return fmt.Errorf("%w: no caregiver free on %s", ErrNoCaregiverAvailable, day)
		}
		// Deterministic tie-break: lexicographically smallest username.
		caregiver := free[0]
		state = StateCaregiverSelected

		// Gate 2: the vaccine must have remaining doses. Unknown vaccines
		// reject the same way as exhausted ones.
		remaining, err := NewInventoryLedger(uow).Remaining(ctx, vaccine)
		if err != nil {
			return err
		}
		if remaining <= 0 {
			return fmt.Errorf("%w: vaccine %q", ErrNoDosesAvailable, vaccine)
		}
		state = StateDoseReserved

		apptID, err := NewAppointmentLedger(uow).Create(ctx, day, caregiver, id.Username, vaccine)
		if err != nil {
			return err
		}

		conf = Confirmation{AppointmentID: apptID, Caregiver: caregiver, AttemptID: attemptID}
		return nil
	})
	if err != nil {
		return Confirmation{}, state, err
	}
	return conf, StateCommitted, nil
}
