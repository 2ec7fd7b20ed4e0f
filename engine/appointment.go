/*
appointment.go - Appointment Ledger

PURPOSE:
  The authoritative record of bookings. Owns identifier generation and
  cancellation. Identifiers are positive integers assigned monotonically:
  1 when the ledger is empty, max+1 otherwise, allocated atomically with
  the insert so two concurrent bookings cannot claim the same id.

PRECONDITIONS:
  Create's preconditions (caregiver free on the date, doses remaining) are
  checked by the Reservation Coordinator, not here. The ledger itself only
  enforces that (caregiver, date) is not already booked: the storage-level
  uniqueness constraint is the last line of defense against double-booking.

CANCELLATION:
  Hard delete, by the owning patient or caregiver only. Once the row is
  gone, freeness recomputes on the next read; no separate release write
  exists anywhere.

SEE ALSO:
  - booking.go: The only caller of Create
  - availability.go: Why cancellation needs no availability write
*/
package engine

import (
	"context"
	"fmt"
)

// AppointmentLedger is the authoritative booking record.
type AppointmentLedger struct {
	Store AppointmentStore
}

// NewAppointmentLedger creates an Appointment Ledger over the given store.
func NewAppointmentLedger(store AppointmentStore) *AppointmentLedger {
	return &AppointmentLedger{Store: store}
}

// Create inserts a new appointment with a freshly allocated id and returns
// the id. Fails with a Conflict if an active appointment already holds the
// (caregiver, date) pair.
func (l *AppointmentLedger) Create(ctx context.Context, day Date, caregiver, patient, vaccine string) (AppointmentID, error) {
	return l.Store.InsertAppointment(ctx, Appointment{
		Day:       day,
		Caregiver: caregiver,
		Patient:   patient,
		Vaccine:   vaccine,
	})
}

// Find returns the appointment by id, or nil if none exists.
func (l *AppointmentLedger) Find(ctx context.Context, id AppointmentID) (*Appointment, error) {
	return l.Store.Appointment(ctx, id)
}

// Cancel removes the appointment. Fails with ErrNotFound if no such id
// exists and with a Forbidden error if the requester is neither the patient
// nor the caregiver on the appointment. A failed cancel mutates nothing.
func (l *AppointmentLedger) Cancel(ctx context.Context, id AppointmentID, requester Identity) error {
	appt, err := l.Store.Appointment(ctx, id)
	if err != nil {
		return err
	}
	if appt == nil {
		return fmt.Errorf("%w: appointment %d", ErrNotFound, id)
	}
	if !appt.Party(requester) {
		return &NotPartyError{AppointmentID: id, Requester: requester.Username}
	}
	return l.Store.DeleteAppointment(ctx, id)
}

// ForCaregiver returns the caregiver's appointments ordered by ascending id.
func (l *AppointmentLedger) ForCaregiver(ctx context.Context, username string) ([]Appointment, error) {
	return l.Store.AppointmentsByCaregiver(ctx, username)
}

// ForPatient returns the patient's appointments ordered by ascending id.
func (l *AppointmentLedger) ForPatient(ctx context.Context, username string) ([]Appointment, error) {
	return l.Store.AppointmentsByPatient(ctx, username)
}

// For returns the identity's appointments: as the serving caregiver for a
// caregiver, as the recipient for a patient.
func (l *AppointmentLedger) For(ctx context.Context, id Identity) ([]Appointment, error) {
	if !id.Valid() {
		return nil, ErrUnauthenticated
	}
	if id.Role == RoleCaregiver {
		return l.ForCaregiver(ctx, id.Username)
	}
	return l.ForPatient(ctx, id.Username)
}

// NextID reports the id the next booking would claim: 1 if the ledger is
// empty, max+1 otherwise. Advisory outside a transaction; the insert itself
// allocates authoritatively.
func (l *AppointmentLedger) NextID(ctx context.Context) (AppointmentID, error) {
	return l.Store.NextAppointmentID(ctx)
}
