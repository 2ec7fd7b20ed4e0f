/*
store.go - Persistence Gateway interfaces

PURPOSE:
  Defines the contract between the engine components and storage. The
  gateway exposes transactional read/insert/delete operations over five
  relations (caregivers, patients, vaccines, availabilities, appointments)
  and the ability to run a unit of work atomically.

KEY INTERFACES:
  AvailabilityStore: Availability rows and the free-caregiver join
  InventoryStore:    Vaccine totals and active consumption counts
  AppointmentStore:  Appointment rows and id allocation
  DirectoryStore:    Caregiver/patient identity rows
  Gateway:           All of the above plus WithTx

TRANSACTIONAL CONTRACT:
  WithTx runs the function inside a single serializable transaction. Every
  read and write the unit of work performs is all-or-nothing and invisible
  to concurrent transactions until commit. The Reservation Coordinator runs
  each booking attempt through WithTx so the free-caregiver read, the
  remaining-dose read, and the appointment insert cannot interleave with
  another attempt.

SECOND LINE OF DEFENSE:
  Implementations MUST enforce a uniqueness constraint on
  appointments(caregiver, date) among active rows at the storage level.
  Transaction isolation alone is insufficient if two coordinators choose
  the same caregiver from index reads taken at different times.

ERROR MAPPING:
  Implementations translate their native failures into the engine taxonomy:
  constraint violations become the structured Conflict errors in errors.go,
  and an unreachable database becomes ErrStorageUnavailable. No driver
  error type crosses this boundary.

IMPLEMENTATIONS:
  - store/sqlite: production implementation, also used by tests via :memory:

SEE ALSO:
  - booking.go: The only WithTx caller with cross-entity invariants
  - errors.go: The sentinels implementations map to
*/
package engine

import "context"

// =============================================================================
// AVAILABILITY STORE
// =============================================================================

// AvailabilityStore persists caregiver availability declarations.
type AvailabilityStore interface {
	// InsertAvailability registers that caregiver is free on day. Returns
	// *DuplicateAvailabilityError if the exact pair already exists.
	InsertAvailability(ctx context.Context, caregiver string, day Date) error

	// FreeCaregivers returns caregivers with an availability row for day and
	// no active appointment on day, ordered ascending by username. The order
	// determines deterministic caregiver selection in booking.
	FreeCaregivers(ctx context.Context, day Date) ([]string, error)
}

// =============================================================================
// INVENTORY STORE
// =============================================================================

// InventoryStore persists per-vaccine dose totals. It never inspects
// appointments for writes; consumption is always derived at read time.
type InventoryStore interface {
	// AddDoses creates the vaccine with count total doses if unknown, or
	// increases its total by count if known. count has been validated.
	AddDoses(ctx context.Context, vaccine string, count int) error

	// Stock returns the vaccine's totals, or ok=false if unknown.
	Stock(ctx context.Context, vaccine string) (stock VaccineStock, ok bool, err error)

	// AllStock returns every vaccine's totals, ordered by name.
	AllStock(ctx context.Context) ([]VaccineStock, error)
}

// =============================================================================
// APPOINTMENT STORE
// =============================================================================

// AppointmentStore persists appointment rows.
type AppointmentStore interface {
	// InsertAppointment inserts the appointment with a freshly allocated id
	// (1 if the table is empty, max+1 otherwise) and returns it. Allocation
	// and insert happen atomically. Returns *DoubleBookingError if an active
	// appointment already holds (caregiver, day).
	InsertAppointment(ctx context.Context, appt Appointment) (AppointmentID, error)

	// Appointment returns the row by id, or nil if no such id exists.
	Appointment(ctx context.Context, id AppointmentID) (*Appointment, error)

	// DeleteAppointment hard-deletes the row. Returns ErrNotFound if the id
	// does not exist.
	DeleteAppointment(ctx context.Context, id AppointmentID) error

	// AppointmentsByCaregiver returns the caregiver's appointments ordered
	// by ascending id.
	AppointmentsByCaregiver(ctx context.Context, username string) ([]Appointment, error)

	// AppointmentsByPatient returns the patient's appointments ordered by
	// ascending id.
	AppointmentsByPatient(ctx context.Context, username string) ([]Appointment, error)

	// NextAppointmentID reports the id the next insert would claim. Reads
	// taken outside a transaction are advisory only; InsertAppointment is
	// the authoritative allocator.
	NextAppointmentID(ctx context.Context) (AppointmentID, error)
}

// =============================================================================
// DIRECTORY STORE - Caregiver and patient identity rows
// =============================================================================

// DirectoryStore persists the identity rows appointments and availabilities
// reference. Credential material lives with the external identity provider,
// never here.
type DirectoryStore interface {
	// CreateCaregiver inserts the username. Returns ErrConflict if taken.
	CreateCaregiver(ctx context.Context, username string) error

	// CreatePatient inserts the username. Returns ErrConflict if taken.
	CreatePatient(ctx context.Context, username string) error

	// DeleteCaregiver removes the caregiver. Returns ErrConflict while any
	// availability or appointment still references the username, and
	// ErrNotFound if the username does not exist.
	DeleteCaregiver(ctx context.Context, username string) error
}

// =============================================================================
// GATEWAY - The full persistence contract
// =============================================================================

// UnitOfWork is the view of storage a transaction exposes.
type UnitOfWork interface {
	AvailabilityStore
	InventoryStore
	AppointmentStore
}

// Gateway is the complete persistence contract the engine consumes.
// Methods called directly on the Gateway auto-commit; WithTx groups calls
// into one atomic unit.
type Gateway interface {
	UnitOfWork
	DirectoryStore

	// WithTx runs fn inside a single transaction. If fn returns an error the
	// transaction rolls back and the error is returned unchanged.
	WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
