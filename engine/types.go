/*
Package engine provides the vaccination availability and reservation core.

PURPOSE:
  This package contains the domain types and components for booking
  vaccination appointments: the Inventory Ledger (per-vaccine doses), the
  Availability Index (caregiver free dates), the Appointment Ledger
  (authoritative booking records), the Reservation Coordinator (the only
  component with cross-entity invariants), and the Schedule Query Service
  (read-only reporting).

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: the already-authenticated caller (role + username)
  - Appointment: the join record between caregiver, patient, and vaccine
  - VaccineStock: per-vaccine dose totals and active consumption
  - Confirmation: the result of a committed reservation

DESIGN PRINCIPLES:
  1. Identity is a value threaded into every call; there is no process-wide
     "current user". Concurrent sessions are safe by construction.
  2. Freeness is always derived: a caregiver is free on a date iff an
     availability row exists and no active appointment does. Nothing caches it.
  3. "Active appointment" means a row that exists; cancellation hard-deletes.

SEE ALSO:
  - errors.go: Error taxonomy shared by all components
  - date.go: Calendar-day handling and the MM-DD-YYYY boundary format
  - store.go: Persistence Gateway interfaces
*/
package engine

// =============================================================================
// IDENTITY - Authenticated caller supplied by the session layer
// =============================================================================

// Role distinguishes the two kinds of users the engine serves.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

// Identity is the authenticated caller. The engine trusts it and performs no
// credential checks itself; authentication is an external collaborator.
type Identity struct {
	Role     Role
	Username string
}

// IsZero reports whether no identity is attached.
func (id Identity) IsZero() bool { return id.Username == "" }

// Valid reports whether the identity carries a known role and a username.
func (id Identity) Valid() bool {
	return id.Username != "" && (id.Role == RolePatient || id.Role == RoleCaregiver)
}

// =============================================================================
// APPOINTMENT - The booking record
// =============================================================================

// AppointmentID is a positive integer, unique and monotonically assigned.
type AppointmentID int64

// Appointment joins a caregiver, a patient, and a vaccine on a date.
// It references the three by identity; it does not own them.
type Appointment struct {
	ID        AppointmentID
	Day       Date
	Caregiver string
	Patient   string
	Vaccine   string
}

// Party reports whether the given identity is the patient or caregiver on
// this appointment. Only parties may cancel.
func (a Appointment) Party(id Identity) bool {
	switch id.Role {
	case RolePatient:
		return a.Patient == id.Username
	case RoleCaregiver:
		return a.Caregiver == id.Username
	}
	return false
}

// Counterpart returns the other party's username relative to the identity:
// the caregiver for a patient, the patient for a caregiver.
func (a Appointment) Counterpart(id Identity) string {
	if id.Role == RoleCaregiver {
		return a.Patient
	}
	return a.Caregiver
}

// =============================================================================
// INVENTORY - Per-vaccine dose accounting
// =============================================================================

// VaccineStock is a vaccine's total doses ever added and the count of active
// appointments currently consuming them. Remaining is the derived quantity.
type VaccineStock struct {
	Name     string
	Total    int
	Consumed int
}

// Remaining is total doses added minus active appointments. It can be read
// below zero only if the oversell invariant were violated; callers that
// display it clamp at zero.
func (s VaccineStock) Remaining() int { return s.Total - s.Consumed }

// =============================================================================
// CONFIRMATION - Result of a committed reservation
// =============================================================================

// Confirmation is returned to the caller when a booking commits.
type Confirmation struct {
	AppointmentID AppointmentID
	Caregiver     string

	// AttemptID traces the booking attempt through logs. It identifies the
	// attempt, not the appointment.
	AttemptID string
}
