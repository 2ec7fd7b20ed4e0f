/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data
  carriers; dates cross this boundary as MM-DD-YYYY strings.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import "github.com/vaxsched/reservation-engine/engine"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateUserRequest provisions a caregiver or patient identity row.
// Credentials are the identity provider's concern, never this API's.
type CreateUserRequest struct {
	Username string `json:"username"`
}

// UploadAvailabilityRequest declares the calling caregiver free on a date.
type UploadAvailabilityRequest struct {
	Date string `json:"date"`
}

// AddDosesRequest adds doses to a vaccine's inventory, creating the vaccine
// if it is new.
type AddDosesRequest struct {
	Vaccine string `json:"vaccine"`
	Count   int    `json:"count"`
}

// ReserveRequest books an appointment for the calling patient.
type ReserveRequest struct {
	Date    string `json:"date"`
	Vaccine string `json:"vaccine"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ConfirmationDTO is the committed booking returned to the patient.
type ConfirmationDTO struct {
	AppointmentID int64  `json:"appointment_id"`
	Caregiver     string `json:"caregiver"`
}

// ScheduleDTO reports free caregivers and remaining doses for a date.
// Utilization is the exact consumed/total ratio per vaccine, as a decimal
// string.
type ScheduleDTO struct {
	Date           string            `json:"date"`
	FreeCaregivers []string          `json:"free_caregivers"`
	DosesRemaining map[string]int    `json:"doses_remaining"`
	Utilization    map[string]string `json:"utilization"`
}

// AppointmentDTO is one row of a user's appointment listing. Counterpart is
// the other party: the caregiver for a patient, the patient for a caregiver.
type AppointmentDTO struct {
	ID          int64  `json:"id"`
	Vaccine     string `json:"vaccine"`
	Date        string `json:"date"`
	Counterpart string `json:"counterpart"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func appointmentDTO(a engine.Appointment, id engine.Identity) AppointmentDTO {
	return AppointmentDTO{
		ID:          int64(a.ID),
		Vaccine:     a.Vaccine,
		Date:        a.Day.String(),
		Counterpart: a.Counterpart(id),
	}
}
