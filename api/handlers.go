/*
handlers.go - HTTP API handlers for the vaccination reservation engine

PURPOSE:
  Exposes the reservation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Directory:
    POST   /api/caregivers           Create caregiver
    POST   /api/patients             Create patient

  Caregiver operations:
    POST   /api/availability         Declare the caller free on a date
    POST   /api/vaccines/doses       Add doses to a vaccine

  Shared operations:
    GET    /api/schedule?date=       Free caregivers + remaining doses
    GET    /api/appointments         List the caller's appointments
    DELETE /api/appointments/{id}    Cancel an appointment (parties only)

  Patient operations:
    POST   /api/appointments         Reserve a dose and a caregiver

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Coordinator: The booking transaction (the only cross-entity writer)
  - Schedule: Read-only reporting
  - Ledgers and the directory for the remaining single-entity writes

REQUEST FLOW:
  1. Resolve identity from context (see identity.go)
  2. Parse and decode the request
  3. Call domain logic
  4. Map the error taxonomy onto HTTP statuses
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No identity attached
  - 403: Wrong role, or not a party to the appointment
  - 404: Resource not found
  - 409: Conflict, no caregiver available, no doses available
  - 503: Storage unavailable
  - 500: Internal errors

SECURITY NOTE:
  Identity arrives via trusted X-Role/X-Username headers set by an
  upstream authenticator. This service performs no credential checks.

SEE ALSO:
  - dto.go: Request/response data structures
  - identity.go: Identity extraction middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/vaxsched/reservation-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Gateway     engine.Gateway
	Coordinator *engine.Coordinator
	Schedule    *engine.ScheduleService

	log zerolog.Logger
}

// NewHandler creates a new handler over the persistence gateway.
func NewHandler(gateway engine.Gateway, log zerolog.Logger) *Handler {
	return &Handler{
		Gateway:     gateway,
		Coordinator: engine.NewCoordinator(gateway, log),
		Schedule:    engine.NewScheduleService(gateway),
		log:         log,
	}
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// CreateCaregiver registers a caregiver username.
func (h *Handler) CreateCaregiver(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required", nil)
		return
	}

	if err := h.Gateway.CreateCaregiver(r.Context(), req.Username); err != nil {
		writeDomainError(w, "Failed to create caregiver", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username, "role": "caregiver"})
}

// CreatePatient registers a patient username.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required", nil)
		return
	}

	if err := h.Gateway.CreatePatient(r.Context(), req.Username); err != nil {
		writeDomainError(w, "Failed to create patient", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username, "role": "patient"})
}

// =============================================================================
// CAREGIVER HANDLERS
// =============================================================================

// UploadAvailability declares the calling caregiver free on a date.
func (h *Handler) UploadAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	if id.Role != engine.RoleCaregiver {
		writeError(w, http.StatusForbidden, "Only caregivers may upload availability", nil)
		return
	}

	var req UploadAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use MM-DD-YYYY)", err)
		return
	}

	if err := engine.NewAvailabilityIndex(h.Gateway).Upload(r.Context(), id.Username, day); err != nil {
		writeDomainError(w, "Failed to upload availability", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"caregiver": id.Username,
		"date":      day.String(),
	})
}

// AddDoses adds doses to a vaccine, creating the vaccine if it is new.
func (h *Handler) AddDoses(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	if id.Role != engine.RoleCaregiver {
		writeError(w, http.StatusForbidden, "Only caregivers may add doses", nil)
		return
	}

	var req AddDosesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ledger := engine.NewInventoryLedger(h.Gateway)
	if err := ledger.AddDoses(r.Context(), req.Vaccine, req.Count); err != nil {
		writeDomainError(w, "Failed to add doses", err)
		return
	}

	stock, err := ledger.Lookup(r.Context(), req.Vaccine)
	if err != nil {
		writeDomainError(w, "Failed to read inventory", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vaccine":   stock.Name,
		"remaining": stock.Remaining(),
	})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule reports free caregivers and remaining doses for a date.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	day, err := engine.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use MM-DD-YYYY)", err)
		return
	}

	sched, err := h.Schedule.Query(r.Context(), id, day)
	if err != nil {
		writeDomainError(w, "Failed to query schedule", err)
		return
	}

	dto := ScheduleDTO{
		Date:           sched.Day.String(),
		FreeCaregivers: sched.FreeCaregivers,
		DosesRemaining: make(map[string]int, len(sched.Doses)),
		Utilization:    make(map[string]string, len(sched.Doses)),
	}
	for _, d := range sched.Doses {
		dto.DosesRemaining[d.Name] = d.Remaining
		dto.Utilization[d.Name] = d.Utilization.String()
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// APPOINTMENT HANDLERS
// =============================================================================

// Reserve books an appointment for the calling patient.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := h.Coordinator.Reserve(r.Context(), id, req.Date, req.Vaccine)
	if err != nil {
		writeDomainError(w, "Failed to reserve appointment", err)
		return
	}

	w.Header().Set("X-Attempt-Id", conf.AttemptID)
	writeJSON(w, http.StatusCreated, ConfirmationDTO{
		AppointmentID: int64(conf.AppointmentID),
		Caregiver:     conf.Caregiver,
	})
}

// ListAppointments returns the caller's appointments, oldest first.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	appts, err := engine.NewAppointmentLedger(h.Gateway).For(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list appointments", err)
		return
	}

	dtos := make([]AppointmentDTO, len(appts))
	for i, a := range appts {
		dtos[i] = appointmentDTO(a, id)
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CancelAppointment cancels an appointment the caller is a party to.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	apptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || apptID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid appointment id", err)
		return
	}

	if err := engine.NewAppointmentLedger(h.Gateway).Cancel(r.Context(), engine.AppointmentID(apptID), id); err != nil {
		writeDomainError(w, "Failed to cancel appointment", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "cancelled",
		"appointment_id": apptID,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConflict),
		errors.Is(err, engine.ErrNoCaregiverAvailable),
		errors.Is(err, engine.ErrNoDosesAvailable):
		return http.StatusConflict
	case errors.Is(err, engine.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
