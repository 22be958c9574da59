package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

// Handler exposes the appointments service over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RejectionResponse is the body returned for a rejected booking.
type RejectionResponse struct {
	Reason  scheduling.Reason `json:"reason"`
	Field   string            `json:"field,omitempty"`
	Message string            `json:"message"`
}

// ListResponse wraps appointment lists.
type ListResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
}

// Schedule handles POST /appointments
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduling.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.service.Schedule(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Reschedule handles PATCH /appointments/{id}
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.service.Reschedule(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logStaffAction(r, "reschedule", id)
	writeJSON(w, http.StatusOK, appt)
}

// Complete handles POST /appointments/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logStaffAction(r, "complete", id)
	writeJSON(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logStaffAction(r, "cancel", id)
	writeJSON(w, http.StatusOK, appt)
}

// logStaffAction records which staff member changed an appointment.
func (h *Handler) logStaffAction(r *http.Request, action string, id int64) {
	claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context())
	if !ok {
		return
	}
	h.logger.Info("staff appointment action",
		"action", action,
		"appointment_id", id,
		"staff_subject", claims.Subject,
		"staff_role", claims.Role,
	)
}

// List handles GET /appointments?status=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Limit: 50}
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" && !strings.EqualFold(raw, "all") {
		status, err := ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 200 {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeList(w, list)
}

// Search handles GET /appointments/search?patient_id=&doctor_id=&date=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query SearchQuery
	var err error
	if query.PatientID, err = optionalID(q.Get("patient_id")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient_id")
		return
	}
	if query.DoctorID, err = optionalID(q.Get("doctor_id")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor_id")
		return
	}
	query.Date = strings.TrimSpace(q.Get("date"))

	list, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeList(w, list)
}

// Today handles GET /appointments/today
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.TodaySchedule(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeList(w, list)
}

// Upcoming handles GET /appointments/upcoming?limit=
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}
	list, err := h.service.Upcoming(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeList(w, list)
}

// Summary handles GET /appointments/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// DaySlots handles GET /doctors/{doctorID}/slots?date=
func (h *Handler) DaySlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil || doctorID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = h.service.Now().Format(scheduling.DateLayout)
	}
	slots, err := h.service.DaySlots(r.Context(), doctorID, date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"date":      date,
		"slots":     slots,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var rejection *scheduling.RejectionError
	switch {
	case errors.As(err, &rejection):
		status := http.StatusUnprocessableEntity
		if rejection.Reason == scheduling.ReasonDoctorConflict {
			status = http.StatusConflict
		}
		writeJSON(w, status, RejectionResponse{
			Reason:  rejection.Reason,
			Field:   rejection.Field,
			Message: rejection.Message(),
		})
	case errors.Is(err, scheduling.ErrInvalidDate), errors.Is(err, scheduling.ErrInvalidHour):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, "appointment is already completed or cancelled")
	default:
		h.logger.Error("appointments request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return 0, false
	}
	return id, true
}

func optionalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeList(w http.ResponseWriter, list []*Appointment) {
	if list == nil {
		list = []*Appointment{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Appointments: list, Count: len(list)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
