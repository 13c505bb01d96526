package appointment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/carelane/hms-server/service/booking"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
	db *gorm.DB
}

func NewAppointmentHandler(db *gorm.DB) *AppointmentHandler {
	return &AppointmentHandler{db: db}
}

// RegisterPatientRoutes mounts booking routes on the patient subrouter.
func (h *AppointmentHandler) RegisterPatientRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/book", h.BookAppointment).Methods("POST")
	router.HandleFunc("/appointments/{id}/cancel", h.CancelAppointment).Methods("POST")
}

// RegisterDoctorRoutes mounts the complete/cancel route on the doctor
// subrouter.
func (h *AppointmentHandler) RegisterDoctorRoutes(router *mux.Router) {
	router.HandleFunc("/appointments/{id}/update", h.UpdateAppointment).Methods("POST")
}

// writeBookingError maps engine failures onto a machine-readable reason
// code so the calling layer can show the right message and bounce back to
// a safe page.
func writeBookingError(w http.ResponseWriter, err error) {
	var status int
	var reason string

	switch {
	case errors.Is(err, booking.ErrDoctorUnavailable):
		status, reason = http.StatusConflict, "doctor_unavailable"
	case errors.Is(err, booking.ErrSlotFull):
		status, reason = http.StatusConflict, "slot_full"
	case errors.Is(err, booking.ErrPatientDoubleBooked):
		status, reason = http.StatusConflict, "patient_double_booked"
	case errors.Is(err, booking.ErrForbidden):
		status, reason = http.StatusForbidden, "forbidden"
	case errors.Is(err, booking.ErrInvalidState):
		status, reason = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, gorm.ErrRecordNotFound):
		status, reason = http.StatusNotFound, "not_found"
	default:
		status, reason = http.StatusInternalServerError, "internal"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  err.Error(),
		"reason": reason,
	})
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var bookingRequest struct {
		DoctorID        uint   `json:"doctor_id"`
		AppointmentDate string `json:"appointment_date"`
		AppointmentTime string `json:"appointment_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if bookingRequest.DoctorID == 0 || bookingRequest.AppointmentDate == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	if !models.ValidSlot(bookingRequest.AppointmentTime) {
		http.Error(w, "Invalid appointment time", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", bookingRequest.AppointmentDate)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, bookingRequest.DoctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}

	appointment, err := booking.Book(h.db, patient.ID, doctor.ID, date, bookingRequest.AppointmentTime)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	actor := booking.Actor{Role: models.RolePatient, PatientID: patient.ID}
	appointment, err := booking.Cancel(h.db, actor, uint(appointmentID))
	if err != nil {
		writeBookingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

// UpdateAppointment lets the assigned doctor complete or cancel a booked
// appointment. Completing records the treatment outcome in the same
// transaction.
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var updateRequest struct {
		Action string `json:"action"`
		booking.TreatmentInput
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var appointment *models.Appointment
	switch updateRequest.Action {
	case "complete":
		appointment, err = booking.Complete(h.db, doctor.ID, uint(appointmentID), updateRequest.TreatmentInput)
	case "cancel":
		actor := booking.Actor{Role: models.RoleDoctor, DoctorID: doctor.ID}
		appointment, err = booking.Cancel(h.db, actor, uint(appointmentID))
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeBookingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointment)
}

func (h *AppointmentHandler) currentPatient(w http.ResponseWriter, r *http.Request) (*models.Patient, bool) {
	user, err := utils.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}

	var patient models.Patient
	if err := h.db.Where("user_id = ?", user.ID).First(&patient).Error; err != nil {
		http.Error(w, "Patient profile not found", http.StatusNotFound)
		return nil, false
	}
	return &patient, true
}

func (h *AppointmentHandler) currentDoctor(w http.ResponseWriter, r *http.Request) (*models.Doctor, bool) {
	user, err := utils.GetUserFromContext(r)
	if err != nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}

	var doctor models.Doctor
	if err := h.db.Where("user_id = ?", user.ID).First(&doctor).Error; err != nil {
		http.Error(w, "Doctor profile not found", http.StatusNotFound)
		return nil, false
	}
	return &doctor, true
}
