package doctor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type DoctorHandler struct {
	db *gorm.DB
}

func NewDoctorHandler(db *gorm.DB) *DoctorHandler {
	return &DoctorHandler{db: db}
}

func (h *DoctorHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	router.HandleFunc("/patients/{id}/history", h.PatientHistory).Methods("GET")
}

// Dashboard returns the doctor's upcoming booked appointments and the
// distinct patients assigned to them.
func (h *DoctorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	var upcoming []models.Appointment
	if err := h.db.Preload("Patient").
		Where("doctor_id = ? AND status = ? AND appointment_date >= ?",
			doctor.ID, models.StatusBooked, models.DateOf(time.Now())).
		Order("appointment_date, appointment_time").
		Find(&upcoming).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	var patients []models.Patient
	if err := h.db.Model(&models.Patient{}).
		Joins("JOIN appointments ON appointments.patient_id = patients.id").
		Where("appointments.doctor_id = ?", doctor.ID).
		Distinct().
		Find(&patients).Error; err != nil {
		http.Error(w, "Error retrieving patients", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctor":                doctor,
		"upcoming_appointments": upcoming,
		"assigned_patients":     patients,
	})
}

// PatientHistory lists one patient's appointments with this doctor,
// including recorded treatments.
func (h *DoctorHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}

	var patient models.Patient
	if err := h.db.First(&patient, patientID).Error; err != nil {
		http.Error(w, "Patient not found", http.StatusNotFound)
		return
	}

	var appointments []models.Appointment
	if err := h.db.Preload("Treatment").Preload("Treatment.Medicines").
		Where("patient_id = ? AND doctor_id = ?", patient.ID, doctor.ID).
		Order("appointment_date DESC").
		Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"patient":      patient,
		"appointments": appointments,
	})
}

func (h *DoctorHandler) currentDoctor(w http.ResponseWriter, r *http.Request) (*models.Doctor, bool) {
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
