package patient

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/carelane/hms-server/service/availability"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type PatientHandler struct {
	db *gorm.DB
}

func NewPatientHandler(db *gorm.DB) *PatientHandler {
	return &PatientHandler{db: db}
}

func (h *PatientHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	router.HandleFunc("/departments", h.GetDepartments).Methods("GET")
	router.HandleFunc("/departments/{id}/doctors", h.GetDepartmentDoctors).Methods("GET")
	router.HandleFunc("/doctors/{id}", h.GetDoctor).Methods("GET")
	router.HandleFunc("/doctors/{id}/availability", h.GetDoctorAvailability).Methods("GET")
	router.HandleFunc("/history", h.History).Methods("GET")
	router.HandleFunc("/profile", h.GetProfile).Methods("GET")
	router.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
}

func (h *PatientHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var departments []models.Department
	if err := h.db.Find(&departments).Error; err != nil {
		http.Error(w, "Error retrieving departments", http.StatusInternalServerError)
		return
	}

	var upcoming []models.Appointment
	if err := h.db.Preload("Doctor").
		Where("patient_id = ? AND status = ? AND appointment_date >= ?",
			patient.ID, models.StatusBooked, models.DateOf(time.Now())).
		Order("appointment_date, appointment_time").
		Find(&upcoming).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"patient":               patient,
		"departments":           departments,
		"upcoming_appointments": upcoming,
	})
}

func (h *PatientHandler) GetDepartments(w http.ResponseWriter, r *http.Request) {
	var departments []models.Department
	if err := h.db.Find(&departments).Error; err != nil {
		http.Error(w, "Error retrieving departments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(departments)
}

// GetDepartmentDoctors lists a department's doctors, hiding blacklisted
// ones.
func (h *PatientHandler) GetDepartmentDoctors(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	departmentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid department ID", http.StatusBadRequest)
		return
	}

	var department models.Department
	if err := h.db.First(&department, departmentID).Error; err != nil {
		http.Error(w, "Department not found", http.StatusNotFound)
		return
	}

	var doctors []models.Doctor
	if err := h.db.Model(&models.Doctor{}).
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("doctors.department_id = ? AND users.is_blacklisted = ?", departmentID, false).
		Find(&doctors).Error; err != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"department": department,
		"doctors":    doctors,
	})
}

func (h *PatientHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.visibleDoctor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctor)
}

// GetDoctorAvailability shows the doctor's next 7 days with live booked
// counts, the view a patient books from.
func (h *PatientHandler) GetDoctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.visibleDoctor(w, r)
	if !ok {
		return
	}

	days, err := availability.Window(h.db, doctor.ID, time.Now(), 7)
	if err != nil {
		http.Error(w, "Error retrieving availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctor": doctor,
		"days":   days,
	})
}

func (h *PatientHandler) History(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var appointments []models.Appointment
	if err := h.db.Preload("Doctor").Preload("Treatment").Preload("Treatment.Medicines").
		Where("patient_id = ?", patient.ID).
		Order("appointment_date DESC").
		Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointments)
}

func (h *PatientHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patient)
}

func (h *PatientHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var updateRequest struct {
		FullName    string `json:"full_name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Address     string `json:"address"`
		DateOfBirth string `json:"date_of_birth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if updateRequest.FullName != "" {
		patient.FullName = updateRequest.FullName
	}
	if updateRequest.Email != "" {
		patient.Email = updateRequest.Email
	}
	if updateRequest.Phone != "" {
		patient.Phone = updateRequest.Phone
	}
	if updateRequest.Address != "" {
		patient.Address = updateRequest.Address
	}
	if updateRequest.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", updateRequest.DateOfBirth)
		if err != nil {
			http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		d := models.DateOf(parsed)
		patient.DateOfBirth = &d
	}

	if err := h.db.Save(patient).Error; err != nil {
		http.Error(w, "Error updating profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patient)
}

func (h *PatientHandler) currentPatient(w http.ResponseWriter, r *http.Request) (*models.Patient, bool) {
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

// visibleDoctor loads a doctor by path id, treating blacklisted doctors as
// unavailable.
func (h *PatientHandler) visibleDoctor(w http.ResponseWriter, r *http.Request) (*models.Doctor, bool) {
	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return nil, false
	}

	var doctor models.Doctor
	if err := h.db.Preload("Department").First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return nil, false
	}

	var user models.User
	if err := h.db.First(&user, doctor.UserID).Error; err != nil || user.IsBlacklisted {
		http.Error(w, "This doctor is not available", http.StatusNotFound)
		return nil, false
	}
	return &doctor, true
}
