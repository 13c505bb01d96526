package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard", h.Dashboard).Methods("GET")

	router.HandleFunc("/doctors", h.GetDoctors).Methods("GET")
	router.HandleFunc("/doctors", h.AddDoctor).Methods("POST")
	router.HandleFunc("/doctors/{id}", h.EditDoctor).Methods("PUT")
	router.HandleFunc("/doctors/{id}", h.DeleteDoctor).Methods("DELETE")
	router.HandleFunc("/doctors/{id}/blacklist", h.BlacklistDoctor).Methods("POST")

	router.HandleFunc("/patients", h.GetPatients).Methods("GET")
	router.HandleFunc("/patients/{id}", h.EditPatient).Methods("PUT")
	router.HandleFunc("/patients/{id}", h.DeletePatient).Methods("DELETE")
	router.HandleFunc("/patients/{id}/blacklist", h.BlacklistPatient).Methods("POST")

	router.HandleFunc("/appointments", h.GetAppointments).Methods("GET")
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var totalDoctors, totalPatients, totalAppointments int64
	h.db.Model(&models.Doctor{}).Count(&totalDoctors)
	h.db.Model(&models.Patient{}).Count(&totalPatients)
	h.db.Model(&models.Appointment{}).Count(&totalAppointments)

	var upcoming []models.Appointment
	if err := h.db.Preload("Patient").Preload("Doctor").
		Where("status = ? AND appointment_date >= ?", models.StatusBooked, models.DateOf(time.Now())).
		Order("appointment_date, appointment_time").Limit(10).
		Find(&upcoming).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_doctors":         totalDoctors,
		"total_patients":        totalPatients,
		"total_appointments":    totalAppointments,
		"upcoming_appointments": upcoming,
	})
}

// GetDoctors lists non-blacklisted doctors, optionally filtered by a name
// or specialization substring.
func (h *AdminHandler) GetDoctors(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	query := h.db.Model(&models.Doctor{}).
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("users.is_blacklisted = ?", false).
		Preload("User").Preload("Department")

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("doctors.full_name LIKE ? OR doctors.specialization LIKE ?", pattern, pattern)
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctors)
}

func (h *AdminHandler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	var addRequest struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		FullName       string `json:"full_name"`
		Specialization string `json:"specialization"`
		Experience     int    `json:"experience"`
		Qualifications string `json:"qualifications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&addRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if addRequest.Username == "" || addRequest.Password == "" || addRequest.FullName == "" || addRequest.Specialization == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	var existing models.User
	if result := h.db.Where("username = ?", addRequest.Username).First(&existing); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "Username already exists", http.StatusConflict)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(addRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	tx := h.db.Begin()

	user := models.User{
		Username:     addRequest.Username,
		PasswordHash: string(passwordHash),
		Role:         models.RoleDoctor,
	}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	department, err := getOrCreateDepartment(tx, addRequest.Specialization)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error resolving department", http.StatusInternalServerError)
		return
	}

	doctor := models.Doctor{
		UserID:         user.ID,
		FullName:       addRequest.FullName,
		Specialization: addRequest.Specialization,
		DepartmentID:   department.ID,
		Experience:     addRequest.Experience,
		Qualifications: addRequest.Qualifications,
	}
	if err := tx.Create(&doctor).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error creating doctor", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doctor)
}

func (h *AdminHandler) EditDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.findDoctor(w, r)
	if !ok {
		return
	}

	var updateRequest struct {
		FullName       string `json:"full_name"`
		Specialization string `json:"specialization"`
		Experience     *int   `json:"experience"`
		Qualifications string `json:"qualifications"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx := h.db.Begin()

	if updateRequest.FullName != "" {
		doctor.FullName = updateRequest.FullName
	}
	if updateRequest.Specialization != "" {
		doctor.Specialization = updateRequest.Specialization
	}
	if updateRequest.Experience != nil {
		doctor.Experience = *updateRequest.Experience
	}
	if updateRequest.Qualifications != "" {
		doctor.Qualifications = updateRequest.Qualifications
	}

	department, err := getOrCreateDepartment(tx, doctor.Specialization)
	if err != nil {
		tx.Rollback()
		http.Error(w, "Error resolving department", http.StatusInternalServerError)
		return
	}
	doctor.DepartmentID = department.ID

	if err := tx.Save(doctor).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating doctor", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doctor)
}

// DeleteDoctor removes the doctor, their availabilities, their
// appointments and any treatments hanging off those appointments, plus the
// login. The cascade is orchestrated explicitly rather than left to the
// schema.
func (h *AdminHandler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.findDoctor(w, r)
	if !ok {
		return
	}

	tx := h.db.Begin()

	if err := deleteAppointmentsWhere(tx, "doctor_id = ?", doctor.ID); err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting appointments", http.StatusInternalServerError)
		return
	}

	if err := tx.Where("doctor_id = ?", doctor.ID).
		Delete(&models.DoctorAvailability{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting availability", http.StatusInternalServerError)
		return
	}

	if err := tx.Delete(&models.Doctor{}, doctor.ID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting doctor", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(&models.User{}, doctor.UserID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting user", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Doctor deleted successfully",
	})
}

func (h *AdminHandler) BlacklistDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.findDoctor(w, r)
	if !ok {
		return
	}
	h.blacklistUser(w, doctor.UserID, "Doctor blacklisted successfully")
}

func (h *AdminHandler) GetPatients(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	query := h.db.Model(&models.Patient{}).
		Joins("JOIN users ON users.id = patients.user_id").
		Where("users.is_blacklisted = ?", false)

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("patients.full_name LIKE ? OR patients.email LIKE ? OR patients.phone LIKE ?",
			pattern, pattern, pattern)
	}

	var patients []models.Patient
	if err := query.Find(&patients).Error; err != nil {
		http.Error(w, "Error retrieving patients", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patients)
}

func (h *AdminHandler) EditPatient(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.findPatient(w, r)
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

	applyPatientUpdate(patient, updateRequest.FullName, updateRequest.Email,
		updateRequest.Phone, updateRequest.Address, updateRequest.DateOfBirth)

	if err := h.db.Save(patient).Error; err != nil {
		http.Error(w, "Error updating patient", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(patient)
}

func (h *AdminHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.findPatient(w, r)
	if !ok {
		return
	}

	tx := h.db.Begin()

	if err := deleteAppointmentsWhere(tx, "patient_id = ?", patient.ID); err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting appointments", http.StatusInternalServerError)
		return
	}

	if err := tx.Delete(&models.Patient{}, patient.ID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting patient", http.StatusInternalServerError)
		return
	}
	if err := tx.Delete(&models.User{}, patient.UserID).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting user", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error committing transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Patient deleted successfully",
	})
}

func (h *AdminHandler) BlacklistPatient(w http.ResponseWriter, r *http.Request) {
	patient, ok := h.findPatient(w, r)
	if !ok {
		return
	}
	h.blacklistUser(w, patient.UserID, "Patient blacklisted successfully")
}

func (h *AdminHandler) GetAppointments(w http.ResponseWriter, r *http.Request) {
	var appointments []models.Appointment
	if err := h.db.Preload("Patient").Preload("Doctor").
		Order("appointment_date DESC, appointment_time").
		Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appointments)
}

// blacklistUser is an idempotent soft-disable; nothing is deleted.
func (h *AdminHandler) blacklistUser(w http.ResponseWriter, userID uint, message string) {
	if err := h.db.Model(&models.User{}).Where("id = ?", userID).
		Update("is_blacklisted", true).Error; err != nil {
		http.Error(w, "Error blacklisting user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
	})
}

// getOrCreateDepartment resolves a specialization to its department,
// creating one on first use. Departments are never auto-deleted.
func getOrCreateDepartment(tx *gorm.DB, specialization string) (*models.Department, error) {
	var department models.Department
	err := tx.Where("name = ?", specialization).First(&department).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		department = models.Department{
			Name:        specialization,
			Description: fmt.Sprintf("%s department", specialization),
		}
		if err := tx.Create(&department).Error; err != nil {
			return nil, err
		}
		return &department, nil
	}
	if err != nil {
		return nil, err
	}
	return &department, nil
}

// deleteAppointmentsWhere removes appointments matching the condition
// together with their treatments and medicines.
func deleteAppointmentsWhere(tx *gorm.DB, condition string, args ...interface{}) error {
	var appointments []models.Appointment
	if err := tx.Where(condition, args...).Find(&appointments).Error; err != nil {
		return err
	}

	for _, appointment := range appointments {
		var treatment models.Treatment
		err := tx.Where("appointment_id = ?", appointment.ID).First(&treatment).Error
		if err == nil {
			if err := tx.Where("treatment_id = ?", treatment.ID).
				Delete(&models.Medicine{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Treatment{}, treatment.ID).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Delete(&models.Appointment{}, appointment.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyPatientUpdate(patient *models.Patient, fullName, email, phone, address, dob string) {
	if fullName != "" {
		patient.FullName = fullName
	}
	if email != "" {
		patient.Email = email
	}
	if phone != "" {
		patient.Phone = phone
	}
	if address != "" {
		patient.Address = address
	}
	if dob != "" {
		if parsed, err := time.Parse("2006-01-02", dob); err == nil {
			d := models.DateOf(parsed)
			patient.DateOfBirth = &d
		}
	}
}

func (h *AdminHandler) findDoctor(w http.ResponseWriter, r *http.Request) (*models.Doctor, bool) {
	vars := mux.Vars(r)
	doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return nil, false
	}

	var doctor models.Doctor
	if err := h.db.First(&doctor, doctorID).Error; err != nil {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return nil, false
	}
	return &doctor, true
}

func (h *AdminHandler) findPatient(w http.ResponseWriter, r *http.Request) (*models.Patient, bool) {
	vars := mux.Vars(r)
	patientID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return nil, false
	}

	var patient models.Patient
	if err := h.db.First(&patient, patientID).Error; err != nil {
		http.Error(w, "Patient not found", http.StatusNotFound)
		return nil, false
	}
	return &patient, true
}
