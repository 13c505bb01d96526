package availability

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/carelane/hms-server/cmd/utils"
	"github.com/carelane/hms-server/service/booking"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const windowDays = 7

type AvailabilityHandler struct {
	db *gorm.DB
}

func NewAvailabilityHandler(db *gorm.DB) *AvailabilityHandler {
	return &AvailabilityHandler{db: db}
}

// RegisterRoutes mounts the doctor-facing ledger routes. The router passed
// in is the role-guarded doctor subrouter.
func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/availability", h.SetAvailability).Methods("POST")
	router.HandleFunc("/availability", h.GetAvailability).Methods("GET")
}

type SlotView struct {
	Offered  bool  `json:"offered"`
	Booked   int64 `json:"booked"`
	Capacity int   `json:"capacity"`
}

type DayAvailability struct {
	Date      string   `json:"date"`
	Available bool     `json:"available"`
	Morning   SlotView `json:"morning"`
	Evening   SlotView `json:"evening"`
}

// SetAvailability replaces the doctor's next-7-day window. The request
// carries morning_0..morning_6 and evening_0..evening_6 flags, day 0 being
// today. Days with neither flag get no row, which reads as unavailable.
// Already-booked appointments are not touched.
func (h *AvailabilityHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	var flags map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start := models.DateOf(time.Now())
	end := start.AddDate(0, 0, windowDays-1)

	tx := h.db.Begin()
	if tx.Error != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := tx.Where("doctor_id = ? AND date >= ? AND date <= ?", doctor.ID, start, end).
		Delete(&models.DoctorAvailability{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	for i := 0; i < windowDays; i++ {
		morning := flags[fmt.Sprintf("morning_%d", i)]
		evening := flags[fmt.Sprintf("evening_%d", i)]
		if !morning && !evening {
			continue
		}
		record := models.DoctorAvailability{
			DoctorID:               doctor.ID,
			Date:                   start.AddDate(0, 0, i),
			MorningSlot:            morning,
			EveningSlot:            evening,
			MaxAppointmentsPerSlot: models.DefaultSlotCapacity,
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error updating availability", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error updating availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Availability updated successfully",
	})
}

// GetAvailability returns the doctor's own 7-day window with live booked
// counts.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.currentDoctor(w, r)
	if !ok {
		return
	}

	days, err := Window(h.db, doctor.ID, time.Now(), windowDays)
	if err != nil {
		http.Error(w, "Error retrieving availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"doctor_id": doctor.ID,
		"days":      days,
	})
}

func (h *AvailabilityHandler) currentDoctor(w http.ResponseWriter, r *http.Request) (*models.Doctor, bool) {
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

// Window projects a doctor's availability over consecutive dates, with
// booked counts recomputed from the appointments table. The counters kept
// on the stored row are refreshed here as a display cache; they are never
// read back for admission decisions.
func Window(db *gorm.DB, doctorID uint, from time.Time, days int) ([]DayAvailability, error) {
	start := models.DateOf(from)

	result := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		day := DayAvailability{Date: date.Format("2006-01-02")}

		var record models.DoctorAvailability
		err := db.Where("doctor_id = ? AND date = ?", doctorID, date).First(&record).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				result = append(result, day)
				continue
			}
			return nil, err
		}

		morningBooked, err := booking.BookedCount(db, doctorID, date, models.SlotMorning)
		if err != nil {
			return nil, err
		}
		eveningBooked, err := booking.BookedCount(db, doctorID, date, models.SlotEvening)
		if err != nil {
			return nil, err
		}

		day.Available = true
		day.Morning = SlotView{
			Offered:  record.MorningSlot,
			Booked:   morningBooked,
			Capacity: record.MaxAppointmentsPerSlot,
		}
		day.Evening = SlotView{
			Offered:  record.EveningSlot,
			Booked:   eveningBooked,
			Capacity: record.MaxAppointmentsPerSlot,
		}

		db.Model(&record).Updates(map[string]interface{}{
			"morning_booked": morningBooked,
			"evening_booked": eveningBooked,
		})

		result = append(result, day)
	}

	return result, nil
}
