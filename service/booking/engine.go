package booking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carelane/hms-server/cmd/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDoctorUnavailable   = errors.New("doctor is not available for this slot")
	ErrSlotFull            = errors.New("slot is fully booked")
	ErrPatientDoubleBooked = errors.New("patient already has an appointment at this time")
	ErrForbidden           = errors.New("caller may not modify this appointment")
	ErrInvalidState        = errors.New("appointment is not in a bookable state")
)

// Actor identifies who is asking for a state transition. PatientID and
// DoctorID are profile ids, zero when the role has no such profile.
type Actor struct {
	Role      string
	PatientID uint
	DoctorID  uint
}

type MedicineInput struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

type TreatmentInput struct {
	VisitType    string          `json:"visit_type"`
	TestsDone    string          `json:"tests_done"`
	Diagnosis    string          `json:"diagnosis"`
	Prescription string          `json:"prescription"`
	Notes        string          `json:"notes"`
	Medicines    []MedicineInput `json:"medicines"`
}

// slotLocks serializes the capacity-check-then-insert per
// (doctor, date, slot) key. The server is a single process with no other
// writers, so an in-process lock around the transaction is sufficient to
// make the admission decision atomic.
var slotLocks sync.Map

func lockSlot(doctorID uint, date time.Time, slot string) *sync.Mutex {
	key := fmt.Sprintf("%d|%s|%s", doctorID, date.Format("2006-01-02"), slot)
	mu, _ := slotLocks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// BookedCount recounts Booked appointments for one (doctor, date, slot)
// directly from the appointments table. This is the authoritative figure;
// the counters stored on the availability row are display caches only.
func BookedCount(db *gorm.DB, doctorID uint, date time.Time, slot string) (int64, error) {
	var count int64
	err := db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND appointment_time = ? AND status = ?",
			doctorID, models.DateOf(date), slot, models.StatusBooked).
		Count(&count).Error
	return count, err
}

// Book admits an appointment request against the doctor's declared
// availability. Exactly capacity requests can ever succeed for one slot;
// concurrent requests racing for the last seat lose with ErrSlotFull.
func Book(db *gorm.DB, patientID, doctorID uint, date time.Time, slot string) (*models.Appointment, error) {
	date = models.DateOf(date)

	mu := lockSlot(doctorID, date, slot)
	mu.Lock()
	defer mu.Unlock()

	appt, err := tryBook(db, patientID, doctorID, date, slot)
	if err == nil || isBookingError(err) {
		return appt, err
	}

	// One retry for transient storage conflicts; a second failure is
	// surfaced as a full slot.
	appt, err = tryBook(db, patientID, doctorID, date, slot)
	if err != nil && !isBookingError(err) {
		return nil, ErrSlotFull
	}
	return appt, err
}

func tryBook(db *gorm.DB, patientID, doctorID uint, date time.Time, slot string) (*models.Appointment, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var availability models.DoctorAvailability
	if err := tx.Where("doctor_id = ? AND date = ?", doctorID, date).
		First(&availability).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorUnavailable
		}
		return nil, err
	}

	if (slot == models.SlotMorning && !availability.MorningSlot) ||
		(slot == models.SlotEvening && !availability.EveningSlot) {
		tx.Rollback()
		return nil, ErrDoctorUnavailable
	}

	var booked int64
	if err := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND appointment_time = ? AND status = ?",
			doctorID, date, slot, models.StatusBooked).
		Count(&booked).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if booked >= int64(availability.MaxAppointmentsPerSlot) {
		tx.Rollback()
		return nil, ErrSlotFull
	}

	// Same patient, same window, any doctor.
	var conflicts int64
	if err := tx.Model(&models.Appointment{}).
		Where("patient_id = ? AND appointment_date = ? AND appointment_time = ? AND status = ?",
			patientID, date, slot, models.StatusBooked).
		Count(&conflicts).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if conflicts > 0 {
		tx.Rollback()
		return nil, ErrPatientDoubleBooked
	}

	appointment := models.Appointment{
		Reference:       uuid.NewString(),
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: date,
		AppointmentTime: slot,
		Status:          models.StatusBooked,
	}

	if err := tx.Create(&appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &appointment, nil
}

// Cancel moves a Booked appointment to Cancelled. Allowed for the owning
// patient, the assigned doctor, or an admin. No counter bookkeeping
// happens here; booked counts are recomputed live wherever they are read.
func Cancel(db *gorm.DB, actor Actor, appointmentID uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := db.First(&appointment, appointmentID).Error; err != nil {
		return nil, err
	}

	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RolePatient && appointment.PatientID == actor.PatientID:
	case actor.Role == models.RoleDoctor && appointment.DoctorID == actor.DoctorID:
	default:
		return nil, ErrForbidden
	}

	if appointment.Status != models.StatusBooked {
		return nil, ErrInvalidState
	}

	if err := db.Model(&appointment).
		Update("status", models.StatusCancelled).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Complete moves a Booked appointment to Completed and records the
// treatment outcome. Re-completing an already Completed appointment is
// allowed and replaces the recorded outcome and medicine list wholesale;
// a Cancelled appointment cannot be completed.
func Complete(db *gorm.DB, doctorID uint, appointmentID uint, input TreatmentInput) (*models.Appointment, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var appointment models.Appointment
	if err := tx.First(&appointment, appointmentID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if appointment.DoctorID != doctorID {
		tx.Rollback()
		return nil, ErrForbidden
	}
	if appointment.Status == models.StatusCancelled {
		tx.Rollback()
		return nil, ErrInvalidState
	}

	if err := tx.Model(&appointment).
		Update("status", models.StatusCompleted).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := recordTreatment(tx, appointment.ID, input); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	appointment.Status = models.StatusCompleted
	return &appointment, nil
}

// recordTreatment upserts the treatment row for an appointment and swaps
// out its medicine list. Entries with an empty name are dropped.
func recordTreatment(tx *gorm.DB, appointmentID uint, input TreatmentInput) error {
	var treatment models.Treatment
	err := tx.Where("appointment_id = ?", appointmentID).First(&treatment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		treatment = models.Treatment{AppointmentID: appointmentID}
		if err := tx.Create(&treatment).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"visit_type":   input.VisitType,
		"tests_done":   input.TestsDone,
		"diagnosis":    input.Diagnosis,
		"prescription": input.Prescription,
		"notes":        input.Notes,
	}
	if err := tx.Model(&treatment).Updates(updates).Error; err != nil {
		return err
	}

	if err := tx.Where("treatment_id = ?", treatment.ID).
		Delete(&models.Medicine{}).Error; err != nil {
		return err
	}
	for _, m := range input.Medicines {
		if m.Name == "" {
			continue
		}
		medicine := models.Medicine{
			TreatmentID:  treatment.ID,
			MedicineName: m.Name,
			Dosage:       m.Dosage,
		}
		if err := tx.Create(&medicine).Error; err != nil {
			return err
		}
	}
	return nil
}

func isBookingError(err error) bool {
	return errors.Is(err, ErrDoctorUnavailable) ||
		errors.Is(err, ErrSlotFull) ||
		errors.Is(err, ErrPatientDoubleBooked) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}
