package models

import (
	"time"

	"gorm.io/gorm"
)

// The two bookable windows of a clinic day.
const (
	SlotMorning = "08:00-12:00"
	SlotEvening = "16:00-21:00"
)

const (
	StatusBooked    = "Booked"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

type Appointment struct {
	gorm.Model
	Reference       string    `gorm:"column:reference;size:64;uniqueIndex" json:"reference"`
	PatientID       uint      `gorm:"column:patient_id;not null;index" json:"patient_id"`
	DoctorID        uint      `gorm:"column:doctor_id;not null;index" json:"doctor_id"`
	AppointmentDate time.Time `gorm:"column:appointment_date;type:date;not null" json:"appointment_date"`
	AppointmentTime string    `gorm:"column:appointment_time;size:20;not null" json:"appointment_time"`
	Status          string    `gorm:"column:status;size:20;not null;default:Booked" json:"status"`

	Patient   *Patient   `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor    *Doctor    `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Treatment *Treatment `gorm:"foreignKey:AppointmentID" json:"treatment,omitempty"`
}

// ValidSlot reports whether s is one of the two bookable windows.
func ValidSlot(s string) bool {
	return s == SlotMorning || s == SlotEvening
}

// DateOf strips the clock from t. Appointment and availability dates are
// always stored this way so equality comparisons hold across drivers.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
