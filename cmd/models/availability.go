package models

import (
	"time"

	"gorm.io/gorm"
)

const DefaultSlotCapacity = 10

// DoctorAvailability declares which windows a doctor offers on a date.
// MorningBooked/EveningBooked are display caches refreshed when the day is
// shown; admission decisions always recount from the appointments table.
type DoctorAvailability struct {
	gorm.Model
	DoctorID               uint      `gorm:"column:doctor_id;not null;index:idx_doctor_date" json:"doctor_id"`
	Date                   time.Time `gorm:"column:date;type:date;not null;index:idx_doctor_date" json:"date"`
	MorningSlot            bool      `gorm:"column:morning_slot;default:false" json:"morning_slot"`
	EveningSlot            bool      `gorm:"column:evening_slot;default:false" json:"evening_slot"`
	MorningBooked          int       `gorm:"column:morning_booked;default:0" json:"morning_booked"`
	EveningBooked          int       `gorm:"column:evening_booked;default:0" json:"evening_booked"`
	MaxAppointmentsPerSlot int       `gorm:"column:max_appointments_per_slot;default:10" json:"max_appointments_per_slot"`

	Doctor *Doctor `gorm:"foreignKey:DoctorID" json:"-"`
}

func (DoctorAvailability) TableName() string {
	return "doctor_availabilities"
}
