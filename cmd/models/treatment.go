package models

import "gorm.io/gorm"

// Treatment is the clinical outcome recorded when a doctor completes an
// appointment. One per appointment; completing again overwrites it.
type Treatment struct {
	gorm.Model
	AppointmentID uint   `gorm:"column:appointment_id;not null;uniqueIndex" json:"appointment_id"`
	VisitType     string `gorm:"column:visit_type;size:50" json:"visit_type"`
	TestsDone     string `gorm:"column:tests_done;type:text" json:"tests_done"`
	Diagnosis     string `gorm:"column:diagnosis;type:text" json:"diagnosis"`
	Prescription  string `gorm:"column:prescription;type:text" json:"prescription"`
	Notes         string `gorm:"column:notes;type:text" json:"notes"`

	Medicines []Medicine `gorm:"foreignKey:TreatmentID" json:"medicines"`
}

type Medicine struct {
	gorm.Model
	TreatmentID  uint   `gorm:"column:treatment_id;not null;index" json:"treatment_id"`
	MedicineName string `gorm:"column:medicine_name;size:100;not null" json:"medicine_name"`
	Dosage       string `gorm:"column:dosage;size:50" json:"dosage"`
}
