package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

type User struct {
	gorm.Model
	Username              string    `gorm:"column:username;size:80;not null;uniqueIndex" json:"username"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role                  string    `gorm:"column:role;size:20;not null" json:"role"`
	IsBlacklisted         bool      `gorm:"column:is_blacklisted;default:false" json:"is_blacklisted"`
	RefreshToken          string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

	Doctor  *Doctor  `gorm:"foreignKey:UserID" json:"doctor,omitempty"`
	Patient *Patient `gorm:"foreignKey:UserID" json:"patient,omitempty"`
}

type Doctor struct {
	gorm.Model
	UserID         uint   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	FullName       string `gorm:"column:full_name;size:100;not null" json:"full_name"`
	Specialization string `gorm:"column:specialization;size:100;not null" json:"specialization"`
	DepartmentID   uint   `gorm:"column:department_id" json:"department_id"`
	Experience     int    `gorm:"column:experience" json:"experience"`
	Qualifications string `gorm:"column:qualifications;size:200" json:"qualifications"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

type Patient struct {
	gorm.Model
	UserID      uint       `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	FullName    string     `gorm:"column:full_name;size:100;not null" json:"full_name"`
	Email       string     `gorm:"column:email;size:120" json:"email"`
	Phone       string     `gorm:"column:phone;size:20" json:"phone"`
	Address     string     `gorm:"column:address;type:text" json:"address"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth;type:date" json:"date_of_birth,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

type Department struct {
	gorm.Model
	Name        string `gorm:"column:name;size:100;not null;uniqueIndex" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`

	Doctors []Doctor `gorm:"foreignKey:DepartmentID" json:"doctors,omitempty"`
}

func (Doctor) TableName() string {
	return "doctors"
}

func (Patient) TableName() string {
	return "patients"
}
