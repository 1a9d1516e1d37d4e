package model

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusArchived PatientStatus = "archived"
)

type Patient struct {
	Base
	Name           string        `db:"name" json:"name"`
	Email          string        `db:"email" json:"email"`
	Phone          string        `db:"phone" json:"phone,omitempty"`
	HospitalNumber string        `db:"hospital_number" json:"hospital_number"`
	Status         PatientStatus `db:"status" json:"status"`
}
