package domain

// Prescription statuses. Prescriptions created as part of a sale are
// recorded as already delivered; standalone ones start pending.
const (
	PrescriptionPending   = "pending"
	PrescriptionDelivered = "delivered"
)

type Prescription struct {
	ID           string  `db:"id" json:"id"`
	SaleID       *string `db:"sale_id" json:"sale_id,omitempty"`
	DoctorID     *string `db:"doctor_id" json:"doctor_id,omitempty"`
	HealthUnitID *string `db:"health_unit_id" json:"health_unit_id,omitempty"`
	PatientName  string  `db:"patient_name" json:"patient_name"`
	Observations string  `db:"observations" json:"observations"`
	FileURL      *string `db:"file_url" json:"file_url,omitempty"`
	FileName     *string `db:"file_name" json:"file_name,omitempty"`
	Status       string  `db:"status" json:"status"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
	UpdatedAt    string  `db:"updated_at" json:"updated_at"`
}

// PrescriptionItem is one free-text medication line on a prescription.
type PrescriptionItem struct {
	ID             string `db:"id" json:"id"`
	PrescriptionID string `db:"prescription_id" json:"-"`
	Description    string `db:"description" json:"description"`
}
