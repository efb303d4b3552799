package domain

type Sale struct {
	ID           string  `db:"id" json:"id"`
	OperatorID   *string `db:"operator_id" json:"operator_id,omitempty"`
	PatientName  *string `db:"patient_name" json:"patient_name,omitempty"`
	PatientID    *string `db:"patient_id" json:"patient_id,omitempty"`
	PatientPhone *string `db:"patient_phone" json:"patient_phone,omitempty"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

type SaleItem struct {
	ID           string `db:"id" json:"id"`
	SaleID       string `db:"sale_id" json:"sale_id"`
	MedicationID string `db:"medication_id" json:"medication_id"`
	Quantity     int64  `db:"quantity" json:"quantity"`
}
