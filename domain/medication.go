package domain

// Medication is a catalog entry. Stock is carried by its lots, never here.
type Medication struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Category     string  `db:"category" json:"category"`
	Unit         string  `db:"unit" json:"unit"`
	Manufacturer string  `db:"manufacturer" json:"manufacturer"`
	Composition  *string `db:"composition" json:"composition,omitempty"`
	Available    bool    `db:"available" json:"available"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

// Lot is one received batch of a medication. Quantity never goes below
// zero; emptied lots are kept for the audit trail and simply stop being
// eligible for allocation.
type Lot struct {
	ID           string `db:"id" json:"id"`
	MedicationID string `db:"medication_id" json:"medication_id"`
	Label        string `db:"label" json:"label"`
	Expiration   string `db:"expiration" json:"expiration"`
	Quantity     int64  `db:"quantity" json:"quantity"`
	CreatedAt    string `db:"created_at" json:"created_at"`
}
