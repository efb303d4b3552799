package domain

type Doctor struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	CRM          string  `db:"crm" json:"crm"`
	HealthUnitID *string `db:"health_unit_id" json:"health_unit_id,omitempty"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}

// HealthUnit is a public health post (UBS) that doctors and
// prescriptions may reference.
type HealthUnit struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Address   string `db:"address" json:"address"`
	CreatedAt string `db:"created_at" json:"created_at"`
}
