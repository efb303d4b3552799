package domain

// User roles, broadest to narrowest.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RolePharmacist = "pharmacist"
	RoleClerk      = "clerk"
)

type User struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         string `db:"role" json:"role"`
	Active       bool   `db:"active" json:"active"`
	CreatedAt    string `db:"created_at" json:"created_at"`
	UpdatedAt    string `db:"updated_at" json:"updated_at"`
}
