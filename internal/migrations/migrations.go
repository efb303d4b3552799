package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required for the pharmacy backend.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'clerk',
            active INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medications (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            category TEXT NOT NULL,
            unit TEXT NOT NULL,
            manufacturer TEXT NOT NULL,
            composition TEXT,
            available INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS lots (
            id TEXT PRIMARY KEY,
            medication_id TEXT NOT NULL,
            label TEXT NOT NULL,
            expiration TEXT NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(medication_id) REFERENCES medications(id)
        );`,
		`CREATE TABLE IF NOT EXISTS health_units (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS doctors (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            crm TEXT NOT NULL UNIQUE,
            health_unit_id TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(health_unit_id) REFERENCES health_units(id)
        );`,
		`CREATE TABLE IF NOT EXISTS sales (
            id TEXT PRIMARY KEY,
            operator_id TEXT,
            patient_name TEXT,
            patient_id TEXT,
            patient_phone TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(operator_id) REFERENCES users(id)
        );`,
		`CREATE TABLE IF NOT EXISTS sale_items (
            id TEXT PRIMARY KEY,
            sale_id TEXT NOT NULL,
            medication_id TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            FOREIGN KEY(sale_id) REFERENCES sales(id),
            FOREIGN KEY(medication_id) REFERENCES medications(id)
        );`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
            id TEXT PRIMARY KEY,
            sale_id TEXT,
            doctor_id TEXT,
            health_unit_id TEXT,
            patient_name TEXT NOT NULL DEFAULT '',
            observations TEXT NOT NULL DEFAULT '',
            file_url TEXT,
            file_name TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(sale_id) REFERENCES sales(id),
            FOREIGN KEY(doctor_id) REFERENCES doctors(id),
            FOREIGN KEY(health_unit_id) REFERENCES health_units(id)
        );`,
		`CREATE TABLE IF NOT EXISTS prescription_items (
            id TEXT PRIMARY KEY,
            prescription_id TEXT NOT NULL,
            description TEXT NOT NULL,
            FOREIGN KEY(prescription_id) REFERENCES prescriptions(id)
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_medications_name ON medications(name, manufacturer);`,
		`CREATE INDEX IF NOT EXISTS idx_lots_medication ON lots(medication_id, expiration);`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
}
