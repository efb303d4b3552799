package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/Thspli/backFarma/domain"
)

// LoadMedications ingests the CSV catalog into the medications table,
// ignoring rows already present (name + manufacturer).
func LoadMedications(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load medication catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read catalog header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start catalog transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medications (id, name, category, unit, manufacturer, composition) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("unable to prepare medication insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 4 {
			continue
		}
		name := strings.TrimSpace(record[0])
		category := strings.TrimSpace(record[1])
		unit := strings.TrimSpace(record[2])
		manufacturer := strings.TrimSpace(record[3])
		var composition *string
		if len(record) > 4 {
			if c := strings.TrimSpace(record[4]); c != "" {
				composition = &c
			}
		}

		if name == "" {
			continue
		}

		if _, err := stmt.Exec(uuid.NewString(), name, category, unit, manufacturer, composition); err != nil {
			log.Printf("unable to insert medication %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit catalog seed: %v", err)
	} else {
		log.Printf("seeded medication catalog with %d rows", rows)
	}
}

// EnsureAdmin creates a bootstrap admin account when the users table is
// empty so a fresh install can be logged into.
func EnsureAdmin(db *sqlx.DB, email, password string) {
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		log.Printf("unable to inspect users table: %v", err)
		return
	}
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("unable to hash bootstrap password: %v", err)
		return
	}
	_, err = db.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), "Administrator", strings.ToLower(email), string(hash), domain.RoleAdmin)
	if err != nil {
		log.Printf("unable to create bootstrap admin: %v", err)
		return
	}
	log.Printf("created bootstrap admin %s", email)
}
