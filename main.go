package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Thspli/backFarma/internal/api"
	"github.com/Thspli/backFarma/internal/config"
	"github.com/Thspli/backFarma/internal/database"
	"github.com/Thspli/backFarma/internal/migrations"
	"github.com/Thspli/backFarma/internal/seed"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	seed.LoadMedications(db, "assets/medications.csv")
	seed.EnsureAdmin(db, adminEmail(), adminPassword())

	handler := api.New(db, cfg.Secret, cfg.FrontendURL)

	log.Printf("pharmacy server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func adminEmail() string {
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		return email
	}
	return "admin@pharmacy.local"
}

func adminPassword() string {
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		return password
	}
	return "admin123"
}
