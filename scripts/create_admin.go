// Bootstrap an administrator account.
//
// The public register endpoint only ever creates students, so the first
// admin has to come from outside the API. Re-running with an email that
// already exists is a no-op, so the script can sit in provisioning jobs.
// Manage further accounts through /api/admin/users.
//
// Usage: go run scripts/create_admin.go -email admin@example.com -password 'secret123' -name "Site Admin"

package main

import (
	"errors"
	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/repository"
	"exam_platform_backend/internal/service"
	"exam_platform_backend/internal/util"
	"exam_platform_backend/pkg/database"
	"exam_platform_backend/pkg/logger"
	"flag"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

func main() {
	email := flag.String("email", "", "email address for the new admin")
	password := flag.String("password", "", "password, at least 8 characters")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := repository.NewUserRepository(db)
	auth := service.NewAuthService(users, nil, &cfg)

	admin, err := auth.Register(*email, *password, *name, model.Admin)
	if errors.Is(err, util.ErrEmailRegistered) {
		// Safe to re-run in provisioning scripts.
		log.Printf("Admin %s already exists, nothing to do", *email)
		return
	}
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.Printf("Created admin %s (id=%d)", admin.Email, admin.ID)
}
