package main

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"greengen/internal/config"
	"greengen/internal/database"
	"greengen/internal/model"
	"greengen/internal/repository"
	"greengen/internal/service"
)

// setup applies pending schema migrations and provisions the platform
// account. Safe to run any number of times.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Setup failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	return provisionAdmin(ctx, cfg, service.NewIdentityService(repository.NewUserRepository(db)))
}

// provisionAdmin creates the platform account on first run. The
// generated password is discarded; the account is not meant to log in.
func provisionAdmin(ctx context.Context, cfg *config.Config, identity *service.IdentityService) error {
	if _, err := identity.GetByPseudo(ctx, cfg.AdminPseudo); err == nil {
		log.Printf("[Setup] Admin account %q already provisioned", cfg.AdminPseudo)
		return nil
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return err
	}

	_, err := identity.Register(ctx, model.RegisterRequest{
		Pseudo:   cfg.AdminPseudo,
		Email:    cfg.AdminEmail,
		Password: uuid.NewString(),
	})
	if errors.Is(err, model.ErrPseudoTaken) || errors.Is(err, model.ErrEmailHashTaken) {
		// A concurrent setup run won the race.
		log.Printf("[Setup] Admin account %q already provisioned", cfg.AdminPseudo)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("[Setup] Admin account %q created", cfg.AdminPseudo)
	return nil
}
