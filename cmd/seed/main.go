// Seed creates the initial Active admin account from SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD.
// Idempotent: an existing account with that email is left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/account/repository"
	"github.com/CCodeCommunity/CardGameBackend/internal/config"
	"github.com/CCodeCommunity/CardGameBackend/internal/db"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/security"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: "text"})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	email := domain.NormalizeEmail(cfg.SeedAdminEmail)
	if err := domain.ValidateRegistration("Admin", email, cfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD: %w", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	ctx := context.Background()
	accounts := repository.NewPostgresRepository(conn)
	existing, err := accounts.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		log.Info(ctx, "admin already exists; skipping", "email", email, "account_id", existing.ID)
		return nil
	}

	hasher := security.NewHasher(security.Argon2Params{
		Memory:      cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	hash, err := hasher.Hash([]byte(cfg.SeedAdminPassword))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	admin := &domain.Account{
		ID:           uuid.New().String(),
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		State:        domain.StateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := accounts.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			log.Info(ctx, "admin created concurrently; skipping", "email", email)
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	log.Info(ctx, "admin created", "email", email, "account_id", admin.ID)
	return nil
}
