// seed inserts development accounts for local testing: go run ./cmd/seed (after ./cmd/migrate).
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/config"
	"vehicle-marketplace/backend/internal/db"
	"vehicle-marketplace/backend/internal/db/store"
	"vehicle-marketplace/backend/internal/logging"
	"vehicle-marketplace/backend/internal/security"
	userdomain "vehicle-marketplace/backend/internal/user/domain"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "Password123!"
	devUserID    = "dev-user-001"
	dealerID     = "dev-user-002"
	dealerEmail  = "dealer@example.com"
)

// Role ids match migration 000004_seed_roles.
var (
	roleBuyer  = userdomain.Role{ID: "role-buyer", Name: "buyer"}
	roleDealer = userdomain.Role{ID: "role-dealer", Name: "dealer"}
	roleAdmin  = userdomain.Role{ID: "role-admin", Name: "admin"}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()
	st := store.NewPostgres(conn)

	existing, err := st.Users().GetByEmail(ctx, devUserEmail)
	if err != nil {
		logger.Fatal("seed check", zap.Error(err))
	}
	if existing != nil {
		logger.Info("seed already applied, skipping", zap.String("email", devUserEmail))
		return
	}

	passwordHash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}

	now := time.Now().UTC()
	users := []*userdomain.User{
		{
			ID:            devUserID,
			Email:         devUserEmail,
			PasswordHash:  passwordHash,
			FirstName:     "Dev",
			LastName:      "User",
			Status:        userdomain.UserStatusActive,
			EmailVerified: true,
			Roles:         []userdomain.Role{roleBuyer, roleAdmin},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:           dealerID,
			Email:        dealerEmail,
			PasswordHash: passwordHash,
			FirstName:    "Dana",
			LastName:     "Dealer",
			Phone:        "+15555550100",
			Status:       userdomain.UserStatusActive,
			Roles:        []userdomain.Role{roleDealer},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}

	err = st.WithinTx(ctx, func(tx store.Store) error {
		for _, u := range users {
			if err := tx.Users().Create(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal("create dev users", zap.Error(err))
	}

	logger.Info("seed complete",
		zap.String("dev_user", devUserEmail),
		zap.String("dealer", dealerEmail),
		zap.String("password", devPassword))
}
