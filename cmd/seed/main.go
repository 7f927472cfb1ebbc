// Package main seeds a Kopa database with the default taxonomy and an
// admin account.
//
// Server flags and environment variables select the data directory. The
// admin account comes from SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD.
//
// Usage:
//
//	SEED_ADMIN_EMAIL=admin@kopa.lv SEED_ADMIN_PASSWORD=... go run ./cmd/seed --data-path ~/.kopa
//
// Running it twice is safe: the taxonomy is skipped when categories exist and
// an existing admin email is left alone. The server rebuilds its search index
// on the next start when the index is empty.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kopa-app/kopa-server/internal/auth"
	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/logger"
	"github.com/kopa-app/kopa-server/internal/service"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/store/sqlite"
	"github.com/kopa-app/kopa-server/internal/taxonomy"
	"github.com/kopa-app/kopa-server/internal/validation"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logs := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		log.Fatalf("Failed to load auth key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	fmt.Printf("Opening database at: %s\n", cfg.Data.DatabasePath())

	s, err := sqlite.Open(cfg.Data.DatabasePath(), logs.Logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	v := validation.New()

	taxonomySvc := service.NewTaxonomyService(s, nil, nil, v, logs.Logger)
	if err := seedTaxonomy(ctx, s, taxonomySvc); err != nil {
		log.Fatalf("Failed to seed taxonomy: %v", err)
	}

	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Println("SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set, skipping admin account")
		return
	}

	authSvc := service.NewAuthService(s, tokens, v, logs.Logger)
	admin, err := authSvc.CreateUser(ctx, service.CreateUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: "Administrator",
		Role:        domain.RoleAdmin,
	})
	switch {
	case domainerrors.Is(err, domainerrors.ErrDuplicate):
		fmt.Printf("Admin %s already exists\n", email)
	case err != nil:
		log.Fatalf("Failed to create admin: %v", err)
	default:
		fmt.Printf("Created admin %s (%s)\n", admin.Email, admin.ID)
	}
}

func seedTaxonomy(ctx context.Context, s store.Store, svc *service.TaxonomyService) error {
	existing, err := s.FindTags(ctx, store.TagFilter{Level: domain.LevelCategory, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Println("Taxonomy already seeded, skipping")
		return nil
	}

	created := 0
	for _, category := range taxonomy.DefaultTaxonomy {
		n, err := createSeed(ctx, svc, category, domain.LevelCategory, "")
		if err != nil {
			return fmt.Errorf("seed %q: %w", category.Name, err)
		}
		created += n
	}

	fmt.Printf("Created %d tags\n", created)
	return nil
}

// createSeed creates seed and its descendants, returning how many tags it made.
func createSeed(ctx context.Context, svc *service.TaxonomyService, seed taxonomy.Seed, level domain.TagLevel, parentID string) (int, error) {
	tag, err := svc.CreateTag(ctx, service.CreateTagRequest{
		Name:        seed.Name,
		NameLv:      seed.NameLv,
		Level:       level,
		ParentID:    parentID,
		ColorKey:    seed.ColorKey,
		Icon:        seed.Icon,
		Description: seed.Description,
	})
	if err != nil {
		return 0, err
	}

	created := 1
	for _, child := range seed.Children {
		n, err := createSeed(ctx, svc, child, level+1, tag.ID)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", child.Name, err)
		}
		created += n
	}
	return created, nil
}
