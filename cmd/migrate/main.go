package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"inventra.org/internal/auth"
	"inventra.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("INVENTRA_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations/sql", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "migrations/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or INVENTRA_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|seed-admin|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "seed-admin":
		err = seedAdmin(ctx, db)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// seedAdmin creates the bootstrap administrator. The password comes from the
// environment so no credential material lives in the repo or seed files.
func seedAdmin(ctx context.Context, db *sql.DB) error {
	username := os.Getenv("INVENTRA_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	email := os.Getenv("INVENTRA_ADMIN_EMAIL")
	if email == "" {
		email = username + "@localhost"
	}
	password := os.Getenv("INVENTRA_ADMIN_PASSWORD")
	if len(password) < 8 {
		return fmt.Errorf("INVENTRA_ADMIN_PASSWORD must be set (min 8 chars)")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	store := auth.NewPGStore(db)
	err = store.Users().Create(ctx, &auth.User{
		Username:     username,
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Status:       auth.UserStatusActive,
	})
	if err != nil {
		if errors.Is(err, auth.ErrConflict) {
			log.Printf("admin user %q already exists, skipping", username)
			return nil
		}
		return err
	}
	log.Printf("created admin user %q", username)
	return nil
}
