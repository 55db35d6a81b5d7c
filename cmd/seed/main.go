// Command seed bootstraps the first administrator so that the gated
// management endpoints are reachable on a fresh database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"idgate.org/internal/auth"
	"idgate.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("IDGATE_PG_DSN"), "PostgreSQL DSN")
		username = flag.String("username", envOr("IDGATE_ADMIN_USERNAME", "admin"), "Admin username")
		email    = flag.String("email", envOr("IDGATE_ADMIN_EMAIL", "admin@localhost"), "Admin email")
		password = flag.String("password", os.Getenv("IDGATE_ADMIN_PASSWORD"), "Admin password")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or IDGATE_PG_DSN")
	}
	if *password == "" {
		log.Fatal("missing admin password: provide via -password or IDGATE_ADMIN_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := pg.New(db)
	tokens, err := auth.NewTokenService("seed-only")
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	if err := svc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("ensure builtin permissions: %v", err)
	}

	role, err := svc.CreateRole(ctx, "admin", false)
	if errors.Is(err, auth.ErrConflict) {
		role, err = store.Roles(ctx).FindByName(ctx, "admin")
	}
	if err != nil {
		log.Fatalf("admin role: %v", err)
	}

	user, err := svc.Register(ctx, auth.RegisterInput{
		Username: *username,
		Email:    *email,
		Password: *password,
	})
	if errors.Is(err, auth.ErrConflict) {
		user, err = store.Users(ctx).FindByUsername(ctx, *username)
	}
	if err != nil {
		log.Fatalf("admin user: %v", err)
	}

	if err := svc.AssignUsersToRole(ctx, role.ID, []string{user.ID}); err != nil {
		log.Fatalf("assign admin role: %v", err)
	}

	permIDs := make([]string, 0, len(auth.BuiltinPermissions))
	for _, builtin := range auth.BuiltinPermissions {
		perm, err := store.Permissions(ctx).FindByName(ctx, builtin.Name)
		if err != nil {
			log.Fatalf("lookup permission %s: %v", builtin.Name, err)
		}
		permIDs = append(permIDs, perm.ID)
	}
	if err := svc.GrantPermissionsToRole(ctx, role.ID, permIDs); err != nil {
		log.Fatalf("grant permissions: %v", err)
	}

	log.Printf("seeded admin %s (%s) with role %s", user.Username, user.ID, role.Name)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
