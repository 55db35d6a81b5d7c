package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"idgate.org/internal/auth"
	"idgate.org/internal/httpapi"
	"idgate.org/internal/obs"
	"idgate.org/internal/store/memory"
	"idgate.org/internal/store/pg"
)

var version = "1.0.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("IDGATE_COMMIT"))

	secret := os.Getenv("IDGATE_AUTH_SECRET")
	if secret == "" {
		log.Fatal("IDGATE_AUTH_SECRET is required")
	}

	tokenOpts := []auth.TokenOption{}
	if raw := os.Getenv("IDGATE_ACCESS_TTL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			log.Fatalf("invalid IDGATE_ACCESS_TTL_MINUTES %q", raw)
		}
		tokenOpts = append(tokenOpts, auth.WithAccessTTL(time.Duration(minutes)*time.Minute))
	}
	tokens, err := auth.NewTokenService(secret, tokenOpts...)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	var (
		db    *sql.DB
		store auth.DirectoryStore
	)
	if dsn := os.Getenv("IDGATE_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = pg.New(db)
	} else {
		log.Print("IDGATE_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	svc, err := auth.NewService(store, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureBuiltins(bootCtx); err != nil {
		bootCancel()
		log.Fatalf("ensure builtin permissions: %v", err)
	}
	bootCancel()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	addr := os.Getenv("IDGATE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting idgate-api %s on %s", version, srv.Addr)

	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	go purgeLoop(purgeCtx, svc)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	purgeCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// purgeLoop periodically drops revocation ledger entries whose tokens have
// expired anyway. Purging is storage hygiene only; token validity never
// depends on it.
func purgeLoop(ctx context.Context, svc *auth.Service) {
	interval := time.Hour
	if raw := os.Getenv("IDGATE_PURGE_INTERVAL_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			interval = time.Duration(minutes) * time.Minute
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeRevoked(ctx)
			if err != nil {
				log.Printf("purge revoked tokens: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired revocation entries", n)
			}
		}
	}
}
