package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/savefood/backoffice_core/config"
	"github.com/savefood/backoffice_core/draft"
	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/storage"
)

// draft-cleanup purges expired drafts from a shared backend. Redis entries
// expire on their own; the mysql backend has no TTL, so stale rows pile up
// until this runs (cron it daily).
//
// Dry-run (default): show what would be deleted
//   go run ./cmd/draft-cleanup -backend=mysql
//
// Execute:
//   go run ./cmd/draft-cleanup -backend=mysql -dry-run=false
//
// Restrict to one form family:
//   go run ./cmd/draft-cleanup -backend=mysql -prefix=registration_ -dry-run=false
func main() {
	backend := flag.String("backend", "mysql", "Backend to clean: mysql or redis")
	prefix := flag.String("prefix", "", "Optional: only keys with this prefix")
	maxAgeHours := flag.Int("max-age-hours", 24, "Drafts older than this are purged")
	dryRun := flag.Bool("dry-run", true, "List only (no deletes)")
	flag.Parse()

	var store storage.Store
	switch strings.ToLower(strings.TrimSpace(*backend)) {
	case "redis":
		config.ConnectRedisWithRetry()
		store = storage.NewRedisStore(config.GetRedisDB())
	case "mysql":
		config.ConnectDatabaseWithRetry()
		db := config.GetDB()
		if db == nil {
			fmt.Fprintln(os.Stderr, "database not initialized")
			os.Exit(1)
		}
		if err := models.MigrateDraftTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		store = storage.NewGormStore(db)
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(1)
	}

	svc := draft.NewService(store, draft.Config{MaxAge: time.Duration(*maxAgeHours) * time.Hour})
	ctx := context.Background()

	keys, err := svc.Keys(ctx, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list keys: %v\n", err)
		os.Exit(1)
	}

	var expired, kept int
	for _, key := range keys {
		savedAt, ok := svc.SavedAt(ctx, key)
		stale := !ok || time.Since(savedAt) >= svc.MaxAge()
		if !stale {
			kept++
			continue
		}
		expired++
		if *dryRun {
			fmt.Printf("would delete %s (saved %s)\n", key, savedAt.Format(time.RFC3339))
			continue
		}
		svc.ClearDraft(ctx, key)
		fmt.Printf("deleted %s\n", key)
	}
	fmt.Printf("done: %d expired, %d kept (dry-run=%v)\n", expired, kept, *dryRun)
}
