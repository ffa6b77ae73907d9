// README: Postgres-backed concurrency tests for conditional ride/group updates (run with -race).
package ride

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

func TestPGConcurrentClaimSameRide(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	if err := store.CreateRide(ctx, newRide("r_claim", "u1", StatusRequested, time.Now())); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs <- store.WithTx(ctx, func(tx Store) error {
				g := &Group{
					ID:        types.ID(fmt.Sprintf("g_claim_%d", i)),
					RiderIDs:  []types.ID{types.ID(fmt.Sprintf("x%d", i)), "u1"},
					Status:    StatusMatched,
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				if err := tx.CreateGroup(ctx, g); err != nil {
					return err
				}
				ok, err := tx.TransitionRide(ctx, "r_claim", StatusRequested, StatusMatched, &g.ID)
				if err != nil {
					return err
				}
				if !ok {
					return ErrConflict
				}
				return nil
			})
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful claim, got %d", success)
	}

	groups, err := store.FindGroups(ctx, GroupFilter{})
	if err != nil {
		t.Fatalf("find groups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected losing transactions to roll back their groups, got %d groups", len(groups))
	}
}

func TestPGConcurrentAssignDriver(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now()
	if err := store.CreateGroup(ctx, &Group{ID: "g_assign", RiderIDs: []types.ID{"u1", "u2"}, Status: StatusMatched, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.AssignDriver(ctx, "g_assign", types.ID(fmt.Sprintf("d%d", i)), 40, 20)
			if err != nil {
				t.Errorf("assign: %v", err)
			}
			wins <- ok
		}(i)
	}
	wg.Wait()
	close(wins)

	n := 0
	for ok := range wins {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 driver to win, got %d", n)
	}
}

func setupTestStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := os.Getenv("CARPOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("CARPOOL_TEST_DSN not set; skipping DB-backed race tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE rides, ride_groups"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewPGStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	var out []string
	for _, p := range strings.Split(input, ";") {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
