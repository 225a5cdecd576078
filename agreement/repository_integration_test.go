package agreement

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestListByCreator_Integration connects to a real PostgreSQL via
// DATABASE_URL and verifies dashboard listings come back newest first and
// scoped to the creator.
func TestListByCreator_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "agreements") || !tableExists(ctx, t, pool, "profiles") {
		t.Skip("database schema missing; apply migrations/ first")
	}

	var creatorID, otherID string
	if err := pool.QueryRow(ctx, `INSERT INTO profiles (full_name, email) VALUES ($1, $2) RETURNING id`,
		"Creator", fmt.Sprintf("creator+%d@example.com", time.Now().UnixNano())).Scan(&creatorID); err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO profiles (full_name, email) VALUES ($1, $2) RETURNING id`,
		"Other", fmt.Sprintf("other+%d@example.com", time.Now().UnixNano())).Scan(&otherID); err != nil {
		t.Fatalf("seed other creator: %v", err)
	}

	store := NewStore(pool)

	// Three agreements with distinct timestamps, created oldest-intent
	// first, plus one foreign row that must never appear.
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		rec, err := store.Create(ctx, CreateParams{
			CreatorID:   creatorID,
			Title:       fmt.Sprintf("Agreement %d", i),
			Content:     "listing content",
			ContentHash: fmt.Sprintf("%064d", i),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		// Space the rows an hour apart so ordering is unambiguous.
		if _, err := pool.Exec(ctx, `UPDATE agreements SET created_at = now() - make_interval(hours => $2) WHERE id = $1`,
			rec.ID, 2-i); err != nil {
			t.Fatalf("backdate %d: %v", i, err)
		}
		ids = append(ids, rec.ID)
	}
	if _, err := store.Create(ctx, CreateParams{
		CreatorID:   otherID,
		Title:       "Foreign",
		Content:     "listing content",
		ContentHash: fmt.Sprintf("%064d", 9),
	}); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM agreements WHERE creator_id IN ($1, $2)`, creatorID, otherID)
		pool.Exec(ctx2, `DELETE FROM profiles WHERE id IN ($1, $2)`, creatorID, otherID)
	})

	items, err := store.ListByCreator(ctx, creatorID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 agreements, got %d", len(items))
	}
	// ids[2] was backdated least, so it lists first.
	for i, item := range items {
		if want := ids[len(ids)-1-i]; item.ID != want {
			t.Fatalf("position %d: id %s, want %s", i, item.ID, want)
		}
		if item.CreatorID != creatorID {
			t.Fatalf("position %d: foreign creator %s", i, item.CreatorID)
		}
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("created_at not descending at position %d", i)
		}
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
