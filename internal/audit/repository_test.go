package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/database"
	_ "github.com/nerrad567/gpio-remote-core/migrations" // registers embedded schema
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := openTestRepo(t)

	rec := &CommandRecord{
		Item:      "garden-light",
		Endpoint:  "10.0.0.12:8080",
		Command:   "dim_40",
		EventKind: "DIM",
		Outcome:   OutcomeSent,
		Source:    "mqtt",
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(rec.ID) != len("cmd-")+8 {
		t.Errorf("ID = %q, want cmd- prefix plus 8 chars", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_InvalidOutcome(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Create(context.Background(), &CommandRecord{Item: "x", Command: "on", Outcome: "lost", Source: "api"})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("Create() error = %v, want ErrInvalidOutcome", err)
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	seed := []CommandRecord{
		{Item: "garden-light", Command: "on", EventKind: "SET", Outcome: OutcomeSent, Source: "mqtt", CreatedAt: base},
		{Item: "garden-light", Command: "spin_5", Outcome: OutcomeRejected, Error: "unrecognized", Source: "mqtt", CreatedAt: base.Add(time.Second)},
		{Item: "porch", Command: "off", EventKind: "SET", Outcome: OutcomeDropped, Source: "api", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 3, "off"},
		{"by item", Filter{Item: "garden-light"}, 2, "spin_5"},
		{"by outcome", Filter{Outcome: OutcomeSent}, 1, "on"},
		{"item and outcome", Filter{Item: "porch", Outcome: OutcomeDropped}, 1, "off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Records) != tt.wantTotal {
				t.Fatalf("Total/len = %d/%d, want %d", res.Total, len(res.Records), tt.wantTotal)
			}
			if res.Records[0].Command != tt.wantFirst {
				t.Errorf("first command = %q, want %q", res.Records[0].Command, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Item: "garden-light", Outcome: OutcomeRejected})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := res.Records[0]; got.Error != "unrecognized" || got.EventKind != "" || got.Endpoint != "" {
		t.Errorf("nullable fields round-trip = %+v", got)
	}
}

func TestList_Pagination(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &CommandRecord{Item: "lamp", Command: "toggle", Outcome: OutcomeSent, Source: "mqtt"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || len(res.Records) != 1 {
		t.Errorf("Total/len = %d/%d, want 5/1", res.Total, len(res.Records))
	}

	res, err = repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", res.Limit, res.Offset, maxLimit)
	}
}

func TestList_Empty(t *testing.T) {
	repo := openTestRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("Records = %v, want empty non-nil slice", res.Records)
	}
	if res.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", res.Limit, defaultLimit)
	}
}
