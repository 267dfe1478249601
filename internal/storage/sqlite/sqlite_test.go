package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

func newTestStore(t *testing.T, keep int) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"), keep)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Expenses: []models.Expense{
			{
				ID:           "e1",
				Description:  "Groceries",
				Category:     "Food",
				Date:         time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
				PayerName:    "Alice",
				Amount:       decimal.RequireFromString("30.10"),
				Participants: []string{"Alice", "Bob", "Carol"},
			},
			{
				ID:        "e2",
				PayerName: "Bob",
				AmountErr: errors.New(`non-numeric amount: "twelve"`),
				RawAmount: "twelve",
			},
		},
		Settlements: []models.Settlement{
			{
				ID:           "s1",
				PayerName:    "Bob",
				ReceiverName: "Alice",
				Amount:       decimal.NewFromInt(15),
				Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				Note:         "venmo",
			},
		},
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t, 2)
	ctx := context.Background()

	t.Run("LatestSnapshot on empty store", func(t *testing.T) {
		_, err := store.LatestSnapshot(ctx)
		if !errors.Is(err, storage.ErrNoSnapshot) {
			t.Fatalf("Expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("SaveSnapshot generates ID and timestamp", func(t *testing.T) {
		snap := testSnapshot()
		if err := store.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
		if snap.ID == "" {
			t.Error("Expected snapshot ID to be generated")
		}
		if snap.FetchedAt.IsZero() {
			t.Error("Expected FetchedAt to be set")
		}
	})

	t.Run("LatestSnapshot round-trips records", func(t *testing.T) {
		original := testSnapshot()
		original.FetchedAt = time.Now().Add(time.Hour).UTC()
		if err := store.SaveSnapshot(ctx, original); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}

		got, err := store.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("LatestSnapshot failed: %v", err)
		}
		if got.ID != original.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, original.ID)
		}
		if !got.FetchedAt.Equal(original.FetchedAt) {
			t.Errorf("FetchedAt mismatch: got %v, want %v", got.FetchedAt, original.FetchedAt)
		}
		if len(got.Expenses) != 2 {
			t.Fatalf("Expected 2 expenses, got %d", len(got.Expenses))
		}

		e := got.Expenses[0]
		if !e.Amount.Equal(decimal.RequireFromString("30.10")) {
			t.Errorf("Amount mismatch: got %s", e.Amount)
		}
		if e.Date != original.Expenses[0].Date {
			t.Errorf("Date mismatch: got %v", e.Date)
		}
		if len(e.Participants) != 3 || e.Participants[2] != "Carol" {
			t.Errorf("Participants mismatch: got %v", e.Participants)
		}
		if e.AmountErr != nil {
			t.Errorf("Unexpected amount error: %v", e.AmountErr)
		}

		bad := got.Expenses[1]
		if bad.AmountErr == nil {
			t.Error("Expected invalid amount to survive the round trip")
		}
		if bad.RawAmount != "twelve" {
			t.Errorf("RawAmount mismatch: got %q, want %q", bad.RawAmount, "twelve")
		}
		if !bad.Date.IsZero() {
			t.Errorf("Expected zero date, got %v", bad.Date)
		}

		if len(got.Settlements) != 1 {
			t.Fatalf("Expected 1 settlement, got %d", len(got.Settlements))
		}
		s := got.Settlements[0]
		if s.PayerName != "Bob" || s.ReceiverName != "Alice" || s.Note != "venmo" {
			t.Errorf("Settlement mismatch: %+v", s)
		}
	})

	t.Run("SaveSnapshot prunes beyond retention", func(t *testing.T) {
		latest := testSnapshot()
		latest.FetchedAt = time.Now().Add(2 * time.Hour).UTC()
		latest.Expenses = nil
		if err := store.SaveSnapshot(ctx, latest); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}

		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
			t.Fatalf("count snapshots: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 retained snapshots, got %d", count)
		}

		var orphans int
		err := store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM snapshot_expenses WHERE snapshot_id NOT IN (SELECT id FROM snapshots)",
		).Scan(&orphans)
		if err != nil {
			t.Fatalf("count orphans: %v", err)
		}
		if orphans != 0 {
			t.Errorf("Expected pruned expense rows, got %d orphans", orphans)
		}

		got, err := store.LatestSnapshot(ctx)
		if err != nil {
			t.Fatalf("LatestSnapshot failed: %v", err)
		}
		if got.ID != latest.ID {
			t.Errorf("Expected latest snapshot %s, got %s", latest.ID, got.ID)
		}
		if len(got.Expenses) != 0 {
			t.Errorf("Expected no expenses, got %d", len(got.Expenses))
		}
	})
}

func TestNew_DefaultKeep(t *testing.T) {
	store := newTestStore(t, 0)
	if store.keep != DefaultKeep {
		t.Errorf("keep = %d, want %d", store.keep, DefaultKeep)
	}
}
