// Package sqlite provides a SQLite-backed implementation of the storage.SnapshotStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// Ensure SQLiteStore implements storage.SnapshotStore
var _ storage.SnapshotStore = (*SQLiteStore)(nil)

// DefaultKeep is how many snapshots are retained when New is given zero.
const DefaultKeep = 5

const dateLayout = "2006-01-02"

// SQLiteStore implements storage.SnapshotStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	keep int
}

// New creates a new SQLiteStore with the given database path, retaining the keep most
// recent snapshots. It creates the parent directories and runs migrations automatically.
func New(dbPath string, keep int) (*SQLiteStore, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writers serialized and the pragma below in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, keep: keep}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot persists a snapshot with all of its records and prunes old ones.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (id, fetched_at) VALUES (?, ?)",
		snap.ID, snap.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := insertExpenses(ctx, tx, snap.ID, snap.Expenses); err != nil {
		return err
	}
	if err := insertSettlements(ctx, tx, snap.ID, snap.Settlements); err != nil {
		return err
	}
	if err := s.prune(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestSnapshot retrieves the newest snapshot, including all records.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, fetched_at FROM snapshots ORDER BY fetched_at DESC, rowid DESC LIMIT 1",
	).Scan(&snap.ID, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	snap.FetchedAt = time.Unix(0, fetchedAt).UTC()

	if snap.Expenses, err = s.getExpenses(ctx, snap.ID); err != nil {
		return nil, err
	}
	if snap.Settlements, err = s.getSettlements(ctx, snap.ID); err != nil {
		return nil, err
	}
	return snap, nil
}

// prune deletes every snapshot older than the newest s.keep.
func (s *SQLiteStore) prune(ctx context.Context, tx *sql.Tx) error {
	const stale = `SELECT id FROM snapshots ORDER BY fetched_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	for _, table := range []string{"snapshot_expense_participants", "snapshot_expenses", "snapshot_settlements"} {
		q := fmt.Sprintf("DELETE FROM %s WHERE snapshot_id IN (%s)", table, stale)
		if _, err := tx.ExecContext(ctx, q, s.keep); err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE id IN ("+stale+")", s.keep); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

func insertExpenses(ctx context.Context, tx *sql.Tx, snapshotID string, expenses []models.Expense) error {
	for i, e := range expenses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_expenses (snapshot_id, position, id, description, category, date, payer_name, amount, amount_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, i, e.ID, e.Description, e.Category, formatDate(e.Date), e.PayerName,
			amountText(e.Amount, e.RawAmount, e.AmountErr), errText(e.AmountErr),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		for j, name := range e.Participants {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO snapshot_expense_participants (snapshot_id, expense_position, position, name) VALUES (?, ?, ?, ?)",
				snapshotID, i, j, name,
			)
			if err != nil {
				return fmt.Errorf("failed to insert expense participant: %w", err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) getExpenses(ctx context.Context, snapshotID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, category, date, payer_name, amount, amount_error
		 FROM snapshot_expenses WHERE snapshot_id = ? ORDER BY position`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var date, amount string
		var amountErr sql.NullString
		if err := rows.Scan(&e.ID, &e.Description, &e.Category, &date, &e.PayerName, &amount, &amountErr); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Date = parseDate(date)
		e.Amount, e.AmountErr = parseAmount(amount, amountErr)
		if e.AmountErr != nil {
			e.RawAmount = amount
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	partRows, err := s.db.QueryContext(ctx,
		`SELECT expense_position, name FROM snapshot_expense_participants
		 WHERE snapshot_id = ? ORDER BY expense_position, position`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		var pos int
		var name string
		if err := partRows.Scan(&pos, &name); err != nil {
			return nil, fmt.Errorf("failed to scan expense participant: %w", err)
		}
		if pos < 0 || pos >= len(expenses) {
			return nil, fmt.Errorf("participant row references missing expense %d", pos)
		}
		expenses[pos].Participants = append(expenses[pos].Participants, name)
	}
	if err := partRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense participants: %w", err)
	}

	return expenses, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func errText(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}

// amountText is the stored form of an amount. Unusable amounts keep their raw text.
func amountText(amount decimal.Decimal, raw string, amountErr error) string {
	if amountErr != nil {
		return raw
	}
	return amount.String()
}

// parseAmount restores an amount and the parse error recorded when it was fetched.
func parseAmount(amount string, amountErr sql.NullString) (decimal.Decimal, error) {
	if amountErr.Valid {
		return decimal.Zero, errors.New(amountErr.String)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	return d, nil
}
