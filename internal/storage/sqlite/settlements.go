package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/settleup/internal/models"
)

func insertSettlements(ctx context.Context, tx *sql.Tx, snapshotID string, settlements []models.Settlement) error {
	for i, st := range settlements {
		var note interface{} = nil
		if st.Note != "" {
			note = st.Note
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_settlements (snapshot_id, position, id, payer_name, receiver_name, amount, amount_error, date, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, i, st.ID, st.PayerName, st.ReceiverName,
			amountText(st.Amount, st.RawAmount, st.AmountErr), errText(st.AmountErr), formatDate(st.Date), note,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) getSettlements(ctx context.Context, snapshotID string) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payer_name, receiver_name, amount, amount_error, date, note
		 FROM snapshot_settlements WHERE snapshot_id = ? ORDER BY position`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlements: %w", err)
	}
	defer rows.Close()

	settlements := []models.Settlement{}
	for rows.Next() {
		var st models.Settlement
		var amount, date string
		var amountErr, note sql.NullString
		if err := rows.Scan(&st.ID, &st.PayerName, &st.ReceiverName, &amount, &amountErr, &date, &note); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		st.Amount, st.AmountErr = parseAmount(amount, amountErr)
		if st.AmountErr != nil {
			st.RawAmount = amount
		}
		st.Date = parseDate(date)
		if note.Valid {
			st.Note = note.String
		}
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}
