package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/househelp-server/internal/model"
)

// Ensure AnchorJournalRepository implements the model.AnchorJournal interface.
var _ model.AnchorJournal = (*AnchorJournalRepository)(nil)

type AnchorJournalRepository struct {
	db *Connection
}

func NewAnchorJournalRepository(db *Connection) *AnchorJournalRepository {
	return &AnchorJournalRepository{db: db}
}

func (r *AnchorJournalRepository) Record(ctx context.Context, entry model.AnchorEntry) error {
	const query = `
        INSERT INTO anchor_receipts (id, namespace, account, data_key, cid, tx_hash, status, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	if _, err := r.db.ExecContext(ctx, query,
		uuid.New(),
		entry.Namespace,
		entry.Account,
		nullString(entry.Key),
		entry.CID,
		nullString(entry.TxHash),
		entry.Status,
		nullString(entry.Error),
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to record anchor outcome: %w", err)
	}
	return nil
}

// ListOrphaned returns blobs whose pointer was never written, newest first.
func (r *AnchorJournalRepository) ListOrphaned(ctx context.Context, limit int) ([]model.AnchorEntry, error) {
	const query = `
        SELECT namespace, account, cid, COALESCE(error, ''), created_at
        FROM anchor_receipts
        WHERE status = $1
        ORDER BY created_at DESC
        LIMIT $2
    `

	rows, err := r.db.QueryContext(ctx, query, model.AnchorStatusOrphaned, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned anchors: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AnchorEntry, 0)
	for rows.Next() {
		e := model.AnchorEntry{Status: model.AnchorStatusOrphaned}
		if err := rows.Scan(&e.Namespace, &e.Account, &e.CID, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned anchor: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orphaned anchors: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
