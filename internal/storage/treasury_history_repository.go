package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/treasury-tracker/internal/types"
)

// HistoryWrite is one planned write into the treasury history collection.
// Exists selects update (true) or insert (false).
type HistoryWrite struct {
	Date    string
	Balance string
	Exists  bool
}

// TreasuryHistoryRepository stores one document per network per day
type TreasuryHistoryRepository struct {
	db *PostgresDB
}

// NewTreasuryHistoryRepository creates a new treasury history repository
func NewTreasuryHistoryRepository(db *PostgresDB) *TreasuryHistoryRepository {
	return &TreasuryHistoryRepository{db: db}
}

// Exists reports whether a document exists for network and date
func (r *TreasuryHistoryRepository) Exists(ctx context.Context, network, date string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM treasury_amount_history WHERE network = $1 AND date = $2)`

	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, strings.ToLower(network), date).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check treasury history: %w", err)
	}
	return exists, nil
}

// CommitBatch applies all writes in a single transaction
func (r *TreasuryHistoryRepository) CommitBatch(ctx context.Context, network string, writes []HistoryWrite) error {
	if len(writes) == 0 {
		return nil
	}
	network = strings.ToLower(network)

	batch := &pgx.Batch{}
	for _, w := range writes {
		if w.Exists {
			batch.Queue(`
				UPDATE treasury_amount_history
				SET balance = $3, updated_at = NOW()
				WHERE network = $1 AND date = $2
			`, network, w.Date, w.Balance)
			continue
		}
		// A concurrent run may have created the row since the existence check; set semantics overwrite it
		batch.Queue(`
			INSERT INTO treasury_amount_history (network, date, balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (network, date) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()
		`, network, w.Date, w.Balance)
	}

	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range writes {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to write treasury history: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("treasury history batch for %s: %w", network, err)
	}
	return nil
}

// List returns every persisted day for a network in date order
func (r *TreasuryHistoryRepository) List(ctx context.Context, network string) ([]types.TreasuryHistoryDoc, error) {
	query := `
		SELECT network, date, balance, updated_at
		FROM treasury_amount_history
		WHERE network = $1
		ORDER BY date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(network))
	if err != nil {
		return nil, fmt.Errorf("failed to query treasury history: %w", err)
	}
	defer rows.Close()

	var docs []types.TreasuryHistoryDoc
	for rows.Next() {
		var doc types.TreasuryHistoryDoc
		if err := rows.Scan(&doc.Network, &doc.Date, &doc.Balance, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan treasury history: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate treasury history: %w", err)
	}

	return docs, nil
}
