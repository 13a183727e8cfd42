package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/treasury-tracker/internal/types"
)

// ArchivedBalance is one raw upstream balance point as stored in ClickHouse
type ArchivedBalance struct {
	Network   string    `json:"network"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Date      time.Time `json:"date"`
	Balance   string    `json:"balance"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// BalanceArchiveRepository keeps every raw balance point fetched from the explorer
type BalanceArchiveRepository struct {
	db *ClickHouseDB
}

// NewBalanceArchiveRepository creates a new balance archive repository
func NewBalanceArchiveRepository(db *ClickHouseDB) *BalanceArchiveRepository {
	return &BalanceArchiveRepository{db: db}
}

// FlattenWindows turns fetched windows into archive rows. Points without a parseable day are skipped.
func FlattenWindows(network string, chain types.ChainKind, address string, windows []types.BalanceWindow, fetchedAt time.Time) []ArchivedBalance {
	var rows []ArchivedBalance
	for _, w := range windows {
		for _, p := range w.History {
			day, ok := types.ParseDay(p.Date)
			if !ok {
				continue
			}
			rows = append(rows, ArchivedBalance{
				Network:   strings.ToLower(network),
				Chain:     string(chain),
				Address:   address,
				Date:      day,
				Balance:   p.Balance,
				FetchedAt: fetchedAt.UTC(),
			})
		}
	}
	return rows
}

// Archive inserts rows in a single batch
func (r *BalanceArchiveRepository) Archive(ctx context.Context, rows []ArchivedBalance) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO treasury_balance_snapshots (network, chain, address, date, balance, fetched_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(row.Network, row.Chain, row.Address, row.Date, row.Balance, row.FetchedAt); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// History returns archived points for a network and chain between from and to, inclusive
func (r *BalanceArchiveRepository) History(ctx context.Context, network string, chain types.ChainKind, from, to time.Time) ([]ArchivedBalance, error) {
	query := `
		SELECT network, chain, address, date, balance, fetched_at
		FROM treasury_balance_snapshots FINAL
		WHERE network = ? AND chain = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(network), string(chain), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance archive: %w", err)
	}
	defer rows.Close()

	var out []ArchivedBalance
	for rows.Next() {
		var b ArchivedBalance
		if err := rows.Scan(&b.Network, &b.Chain, &b.Address, &b.Date, &b.Balance, &b.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived balance: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance archive: %w", err)
	}

	return out, nil
}
