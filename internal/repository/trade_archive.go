package repository

import (
	"context"
	"database/sql"
	"fmt"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
)

// ClickHouseArchive appends settled commitments to an analytics table.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates the settled-trade archive.
func NewClickHouseArchive(db *sql.DB, table string) repository.Archive {
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) Append(ctx context.Context, c models.Commitment) error {
	if !c.Outcome.Terminal() {
		return fmt.Errorf("archive: commitment %s is not settled", c.ID)
	}
	q := fmt.Sprintf("INSERT INTO %s (usage_id, signal_id, committed_amount, outcome, result_amount, profit_percent, movement_balance_after, confirmed_at, settled_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", a.table)
	_, err := a.db.ExecContext(ctx, q,
		c.ID,
		c.SignalID,
		c.CommittedAmount,
		string(c.Outcome),
		c.ResultAmount,
		c.ProfitPercent,
		c.MovementBalanceAfter,
		c.ConfirmedAt,
		c.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("archive append %s: %w", c.ID, err)
	}
	return nil
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // connection pool managed by pkg/clickhouse
}
