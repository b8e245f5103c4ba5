package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"portfolio-tracker/internal/apperrors"
	"portfolio-tracker/internal/models"
)

// Repo is the history store. Each call checks out its own connection and
// returns it before the call ends.
type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

type positionRow struct {
	HistoryID int64 `db:"history_id"`
	models.Position
}

const summaryColumns = `id, client_name, start_date, initial_balance, current_value, total_return, total_return_pct, timestamp`

// CreateSnapshot writes the snapshot and all of its positions in one
// transaction and returns the generated id. On any failure nothing is kept.
func (r *Repo) CreateSnapshot(ctx context.Context, s models.Snapshot) (int64, error) {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	var id int64
	q := r.db.Rebind(`INSERT INTO portfolio_history (client_name, start_date, initial_balance, current_value, total_return, total_return_pct, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, q, s.ClientName, s.StartDate, s.InitialBalance, s.CurrentValue, s.TotalReturn, s.TotalReturnPercentage, s.Timestamp).Scan(&id); err != nil {
		tx.Rollback()
		return 0, apperrors.Persistence(err)
	}

	posQ := `INSERT INTO stock_performance (history_id, symbol, allocation, initial_value, current_value, return_value, return_pct) VALUES (:history_id, :symbol, :allocation, :initial_value, :current_value, :return_value, :return_pct)`
	for _, p := range s.Stocks {
		if _, err := tx.NamedExecContext(ctx, posQ, positionRow{HistoryID: id, Position: p}); err != nil {
			tx.Rollback()
			r.log.Warnf("insert position %s for snapshot %d failed, rolled back: %v", p.Symbol, id, err)
			return 0, apperrors.Persistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Persistence(err)
	}
	r.log.Debugf("stored snapshot %d for %q with %d positions", id, s.ClientName, len(s.Stocks))
	return id, nil
}

// ListSnapshots returns every snapshot summary, most recent timestamp first.
// Equal timestamps keep insertion order.
func (r *Repo) ListSnapshots(ctx context.Context) ([]models.Summary, error) {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	defer conn.Close()

	res := []models.Summary{}
	if err := conn.SelectContext(ctx, &res, `SELECT `+summaryColumns+` FROM portfolio_history ORDER BY timestamp DESC, id ASC`); err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("list snapshots: %w", err))
	}
	return res, nil
}

// GetSnapshot returns one snapshot with its positions, in no particular order.
func (r *Repo) GetSnapshot(ctx context.Context, id int64) (models.Snapshot, error) {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return models.Snapshot{}, apperrors.Persistence(err)
	}
	defer conn.Close()

	var s models.Snapshot
	if err := conn.GetContext(ctx, &s.Summary, r.db.Rebind(`SELECT `+summaryColumns+` FROM portfolio_history WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Snapshot{}, apperrors.NotFound("Not found")
		}
		return models.Snapshot{}, apperrors.Persistence(fmt.Errorf("get snapshot %d: %w", id, err))
	}

	s.Stocks = []models.Position{}
	q := r.db.Rebind(`SELECT symbol, allocation, initial_value, current_value, return_value, return_pct FROM stock_performance WHERE history_id = ?`)
	if err := conn.SelectContext(ctx, &s.Stocks, q, id); err != nil {
		return models.Snapshot{}, apperrors.Persistence(fmt.Errorf("get positions for snapshot %d: %w", id, err))
	}
	return s, nil
}
