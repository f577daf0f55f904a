package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"
)

// ClickHouseSchema returns the DDL for the history tables in database db.
// price_history is a ReplacingMergeTree keyed by (ticker, date) so a re-appended
// date collapses to the latest version; reads use FINAL.
func ClickHouseSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.price_history (
			ticker  String,
			date    Date,
			close   String,
			version UInt64
		) ENGINE = ReplacingMergeTree(version) ORDER BY (ticker, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.tracked_tickers (
			ticker  String,
			deleted UInt8,
			version UInt64
		) ENGINE = ReplacingMergeTree(version) ORDER BY ticker`, db),
	}
}

// ClickHouseHistoryStore stores histories in ClickHouse. Retention is applied on read.
type ClickHouseHistoryStore struct {
	db       *sql.DB
	database string
	opts     storeOptions
}

func NewClickHouseHistoryStore(db *sql.DB, database string, opts ...StoreOption) *ClickHouseHistoryStore {
	return &ClickHouseHistoryStore{db: db, database: database, opts: newStoreOptions(opts)}
}

func (s *ClickHouseHistoryStore) table(name string) string { return s.database + "." + name }

func (s *ClickHouseHistoryStore) tracked(ctx context.Context, ticker string) (bool, error) {
	q := fmt.Sprintf("SELECT deleted FROM %s FINAL WHERE ticker = ?", s.table("tracked_tickers"))
	var deleted uint8
	err := s.db.QueryRowContext(ctx, q, ticker).Scan(&deleted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted == 0, nil
}

func (s *ClickHouseHistoryStore) Get(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	ok, err := s.tracked(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("clickhouse lookup %s: %w", ticker, err)
	}
	if !ok {
		return nil, fmt.Errorf("history %s: %w", ticker, models.ErrNotFound)
	}

	q := fmt.Sprintf("SELECT date, close FROM %s FINAL WHERE ticker = ? ORDER BY date ASC", s.table("price_history"))
	rows, err := s.db.QueryContext(ctx, q, ticker)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s: %w", ticker, err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0)
	for rows.Next() {
		var d time.Time
		var closeStr string
		if err := rows.Scan(&d, &closeStr); err != nil {
			return nil, err
		}
		c, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("clickhouse close %s: %w", ticker, err)
		}
		out = append(out, models.NewPricePoint(d, c))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trimHistory(out, s.opts.maxPoints), nil
}

func (s *ClickHouseHistoryStore) Append(ctx context.Context, ticker string, p models.PricePoint) error {
	return s.AppendBatch(ctx, ticker, []models.PricePoint{p})
}

func (s *ClickHouseHistoryStore) AppendBatch(ctx context.Context, ticker string, points []models.PricePoint) error {
	version := uint64(time.Now().UnixNano())
	if err := s.setTracked(ctx, ticker, false, version); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clickhouse begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (ticker, date, close, version)", s.table("price_history")))
	if err != nil {
		return fmt.Errorf("clickhouse prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range points {
		p = models.NewPricePoint(p.Date, p.Close)
		if _, err := stmt.ExecContext(ctx, ticker, p.Date, p.Close.String(), version); err != nil {
			return fmt.Errorf("clickhouse insert %s: %w", ticker, err)
		}
	}
	return tx.Commit()
}

func (s *ClickHouseHistoryStore) setTracked(ctx context.Context, ticker string, deleted bool, version uint64) error {
	var flag uint8
	if deleted {
		flag = 1
	}
	q := fmt.Sprintf("INSERT INTO %s (ticker, deleted, version) VALUES (?, ?, ?)", s.table("tracked_tickers"))
	if _, err := s.db.ExecContext(ctx, q, ticker, flag, version); err != nil {
		return fmt.Errorf("clickhouse track %s: %w", ticker, err)
	}
	return nil
}

func (s *ClickHouseHistoryStore) deleteHistoryQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE ticker = ?", s.table("price_history"))
}

// Remove tombstones the ticker, then deletes its rows with a lightweight DELETE
// that waits until the rows are masked on every replica.
func (s *ClickHouseHistoryStore) Remove(ctx context.Context, ticker string) error {
	if err := s.setTracked(ctx, ticker, true, uint64(time.Now().UnixNano())); err != nil {
		return err
	}
	dctx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{"mutations_sync": 2}))
	if _, err := s.db.ExecContext(dctx, s.deleteHistoryQuery(), ticker); err != nil {
		return fmt.Errorf("clickhouse delete %s: %w", ticker, err)
	}
	return nil
}

func (s *ClickHouseHistoryStore) Tickers(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT ticker FROM %s FINAL WHERE deleted = 0 ORDER BY ticker", s.table("tracked_tickers"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("clickhouse tickers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool is owned by pkg/clickhouse.Client.
func (s *ClickHouseHistoryStore) Close() error { return nil }

var _ repository.HistoryStore = (*ClickHouseHistoryStore)(nil)
