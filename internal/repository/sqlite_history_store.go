package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	applogger "StockWatch/pkg/logger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteHistoryStore persists histories in a local SQLite file.
// Closes are stored as decimal strings so no precision is lost.
type SQLiteHistoryStore struct {
	db   *sql.DB
	opts storeOptions
}

// NewSQLiteHistoryStore opens (or creates) the database at path and runs migrations.
func NewSQLiteHistoryStore(path string, opts ...StoreOption) (*SQLiteHistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteHistoryStore{db: db, opts: newStoreOptions(opts)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.opts.logger.Info("sqlite history store opened", applogger.String("path", path))
	return s, nil
}

func (s *SQLiteHistoryStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracked_tickers (
			ticker   TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			ticker TEXT NOT NULL,
			date   TEXT NOT NULL,
			close  TEXT NOT NULL,
			PRIMARY KEY (ticker, date)
		)`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

func (s *SQLiteHistoryStore) Get(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tracked_tickers WHERE ticker = ?`, ticker).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history %s: %w", ticker, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup %s: %w", ticker, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, close FROM price_history WHERE ticker = ? ORDER BY date ASC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", ticker, err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0)
	for rows.Next() {
		var day, closeStr string
		if err := rows.Scan(&day, &closeStr); err != nil {
			return nil, err
		}
		p, err := parseStoredPoint(day, closeStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite row %s/%s: %w", ticker, day, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteHistoryStore) Append(ctx context.Context, ticker string, p models.PricePoint) error {
	return s.AppendBatch(ctx, ticker, []models.PricePoint{p})
}

func (s *SQLiteHistoryStore) AppendBatch(ctx context.Context, ticker string, points []models.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tracked_tickers (ticker, added_at) VALUES (?, ?)`,
		ticker, time.Now().Unix()); err != nil {
		return fmt.Errorf("sqlite track %s: %w", ticker, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO price_history (ticker, date, close) VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range points {
		p = models.NewPricePoint(p.Date, p.Close)
		if _, err := stmt.ExecContext(ctx, ticker, p.Date.Format(models.DateLayout), p.Close.String()); err != nil {
			return fmt.Errorf("sqlite upsert %s: %w", ticker, err)
		}
	}

	if s.opts.maxPoints > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM price_history WHERE ticker = ? AND date NOT IN (
			SELECT date FROM price_history WHERE ticker = ? ORDER BY date DESC LIMIT ?)`,
			ticker, ticker, s.opts.maxPoints); err != nil {
			return fmt.Errorf("sqlite trim %s: %w", ticker, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteHistoryStore) Remove(ctx context.Context, ticker string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM price_history WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("sqlite delete history %s: %w", ticker, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_tickers WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("sqlite untrack %s: %w", ticker, err)
	}
	return tx.Commit()
}

func (s *SQLiteHistoryStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker FROM tracked_tickers ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite tickers: %w", err)
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

func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

func parseStoredPoint(day, closeStr string) (models.PricePoint, error) {
	d, err := time.Parse(models.DateLayout, day)
	if err != nil {
		return models.PricePoint{}, err
	}
	c, err := decimal.NewFromString(closeStr)
	if err != nil {
		return models.PricePoint{}, err
	}
	return models.PricePoint{Date: d, Close: c}, nil
}

var _ repository.HistoryStore = (*SQLiteHistoryStore)(nil)
