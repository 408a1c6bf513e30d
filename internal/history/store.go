package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Snapshot is the end-of-day state of the account for one trade date.
type Snapshot struct {
	TradeDate   string    `json:"trade_date"`
	Cash        float64   `json:"cash"`
	MarketValue float64   `json:"market_value"`
	TotalAsset  float64   `json:"total_asset"`
	Positions   int       `json:"positions"`
	TakenAt     time.Time `json:"taken_at"`
}

// Store keeps one snapshot per trade date in its own SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS account_snapshots (
			trade_date   TEXT PRIMARY KEY,
			cash         REAL NOT NULL,
			market_value REAL NOT NULL,
			total_asset  REAL NOT NULL,
			positions    INTEGER NOT NULL,
			taken_at     INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("history schema: %w", err)
	}
	return nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts the snapshot for its trade date; a later settlement on the
// same day replaces the earlier row.
func (s *Store) Record(ctx context.Context, snap Snapshot) error {
	if len(snap.TradeDate) != 8 {
		return fmt.Errorf("history: invalid trade date %q", snap.TradeDate)
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_snapshots (trade_date, cash, market_value, total_asset, positions, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_date) DO UPDATE SET
		    cash=excluded.cash,
		    market_value=excluded.market_value,
		    total_asset=excluded.total_asset,
		    positions=excluded.positions,
		    taken_at=excluded.taken_at`,
		snap.TradeDate, snap.Cash, snap.MarketValue, snap.TotalAsset, snap.Positions, snap.TakenAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: record %s: %w", snap.TradeDate, err)
	}
	return nil
}

// List returns snapshots newest trade date first; limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `SELECT trade_date, cash, market_value, total_asset, positions, taken_at
		FROM account_snapshots ORDER BY trade_date DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Snapshot, 0)
	for rows.Next() {
		var (
			snap    Snapshot
			takenAt int64
		)
		if err := rows.Scan(&snap.TradeDate, &snap.Cash, &snap.MarketValue, &snap.TotalAsset, &snap.Positions, &takenAt); err != nil {
			return nil, err
		}
		snap.TakenAt = time.UnixMilli(takenAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}
