// Package store persists screening results in an embedded SQLite
// database: strategy selections with a delete-then-insert idempotent
// upsert per (strategy, date), and the user's watchlist.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

// Store wraps the embedded database.
// ⭐ SSOT: 資料庫連線只在這裡建立
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens (and creates if needed) the database at the configured
// path and initializes the schema.
func Open(cfg *config.Config, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		url.PathEscape(cfg.SQLite.Path), cfg.SQLite.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 嵌入式資料庫單一寫入者
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS strategy_selections (
			selection_date TEXT NOT NULL,
			strategy_key   TEXT NOT NULL,
			strategy_name  TEXT NOT NULL,
			stock_id       TEXT NOT NULL,
			score          REAL NOT NULL,
			"rank"         INTEGER NOT NULL,
			extra          TEXT,
			created_at     TEXT NOT NULL,
			PRIMARY KEY (selection_date, strategy_key, stock_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_selections_strategy_date
			ON strategy_selections (strategy_key, selection_date)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			stock_id   TEXT PRIMARY KEY,
			stock_name TEXT,
			buy_price  REAL,
			shares     INTEGER,
			added_date TEXT NOT NULL,
			notes      TEXT
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}
	return nil
}

// SelectionRecord is one persisted selection row.
type SelectionRecord struct {
	SelectionDate string             `json:"selection_date"`
	StrategyKey   string             `json:"strategy_key"`
	StrategyName  string             `json:"strategy_name"`
	StockID       string             `json:"stock_id"`
	Score         float64            `json:"score"`
	Rank          int                `json:"rank"`
	Extra         map[string]float64 `json:"extra,omitempty"`
}

// SaveSelections replaces the stored rows for the result's strategy and
// selection date with the result's rows. Empty results are skipped so a
// failed run cannot wipe the previous selection.
func (s *Store) SaveSelections(ctx context.Context, result *screening.Result) error {
	if result.IsEmpty() {
		s.log.WithField("strategy", result.StrategyKey).Debug("empty result, nothing persisted")
		return nil
	}
	if result.SelectionDate == "" {
		return fmt.Errorf("result for %s has no selection date", result.StrategyKey)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx failed: %w", err)
	}
	defer tx.Rollback()

	// 冪等: 先刪同策略同日期舊資料再插入
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM strategy_selections WHERE strategy_key = ? AND selection_date = ?`,
		result.StrategyKey, result.SelectionDate,
	); err != nil {
		return fmt.Errorf("delete old selections failed: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO strategy_selections
			(selection_date, strategy_key, strategy_name, stock_id, score, "rank", extra, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert failed: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range result.Rows {
		var extra []byte
		if len(row.Extra) > 0 {
			extra, _ = json.Marshal(row.Extra)
		}
		if _, err := stmt.ExecContext(ctx,
			result.SelectionDate, result.StrategyKey, result.StrategyName,
			row.StockID, row.Score, row.Rank, nullableString(extra), now,
		); err != nil {
			return fmt.Errorf("insert selection failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"strategy": result.StrategyKey,
		"date":     result.SelectionDate,
		"rows":     len(result.Rows),
	}).Info("selections persisted")
	return nil
}

// SaveAll persists a batch of results, continuing past per-strategy
// failures.
func (s *Store) SaveAll(ctx context.Context, results map[string]*screening.Result) error {
	var firstErr error
	for key, result := range results {
		if err := s.SaveSelections(ctx, result); err != nil {
			s.log.WithError(err).WithField("strategy", key).Error("failed to persist selections")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Selections returns stored rows for a strategy ordered by rank.
// An empty date selects the strategy's latest selection date; topN <= 0
// returns every row.
func (s *Store) Selections(ctx context.Context, strategyKey, date string, topN int) ([]SelectionRecord, error) {
	if date == "" {
		latest, err := s.LatestSelectionDate(ctx, strategyKey)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return []SelectionRecord{}, nil
		}
		date = latest
	}

	query := `SELECT selection_date, strategy_key, strategy_name, stock_id, score, "rank", extra
		FROM strategy_selections
		WHERE strategy_key = ? AND selection_date = ?
		ORDER BY "rank"`
	args := []interface{}{strategyKey, date}
	if topN > 0 {
		query += ` LIMIT ?`
		args = append(args, topN)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query selections failed: %w", err)
	}
	defer rows.Close()

	out := []SelectionRecord{}
	for rows.Next() {
		var rec SelectionRecord
		var extra sql.NullString
		if err := rows.Scan(&rec.SelectionDate, &rec.StrategyKey, &rec.StrategyName,
			&rec.StockID, &rec.Score, &rec.Rank, &extra); err != nil {
			return nil, fmt.Errorf("scan selection failed: %w", err)
		}
		if extra.Valid && extra.String != "" {
			_ = json.Unmarshal([]byte(extra.String), &rec.Extra)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestSelectionDate returns the most recent selection date stored for
// a strategy, or "" when none exists. An empty key spans all strategies.
func (s *Store) LatestSelectionDate(ctx context.Context, strategyKey string) (string, error) {
	query := `SELECT MAX(selection_date) FROM strategy_selections`
	args := []interface{}{}
	if strategyKey != "" {
		query += ` WHERE strategy_key = ?`
		args = append(args, strategyKey)
	}

	var date sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&date); err != nil {
		return "", fmt.Errorf("query latest date failed: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// WatchlistEntry is one stock in the user's watchlist.
type WatchlistEntry struct {
	StockID   string  `json:"stock_id"`
	StockName string  `json:"stock_name"`
	BuyPrice  float64 `json:"buy_price,omitempty"`
	Shares    int     `json:"shares,omitempty"`
	AddedDate string  `json:"added_date"`
	Notes     string  `json:"notes,omitempty"`
}

// AddToWatchlist inserts or replaces a watchlist entry.
func (s *Store) AddToWatchlist(ctx context.Context, entry WatchlistEntry) error {
	if entry.AddedDate == "" {
		entry.AddedDate = time.Now().Format("2006-01-02")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO watchlist (stock_id, stock_name, buy_price, shares, added_date, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.StockID, entry.StockName, entry.BuyPrice, entry.Shares, entry.AddedDate, entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("watchlist insert failed: %w", err)
	}
	return nil
}

// RemoveFromWatchlist deletes a watchlist entry.
func (s *Store) RemoveFromWatchlist(ctx context.Context, stockID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE stock_id = ?`, stockID)
	if err != nil {
		return fmt.Errorf("watchlist delete failed: %w", err)
	}
	return nil
}

// Watchlist returns all entries, most recently added first.
func (s *Store) Watchlist(ctx context.Context) ([]WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stock_id, stock_name, buy_price, shares, added_date, notes
		FROM watchlist ORDER BY added_date DESC, stock_id`)
	if err != nil {
		return nil, fmt.Errorf("watchlist query failed: %w", err)
	}
	defer rows.Close()

	out := []WatchlistEntry{}
	for rows.Next() {
		var e WatchlistEntry
		var name, notes sql.NullString
		var price sql.NullFloat64
		var shares sql.NullInt64
		if err := rows.Scan(&e.StockID, &name, &price, &shares, &e.AddedDate, &notes); err != nil {
			return nil, fmt.Errorf("watchlist scan failed: %w", err)
		}
		e.StockName = name.String
		e.BuyPrice = price.Float64
		e.Shares = int(shares.Int64)
		e.Notes = notes.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
