// Package archive persists surfaced insights to SQLite so scan results
// survive restarts and can be reviewed later.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chatwatch/internal/domain"
)

// SQLiteStore stores insights in a local SQLite database. Implements
// domain.InsightSink.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS insights (
		id           TEXT PRIMARY KEY,
		chat         TEXT NOT NULL,
		sender       TEXT,
		sent_at      TEXT,
		phone        TEXT,
		body         TEXT,
		scenario     TEXT NOT NULL,
		confidence   TEXT,
		reasoning    TEXT,
		fields       TEXT,
		observed_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_insights_observed ON insights(observed_at);
	CREATE INDEX IF NOT EXISTS idx_insights_chat ON insights(chat, observed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Emit implements domain.InsightSink.
func (s *SQLiteStore) Emit(ctx context.Context, ins domain.Insight) error {
	return s.Insert(ctx, ins)
}

func (s *SQLiteStore) Insert(ctx context.Context, ins domain.Insight) error {
	fields, err := json.Marshal(ins.Fields)
	if err != nil {
		return fmt.Errorf("encode insight fields: %w", err)
	}
	if ins.ObservedAt.IsZero() {
		ins.ObservedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO insights (id, chat, sender, sent_at, phone, body, scenario, confidence, reasoning, fields, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ins.ID, ins.Group, ins.Sender, ins.Timestamp, ins.Phone, ins.Text,
		ins.Scenario, string(ins.Confidence), ins.Reasoning, string(fields), ins.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// Recent returns the newest insights, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.Insight, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat, sender, sent_at, phone, body, scenario, confidence, reasoning, fields, observed_at
		 FROM insights ORDER BY observed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []domain.Insight
	for rows.Next() {
		var ins domain.Insight
		var confidence, fields string
		if err := rows.Scan(&ins.ID, &ins.Group, &ins.Sender, &ins.Timestamp,
			&ins.Phone, &ins.Text, &ins.Scenario, &confidence, &ins.Reasoning,
			&fields, &ins.ObservedAt); err != nil {
			return nil, err
		}
		ins.Confidence = domain.Confidence(confidence)
		if fields != "" {
			if err := json.Unmarshal([]byte(fields), &ins.Fields); err != nil {
				s.logger.Warn("corrupt fields payload in archive", "id", ins.ID, "err", err)
			}
		}
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
