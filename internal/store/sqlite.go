// Package store persists relay state: per-channel watermarks and the
// delivery log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chanrelay/internal/domain"
)

// SQLiteStore implements domain.WatermarkStore and domain.DeliveryLog using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Watermark returns the highest processed message id for channel, 0 when none.
func (s *SQLiteStore) Watermark(ctx context.Context, channel string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM watermarks WHERE channel = ?`, channel,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark %s: %w", channel, err)
	}
	return id, nil
}

// SetWatermark raises the channel watermark to id. Lower ids are ignored.
func (s *SQLiteStore) SetWatermark(ctx context.Context, channel string, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watermarks (channel, message_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET
		   message_id = excluded.message_id,
		   updated_at = excluded.updated_at
		 WHERE excluded.message_id > watermarks.message_id`,
		channel, id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write watermark %s: %w", channel, err)
	}
	return nil
}

// RecordDelivery appends one delivery attempt to the log.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, rec domain.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, channel, message_id, destination, kind, ok, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Channel, rec.MessageID, rec.Destination, string(rec.Kind), rec.OK, rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// Deliveries returns the logged attempts for one message, oldest first.
func (s *SQLiteStore) Deliveries(ctx context.Context, channel string, messageID int64) ([]domain.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, message_id, destination, kind, ok, error, created_at
		 FROM deliveries WHERE channel = ? AND message_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		channel, messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.MessageID, &rec.Destination, &kind, &rec.OK, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.DestinationKind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes delivery records created before cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
