package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanrelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "state.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type stateStore interface {
	domain.WatermarkStore
	domain.DeliveryLog
	Prunable
	Deliveries(ctx context.Context, channel string, messageID int64) ([]domain.DeliveryRecord, error)
}

func eachStore(t *testing.T, fn func(t *testing.T, s stateStore)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestWatermark_DefaultsToZero(t *testing.T) {
	eachStore(t, func(t *testing.T, s stateStore) {
		id, err := s.Watermark(context.Background(), "@news")
		require.NoError(t, err)
		assert.Equal(t, int64(0), id)
	})
}

func TestWatermark_NeverDecreases(t *testing.T) {
	eachStore(t, func(t *testing.T, s stateStore) {
		ctx := context.Background()
		require.NoError(t, s.SetWatermark(ctx, "@news", 10))
		require.NoError(t, s.SetWatermark(ctx, "@news", 7))

		id, err := s.Watermark(ctx, "@news")
		require.NoError(t, err)
		assert.Equal(t, int64(10), id)

		require.NoError(t, s.SetWatermark(ctx, "@news", 11))
		id, _ = s.Watermark(ctx, "@news")
		assert.Equal(t, int64(11), id)
	})
}

func TestWatermark_PerChannel(t *testing.T) {
	eachStore(t, func(t *testing.T, s stateStore) {
		ctx := context.Background()
		require.NoError(t, s.SetWatermark(ctx, "@a", 5))
		require.NoError(t, s.SetWatermark(ctx, "-1001", 3))

		a, _ := s.Watermark(ctx, "@a")
		b, _ := s.Watermark(ctx, "-1001")
		assert.Equal(t, int64(5), a)
		assert.Equal(t, int64(3), b)
	})
}

func TestDeliveries_RecordAndPrune(t *testing.T) {
	eachStore(t, func(t *testing.T, s stateStore) {
		ctx := context.Background()
		old := time.Now().Add(-48 * time.Hour)

		require.NoError(t, s.RecordDelivery(ctx, domain.DeliveryRecord{
			ID: "d1", Channel: "@a", MessageID: 1, Destination: "main", Kind: domain.KindDiscord, OK: true, CreatedAt: old,
		}))
		require.NoError(t, s.RecordDelivery(ctx, domain.DeliveryRecord{
			ID: "d2", Channel: "@a", MessageID: 1, Destination: "backup", Kind: domain.KindWebhook, Error: "status 500",
		}))

		recs, err := s.Deliveries(ctx, "@a", 1)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "d1", recs[0].ID)
		assert.True(t, recs[0].OK)
		assert.Equal(t, domain.KindDiscord, recs[0].Kind)
		assert.False(t, recs[1].OK)
		assert.Equal(t, "status 500", recs[1].Error)

		removed, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		recs, err = s.Deliveries(ctx, "@a", 1)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "d2", recs[0].ID)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SetWatermark(ctx, "@news", 42))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Watermark(ctx, "@news")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db, testLogger()))
	require.NoError(t, RunMigrations(db, testLogger()))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)

	for _, table := range []string{"watermarks", "deliveries", "schema_version"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s missing", table)
	}
}

func TestPruner_RunOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.RecordDelivery(ctx, domain.DeliveryRecord{ID: "old", Channel: "@a", CreatedAt: now.AddDate(0, 0, -31)})
	s.RecordDelivery(ctx, domain.DeliveryRecord{ID: "new", Channel: "@a", CreatedAt: now.AddDate(0, 0, -1)})

	p, err := NewPruner(s, "@daily", 30*24*time.Hour, testLogger())
	require.NoError(t, err)
	p.now = func() time.Time { return now }

	assert.Equal(t, int64(1), p.RunOnce(ctx))
	recs, _ := s.Deliveries(ctx, "@a", 0)
	require.Len(t, recs, 1)
	assert.Equal(t, "new", recs[0].ID)

	p.Start()
	p.Stop()
}

func TestNewPruner_InvalidSchedule(t *testing.T) {
	_, err := NewPruner(NewMemoryStore(), "every tuesday", time.Hour, testLogger())
	assert.Error(t, err)

	_, err = NewPruner(NewMemoryStore(), "@hourly", 0, testLogger())
	assert.Error(t, err)
}
