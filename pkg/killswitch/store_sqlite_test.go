package killswitch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kill_switch").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestSQLiteStore_LoadMapsColumns(t *testing.T) {
	store, mock := newMockedStore(t)

	triggered := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	expires := triggered.Add(time.Hour)

	rows := sqlmock.NewRows([]string{
		"frozen", "reason", "triggered_by", "triggered_at", "expires_at", "last_alert_at", "alert_sent",
	}).AddRow(1, "OS_FIREWALL", "SYSTEM", triggered.UnixMilli(), expires.UnixMilli(), int64(0), 0)
	mock.ExpectQuery("SELECT (.+) FROM kill_switch WHERE id = 1").WillReturnRows(rows)

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Frozen)
	assert.Equal(t, "OS_FIREWALL", state.Reason)
	assert.Equal(t, "SYSTEM", state.TriggeredBy)
	assert.Equal(t, triggered.UnixMilli(), state.TriggeredAt.UnixMilli())
	require.NotNil(t, state.ExpiresAt)
	assert.Equal(t, expires.UnixMilli(), state.ExpiresAt.UnixMilli())
	assert.True(t, state.LastAlertAt.IsZero())
	assert.False(t, state.AlertSent)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_SaveFailureSurfacesThroughFreeze(t *testing.T) {
	store, mock := newMockedStore(t)

	mock.ExpectExec("UPDATE kill_switch").WillReturnError(errors.New("database is locked"))

	sw := New(store)
	err := sw.Freeze(context.Background(), "OS_FIREWALL", "SYSTEM", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist freeze")
	assert.Contains(t, err.Error(), "database is locked")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_SaveWritesNullExpiry(t *testing.T) {
	store, mock := newMockedStore(t)

	mock.ExpectExec("UPDATE kill_switch").
		WithArgs(0, "", "ADMIN", int64(0), nil, int64(0), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), State{TriggeredBy: "ADMIN"})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
