package brokers

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/foliosync/internal/storage"
)

// newTestStore builds a throwaway in-memory store with the kv schema.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE kv_store (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)

	return storage.New(db)
}
