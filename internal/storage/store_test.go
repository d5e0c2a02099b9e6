package storage

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
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

	return db
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	store := New(newTestDB(t))

	type record struct {
		Name  string  `json:"name"`
		Count int     `json:"count"`
		Ratio float64 `json:"ratio"`
	}

	in := record{Name: "alpha", Count: 3, Ratio: 0.5}
	require.NoError(t, store.Set("test:record", in))

	var out record
	found, err := store.Get("test:record", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestStore_GetMissingKey(t *testing.T) {
	store := New(newTestDB(t))

	var out map[string]string
	found, err := store.Get("never-written", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_SetOverwrites(t *testing.T) {
	store := New(newTestDB(t))

	require.NoError(t, store.Set("k", "first"))
	require.NoError(t, store.Set("k", "second"))

	var out string
	found, err := store.Get("k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", out)
}

func TestStore_Delete(t *testing.T) {
	store := New(newTestDB(t))

	require.NoError(t, store.Set("k", 42))
	require.NoError(t, store.Delete("k"))

	var out int
	found, err := store.Get("k", &out)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete("k"))
}

func TestStore_GetRaw(t *testing.T) {
	store := New(newTestDB(t))

	require.NoError(t, store.Set("k", map[string]int{"a": 1}))

	raw, found, err := store.GetRaw("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	_, found, err = store.GetRaw("missing")
	require.NoError(t, err)
	assert.False(t, found)
}
