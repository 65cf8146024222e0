package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "GITHUB_VAULT_DATA")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(ctx, "GITHUB_VAULT_DATA", []byte(`[{"id":"1"}]`)))
	got, err := kv.Get(ctx, "GITHUB_VAULT_DATA")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(got))

	require.NoError(t, kv.Put(ctx, "GITHUB_VAULT_DATA", []byte(`[{"id":"2"},{"id":"1"}]`)))
	got, err = kv.Get(ctx, "GITHUB_VAULT_DATA")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"2"},{"id":"1"}]`, string(got))

	require.NoError(t, kv.Delete(ctx, "GITHUB_VAULT_DATA"))
	_, err = kv.Get(ctx, "GITHUB_VAULT_DATA")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is not an error
	require.NoError(t, kv.Delete(ctx, "GITHUB_VAULT_DATA"))
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Put(context.Background(), "a/b key", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "a_b_key.json"))
	assert.NoError(t, err)
}

func TestSQLiteStore(t *testing.T) {
	kv, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "vault.db"))
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestOpen(t *testing.T) {
	kv, err := Open("memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)

	_, err = Open("redis", "", "")
	assert.Error(t, err)

	_, err = Open("postgres", "", "")
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("EVOCODER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("EVOCODER_TEST_PG_DSN not set")
	}
	kv, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}
