package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openKV(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKV_StringRoundtrip(t *testing.T) {
	kv := openKV(t)

	_, ok, err := kv.GetString("device_id")
	require.NoError(t, err)
	assert.False(t, ok, "absence is not an error")

	require.NoError(t, kv.PutString("device_id", "d-123"))
	got, ok, err := kv.GetString("device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d-123", got)

	// Upsert overwrites.
	require.NoError(t, kv.PutString("device_id", "d-456"))
	got, _, err = kv.GetString("device_id")
	require.NoError(t, err)
	assert.Equal(t, "d-456", got)
}

func TestKV_TypedAccessors(t *testing.T) {
	kv := openKV(t)

	require.NoError(t, kv.PutInt64("n", -42))
	n, ok, err := kv.GetInt64("n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-42), n)

	require.NoError(t, kv.PutFloat64("f", 2.5))
	f, ok, err := kv.GetFloat64("f")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	require.NoError(t, kv.PutBool("b", true))
	b, ok, err := kv.GetBool("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b)

	// A key written as text does not parse as an integer.
	require.NoError(t, kv.PutString("n", "not-a-number"))
	_, ok, err = kv.GetInt64("n")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestKV_DeleteAndClear(t *testing.T) {
	kv := openKV(t)

	require.NoError(t, kv.PutString("a", "1"))
	require.NoError(t, kv.PutString("b", "2"))

	require.NoError(t, kv.Delete("a"))
	require.NoError(t, kv.Delete("a"), "deleting an absent key is fine")
	_, ok, err := kv.GetString("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Clear())
	_, ok, err = kv.GetString("b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifly.db")

	kv, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, kv.PutString("device_id", "d-123"))
	require.NoError(t, kv.Close())

	kv, err = Open(path)
	require.NoError(t, err)
	defer kv.Close()

	got, ok, err := kv.GetString("device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d-123", got)
}
