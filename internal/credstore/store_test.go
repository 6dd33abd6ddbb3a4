package credstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "creds", []byte("identity")))

	got, err := st.Read(ctx, "creds")
	require.NoError(t, err)
	assert.Equal(t, []byte("identity"), got)
}

func TestMemoryStoreAbsentKey(t *testing.T) {
	st := NewMemoryStore()

	got, err := st.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreDeleteAbsent(t *testing.T) {
	st := NewMemoryStore()
	assert.NoError(t, st.Delete(context.Background(), "missing"))
}

func TestMemoryStoreReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "creds", []byte("identity")))

	got, _ := st.Read(ctx, "creds")
	got[0] = 'X'

	again, _ := st.Read(ctx, "creds")
	assert.Equal(t, []byte("identity"), again)
}

func TestMemoryStoreWipeAll(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "creds", []byte("a")))
	require.NoError(t, st.Write(ctx, "pre-key-1", []byte("b")))
	require.NoError(t, st.WipeAll(ctx))

	for _, key := range []string{"creds", "pre-key-1"} {
		got, err := st.Read(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestSealedStoreRoundtrip(t *testing.T) {
	inner := NewMemoryStore()
	key := bytes.Repeat([]byte{0x11}, 32)
	st := NewSealedStore(inner, key)
	ctx := context.Background()

	raw := []byte(`{"registered":true}`)
	require.NoError(t, st.Write(ctx, "creds", raw))

	got, err := st.Read(ctx, "creds")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// At rest the blob must be ciphertext.
	stored, err := inner.Read(ctx, "creds")
	require.NoError(t, err)
	assert.NotEqual(t, raw, stored)
}

func TestSealedStoreWrongKeyTreatedAsAbsent(t *testing.T) {
	inner := NewMemoryStore()
	ctx := context.Background()

	writer := NewSealedStore(inner, bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, writer.Write(ctx, "creds", []byte("identity")))

	reader := NewSealedStore(inner, bytes.Repeat([]byte{0x22}, 32))
	got, err := reader.Read(ctx, "creds")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSealedStoreAbsentKey(t *testing.T) {
	st := NewSealedStore(NewMemoryStore(), bytes.Repeat([]byte{0x11}, 32))

	got, err := st.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Write(ctx, "creds", []byte("identity")))
	require.NoError(t, st.Write(ctx, "creds", []byte("updated")))

	got, err := st.Read(ctx, "creds")
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), got)

	got, err = st.Read(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreDeleteAndWipe(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Write(ctx, "creds", []byte("a")))
	require.NoError(t, st.Write(ctx, "session-1", []byte("b")))

	require.NoError(t, st.Delete(ctx, "creds"))
	got, err := st.Read(ctx, "creds")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, st.WipeAll(ctx))
	got, err = st.Read(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
