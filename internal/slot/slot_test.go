package slot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReadMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Read(context.Background(), "search_history")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_WriteIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	payload := []byte(`{"version":1}`)
	require.NoError(t, m.Write(ctx, "s", payload))
	payload[0] = 'X'

	got, err := m.Read(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got))

	got[0] = 'Y'
	again, _ := m.Read(ctx, "s")
	assert.Equal(t, `{"version":1}`, string(again), "callers must not alias the stored payload")
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	assert.Error(t, m.Write(ctx, "s", []byte("x")))
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "slots.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_ReadMissing(t *testing.T) {
	s := openTestSQLite(t)
	_, err := s.Read(context.Background(), "search_history")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	require.NoError(t, s.Write(ctx, "search_history", []byte("first")))
	require.NoError(t, s.Write(ctx, "search_history", []byte("second")))
	require.NoError(t, s.Write(ctx, "other", []byte("untouched")))

	got, err := s.Read(ctx, "search_history")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	other, err := s.Read(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(other))
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slots.db")

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "search_history", []byte("durable")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Read(ctx, "search_history")
	require.NoError(t, err)
	assert.Equal(t, "durable", string(got))
}

func TestSQLite_WriteAfterClose(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "slots.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Write(context.Background(), "search_history", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write slot")
}
