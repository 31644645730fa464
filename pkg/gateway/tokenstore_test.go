package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/pkg/types"
)

// TestFileTokenStoreRoundTrip tests persistence across store instances
func TestFileTokenStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewFileTokenStore(dir)
	pair := types.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}
	require.NoError(t, store.Save(pair))

	reopened := NewFileTokenStore(dir)
	got, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

// TestFileTokenStoreMissingFile tests that a fresh data dir yields an
// empty session, not an error
func TestFileTokenStoreMissingFile(t *testing.T) {
	store := NewFileTokenStore(t.TempDir())

	pair, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

// TestFileTokenStoreClear tests session removal
func TestFileTokenStoreClear(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStore(dir)

	require.NoError(t, store.Save(types.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.Clear())

	pair, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, pair.AccessToken)

	// Clearing an already-clear session is fine
	require.NoError(t, store.Clear())
}

// TestFileTokenStorePermissions tests that the session file is owner-only
func TestFileTokenStorePermissions(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStore(dir)
	require.NoError(t, store.Save(types.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
