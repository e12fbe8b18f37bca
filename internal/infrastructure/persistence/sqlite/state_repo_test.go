package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewConnection(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	repo := NewStateRepository(db)

	// Missing key reads as absent, not as an error
	blob, err := repo.Get(ctx, "tabs")
	require.NoError(t, err)
	require.Nil(t, blob)

	require.NoError(t, repo.Set(ctx, "tabs", []byte(`{"activeTabId":"t1"}`)))

	blob, err = repo.Get(ctx, "tabs")
	require.NoError(t, err)
	require.Equal(t, `{"activeTabId":"t1"}`, string(blob))

	// Upsert replaces
	require.NoError(t, repo.Set(ctx, "tabs", []byte(`{"activeTabId":"t2"}`)))
	blob, err = repo.Get(ctx, "tabs")
	require.NoError(t, err)
	require.Equal(t, `{"activeTabId":"t2"}`, string(blob))
}

func TestNewConnectionRejectsEmptyPath(t *testing.T) {
	_, err := NewConnection(context.Background(), "")
	require.Error(t, err)
}
