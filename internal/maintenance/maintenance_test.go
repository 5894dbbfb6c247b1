package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/masterlist/internal/config"
	"github.com/woozymasta/masterlist/internal/storage"
)

func newStore(t *testing.T) *storage.Repository {
	t.Helper()

	repo, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestRun_NothingToDo(t *testing.T) {
	assert.False(t, Run(context.Background(), &config.Config{}, newStore(t)))
}

func TestRun_AddUser(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Storage.AddUser = "alice"

	assert.True(t, Run(ctx, cfg, repo))
	assert.True(t, Run(ctx, cfg, repo))

	u, err := repo.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, storage.PlaceholderHash, u.PwHash)
}

func TestRun_PruneExpired(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	_, err := repo.InsertBan(ctx, "1", "", time.Now(), &past)
	require.NoError(t, err)
	_, err = repo.InsertBan(ctx, "2", "", time.Now(), nil)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Storage.PruneExpired = true
	assert.True(t, Run(ctx, cfg, repo))

	recent, err := repo.RecentBans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "2", recent[0].Identifier)
}

func TestRun_PutEULA(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "eula.txt")
	require.NoError(t, os.WriteFile(file, []byte("Be nice.\n"), 0o600))

	cfg := &config.Config{}
	cfg.Storage.PutEULA = file
	cfg.Storage.EULALang = "english"

	assert.True(t, Run(ctx, cfg, repo))
	assert.True(t, Run(ctx, cfg, repo))

	eula, err := repo.LatestEULA(ctx, "english")
	require.NoError(t, err)
	require.NotNil(t, eula)
	assert.Equal(t, "Be nice.", eula.Contents)
	assert.Equal(t, 2, eula.Version)
}

func TestPutEULA_Errors(t *testing.T) {
	repo := newStore(t)
	ctx := context.Background()

	assert.Error(t, putEULA(ctx, repo, filepath.Join(t.TempDir(), "missing.txt"), "english"))

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	assert.Error(t, putEULA(ctx, repo, empty, ""))

	eula, err := repo.LatestEULA(ctx, "english")
	require.NoError(t, err)
	assert.Nil(t, eula)
}
