package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/cargomcp/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Atomic Export
// The export store stages pages in a temp directory

func TestExportStore_SaveWritesToTempDirectory(t *testing.T) {
	t.Parallel()

	// Given a store targeting a directory
	base := t.TempDir()
	store := fs.NewExportStore(base, "mycrate")

	// When I save a page
	err := store.Save(context.Background(), testPage())

	// Then the file exists in the temp directory only
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "mycrate.tmp", "mycrate", "util", "struct.Helper.md"))
	require.NoError(t, err, "file should exist in temp directory")
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err), "final directory should not exist until commit")
}

func TestExportStore_CommitReplacesPreviousExport(t *testing.T) {
	t.Parallel()

	// Given a previous export with a page that no longer exists
	base := t.TempDir()
	stale := filepath.Join(base, "mycrate", "old.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	store := fs.NewExportStore(base, "mycrate")
	require.NoError(t, store.Save(context.Background(), testPage()))

	// When I commit
	require.NoError(t, store.Commit())

	// Then the new page exists and the stale one is gone
	_, err := os.Stat(filepath.Join(store.Dir(), "mycrate", "util", "struct.Helper.md"))
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "mycrate.tmp"))
	assert.True(t, os.IsNotExist(err), "temp directory should be removed after commit")
}

func TestExportStore_CommitWithoutPages(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store := fs.NewExportStore(base, "empty")

	require.NoError(t, store.Commit())

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExportStore_AbortCleansUpTempDirectory(t *testing.T) {
	t.Parallel()

	// Given a store with saved pages
	base := t.TempDir()
	store := fs.NewExportStore(base, "mycrate")
	require.NoError(t, store.Save(context.Background(), testPage()))

	// When I abort
	require.NoError(t, store.Abort())

	// Then nothing is left behind
	_, err := os.Stat(filepath.Join(base, "mycrate.tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err))
}
