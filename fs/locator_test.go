package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

const workspaceManifest = "[workspace]\nmembers = [\"crates/*\"]\n"

const memberManifest = "[package]\nname = \"member\"\nversion = \"0.1.0\"\n"

func TestLocator_Locate(t *testing.T) {
	t.Parallel()

	t.Run("finds the manifest in the directory itself", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), memberManifest)

		root, err := fs.NewLocator().Locate(context.Background(), dir, cargomcp.ScopeProject)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(dir), root)
	})

	t.Run("walks up from a nested directory", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), memberManifest)
		nested := filepath.Join(dir, "src", "bin")
		require.NoError(t, os.MkdirAll(nested, 0755))

		root, err := fs.NewLocator().Locate(context.Background(), nested, cargomcp.ScopeProject)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(dir), root)
	})

	t.Run("project scope prefers the member manifest", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), workspaceManifest)
		member := filepath.Join(dir, "crates", "member")
		writeFile(t, filepath.Join(member, "Cargo.toml"), memberManifest)

		root, err := fs.NewLocator().Locate(context.Background(), filepath.Join(member), cargomcp.ScopeProject)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(member), root)
	})

	t.Run("workspace scope prefers the workspace root", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), workspaceManifest)
		member := filepath.Join(dir, "crates", "member")
		writeFile(t, filepath.Join(member, "Cargo.toml"), memberManifest)

		root, err := fs.NewLocator().Locate(context.Background(), member, cargomcp.ScopeWorkspace)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(dir), root)
	})

	t.Run("workspace scope recognizes workspace subtables", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), "[workspace.dependencies]\nserde = \"1\"\n")
		member := filepath.Join(dir, "member")
		writeFile(t, filepath.Join(member, "Cargo.toml"), memberManifest)

		root, err := fs.NewLocator().Locate(context.Background(), member, cargomcp.ScopeWorkspace)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(dir), root)
	})

	t.Run("workspace scope falls back to the nearest manifest", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), memberManifest)

		root, err := fs.NewLocator().Locate(context.Background(), dir, cargomcp.ScopeWorkspace)

		require.NoError(t, err)
		assert.Equal(t, cargomcp.ProjectRoot(dir), root)
	})

	t.Run("nested workspaces are ambiguous", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), workspaceManifest)
		inner := filepath.Join(dir, "vendor", "inner")
		writeFile(t, filepath.Join(inner, "Cargo.toml"), workspaceManifest)

		_, err := fs.NewLocator().Locate(context.Background(), inner, cargomcp.ScopeWorkspace)

		assert.Equal(t, cargomcp.EAMBIGUOUS, cargomcp.ErrorCode(err))
	})

	t.Run("fails without a manifest", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)

		_, err := fs.NewLocator().Locate(context.Background(), dir, cargomcp.ScopeProject)

		assert.Equal(t, cargomcp.ENOTPROJECT, cargomcp.ErrorCode(err))
	})

	t.Run("rejects missing directories", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)

		_, err := fs.NewLocator().Locate(context.Background(), filepath.Join(dir, "nope"), cargomcp.ScopeProject)

		assert.Equal(t, cargomcp.EINVALID, cargomcp.ErrorCode(err))
	})

	t.Run("rejects files", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		writeFile(t, filepath.Join(dir, "Cargo.toml"), memberManifest)

		_, err := fs.NewLocator().Locate(context.Background(), filepath.Join(dir, "Cargo.toml"), cargomcp.ScopeProject)

		assert.Equal(t, cargomcp.EINVALID, cargomcp.ErrorCode(err))
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()

		dir := tempDir(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fs.NewLocator().Locate(ctx, dir, cargomcp.ScopeProject)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
