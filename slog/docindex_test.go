package slog_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/cargomcp"
	"github.com/fwojciec/cargomcp/mock"
	cmslog "github.com/fwojciec/cargomcp/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingDocIndex_FindSymbol(t *testing.T) {
	t.Parallel()

	t.Run("logs the query and match count", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.DocIndexService{
			FindSymbolFn: func(_ context.Context, _ cargomcp.ProjectRoot, query string, _ cargomcp.FindOptions) (*cargomcp.SymbolResult, error) {
				return &cargomcp.SymbolResult{Query: query, Total: 2, Version: "3-abc"}, nil
			},
		}

		svc := cmslog.NewLoggingDocIndex(inner, newLogger(&buf))
		res, err := svc.FindSymbol(context.Background(), "/work/a", "crate::util::Helper", cargomcp.FindOptions{})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		output := buf.String()
		assert.Contains(t, output, "find symbol")
		assert.Contains(t, output, "query=crate::util::Helper")
		assert.Contains(t, output, "total=2")
		assert.Contains(t, output, "version=3-abc")
	})

	t.Run("logs errors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.DocIndexService{
			FindSymbolFn: func(context.Context, cargomcp.ProjectRoot, string, cargomcp.FindOptions) (*cargomcp.SymbolResult, error) {
				return nil, cargomcp.Errorf(cargomcp.EUNAVAILABLE, "no manifest")
			},
		}

		svc := cmslog.NewLoggingDocIndex(inner, newLogger(&buf))
		_, err := svc.FindSymbol(context.Background(), "/work/a", "x", cargomcp.FindOptions{})

		require.Error(t, err)
		assert.Contains(t, buf.String(), `err="no manifest"`)
		assert.Contains(t, buf.String(), "total=0")
	})
}

func TestLoggingDocIndex_Refresh(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.DocIndexService{
		RefreshFn: func(context.Context, cargomcp.ProjectRoot) (cargomcp.IndexVersion, error) {
			return cargomcp.IndexVersion{Seq: 4, Hash: "ff"}, nil
		},
	}

	svc := cmslog.NewLoggingDocIndex(inner, newLogger(&buf))
	v, err := svc.Refresh(context.Background(), "/work/a")

	require.NoError(t, err)
	assert.Equal(t, uint64(4), v.Seq)
	assert.Contains(t, buf.String(), "index refresh")
	assert.Contains(t, buf.String(), "version=4-ff")
}

func TestLoggingDocIndex_GetDocumentation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.DocIndexService{
		GetDocumentationFn: func(context.Context, cargomcp.ProjectRoot, string) (*cargomcp.Page, error) {
			return &cargomcp.Page{Markdown: "# Helper"}, nil
		},
	}

	svc := cmslog.NewLoggingDocIndex(inner, newLogger(&buf))
	_, err := svc.GetDocumentation(context.Background(), "/work/a", "mycrate/struct.Helper.html")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "path=mycrate/struct.Helper.html")
	assert.Contains(t, buf.String(), "bytes=8")
}

func TestLoggingSnapshotStore_SaveSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("logs failed writes as warnings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.SnapshotStore{
			SaveSnapshotFn: func(context.Context, *cargomcp.IndexSnapshot) error {
				return errors.New("disk full")
			},
		}

		store := cmslog.NewLoggingSnapshotStore(inner, newLogger(&buf))
		err := store.SaveSnapshot(context.Background(), &cargomcp.IndexSnapshot{Root: "/work/a", Hash: "h1"})

		require.Error(t, err)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), `err="disk full"`)
	})

	t.Run("logs successful writes at debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.SnapshotStore{
			SaveSnapshotFn: func(context.Context, *cargomcp.IndexSnapshot) error { return nil },
		}

		store := cmslog.NewLoggingSnapshotStore(inner, newLogger(&buf))
		require.NoError(t, store.SaveSnapshot(context.Background(), &cargomcp.IndexSnapshot{Root: "/work/a", Hash: "h1"}))

		assert.Contains(t, buf.String(), "level=DEBUG")
		assert.Contains(t, buf.String(), "hash=h1")
	})
}
