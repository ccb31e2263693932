package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCatalogRegisterListRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := OpenCatalog(path)
	require.NoError(t, err)

	seq, err := c.NextSeq()
	require.NoError(t, err)
	require.EqualValues(t, 1, seq)

	now := time.Now()
	require.NoError(t, c.Register(TableMeta{Seq: 1, Name: "table-000001", Entries: 3, MinKey: []byte("a"), MaxKey: []byte("c"), CreatedAt: now}))
	require.NoError(t, c.Register(TableMeta{Seq: 2, Name: "table-000002", Entries: 1, MinKey: []byte("x"), MaxKey: []byte("x"), CreatedAt: now}))
	require.Error(t, c.Register(TableMeta{Seq: 2, Name: "dup", CreatedAt: now}), "duplicate seq must fail")

	seq, err = c.NextSeq()
	require.NoError(t, err)
	require.EqualValues(t, 3, seq)

	metas, err := c.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, "table-000001", metas[0].Name)
	require.Equal(t, 3, metas[0].Entries)
	require.Equal(t, []byte("a"), metas[0].MinKey)
	require.Equal(t, now.UnixNano(), metas[0].CreatedAt.UnixNano())

	require.NoError(t, c.Remove(1))
	require.NoError(t, c.Close())

	// survives reopen
	c2, err := OpenCatalog(path)
	require.NoError(t, err)
	defer c2.Close()
	metas, err = c2.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, "table-000002", metas[0].Name)
}
