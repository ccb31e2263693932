package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"lsmkv/pkg/config"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, capacity int) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Path = t.TempDir()
	cfg.Storage.MemTableCapacity = capacity
	cfg.Storage.SyncOnBuild = false
	cfg.Cache.MaxCost = 1 << 20
	cfg.Cache.NumCounters = 1 << 12
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) *Store {
	t.Helper()

	s, err := Open(cfg, nil)
	require.NoError(t, err, "open store")
	return s
}

func mustGet(t *testing.T, s *Store, key string) (string, bool) {
	t.Helper()

	v, ok, err := s.Get([]byte(key))
	require.NoError(t, err)
	return string(v), ok
}

func scanAll(t *testing.T, s *Store, start, end string) []string {
	t.Helper()

	var out []string
	require.NoError(t, s.Scan([]byte(start), []byte(end), func(k, v []byte) bool {
		out = append(out, string(k)+"="+string(v))
		return true
	}))
	return out
}

func TestPutFlushesWhenFull(t *testing.T) {
	cfg := testConfig(t, 2)
	s := openStore(t, cfg)
	defer s.Close()

	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.Put([]byte("b"), []byte("2")))
	require.Empty(t, s.Tables())

	// third distinct key triggers a flush of a, b
	require.NoError(t, s.Put([]byte("c"), []byte("3")))
	tables := s.Tables()
	require.Len(t, tables, 1)
	require.Equal(t, "table-000001", tables[0].Name)
	require.Equal(t, 2, tables[0].Entries)
	require.Equal(t, []byte("a"), tables[0].MinKey)
	require.Equal(t, []byte("b"), tables[0].MaxKey)

	for k, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		v, ok := mustGet(t, s, k)
		require.True(t, ok, k)
		require.Equal(t, want, v)
	}
	_, ok := mustGet(t, s, "zz")
	require.False(t, ok)

	_, err := os.Stat(filepath.Join(cfg.Storage.Path, "table-000001.sst"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Storage.Path, "table-000001.idx"))
	require.NoError(t, err)
}

func TestNewestVersionWins(t *testing.T) {
	s := openStore(t, testConfig(t, 100))
	defer s.Close()

	require.NoError(t, s.Put([]byte("k"), []byte("old")))
	require.NoError(t, s.Put([]byte("j"), []byte("j1")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Put([]byte("k"), []byte("mid")))
	require.NoError(t, s.Flush())

	v, ok := mustGet(t, s, "k")
	require.True(t, ok)
	require.Equal(t, "mid", v)

	require.NoError(t, s.Put([]byte("k"), []byte("new")))
	v, _ = mustGet(t, s, "k")
	require.Equal(t, "new", v)

	require.Equal(t, []string{"j=j1", "k=new"}, scanAll(t, s, "a", "z"))
}

func TestDeleteOnlyAffectsBuffer(t *testing.T) {
	s := openStore(t, testConfig(t, 100))
	defer s.Close()

	require.NoError(t, s.Put([]byte("k"), []byte("flushed")))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Put([]byte("k"), []byte("buffered")))

	removed, err := s.Delete([]byte("k"))
	require.NoError(t, err)
	require.True(t, removed)

	v, ok := mustGet(t, s, "k")
	require.True(t, ok)
	require.Equal(t, "flushed", v)

	removed, err = s.Delete([]byte("k"))
	require.NoError(t, err)
	require.False(t, removed)
}

func TestScanMergesTablesAndMemtable(t *testing.T) {
	s := openStore(t, testConfig(t, 10))
	defer s.Close()

	for i := 0; i < 35; i++ {
		require.NoError(t, s.Put([]byte(fmt.Sprintf("key%02d", i)), []byte(fmt.Sprintf("v%d", i))))
	}
	require.Len(t, s.Tables(), 3)

	got := scanAll(t, s, "key08", "key12")
	require.Equal(t, []string{"key08=v8", "key09=v9", "key10=v10", "key11=v11", "key12=v12"}, got)
	require.Len(t, scanAll(t, s, "", "\xff"), 35)

	n := 0
	require.NoError(t, s.Scan([]byte("key00"), []byte("key99"), func(_, _ []byte) bool {
		n++
		return n < 3
	}))
	require.Equal(t, 3, n)
}

func TestReopenRestoresTables(t *testing.T) {
	cfg := testConfig(t, 4)
	s := openStore(t, cfg)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Put([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))))
	}
	before := scanAll(t, s, "k0", "k9")
	// Close flushes the remaining buffered keys
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Put([]byte("x"), nil), ErrClosed)

	s2 := openStore(t, cfg)
	defer s2.Close()
	require.Len(t, s2.Tables(), 3)
	require.Equal(t, before, scanAll(t, s2, "k0", "k9"))
	for i := 0; i < 10; i++ {
		v, ok := mustGet(t, s2, fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%d", i), v)
	}

	// sequence numbers continue after the restored tables
	require.NoError(t, s2.Put([]byte("new"), []byte("n")))
	require.NoError(t, s2.Flush())
	tables := s2.Tables()
	require.Equal(t, "table-000004", tables[len(tables)-1].Name)
}

func TestReopenFailsOnMissingTable(t *testing.T) {
	cfg := testConfig(t, 4)
	s := openStore(t, cfg)
	require.NoError(t, s.Put([]byte("a"), []byte("A")))
	require.NoError(t, s.Close())

	require.NoError(t, os.Remove(filepath.Join(cfg.Storage.Path, "table-000001.idx")))
	_, err := Open(cfg, nil)
	require.Error(t, err)
}

func TestGetWithoutCache(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Cache.Enabled = false
	s := openStore(t, cfg)
	defer s.Close()

	require.NoError(t, s.Put([]byte("a"), []byte("A")))
	require.NoError(t, s.Flush())
	for i := 0; i < 3; i++ {
		v, ok := mustGet(t, s, "a")
		require.True(t, ok)
		require.Equal(t, "A", v)
	}

	stats := s.Stats()
	require.EqualValues(t, 3, stats["sstable_hits"])
	require.EqualValues(t, 1, stats["flushes"])
	require.Equal(t, 1, stats["sstable_count"])
}

func TestFlushEmptyIsNoop(t *testing.T) {
	s := openStore(t, testConfig(t, 2))
	defer s.Close()

	require.NoError(t, s.Flush())
	require.Empty(t, s.Tables())
}
