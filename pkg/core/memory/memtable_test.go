package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemTablePutGetDelete(t *testing.T) {
	mt := NewMemTable(0)

	require.NoError(t, mt.Put([]byte("foo"), []byte("bar")))
	v, ok := mt.Get([]byte("foo"))
	require.True(t, ok)
	require.Equal(t, "bar", string(v))
	require.Equal(t, 6, mt.Size())

	require.NoError(t, mt.Put([]byte("foo"), []byte("bazz")))
	require.Equal(t, 7, mt.Size())
	require.Equal(t, 1, mt.Count())

	require.True(t, mt.Delete([]byte("foo")))
	require.False(t, mt.Delete([]byte("foo")))
	_, ok = mt.Get([]byte("foo"))
	require.False(t, ok)
	require.Equal(t, 0, mt.Size())
}

func TestMemTableFullRejectsNewKeys(t *testing.T) {
	mt := NewMemTable(1)
	require.NoError(t, mt.Put([]byte("a"), []byte("1")))
	require.True(t, mt.Full())
	require.ErrorIs(t, mt.Put([]byte("b"), []byte("2")), ErrCapacityExceeded)
	require.Equal(t, 2, mt.Size())
}

func TestMemTableScanAndRecords(t *testing.T) {
	mt := NewMemTable(0)
	for _, k := range []string{"d", "b", "a", "c"} {
		require.NoError(t, mt.Put([]byte(k), []byte(k)))
	}

	var got []string
	mt.Scan([]byte("b"), []byte("c"), func(key, _ []byte) bool {
		got = append(got, string(key))
		return true
	})
	require.Equal(t, []string{"b", "c"}, got)

	recs := mt.Records()
	require.Len(t, recs, 4)
	require.Equal(t, "a", string(recs[0].Key))
	require.Equal(t, "d", string(recs[3].Key))
}

func TestMemTableConcurrentReaders(t *testing.T) {
	mt := NewMemTable(0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			mt.Put([]byte{byte(i % 256), byte(i / 256)}, []byte("v"))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				mt.Get([]byte{byte(i)})
				mt.Count()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 500, mt.Count())
}
