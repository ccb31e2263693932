package sstable

import (
	"bytes"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// SSTable is an open, immutable table. Get and Scan may be called from any
// number of goroutines; the mutex only orders them against Close.
type SSTable struct {
	base     string
	opts     Options
	mu       sync.RWMutex
	file     *os.File
	fileSize int64
	index    []indexEntry
}

// Open loads <base>.idx into memory and keeps <base>.sst open for
// positioned reads.
func Open(base string, opts Options) (*SSTable, error) {
	t := &SSTable{base: base, opts: opts}

	index, err := loadIndex(t.IndexPath())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(t.DataPath())
	if err != nil {
		return nil, ioErrorf(err, "open %s", t.DataPath())
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErrorf(err, "stat %s", t.DataPath())
	}

	t.file = f
	t.fileSize = stat.Size()
	t.index = index

	if err := t.checkDataSize(); err != nil {
		f.Close()
		t.file = nil
		t.index = nil
		return nil, err
	}
	return t, nil
}

func loadIndex(path string) ([]indexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErrorf(err, "open %s", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, ioErrorf(err, "stat %s", path)
	}
	index, err := readIndex(f, stat.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return index, nil
}

// checkDataSize verifies the data file ends exactly after the last indexed
// record, which catches a truncated or foreign data file at open time.
func (t *SSTable) checkDataSize() error {
	var want uint64
	if n := len(t.index); n > 0 {
		last := t.index[n-1]
		var hdr [recordHeaderSize]byte
		if err := t.readAt(hdr[:], last.offset); err != nil {
			return errors.Wrapf(err, "read last record of %s", t.DataPath())
		}
		keyLen, valLen := decodeRecordHeader(hdr[:])
		want = last.offset + recordSize(int(keyLen), int(valLen))
	}
	if want != uint64(t.fileSize) {
		return errors.Wrapf(ErrCorrupt, "%s is %d bytes, index expects %d", t.DataPath(), t.fileSize, want)
	}
	return nil
}

// Close releases the data handle and drops the index. It is idempotent.
func (t *SSTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	t.index = nil
	if err != nil {
		return ioErrorf(err, "close %s", t.DataPath())
	}
	return nil
}

// search returns the position of the first index entry with key >= key.
func (t *SSTable) search(key []byte) int {
	return sort.Search(len(t.index), func(i int) bool {
		return bytes.Compare(t.index[i].key, key) >= 0
	})
}

// Get returns the value stored under key. A record that fails to parse or
// carries a different key than the index is treated as absent.
func (t *SSTable) Get(key []byte) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.file == nil {
		return nil, false, ErrNotOpen
	}

	i := t.search(key)
	if i == len(t.index) || !bytes.Equal(t.index[i].key, key) {
		return nil, false, nil
	}

	off := t.index[i].offset
	k, v, err := t.readRecordAt(off)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			t.opts.logger().Warn("sstable: unreadable record",
				zap.String("table", t.base), zap.Uint64("offset", off), zap.Error(err))
			return nil, false, nil
		}
		return nil, false, err
	}
	if !bytes.Equal(k, key) {
		t.opts.logger().Warn("sstable: record key does not match index",
			zap.String("table", t.base), zap.Uint64("offset", off),
			zap.ByteString("want", key), zap.ByteString("got", k))
		return nil, false, nil
	}
	return v, true, nil
}

// Scan calls visit for every key in [start, end] in ascending order until
// visit returns false. A malformed record stops the scan with ErrCorrupt.
// visit must not Close the table.
func (t *SSTable) Scan(start, end []byte, visit func(key, value []byte) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.file == nil {
		return ErrNotOpen
	}
	if bytes.Compare(start, end) > 0 {
		return nil
	}

	for i := t.search(start); i < len(t.index); i++ {
		e := t.index[i]
		if bytes.Compare(e.key, end) > 0 {
			break
		}
		k, v, err := t.readRecordAt(e.offset)
		if err != nil {
			return errors.Wrapf(err, "scan %s entry %d", t.base, i)
		}
		if !bytes.Equal(k, e.key) {
			return errors.Wrapf(ErrCorrupt, "record at offset %d holds %q, index says %q", e.offset, k, e.key)
		}
		if !visit(k, v) {
			return nil
		}
	}
	return nil
}

// Keys calls fn with every indexed key in order. It reads no data.
func (t *SSTable) Keys(fn func(key []byte) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.file == nil {
		return ErrNotOpen
	}
	for _, e := range t.index {
		if !fn(e.key) {
			break
		}
	}
	return nil
}

func (t *SSTable) readRecordAt(off uint64) ([]byte, []byte, error) {
	var hdr [recordHeaderSize]byte
	if err := t.readAt(hdr[:], off); err != nil {
		return nil, nil, err
	}
	keyLen, valLen := decodeRecordHeader(hdr[:])
	if off+recordSize(int(keyLen), int(valLen)) > uint64(t.fileSize) {
		return nil, nil, errors.Wrapf(ErrCorrupt, "record at offset %d runs past end of data", off)
	}

	buf := make([]byte, int(keyLen)+int(valLen))
	if err := t.readAt(buf, off+recordHeaderSize); err != nil {
		return nil, nil, err
	}
	return buf[:keyLen:keyLen], buf[keyLen:], nil
}

func (t *SSTable) readAt(p []byte, off uint64) error {
	if off > uint64(t.fileSize) || uint64(t.fileSize)-off < uint64(len(p)) {
		return errors.Wrapf(ErrCorrupt, "read of %d bytes at offset %d past end of data", len(p), off)
	}
	if _, err := t.file.ReadAt(p, int64(off)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errors.Wrapf(ErrCorrupt, "short read at offset %d", off)
		}
		return ioErrorf(err, "read %s at offset %d", t.DataPath(), off)
	}
	return nil
}

// Len returns the number of entries, 0 once closed.
func (t *SSTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// MinKey returns the smallest key, or nil for an empty or closed table.
func (t *SSTable) MinKey() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.index) == 0 {
		return nil
	}
	return t.index[0].key
}

func (t *SSTable) MaxKey() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.index) == 0 {
		return nil
	}
	return t.index[len(t.index)-1].key
}

func (t *SSTable) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.file != nil
}

func (t *SSTable) Base() string      { return t.base }
func (t *SSTable) DataPath() string  { return t.base + DataExt }
func (t *SSTable) IndexPath() string { return t.base + IndexExt }
