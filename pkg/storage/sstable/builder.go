package sstable

import (
	"bufio"
	"bytes"
	"iter"
	"math"
	"os"

	"lsmkv/pkg/common"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var errBuilderDone = errors.New("sstable: builder already finished")

// Options tune how tables are written and read.
type Options struct {
	// Sync fsyncs both files before Finish returns.
	Sync bool
	// Logger receives corruption warnings and build summaries. Nil is silent.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Builder streams sorted records into a fresh data/index file pair.
// Callers must end every Builder with Finish or Abort.
type Builder struct {
	base      string
	opts      Options
	dataFile  *os.File
	indexFile *os.File
	data      *bufio.Writer
	index     *bufio.Writer
	offset    uint64
	count     uint64
	lastKey   []byte
	scratch   []byte
	done      bool
}

// NewBuilder truncates or creates <base>.sst and <base>.idx.
func NewBuilder(base string, opts Options) (*Builder, error) {
	df, err := os.Create(base + DataExt)
	if err != nil {
		return nil, ioErrorf(err, "create %s", base+DataExt)
	}
	xf, err := os.Create(base + IndexExt)
	if err != nil {
		df.Close()
		os.Remove(base + DataExt)
		return nil, ioErrorf(err, "create %s", base+IndexExt)
	}

	b := &Builder{
		base:      base,
		opts:      opts,
		dataFile:  df,
		indexFile: xf,
		data:      bufio.NewWriterSize(df, 64*1024),
		index:     bufio.NewWriter(xf),
	}
	// entry count is patched in Finish once it is known
	if _, err := b.index.Write(encodeCount(0)); err != nil {
		b.Abort()
		return nil, ioErrorf(err, "write index header")
	}
	return b, nil
}

// Add appends one record. Keys must be strictly ascending; the builder
// never sorts.
func (b *Builder) Add(key, val []byte) error {
	if b.done {
		return errBuilderDone
	}
	if !fitsU32(len(key)) || !fitsU32(len(val)) {
		return errors.Wrapf(ErrTooLarge, "record %d: key %d bytes, value %d bytes", b.count, len(key), len(val))
	}
	if b.count == math.MaxUint32 {
		return errors.Wrapf(ErrTooLarge, "more than %d entries", uint32(math.MaxUint32))
	}
	if b.count > 0 && bytes.Compare(key, b.lastKey) <= 0 {
		return errors.Wrapf(ErrOutOfOrder, "key %q after %q", key, b.lastKey)
	}

	b.scratch = appendRecordHeader(b.scratch[:0], len(key), len(val))
	if _, err := b.data.Write(b.scratch); err != nil {
		return ioErrorf(err, "write record %d", b.count)
	}
	if _, err := b.data.Write(key); err != nil {
		return ioErrorf(err, "write record %d", b.count)
	}
	if _, err := b.data.Write(val); err != nil {
		return ioErrorf(err, "write record %d", b.count)
	}

	b.scratch = appendIndexEntry(b.scratch[:0], key, b.offset)
	if _, err := b.index.Write(b.scratch); err != nil {
		return ioErrorf(err, "write index entry %d", b.count)
	}

	b.offset += recordSize(len(key), len(val))
	b.count++
	b.lastKey = append(b.lastKey[:0], key...)
	return nil
}

// Finish flushes, patches the entry count and closes both files. On error
// the partial files are removed.
func (b *Builder) Finish() error {
	if b.done {
		return errBuilderDone
	}
	if err := b.finish(); err != nil {
		b.Abort()
		return err
	}
	b.done = true

	b.opts.logger().Debug("sstable built",
		zap.String("base", b.base),
		zap.Uint64("entries", b.count),
		zap.Uint64("data_bytes", b.offset))
	return nil
}

func (b *Builder) finish() error {
	if err := b.data.Flush(); err != nil {
		return ioErrorf(err, "flush %s", b.dataFile.Name())
	}
	if err := b.index.Flush(); err != nil {
		return ioErrorf(err, "flush %s", b.indexFile.Name())
	}
	if _, err := b.indexFile.WriteAt(encodeCount(uint32(b.count)), 0); err != nil {
		return ioErrorf(err, "patch entry count")
	}
	if b.opts.Sync {
		if err := b.dataFile.Sync(); err != nil {
			return ioErrorf(err, "sync %s", b.dataFile.Name())
		}
		if err := b.indexFile.Sync(); err != nil {
			return ioErrorf(err, "sync %s", b.indexFile.Name())
		}
	}
	if err := b.dataFile.Close(); err != nil {
		return ioErrorf(err, "close %s", b.dataFile.Name())
	}
	if err := b.indexFile.Close(); err != nil {
		return ioErrorf(err, "close %s", b.indexFile.Name())
	}
	return nil
}

// Abort discards everything written so far. It is safe to call after a
// failed Add or Finish.
func (b *Builder) Abort() {
	if b.done {
		return
	}
	b.done = true
	b.dataFile.Close()
	b.indexFile.Close()
	os.Remove(b.base + DataExt)
	os.Remove(b.base + IndexExt)
}

// Count returns the records added so far.
func (b *Builder) Count() uint64 { return b.count }

// Build writes records to a new table at base and opens it. records must be
// strictly ascending by key, as produced by memory.AVLTree.All.
func Build(base string, records iter.Seq[common.Record], opts Options) (*SSTable, error) {
	b, err := NewBuilder(base, opts)
	if err != nil {
		return nil, err
	}
	for rec := range records {
		if err := b.Add(rec.Key, rec.Value); err != nil {
			b.Abort()
			return nil, err
		}
	}
	if err := b.Finish(); err != nil {
		return nil, err
	}
	return Open(base, opts)
}
