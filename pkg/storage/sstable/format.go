package sstable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
)

// data  : [keyLen u32][valLen u32][key][val] ...
// index : [count u32] then [keyLen u32][key][offset u64] ...
// All integers are little-endian.

const (
	DataExt  = ".sst"
	IndexExt = ".idx"

	recordHeaderSize = 4 + 4
	countSize        = 4
	offsetSize       = 8
)

type indexEntry struct {
	key    []byte
	offset uint64
}

func recordSize(keyLen, valLen int) uint64 {
	return recordHeaderSize + uint64(keyLen) + uint64(valLen)
}

func fitsU32(n int) bool {
	return uint64(n) <= math.MaxUint32
}

func appendRecordHeader(dst []byte, keyLen, valLen int) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(keyLen))
	return binary.LittleEndian.AppendUint32(dst, uint32(valLen))
}

func decodeRecordHeader(b []byte) (keyLen, valLen uint32) {
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8])
}

func appendIndexEntry(dst []byte, key []byte, offset uint64) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	return binary.LittleEndian.AppendUint64(dst, offset)
}

func encodeCount(n uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, n)
}

// readIndex parses a whole index stream of the given byte size. Short reads
// surface as ErrCorrupt, inconsistencies as ErrInvalidIndex.
func readIndex(r io.Reader, size int64) ([]indexEntry, error) {
	br := bufio.NewReader(r)

	var scratch [offsetSize]byte
	if _, err := io.ReadFull(br, scratch[:countSize]); err != nil {
		return nil, shortRead(err, "entry count")
	}
	count := binary.LittleEndian.Uint32(scratch[:countSize])

	// every entry takes at least 12 bytes, so a count larger than the file
	// allows is caught before allocating
	remaining := size - countSize
	if int64(count)*(4+offsetSize) > remaining {
		return nil, errors.Wrapf(ErrCorrupt, "index declares %d entries in %d bytes", count, remaining)
	}

	entries := make([]indexEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, scratch[:4]); err != nil {
			return nil, shortRead(err, "key length of entry %d", i)
		}
		keyLen := int64(binary.LittleEndian.Uint32(scratch[:4]))
		remaining -= 4 + offsetSize
		if keyLen > remaining {
			return nil, errors.Wrapf(ErrCorrupt, "entry %d key length %d past end of index", i, keyLen)
		}
		remaining -= keyLen

		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return nil, shortRead(err, "key of entry %d", i)
		}
		if _, err := io.ReadFull(br, scratch[:offsetSize]); err != nil {
			return nil, shortRead(err, "offset of entry %d", i)
		}
		if n := len(entries); n > 0 && bytes.Compare(entries[n-1].key, key) >= 0 {
			return nil, errors.Wrapf(ErrInvalidIndex, "entry %d is not above its predecessor", i)
		}
		entries = append(entries, indexEntry{
			key:    key,
			offset: binary.LittleEndian.Uint64(scratch[:offsetSize]),
		})
	}

	if _, err := br.ReadByte(); err != io.EOF {
		if err != nil {
			return nil, ioErrorf(err, "read index tail")
		}
		return nil, errors.Wrapf(ErrInvalidIndex, "trailing bytes after %d entries", count)
	}
	return entries, nil
}

func shortRead(err error, format string, args ...interface{}) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrCorrupt, "truncated index: "+format, args...)
	}
	return ioErrorf(err, "read index: "+format, args...)
}
