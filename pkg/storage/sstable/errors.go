package sstable

import "github.com/cockroachdb/errors"

var (
	// ErrIO marks any read, write, open or close failure on the table files.
	ErrIO = errors.New("sstable: io failure")

	// ErrCorrupt is returned when a record or index entry cannot be parsed,
	// or a record read back does not carry the key the index promised.
	ErrCorrupt = errors.New("sstable: corrupt record")

	// ErrNotOpen is returned by reads on a table that was never opened or
	// has been closed.
	ErrNotOpen = errors.New("sstable: table not open")

	// ErrInvalidIndex is returned when the index file is well-formed but
	// inconsistent: trailing bytes after the declared entries, or keys that
	// are not strictly ascending.
	ErrInvalidIndex = errors.New("sstable: invalid index")

	// ErrOutOfOrder is returned by Builder.Add when keys are not strictly
	// ascending.
	ErrOutOfOrder = errors.New("sstable: keys out of order")

	// ErrTooLarge is returned when a key, value or entry count does not fit
	// the 32-bit fields of the file format.
	ErrTooLarge = errors.New("sstable: field exceeds 32-bit limit")
)

func ioErrorf(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIO)
}
