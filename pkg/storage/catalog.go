package storage

import (
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// TableMeta describes one flushed table. Name is relative to the data
// directory; the files are <Name>.sst and <Name>.idx.
type TableMeta struct {
	Seq       int64
	Name      string
	Entries   int
	MinKey    []byte
	MaxKey    []byte
	CreatedAt time.Time
}

// Catalog is the registry of flushed tables, kept in a SQLite file next to
// the tables themselves.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}

	query := `
	CREATE TABLE IF NOT EXISTS tables (
		seq        INTEGER PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		entries    INTEGER NOT NULL,
		min_key    BLOB,
		max_key    BLOB,
		created_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init catalog schema")
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set catalog pragmas")
	}

	return &Catalog{db: db}, nil
}

// NextSeq returns one past the highest registered sequence number.
func (c *Catalog) NextSeq() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var seq int64
	if err := c.db.QueryRow("SELECT COALESCE(MAX(seq), 0) + 1 FROM tables").Scan(&seq); err != nil {
		return 0, errors.Wrap(err, "catalog next seq")
	}
	return seq, nil
}

func (c *Catalog) Register(meta TableMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT INTO tables (seq, name, entries, min_key, max_key, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		meta.Seq, meta.Name, meta.Entries, meta.MinKey, meta.MaxKey, meta.CreatedAt.UnixNano(),
	)
	return errors.Wrapf(err, "register table %s", meta.Name)
}

// List returns every registered table, oldest first.
func (c *Catalog) List() ([]TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT seq, name, entries, min_key, max_key, created_at FROM tables ORDER BY seq ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var metas []TableMeta
	for rows.Next() {
		var m TableMeta
		var created int64
		if err := rows.Scan(&m.Seq, &m.Name, &m.Entries, &m.MinKey, &m.MaxKey, &created); err != nil {
			return nil, errors.Wrap(err, "scan table row")
		}
		m.CreatedAt = time.Unix(0, created)
		metas = append(metas, m)
	}
	return metas, errors.Wrap(rows.Err(), "list tables")
}

func (c *Catalog) Remove(seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec("DELETE FROM tables WHERE seq = ?", seq)
	return errors.Wrapf(err, "remove table %d", seq)
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
