package core

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"lsmkv/pkg/common"
	"lsmkv/pkg/config"
	"lsmkv/pkg/core/memory"
	"lsmkv/pkg/core/structure"
	"lsmkv/pkg/monitor"
	"lsmkv/pkg/storage"
	"lsmkv/pkg/storage/sstable"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/btree"
	"go.uber.org/zap"
)

// ErrClosed is returned by every operation on a closed Store.
var ErrClosed = errors.New("store: closed")

type table struct {
	meta  storage.TableMeta
	sst   *sstable.SSTable
	bloom *structure.BloomFilter
}

// Store owns one data directory: a bounded memtable plus the immutable
// tables it has been flushed into. Writes are serialized by the store's
// mutex; reads share it.
type Store struct {
	mutex   sync.RWMutex
	conf    *config.Config
	logger  *zap.Logger
	mem     *memory.MemTable
	tables  []*table // oldest first
	catalog *storage.Catalog
	cache   *ristretto.Cache[string, []byte]
	stats   *monitor.WorkloadStats
	closed  bool
}

// Open creates the data directory if needed and reopens every table the
// catalog knows about. A nil logger disables logging.
func Open(cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", cfg.Storage.Path)
	}

	catalog, err := storage.OpenCatalog(filepath.Join(cfg.Storage.Path, cfg.Storage.CatalogFile))
	if err != nil {
		return nil, err
	}

	s := &Store{
		conf:    cfg,
		logger:  logger,
		mem:     memory.NewMemTable(cfg.Storage.MemTableCapacity),
		catalog: catalog,
		stats:   monitor.NewWorkloadStats(),
	}

	if cfg.Cache.Enabled {
		s.cache, err = ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: cfg.Cache.NumCounters,
			MaxCost:     cfg.Cache.MaxCost,
			BufferItems: 64,
		})
		if err != nil {
			catalog.Close()
			return nil, errors.Wrap(err, "create read cache")
		}
	}

	if err := s.restoreTables(); err != nil {
		s.closeTables()
		if s.cache != nil {
			s.cache.Close()
		}
		catalog.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) tableOptions() sstable.Options {
	return sstable.Options{
		Sync:   s.conf.Storage.SyncOnBuild,
		Logger: s.logger,
	}
}

func (s *Store) restoreTables() error {
	metas, err := s.catalog.List()
	if err != nil {
		return err
	}

	for _, meta := range metas {
		base := filepath.Join(s.conf.Storage.Path, meta.Name)
		sst, err := sstable.Open(base, s.tableOptions())
		if err != nil {
			return errors.Wrapf(err, "restore table %s", meta.Name)
		}
		t := &table{meta: meta, sst: sst}
		if err := s.buildBloom(t); err != nil {
			sst.Close()
			return err
		}
		s.tables = append(s.tables, t)
	}
	s.logger.Info("tables restored", zap.Int("count", len(s.tables)), zap.String("path", s.conf.Storage.Path))
	return nil
}

func (s *Store) buildBloom(t *table) error {
	t.bloom = structure.NewBloomFilter(uint(t.sst.Len()), s.conf.Storage.BloomFalseProb)
	return t.sst.Keys(func(key []byte) bool {
		t.bloom.Add(key)
		return true
	})
}

// Put writes into the memtable, flushing it first when it is full.
func (s *Store) Put(key, val []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.stats.RecordWrite()

	err := s.mem.Put(key, val)
	if !errors.Is(err, memory.ErrCapacityExceeded) {
		return err
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.mem.Put(key, val)
}

// Delete removes key from the unflushed buffer. Flushed tables are
// immutable, so an older flushed version of key stays visible.
func (s *Store) Delete(key []byte) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	s.stats.RecordWrite()
	return s.mem.Delete(key), nil
}

// Get checks the memtable, then the tables from newest to oldest.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	s.stats.RecordRead()

	if val, ok := s.mem.Get(key); ok {
		s.stats.RecordHit()
		return val, true, nil
	}

	for i := len(s.tables) - 1; i >= 0; i-- {
		t := s.tables[i]
		if !t.bloom.Contains(key) {
			continue
		}
		cacheKey := t.meta.Name + "\x00" + string(key)
		if s.cache != nil {
			if val, ok := s.cache.Get(cacheKey); ok {
				s.stats.RecordTableHit()
				return val, true, nil
			}
		}
		val, ok, err := t.sst.Get(key)
		if err != nil {
			return nil, false, errors.Wrapf(err, "get from %s", t.meta.Name)
		}
		if ok {
			if s.cache != nil {
				s.cache.Set(cacheKey, val, int64(len(cacheKey)+len(val)))
			}
			s.stats.RecordTableHit()
			return val, true, nil
		}
	}
	return nil, false, nil
}

// Scan visits every live key in [start, end] in ascending order. When a key
// exists in several places the newest version wins.
func (s *Store) Scan(start, end []byte, visit func(key, val []byte) bool) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return ErrClosed
	}
	s.stats.RecordRead()

	merged := btree.NewG[common.Record](32, common.Less)
	add := func(key, val []byte) bool {
		merged.ReplaceOrInsert(common.Record{Key: key, Value: val})
		return true
	}

	for _, t := range s.tables {
		if err := t.sst.Scan(start, end, add); err != nil {
			return errors.Wrapf(err, "scan %s", t.meta.Name)
		}
	}
	s.mem.Scan(start, end, add)

	merged.Ascend(func(r common.Record) bool {
		return visit(r.Key, r.Value)
	})
	return nil
}

// Flush drains the memtable into a new table. It is a no-op when the
// memtable is empty.
func (s *Store) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	count := s.mem.Count()
	if count == 0 {
		return nil
	}
	start := time.Now()

	seq, err := s.catalog.NextSeq()
	if err != nil {
		return err
	}
	name := fmt.Sprintf("table-%06d", seq)
	base := filepath.Join(s.conf.Storage.Path, name)

	sst, err := sstable.Build(base, slices.Values(s.mem.Records()), s.tableOptions())
	if err != nil {
		s.logger.Error("flush failed", zap.String("table", name), zap.Error(err))
		return errors.Wrapf(err, "flush %s", name)
	}

	meta := storage.TableMeta{
		Seq:       seq,
		Name:      name,
		Entries:   sst.Len(),
		MinKey:    sst.MinKey(),
		MaxKey:    sst.MaxKey(),
		CreatedAt: time.Now(),
	}
	if err := s.catalog.Register(meta); err != nil {
		sst.Close()
		os.Remove(sst.DataPath())
		os.Remove(sst.IndexPath())
		return err
	}

	t := &table{meta: meta, sst: sst}
	if err := s.buildBloom(t); err != nil {
		return err
	}
	s.tables = append(s.tables, t)
	s.mem = memory.NewMemTable(s.conf.Storage.MemTableCapacity)
	s.stats.RecordFlush()

	s.logger.Info("memtable flushed",
		zap.String("table", name),
		zap.Int("entries", count),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Tables lists the flushed tables, oldest first.
func (s *Store) Tables() []storage.TableMeta {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]storage.TableMeta, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.meta)
	}
	return out
}

func (s *Store) Stats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tableEntries := 0
	for _, t := range s.tables {
		tableEntries += t.meta.Entries
	}
	snap := s.stats.Snapshot()
	return map[string]interface{}{
		"memtable_record_count": s.mem.Count(),
		"memtable_bytes":        s.mem.Size(),
		"memtable_capacity":     s.conf.Storage.MemTableCapacity,
		"sstable_count":         len(s.tables),
		"sstable_entries":       tableEntries,
		"reads":                 snap.ReadCount,
		"writes":                snap.WriteCount,
		"memtable_hits":         snap.HitCount,
		"sstable_hits":          snap.TableHitCount,
		"flushes":               snap.FlushCount,
		"rw_ratio":              s.stats.GetReadWriteRatio(),
	}
}

// Close flushes pending writes and releases every file. There is no
// write-ahead log, so anything not flushed here is lost.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flushLocked()
	if cerr := s.closeTables(); err == nil {
		err = cerr
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if cerr := s.catalog.Close(); err == nil {
		err = errors.Wrap(cerr, "close catalog")
	}
	return err
}

func (s *Store) closeTables() error {
	var first error
	for _, t := range s.tables {
		if err := t.sst.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.tables = nil
	return first
}
