package memory

import (
	"lsmkv/pkg/common"
	"sync"
)

// MemTable guards one AVLTree with a RWMutex so readers can run alongside
// the single writer that owns it.
type MemTable struct {
	tree *AVLTree
	lock sync.RWMutex
	size int
}

func NewMemTable(capacity int) *MemTable {
	return &MemTable{
		tree: NewAVLTree(capacity),
	}
}

// Put returns ErrCapacityExceeded when the key is new and the table is full.
func (mt *MemTable) Put(key, val []byte) error {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	old, existed := mt.tree.Get(key)
	if _, err := mt.tree.Insert(key, val); err != nil {
		return err
	}
	if existed {
		mt.size -= len(old)
	} else {
		mt.size += len(key)
	}
	mt.size += len(val)
	return nil
}

func (mt *MemTable) Get(key []byte) ([]byte, bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.tree.Get(key)
}

func (mt *MemTable) Delete(key []byte) bool {
	mt.lock.Lock()
	defer mt.lock.Unlock()

	val, ok := mt.tree.Get(key)
	if !ok {
		return false
	}
	mt.tree.Remove(key)
	mt.size -= len(key) + len(val)
	return true
}

// Size returns the payload bytes held (keys plus values).
func (mt *MemTable) Size() int {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.size
}

func (mt *MemTable) Count() int {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.tree.Len()
}

func (mt *MemTable) Full() bool {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.tree.Full()
}

func (mt *MemTable) Iterator(fn func(key, val []byte) bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	mt.tree.Ascend(fn)
}

// Scan visits keys in [start, end] in ascending order.
func (mt *MemTable) Scan(start, end []byte, fn func(key, val []byte) bool) {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	mt.tree.AscendRange(start, end, fn)
}

// Records returns a sorted snapshot suitable for sstable.Build.
func (mt *MemTable) Records() []common.Record {
	mt.lock.RLock()
	defer mt.lock.RUnlock()
	return mt.tree.Records()
}
