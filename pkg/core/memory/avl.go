package memory

import (
	"bytes"
	"iter"
	"strings"

	"lsmkv/pkg/common"

	"github.com/cockroachdb/errors"
)

// ErrCapacityExceeded is returned by Insert when a new key would push the
// tree past its capacity. The caller is expected to flush and retry.
var ErrCapacityExceeded = errors.New("memory: capacity exceeded")

type node struct {
	key    []byte
	value  []byte
	left   *node
	right  *node
	height int
}

// AVLTree is a height-balanced ordered map with an optional capacity.
// It performs no locking; see MemTable for the guarded variant.
type AVLTree struct {
	root     *node
	size     int
	capacity int
}

// NewAVLTree returns an empty tree. A capacity <= 0 means unbounded.
func NewAVLTree(capacity int) *AVLTree {
	if capacity < 0 {
		capacity = 0
	}
	return &AVLTree{capacity: capacity}
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balanceFactor(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func (n *node) fix() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right

	x.right = y
	y.left = t2

	y.fix()
	x.fix()
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left

	y.left = x
	x.right = t2

	x.fix()
	y.fix()
	return y
}

// Insert stores value under key. It reports true when a new key was added
// and false when an existing key was overwritten. A new key on a full tree
// is rejected with ErrCapacityExceeded and the tree is left untouched.
func (t *AVLTree) Insert(key, value []byte) (bool, error) {
	if t.Full() && !t.Search(key) {
		return false, ErrCapacityExceeded
	}
	var inserted bool
	t.root, inserted = insert(t.root, bytes.Clone(key), bytes.Clone(value))
	if inserted {
		t.size++
	}
	return inserted, nil
}

func insert(n *node, key, value []byte) (*node, bool) {
	if n == nil {
		return &node{key: key, value: value, height: 1}, true
	}

	var inserted bool
	switch c := bytes.Compare(key, n.key); {
	case c < 0:
		n.left, inserted = insert(n.left, key, value)
	case c > 0:
		n.right, inserted = insert(n.right, key, value)
	default:
		n.value = value
		return n, false
	}

	n.fix()
	balance := balanceFactor(n)

	if balance > 1 && bytes.Compare(key, n.left.key) < 0 {
		return rotateRight(n), inserted
	}
	if balance < -1 && bytes.Compare(key, n.right.key) > 0 {
		return rotateLeft(n), inserted
	}
	if balance > 1 && bytes.Compare(key, n.left.key) > 0 {
		n.left = rotateLeft(n.left)
		return rotateRight(n), inserted
	}
	if balance < -1 && bytes.Compare(key, n.right.key) < 0 {
		n.right = rotateRight(n.right)
		return rotateLeft(n), inserted
	}
	return n, inserted
}

// Remove deletes key. It reports whether the key was present.
func (t *AVLTree) Remove(key []byte) bool {
	var removed bool
	t.root, removed = remove(t.root, key)
	if removed {
		t.size--
	}
	return removed
}

func minNode(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

func remove(n *node, key []byte) (*node, bool) {
	if n == nil {
		return nil, false
	}

	var removed bool
	switch c := bytes.Compare(key, n.key); {
	case c < 0:
		n.left, removed = remove(n.left, key)
	case c > 0:
		n.right, removed = remove(n.right, key)
	default:
		removed = true
		if n.left == nil || n.right == nil {
			child := n.left
			if child == nil {
				child = n.right
			}
			if child == nil {
				return nil, true
			}
			n = child
		} else {
			succ := minNode(n.right)
			n.key = succ.key
			n.value = succ.value
			n.right, _ = remove(n.right, succ.key)
		}
	}

	if !removed {
		return n, false
	}

	n.fix()
	balance := balanceFactor(n)

	// Deletion picks the rotation from the child's shape, not from the key.
	if balance > 1 {
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n), true
	}
	if balance < -1 {
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n), true
	}
	return n, true
}

// Search reports whether key is present.
func (t *AVLTree) Search(key []byte) bool {
	_, ok := t.Get(key)
	return ok
}

// Get returns the value stored under key.
func (t *AVLTree) Get(key []byte) ([]byte, bool) {
	n := t.root
	for n != nil {
		switch c := bytes.Compare(key, n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	return nil, false
}

// Ascend calls fn for every entry in ascending key order until fn returns false.
func (t *AVLTree) Ascend(fn func(key, value []byte) bool) {
	ascend(t.root, fn)
}

func ascend(n *node, fn func(key, value []byte) bool) bool {
	if n == nil {
		return true
	}
	return ascend(n.left, fn) && fn(n.key, n.value) && ascend(n.right, fn)
}

// AscendRange is Ascend restricted to keys in [start, end].
func (t *AVLTree) AscendRange(start, end []byte, fn func(key, value []byte) bool) {
	if bytes.Compare(start, end) > 0 {
		return
	}
	ascendRange(t.root, start, end, fn)
}

func ascendRange(n *node, start, end []byte, fn func(key, value []byte) bool) bool {
	if n == nil {
		return true
	}
	lo := bytes.Compare(n.key, start)
	hi := bytes.Compare(n.key, end)
	if lo > 0 && !ascendRange(n.left, start, end, fn) {
		return false
	}
	if lo >= 0 && hi <= 0 && !fn(n.key, n.value) {
		return false
	}
	if hi < 0 {
		return ascendRange(n.right, start, end, fn)
	}
	return true
}

// All yields the entries in ascending key order. It is the shape
// sstable.Build consumes.
func (t *AVLTree) All() iter.Seq[common.Record] {
	return func(yield func(common.Record) bool) {
		t.Ascend(func(key, value []byte) bool {
			return yield(common.Record{Key: key, Value: value})
		})
	}
}

// Records materializes All.
func (t *AVLTree) Records() []common.Record {
	out := make([]common.Record, 0, t.size)
	for rec := range t.All() {
		out = append(out, rec)
	}
	return out
}

func (t *AVLTree) Len() int { return t.size }

// Capacity returns the configured limit, 0 when unbounded.
func (t *AVLTree) Capacity() int { return t.capacity }

func (t *AVLTree) Full() bool {
	return t.capacity > 0 && t.size >= t.capacity
}

// String renders the in-order listing as " (k, v)  (k, v) ".
func (t *AVLTree) String() string {
	var sb strings.Builder
	t.Ascend(func(key, value []byte) bool {
		sb.WriteString(" (")
		sb.Write(key)
		sb.WriteString(", ")
		sb.Write(value)
		sb.WriteString(") ")
		return true
	})
	return sb.String()
}
