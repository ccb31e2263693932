package common

import (
	"bytes"
	"fmt"
)

// Record 是内存和磁盘中存储的基本单元。Key 与 Value 都是不透明的字节串。
type Record struct {
	Key   []byte
	Value []byte
}

// Compare 是全系统唯一的键序：按字节字典序比较。
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Less 方便 btree 等有序容器使用
func Less(a, b Record) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// String 方便调试打印
func (r *Record) String() string {
	return fmt.Sprintf("Record{Key: %q, ValLen: %d}", r.Key, len(r.Value))
}
