package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"lsmkv/pkg/core/memory"
	"lsmkv/pkg/storage/sstable"
)

func main() {
	dir, err := os.MkdirTemp("", "lsmkv-example")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	tree := memory.NewAVLTree(16)
	for _, kv := range [][2]string{{"cherry", "red"}, {"apple", "green"}, {"banana", "yellow"}} {
		if _, err := tree.Insert([]byte(kv[0]), []byte(kv[1])); err != nil {
			log.Fatalf("Insert failed: %v", err)
		}
	}
	fmt.Printf("Tree (%d keys):%s\n", tree.Len(), tree.String())

	base := filepath.Join(dir, "fruits")
	table, err := sstable.Build(base, tree.All(), sstable.Options{})
	if err != nil {
		log.Fatalf("Build failed: %v", err)
	}
	defer table.Close()
	fmt.Printf("Wrote %s and %s\n", table.DataPath(), table.IndexPath())

	val, ok, err := table.Get([]byte("banana"))
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	fmt.Printf("Get banana: %q (found=%v)\n", val, ok)

	fmt.Println("Scan [apple, banana]:")
	err = table.Scan([]byte("apple"), []byte("banana"), func(key, value []byte) bool {
		fmt.Printf("  %s -> %s\n", key, value)
		return true
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
}
