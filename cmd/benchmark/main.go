package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lsmkv/pkg/config"
	"lsmkv/pkg/core"
)

func main() {
	nReq := flag.Int("n", 50000, "Number of keys per run")
	capacity := flag.Int("memtable", 4096, "Memtable capacity in keys")
	noCache := flag.Bool("nocache", false, "Disable the table read cache")
	flag.Parse()

	dir, err := os.MkdirTemp("", "lsmkv-bench")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.Storage.Path = dir
	cfg.Storage.MemTableCapacity = *capacity
	cfg.Storage.SyncOnBuild = false
	cfg.Cache.Enabled = !*noCache

	store, err := core.Open(cfg, nil)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	fmt.Printf("lsmkv Benchmark (N=%d, memtable=%d, cache=%v)\n", *nReq, *capacity, cfg.Cache.Enabled)
	fmt.Println("---------------------------------------------------")

	fmt.Println(">> Put (flushes to tables as the memtable fills)...")
	putDuration := runPut(store, *nReq)
	report("Put ", putDuration, *nReq)
	fmt.Printf("   Tables: %d\n\n", len(store.Tables()))

	fmt.Println(">> Get (every key once)...")
	getDuration := runGet(store, *nReq)
	report("Get ", getDuration, *nReq)

	fmt.Println(">> Get again (cache warm)...")
	getDuration = runGet(store, *nReq)
	report("Get ", getDuration, *nReq)

	fmt.Println(">> Full scan...")
	start := time.Now()
	count := 0
	if err := store.Scan(key(0), key(*nReq), func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	scanDuration := time.Since(start)
	fmt.Printf("   Scan Time: %v | %d records\n", scanDuration, count)
	fmt.Println("---------------------------------------------------")
}

func key(i int) []byte {
	return []byte(fmt.Sprintf("key%010d", i))
}

func runPut(store *core.Store, n int) time.Duration {
	val := []byte("bench_data")
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := store.Put(key(i), val); err != nil {
			log.Fatalf("Put failed: %v", err)
		}
	}
	return time.Since(start)
}

func runGet(store *core.Store, n int) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, ok, err := store.Get(key(i)); err != nil || !ok {
			log.Fatalf("Get %d failed: ok=%v err=%v", i, ok, err)
		}
	}
	return time.Since(start)
}

func report(op string, d time.Duration, n int) {
	fmt.Printf("   %s Time: %v | QPS: %.0f\n", op, d, float64(n)/d.Seconds())
}
