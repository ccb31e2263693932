package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"lsmkv/pkg/config"
	"lsmkv/pkg/core"

	"go.uber.org/zap"
)

const Prompt = "lsmkv> "

func main() {
	configPath := flag.String("config", "", "path to lsmkv.yaml")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Storage.Path = *dataDir
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := core.Open(cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("path", cfg.Storage.Path), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store", zap.Error(err))
		}
	}()

	fmt.Printf("lsmkv CLI (data: %s)\n", cfg.Storage.Path)
	fmt.Println("Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "put", "set":
			handlePut(store, parts)
		case "get":
			handleGet(store, parts)
		case "del", "rm":
			handleDel(store, parts)
		case "scan":
			handleScan(store, parts)
		case "flush":
			handleFlush(store)
		case "tables":
			handleTables(store)
		case "stats":
			handleStats(store)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
}

func handlePut(store *core.Store, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: put <key> <value>")
		return
	}
	value := strings.Join(parts[2:], " ")

	start := time.Now()
	err := store.Put([]byte(parts[1]), []byte(value))
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v\n", err)
	} else {
		fmt.Printf("OK (%v)\n", duration)
	}
}

func handleGet(store *core.Store, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: get <key>")
		return
	}

	start := time.Now()
	val, ok, err := store.Get([]byte(parts[1]))
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case !ok:
		fmt.Printf("(not found) (%v)\n", duration)
	default:
		fmt.Printf("\"%s\" (%v)\n", string(val), duration)
	}
}

func handleDel(store *core.Store, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: del <key>")
		return
	}

	removed, err := store.Delete([]byte(parts[1]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if removed {
		fmt.Println("Deleted")
	} else {
		// flushed tables are immutable
		fmt.Println("Not in memtable")
	}
}

func handleScan(store *core.Store, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: scan <start_key> <end_key>")
		return
	}

	fmt.Printf("Scanning range [%s, %s]...\n", parts[1], parts[2])
	start := time.Now()
	count := 0
	err := store.Scan([]byte(parts[1]), []byte(parts[2]), func(key, val []byte) bool {
		if count < 20 {
			fmt.Printf("  [%s] -> %s\n", key, val)
		}
		count++
		return true
	})
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if count > 20 {
		fmt.Printf("... and %d more\n", count-20)
	}
	fmt.Printf("Found %d records (%v)\n", count, duration)
}

func handleFlush(store *core.Store) {
	start := time.Now()
	if err := store.Flush(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Flushed (%v)\n", time.Since(start))
}

func handleTables(store *core.Store) {
	tables := store.Tables()
	if len(tables) == 0 {
		fmt.Println("No tables")
		return
	}
	for _, t := range tables {
		fmt.Printf("  %s  entries=%d  keys=[%s, %s]  created=%s\n",
			t.Name, t.Entries, t.MinKey, t.MaxKey, t.CreatedAt.Format(time.RFC3339))
	}
}

func handleStats(store *core.Store) {
	stats := store.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-22s %v\n", name, stats[name])
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  put <key> <value>      Insert/Update record
  get <key>              Retrieve record
  del <key>              Delete record from the memtable
  scan <start> <end>     Range query (inclusive)
  flush                  Write the memtable out as a new table
  tables                 List flushed tables
  stats                  Show store counters
  exit                   Exit CLI
	`)
}
