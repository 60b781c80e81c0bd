// Command loader backs up a world database to JSON, or restores one
// from it.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	goccy "github.com/goccy/go-json"

	"github.com/writtenrealms/writtenrealms/storage"
)

func main() {
	dir := flag.String("dir", filepath.Join(os.Getenv("HOME"), ".writtenrealms"), "Where the database lives.")
	dataPath := flag.String("data", "", "Path of the JSON snapshot.")
	doRestore := flag.Bool("restore", false, "XOR 'backup': load the snapshot into the database.")
	doBackup := flag.Bool("backup", false, "XOR 'restore': dump the database into the snapshot.")

	flag.Parse()

	if *dataPath == "" || (*doRestore == *doBackup) {
		flag.Usage()
		return
	}

	ctx := context.Background()
	store, err := storage.New(ctx, *dir)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if *doBackup {
		snapshot, err := store.Dump(ctx)
		if err != nil {
			log.Fatal(err)
		}
		raw, err := goccy.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*dataPath, raw, 0600); err != nil {
			log.Fatal(err)
		}
		log.Printf("Dumped %q to %q", *dir, *dataPath)
	} else {
		raw, err := os.ReadFile(*dataPath)
		if err != nil {
			log.Fatal(err)
		}
		snapshot := &storage.Snapshot{}
		if err := goccy.Unmarshal(raw, snapshot); err != nil {
			log.Fatal(err)
		}
		if err := store.Restore(ctx, snapshot); err != nil {
			log.Fatal(err)
		}
		log.Printf("Restored %q into %q", *dataPath, *dir)
	}
}
