package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"shaper/internal/dbsource"
	"shaper/internal/util"
)

func main() {
	driver := flag.String("driver", dbsource.DriverSQLite, "database driver: sqlite3 or postgres")
	dsn := flag.String("dsn", "", "database DSN (file path for sqlite3)")
	output := flag.String("output", "schema_cache.json", "output path for the schema cache")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn is required")
		flag.Usage()
		os.Exit(1)
	}

	src, err := dbsource.Open(*driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer util.CloseWithErr(src, "database source")

	cache, err := dbsource.BuildSchemaCache(context.Background(), src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build schema cache: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer util.CloseWithErr(f, "schema cache output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cache); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema cache: %v\n", err)
		os.Exit(1)
	}
	util.Infof("wrote schema cache for %d tables to %s", len(cache), *output)
}
