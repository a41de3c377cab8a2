// Provision tool: creates a user or rotates its token.
// The generated token is printed once; it is the only time it is shown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"qrshare/internal/auth"
	"qrshare/internal/config"
	"qrshare/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		path  string
		id    int64
		name  string
		token string
	)
	flag.StringVar(&path, "db", cfg.DBPath, "database file")
	flag.Int64Var(&id, "id", 0, "user id (required)")
	flag.StringVar(&name, "name", "", "display name")
	flag.StringVar(&token, "token", "", "auth token; generated when empty")
	flag.Parse()

	if id == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatal(err)
	}
	opts := cfg.DBOptions(path)
	opts.MaxOpenConns = 1

	dbc, err := db.Open(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer dbc.Close()

	if err := db.Migrate(ctx, dbc); err != nil {
		log.Fatal(err)
	}

	if token == "" {
		token = auth.GenerateToken()
	}
	if err := auth.NewStore(dbc).Provision(ctx, id, name, token); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("id=%d auth=%s\n", id, token)
}
