// cmd/seeder/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/unclebandit/campaign-delivery/internal/config"
	"github.com/unclebandit/campaign-delivery/internal/db"
	"github.com/unclebandit/campaign-delivery/internal/logger"
)

var seedFiles = []string{
	"customers.sql",
	"segment_rules.sql",
	"campaigns.sql",
}

func main() {
	dir := flag.String("dir", "seed", "directory holding the seed SQL files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	conn, err := db.Init(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	defer conn.Close()

	if err := seed(conn, *dir); err != nil {
		log.WithError(err).Fatal("seeding failed")
	}
	log.Info("Database seeding completed successfully!")
}

// seed runs every file in one transaction so a bad file leaves nothing behind.
func seed(conn *sqlx.DB, dir string) error {
	tx, err := conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range seedFiles {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("execute %s: %w", path, err)
		}
	}
	return tx.Commit()
}
