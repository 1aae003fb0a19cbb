package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/migrations"
	"github.com/gravadigital/billetterie-api/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	logger.Initialize(cfg.Log.Level)
	log := logger.Migration()

	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	status := flag.Bool("status", false, "List applied migrations")
	stats := flag.Bool("stats", false, "Print table, index and connection statistics")
	flag.Parse()

	db, err := postgres.Connect(cfg)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer postgres.Close(db)

	switch {
	case *stats:
		snapshot, err := postgres.CollectStats(context.Background(), db)
		if err != nil {
			log.Error("Failed to collect database stats", "error", err)
			os.Exit(1)
		}
		for _, t := range snapshot.Tables {
			fmt.Printf("%-28s rows=%-8d dead=%-6d size=%-10s indexes=%s\n", t.TableName, t.LiveRows, t.DeadRows, t.TableSize, t.IndexSize)
		}
		for _, idx := range snapshot.Indexes {
			marker := ""
			if idx.Unused() {
				marker = "  (unused)"
			}
			fmt.Printf("%-28s %-40s scans=%-8d%s\n", idx.TableName, idx.IndexName, idx.IndexScans, marker)
		}
		c := snapshot.Connections
		fmt.Printf("connections %d/%d (%.1f%%), pool open=%d in_use=%d idle=%d\n",
			c.Total, c.Max, c.Percent, snapshot.Pool.OpenConnections, snapshot.Pool.InUseConnections, snapshot.Pool.IdleConnections)

	case *status:
		applied, err := migrations.Applied(db)
		if err != nil {
			log.Error("Failed to list migrations", "error", err)
			os.Exit(1)
		}
		done := make(map[string]bool, len(applied))
		for _, m := range applied {
			done[m.ID] = true
			fmt.Printf("%s  %-35s applied %s\n", m.ID, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range migrations.GetMigrations() {
			if !done[m.ID] {
				fmt.Printf("%s  %-35s pending\n", m.ID, m.Name)
			}
		}

	case *rollback:
		log.Info("Rolling back last migration...")
		if err := migrations.RollbackMigration(db); err != nil {
			log.Error("Migration rollback failed", "error", err)
			os.Exit(1)
		}
		log.Info("Migration rollback completed successfully")

	default:
		log.Info("Running migrations...")
		if err := migrations.RunMigrations(db); err != nil {
			log.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("Migrations completed successfully")
	}
}
