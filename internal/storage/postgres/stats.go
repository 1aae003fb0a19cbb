package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gravadigital/billetterie-api/internal/logger"
)

// TableStats holds size and tuple counts for one table
type TableStats struct {
	TableName    string     `json:"table_name"`
	LiveRows     int64      `json:"live_rows"`
	DeadRows     int64      `json:"dead_rows"`
	TableSize    string     `json:"table_size"`
	IndexSize    string     `json:"index_size"`
	LastAnalyzed *time.Time `json:"last_analyzed"`
}

// IndexUsage reports how often an index served a scan
type IndexUsage struct {
	TableName  string  `json:"table_name"`
	IndexName  string  `json:"index_name"`
	IndexScans int64   `json:"index_scans"`
	TableScans int64   `json:"table_scans"`
	Efficiency float64 `json:"efficiency"`
}

// Unused reports an index the planner never picked
func (u IndexUsage) Unused() bool {
	return u.IndexScans == 0
}

// ConnectionStats counts server side sessions on the current database
type ConnectionStats struct {
	Total   int     `json:"total"`
	Active  int     `json:"active"`
	Idle    int     `json:"idle"`
	Max     int     `json:"max"`
	Percent float64 `json:"percent"`
}

// DatabaseStats is a snapshot of the registration tables and the connection pool
type DatabaseStats struct {
	Tables      []TableStats    `json:"tables"`
	Indexes     []IndexUsage    `json:"indexes"`
	Connections ConnectionStats `json:"connections"`
	Pool        PoolMetrics     `json:"pool"`
}

// CollectStats reads pg_stat views for the application schema
func CollectStats(ctx context.Context, db *gorm.DB) (*DatabaseStats, error) {
	log := logger.Database()
	stats := &DatabaseStats{Pool: GetPoolMetrics(db)}

	tables, err := tableStats(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("table stats: %w", err)
	}
	stats.Tables = tables

	indexes, err := indexUsage(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("index usage: %w", err)
	}
	stats.Indexes = indexes

	conns, err := connectionStats(ctx, db)
	if err != nil {
		log.Warn("Failed to read connection stats", "error", err)
	} else {
		stats.Connections = *conns
	}

	log.Debug("Database stats collected", "tables", len(stats.Tables), "indexes", len(stats.Indexes))
	return stats, nil
}

func tableStats(ctx context.Context, db *gorm.DB) ([]TableStats, error) {
	rows, err := db.WithContext(ctx).Raw(`
		SELECT
			relname,
			n_live_tup,
			n_dead_tup,
			pg_size_pretty(pg_total_relation_size(relid)),
			pg_size_pretty(pg_indexes_size(relid)),
			GREATEST(last_analyze, last_autoanalyze)
		FROM pg_stat_user_tables
		ORDER BY pg_total_relation_size(relid) DESC
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []TableStats
	for rows.Next() {
		var s TableStats
		if err := rows.Scan(&s.TableName, &s.LiveRows, &s.DeadRows, &s.TableSize, &s.IndexSize, &s.LastAnalyzed); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func indexUsage(ctx context.Context, db *gorm.DB) ([]IndexUsage, error) {
	rows, err := db.WithContext(ctx).Raw(`
		SELECT
			pui.relname,
			pui.indexrelname,
			pui.idx_scan,
			put.seq_scan,
			CASE
				WHEN pui.idx_scan + put.seq_scan = 0 THEN 0
				ELSE ROUND((pui.idx_scan::numeric / (pui.idx_scan + put.seq_scan)) * 100, 2)
			END
		FROM pg_stat_user_indexes pui
		JOIN pg_stat_user_tables put ON pui.relid = put.relid
		ORDER BY pui.relname, pui.indexrelname
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []IndexUsage
	for rows.Next() {
		var u IndexUsage
		if err := rows.Scan(&u.TableName, &u.IndexName, &u.IndexScans, &u.TableScans, &u.Efficiency); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

func connectionStats(ctx context.Context, db *gorm.DB) (*ConnectionStats, error) {
	var stats ConnectionStats

	row := db.WithContext(ctx).Raw(`
		SELECT
			count(*),
			count(*) FILTER (WHERE state = 'active'),
			count(*) FILTER (WHERE state = 'idle'),
			(SELECT setting::int FROM pg_settings WHERE name = 'max_connections')
		FROM pg_stat_activity
		WHERE datname = current_database()
	`).Row()
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Idle, &stats.Max); err != nil {
		return nil, err
	}

	if stats.Max > 0 {
		stats.Percent = float64(stats.Total) / float64(stats.Max) * 100
	}
	return &stats, nil
}
