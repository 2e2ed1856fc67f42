package database

import (
	"context"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
)

// migrations are applied in order on every start and must stay idempotent
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "create download table",
		sql: `
			CREATE TABLE IF NOT EXISTS download (
				id            SERIAL PRIMARY KEY,
				video_id      VARCHAR(50)  NOT NULL,
				title         VARCHAR(255) NOT NULL,
				format        VARCHAR(50)  NOT NULL,
				download_date TIMESTAMP    NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
				filesize      BIGINT,
				thumbnail_url VARCHAR(1024),
				duration      INTEGER
			)`,
	},
	{
		name: "add platform column",
		sql:  `ALTER TABLE download ADD COLUMN IF NOT EXISTS platform VARCHAR(20) DEFAULT 'youtube'`,
	},
	{
		name: "widen thumbnail_url",
		sql:  `ALTER TABLE download ALTER COLUMN thumbnail_url TYPE VARCHAR(1024)`,
	},
	{
		name: "index download_date",
		sql:  `CREATE INDEX IF NOT EXISTS idx_download_date ON download (download_date DESC)`,
	},
}

// Migrate brings the history schema up to date
func (db *DB) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		start := time.Now()
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			metrics.RecordDatabaseOperation("migrate", "error", time.Since(start).Seconds())
			return fmt.Errorf("failed to apply migration %q: %w", m.name, err)
		}
		metrics.RecordDatabaseOperation("migrate", "success", time.Since(start).Seconds())
	}
	return nil
}
