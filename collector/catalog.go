package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"framecast/internal/logging"
)

var catLog = logging.New("catalog")

const catalogSchema = `
CREATE TABLE IF NOT EXISTS frames (
	slot        BIGINT PRIMARY KEY,
	size_bytes  BIGINT NOT NULL,
	remote_addr TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Catalog indexes committed frames in Postgres. Entirely optional: the
// filesystem stays the source of truth and a catalog failure never blocks
// a commit.
type Catalog struct {
	pool *pgxpool.Pool
}

// OpenCatalog connects to the database and ensures the frames table
// exists.
func OpenCatalog(ctx context.Context, url string) (*Catalog, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, catalogSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ensure schema: %w", err)
	}
	catLog.Infof("frame catalog enabled")
	return &Catalog{pool: pool}, nil
}

// Record inserts one committed frame. Re-running a collector against an
// existing catalog upserts, since the in-memory counter resets per run.
func (c *Catalog) Record(ctx context.Context, slot, size int, remote string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.pool.Exec(ctx,
		`INSERT INTO frames (slot, size_bytes, remote_addr)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (slot) DO UPDATE
		 SET size_bytes = EXCLUDED.size_bytes,
		     remote_addr = EXCLUDED.remote_addr,
		     received_at = now()`,
		slot, size, remote)
	if err != nil {
		return fmt.Errorf("catalog: insert slot %d: %w", slot, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Catalog) Close() {
	c.pool.Close()
}
