package gfs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

var (
	// ErrCacheMiss is returned when no entry exists for a key.
	ErrCacheMiss = errors.New("gfs cache: miss")
	// ErrCacheStale is returned when the entry is older than one cycle.
	ErrCacheStale = errors.New("gfs cache: stale")
)

const (
	indexFile     = "index.db"
	payloadSuffix = ".json.zst"
)

// CacheEntry is the index row for one cached payload.
type CacheEntry struct {
	Key       string
	CycleDate string
	CycleHour string
	LatBucket float64
	LonBucket float64
	FetchedAt time.Time
}

// Cache stores parsed grid values on disk: a SQLite index plus one
// zstd-compressed JSON payload per key.
type Cache struct {
	dir string
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

const schema = `
CREATE TABLE IF NOT EXISTS grid_cache (
	cache_key  TEXT PRIMARY KEY,
	cycle_date TEXT NOT NULL,
	cycle_hour TEXT NOT NULL,
	lat_bucket REAL NOT NULL,
	lon_bucket REAL NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS grid_cache_fetched_at ON grid_cache (fetched_at);
`

// OpenCache opens or creates the cache rooted at dir.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("gfs cache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gfs cache: create dir: %w", err)
	}

	dsn := filepath.Join(filepath.Clean(dir), indexFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("gfs cache: open index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("gfs cache: init schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("gfs cache: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("gfs cache: zstd decoder: %w", err)
	}

	return &Cache{dir: dir, db: db, enc: enc, dec: dec}, nil
}

// Close releases the index and codecs.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	c.dec.Close()
	_ = c.enc.Close()
	return c.db.Close()
}

func (c *Cache) payloadPath(key string) string {
	return filepath.Join(c.dir, key+payloadSuffix)
}

// Get returns the payload for key when it was fetched no more than one
// cycle length before now.
func (c *Cache) Get(ctx context.Context, key string, now time.Time) (map[string]float64, error) {
	var fetched int64
	err := c.db.QueryRowContext(ctx, `SELECT fetched_at FROM grid_cache WHERE cache_key = ?`, key).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("gfs cache: lookup %s: %w", key, err)
	}
	if now.Sub(time.Unix(0, fetched)) > CycleLength {
		return nil, ErrCacheStale
	}

	raw, err := os.ReadFile(c.payloadPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("gfs cache: read payload %s: %w", key, err)
	}
	data, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("gfs cache: decompress %s: %w", key, err)
	}

	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("gfs cache: decode %s: %w", key, err)
	}
	return values, nil
}

// Put writes the payload atomically and then records it in the index.
func (c *Cache) Put(ctx context.Context, e CacheEntry, values map[string]float64) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("gfs cache: encode %s: %w", e.Key, err)
	}

	tmp, err := os.CreateTemp(c.dir, e.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("gfs cache: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(c.enc.EncodeAll(data, nil)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("gfs cache: write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("gfs cache: close payload: %w", err)
	}
	if err := os.Rename(tmpName, c.payloadPath(e.Key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("gfs cache: rename payload: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO grid_cache (cache_key, cycle_date, cycle_hour, lat_bucket, lon_bucket, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			cycle_date = excluded.cycle_date,
			cycle_hour = excluded.cycle_hour,
			lat_bucket = excluded.lat_bucket,
			lon_bucket = excluded.lon_bucket,
			fetched_at = excluded.fetched_at`,
		e.Key, e.CycleDate, e.CycleHour, e.LatBucket, e.LonBucket, e.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("gfs cache: index %s: %w", e.Key, err)
	}
	return nil
}

// Entries lists every indexed entry, oldest first.
func (c *Cache) Entries(ctx context.Context) ([]CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT cache_key, cycle_date, cycle_hour, lat_bucket, lon_bucket, fetched_at
		FROM grid_cache ORDER BY fetched_at`)
	if err != nil {
		return nil, fmt.Errorf("gfs cache: list: %w", err)
	}
	defer rows.Close()

	var out []CacheEntry
	for rows.Next() {
		var (
			e       CacheEntry
			fetched int64
		)
		if err := rows.Scan(&e.Key, &e.CycleDate, &e.CycleHour, &e.LatBucket, &e.LonBucket, &fetched); err != nil {
			return nil, fmt.Errorf("gfs cache: scan: %w", err)
		}
		e.FetchedAt = time.Unix(0, fetched).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes entries fetched more than olderThan before now and returns
// how many were removed.
func (c *Cache) Prune(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	entries, err := c.Entries(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if now.Sub(e.FetchedAt) <= olderThan {
			continue
		}
		if err := os.Remove(c.payloadPath(e.Key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("gfs cache: remove payload %s: %w", e.Key, err)
		}
		if _, err := c.db.ExecContext(ctx, `DELETE FROM grid_cache WHERE cache_key = ?`, e.Key); err != nil {
			return removed, fmt.Errorf("gfs cache: delete %s: %w", e.Key, err)
		}
		removed++
	}
	return removed, nil
}
