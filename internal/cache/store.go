package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the durable artifact cache: a SQLite index plus artifact
// files on disk. A Get is a hit only when the stored fingerprint
// matches the caller's current one; a mismatch behaves like a miss so
// source-subtitle updates re-translate transparently.
//
// Reads are safe from any goroutine. Writes for one key come from that
// key's single job owner (the coordinator guarantees it), so the store
// itself needs no per-key locking.
type Store struct {
	db       *sql.DB
	dir      string
	maxBytes int64
}

// NewStore opens (creating if absent) the cache database and artifact
// directory. maxBytes <= 0 disables size-based eviction.
func NewStore(dbPath, artifactDir string, maxBytes int64) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if strings.TrimSpace(artifactDir) == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, dir: artifactDir, maxBytes: maxBytes}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Get returns the cached entry for the key if its stored fingerprint
// matches currentFingerprint. A hit refreshes the entry's read time for
// LRU accounting.
func (s *Store) Get(ctx context.Context, key Key, currentFingerprint string) (Entry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT fingerprint, provider_id, format, artifact_path, created_at
		 FROM artifacts
		 WHERE cache_key = ?`,
		key.String(),
	)

	var entry Entry
	var artifactPath string
	if err := row.Scan(&entry.Fingerprint, &entry.ProviderID, &entry.Format, &artifactPath, &entry.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	entry.Key = key

	if entry.Fingerprint != currentFingerprint {
		log.Info("Cache entry for %s has stale fingerprint, treating as miss", key)
		return Entry{}, false, nil
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		// index row without its file is as good as a miss
		log.Warn("Cache artifact file missing for %s: %v", key, err)
		return Entry{}, false, nil
	}
	entry.Artifact = artifact

	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts SET last_read_at = ? WHERE cache_key = ?`,
		time.Now().UTC(),
		key.String(),
	); err != nil {
		log.Warn("Failed to touch cache entry %s: %v", key, err)
	}

	return entry, true, nil
}

// Put stores the artifact bytes on disk and upserts the index row.
// The artifact path is deterministic in (media id, language,
// fingerprint), per the addressable-layout contract.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	if entry.Key.MediaID == "" || entry.Key.Language == "" {
		return fmt.Errorf("cache entry key is incomplete: %s", entry.Key)
	}
	if entry.Fingerprint == "" {
		return fmt.Errorf("cache entry has no fingerprint")
	}

	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	artifactPath := s.artifactPath(entry)
	if err := os.WriteFile(artifactPath, entry.Artifact, 0o644); err != nil {
		return fmt.Errorf("write artifact file: %w", err)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (
			cache_key, media_type, media_id, language, fingerprint, provider_id, format, artifact_path, size_bytes, created_at, last_read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			fingerprint=excluded.fingerprint,
			provider_id=excluded.provider_id,
			format=excluded.format,
			artifact_path=excluded.artifact_path,
			size_bytes=excluded.size_bytes,
			created_at=excluded.created_at,
			last_read_at=excluded.last_read_at`,
		entry.Key.String(),
		entry.Key.MediaType,
		entry.Key.MediaID,
		entry.Key.Language,
		entry.Fingerprint,
		entry.ProviderID,
		entry.Format,
		artifactPath,
		int64(len(entry.Artifact)),
		createdAt,
		createdAt,
	)
	return err
}

// artifactPath derives the deterministic on-disk location for an entry.
func (s *Store) artifactPath(entry Entry) string {
	fingerprint := entry.Fingerprint
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	format := entry.Format
	if format == "" {
		format = "srt"
	}
	name := fmt.Sprintf("%s_%s_%s.%s", sanitizeForPath(entry.Key.MediaID), entry.Key.Language, fingerprint, format)
	return filepath.Join(s.dir, name)
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeForPath(s string) string {
	return unsafePathChars.ReplaceAllString(s, "-")
}

// EvictLRU removes least-recently-read entries until total stored size
// fits the configured budget. Returns how many entries were removed.
// It must only run from the eviction sweep, never concurrently with
// itself; concurrent Puts are safe because a job owner never writes a
// key the sweep is allowed to touch mid-write (single-writer-per-key).
func (s *Store) EvictLRU(ctx context.Context) (int, error) {
	if s.maxBytes <= 0 {
		return 0, nil
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM artifacts`).Scan(&total); err != nil {
		return 0, err
	}
	if total <= s.maxBytes {
		return 0, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cache_key, artifact_path, size_bytes FROM artifacts ORDER BY last_read_at ASC`,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type victim struct {
		key  string
		path string
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.key, &v.path, &v.size); err != nil {
			return 0, err
		}
		victims = append(victims, v)
		total -= v.size
		if total <= s.maxBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	// Release the sole pooled connection before issuing deletes; the
	// early break above can leave the result set open otherwise.
	if err := rows.Close(); err != nil {
		return 0, err
	}

	removed := 0
	for _, v := range victims {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE cache_key = ?`, v.key); err != nil {
			return removed, err
		}
		if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove evicted artifact %s: %v", v.path, err)
		}
		removed++
	}
	if removed > 0 {
		log.Info("Evicted %d cache entries to honor size budget", removed)
	}
	return removed, nil
}

// RecordJob appends a terminal job outcome to the history table.
func (s *Store) RecordJob(ctx context.Context, record JobRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_history (
			media_type, media_id, language, fingerprint, provider_id, status, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.MediaType,
		record.MediaID,
		record.Language,
		record.Fingerprint,
		record.ProviderID,
		record.Status,
		record.Error,
		record.StartedAt.UTC(),
		record.FinishedAt.UTC(),
	)
	return err
}

// ListRecentJobs returns the most recently finished jobs, newest first.
func (s *Store) ListRecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT media_type, media_id, language, fingerprint, provider_id, status, error, started_at, finished_at
		 FROM job_history
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]JobRecord, 0, limit)
	for rows.Next() {
		var item JobRecord
		if err := rows.Scan(
			&item.MediaType,
			&item.MediaID,
			&item.Language,
			&item.Fingerprint,
			&item.ProviderID,
			&item.Status,
			&item.Error,
			&item.StartedAt,
			&item.FinishedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}
