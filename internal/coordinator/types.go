package coordinator

import (
	"context"
	"time"

	"github.com/MimeLyc/stremio-sub-translator/internal/cache"
	"github.com/MimeLyc/stremio-sub-translator/internal/catalog"
	"github.com/MimeLyc/stremio-sub-translator/internal/subtitle"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Artifact is a finished, serialized translated subtitle.
type Artifact struct {
	Data        []byte
	Format      string
	Fingerprint string
	ProviderID  string
	FromCache   bool
}

// Fetcher resolves the source-language subtitle track for a media reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref catalog.MediaRef) (*subtitle.Track, error)
}

// Store is the slice of the cache the coordinator depends on.
type Store interface {
	Get(ctx context.Context, key cache.Key, currentFingerprint string) (cache.Entry, bool, error)
	Put(ctx context.Context, entry cache.Entry) error
	RecordJob(ctx context.Context, record cache.JobRecord) error
}

// Config tunes the coordinator.
type Config struct {
	// Format is the serialization format of produced artifacts.
	Format string
	// JobTimeout bounds a background translation job. Jobs run on
	// their own context so one waiter's deadline never cancels the
	// work for everyone else.
	JobTimeout time.Duration
	// RevalidateAfter is how long a confirmed fingerprint is trusted
	// before the next request re-fetches the source to compare. Zero
	// revalidates on every request.
	RevalidateAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Format == "" {
		c.Format = subtitle.FormatSRT
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	return c
}

// JobView is a read-only snapshot of an in-flight job for diagnostics.
type JobView struct {
	MediaType string    `json:"media_type"`
	MediaID   string    `json:"media_id"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Waiters   int       `json:"waiters"`
}
