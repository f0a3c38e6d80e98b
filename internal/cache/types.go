package cache

import (
	"fmt"
	"time"
)

// Key addresses one translated artifact. Fingerprint is deliberately
// not part of the key: a key has at most one live entry, and the
// stored fingerprint decides whether that entry is still valid.
type Key struct {
	MediaType string
	MediaID   string
	Language  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.MediaType, k.MediaID, k.Language)
}

// Entry is a finished subtitle artifact plus its metadata. Entries are
// owned exclusively by the Store; callers request writes through Put.
type Entry struct {
	Key         Key
	Fingerprint string
	ProviderID  string
	Format      string
	Artifact    []byte
	CreatedAt   time.Time
}

// JobRecord is the terminal outcome of one translation job, kept for
// diagnostics.
type JobRecord struct {
	MediaType   string    `json:"media_type"`
	MediaID     string    `json:"media_id"`
	Language    string    `json:"language"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	ProviderID  string    `json:"provider_id,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
