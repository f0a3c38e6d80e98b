package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "db", "cache.db"), filepath.Join(dir, "artifacts"), maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testEntry(id, lang, fingerprint string, artifact []byte) Entry {
	return Entry{
		Key:         Key{MediaType: "movie", MediaID: id, Language: lang},
		Fingerprint: fingerprint,
		ProviderID:  "openai",
		Format:      "srt",
		Artifact:    artifact,
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	entry := testEntry("tt0111161", "el", "f1", []byte("artifact bytes"))
	require.NoError(t, store.Put(ctx, entry))

	got, hit, err := store.Get(ctx, entry.Key, "f1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("artifact bytes"), got.Artifact)
	assert.Equal(t, "openai", got.ProviderID)
	assert.Equal(t, "f1", got.Fingerprint)
}

func TestStore_FingerprintMismatchIsMiss(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	entry := testEntry("tt0111161", "el", "f1", []byte("old artifact"))
	require.NoError(t, store.Put(ctx, entry))

	_, hit, err := store.Get(ctx, entry.Key, "f2")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_MissForUnknownKey(t *testing.T) {
	store := newTestStore(t, 0)

	_, hit, err := store.Get(context.Background(), Key{MediaType: "movie", MediaID: "ttX", Language: "el"}, "f1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_PutOverwritesSameKey(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	key := Key{MediaType: "movie", MediaID: "tt0111161", Language: "el"}
	require.NoError(t, store.Put(ctx, testEntry("tt0111161", "el", "f1", []byte("v1"))))
	require.NoError(t, store.Put(ctx, testEntry("tt0111161", "el", "f2", []byte("v2"))))

	_, hit, err := store.Get(ctx, key, "f1")
	require.NoError(t, err)
	assert.False(t, hit, "old fingerprint must no longer match")

	got, hit, err := store.Get(ctx, key, "f2")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("v2"), got.Artifact)
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	artifactDir := filepath.Join(dir, "artifacts")
	ctx := context.Background()

	store, err := NewStore(dbPath, artifactDir, 0)
	require.NoError(t, err)
	entry := testEntry("tt0111161", "el", "f1", []byte("durable"))
	require.NoError(t, store.Put(ctx, entry))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath, artifactDir, 0)
	require.NoError(t, err)
	defer reopened.Close()

	got, hit, err := reopened.Get(ctx, entry.Key, "f1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, []byte("durable"), got.Artifact)
}

func TestStore_EvictLRU(t *testing.T) {
	store := newTestStore(t, 25)
	ctx := context.Background()

	oldest := testEntry("tt1", "el", "f1", []byte("0123456789"))
	middle := testEntry("tt2", "el", "f1", []byte("0123456789"))
	newest := testEntry("tt3", "el", "f1", []byte("0123456789"))

	require.NoError(t, store.Put(ctx, oldest))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, middle))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, newest))
	time.Sleep(5 * time.Millisecond)

	// refresh the oldest entry's read time so the middle one becomes LRU
	_, hit, err := store.Get(ctx, oldest.Key, "f1")
	require.NoError(t, err)
	require.True(t, hit)

	removed, err := store.EvictLRU(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, hit, err = store.Get(ctx, middle.Key, "f1")
	require.NoError(t, err)
	assert.False(t, hit, "least-recently-read entry should be evicted")

	_, hit, err = store.Get(ctx, oldest.Key, "f1")
	require.NoError(t, err)
	assert.True(t, hit)

	_, hit, err = store.Get(ctx, newest.Key, "f1")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestStore_EvictLRUDisabledWithoutBudget(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testEntry("tt1", "el", "f1", make([]byte, 1024))))
	removed, err := store.EvictLRU(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_JobHistory(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	require.NoError(t, store.RecordJob(ctx, JobRecord{
		MediaType:  "movie",
		MediaID:    "tt0111161",
		Language:   "el",
		ProviderID: "openai",
		Status:     "success",
		StartedAt:  started,
		FinishedAt: time.Now(),
	}))
	require.NoError(t, store.RecordJob(ctx, JobRecord{
		MediaType:  "movie",
		MediaID:    "tt0111161",
		Language:   "ar",
		Status:     "failed",
		Error:      "upstream kept failing",
		StartedAt:  started,
		FinishedAt: time.Now(),
	}))

	records, err := store.ListRecentJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ar", records[0].Language)
	assert.Equal(t, "failed", records[0].Status)
	assert.Equal(t, "el", records[1].Language)
}
