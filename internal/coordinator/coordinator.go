package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/stremio-sub-translator/internal/cache"
	"github.com/MimeLyc/stremio-sub-translator/internal/catalog"
	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
	"github.com/MimeLyc/stremio-sub-translator/internal/subtitle"
	"github.com/MimeLyc/stremio-sub-translator/internal/translator"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

// job tracks one in-flight translation for a key. done is closed
// exactly once when the job reaches a terminal state; every waiter
// registered before that observes the same artifact or error.
type job struct {
	key       cache.Key
	status    Status
	startedAt time.Time
	waiters   int

	done     chan struct{}
	artifact Artifact
	err      error
}

// Coordinator deduplicates translation work per (media, language) key.
// The job table is the only shared mutable state; every mutation
// happens under mu so a check-then-act race between two callers cannot
// start duplicate jobs.
type Coordinator struct {
	fetcher    Fetcher
	translator translator.Translator
	store      Store
	cfg        Config

	mu   sync.Mutex
	jobs map[string]*job
	// verified maps key → last time the cached fingerprint was
	// confirmed against the source, for revalidation gating.
	verified map[string]verifiedFingerprint
}

type verifiedFingerprint struct {
	fingerprint string
	at          time.Time
}

func New(fetcher Fetcher, trans translator.Translator, store Store, cfg Config) *Coordinator {
	return &Coordinator{
		fetcher:    fetcher,
		translator: trans,
		store:      store,
		cfg:        cfg.withDefaults(),
		jobs:       make(map[string]*job),
		verified:   make(map[string]verifiedFingerprint),
	}
}

// Request returns the translated artifact for (media, language),
// producing and caching it if needed. Synchronous from the caller's
// point of view; concurrent callers for the same key share one job.
//
// ctx bounds only this caller's wait. A timed-out waiter gets a
// Timeout error while the job keeps running for everyone else.
func (c *Coordinator) Request(ctx context.Context, ref catalog.MediaRef, lang string) (Artifact, error) {
	key := cache.Key{MediaType: ref.Type, MediaID: ref.ID, Language: lang}

	// Fresh-enough entries are served without touching the catalog.
	if artifact, ok := c.lookupFresh(ctx, key); ok {
		return artifact, nil
	}

	j, created := c.checkOrCreate(key)
	if created {
		go c.run(j, ref, lang)
	}

	select {
	case <-j.done:
		if j.err != nil {
			return Artifact{}, j.err
		}
		return j.artifact, nil
	case <-ctx.Done():
		c.detachWaiter(j)
		return Artifact{}, pipeline.WrapError(ctx.Err(), pipeline.ErrTimeout, "timed out waiting for translation job").
			WithContext("media", ref.String()).
			WithContext("language", lang)
	}
}

// lookupFresh serves the cached artifact when the fingerprint was
// confirmed recently enough that a revalidation fetch can be skipped.
func (c *Coordinator) lookupFresh(ctx context.Context, key cache.Key) (Artifact, bool) {
	c.mu.Lock()
	v, ok := c.verified[key.String()]
	c.mu.Unlock()
	if !ok || time.Since(v.at) > c.cfg.RevalidateAfter {
		return Artifact{}, false
	}

	entry, hit, err := c.store.Get(ctx, key, v.fingerprint)
	if err != nil || !hit {
		return Artifact{}, false
	}
	return artifactFromEntry(entry, true), true
}

// checkOrCreate atomically joins the live job for the key or installs
// a new one. This is the check-then-act that must never race.
func (c *Coordinator) checkOrCreate(key cache.Key) (*job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.jobs[key.String()]; ok {
		existing.waiters++
		return existing, false
	}

	j := &job{
		key:       key,
		status:    StatusPending,
		startedAt: time.Now(),
		waiters:   1,
		done:      make(chan struct{}),
	}
	c.jobs[key.String()] = j
	return j, true
}

func (c *Coordinator) detachWaiter(j *job) {
	c.mu.Lock()
	if j.waiters > 0 {
		j.waiters--
	}
	c.mu.Unlock()
}

// run executes the pipeline as the job's sole owner. It runs on a
// background context bounded by JobTimeout, detached from any one
// caller's deadline, and is the only goroutine that writes the Cache
// Store for this key.
func (c *Coordinator) run(j *job, ref catalog.MediaRef, lang string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.JobTimeout)
	defer cancel()

	c.setStatus(j, StatusRunning)
	artifact, err := c.execute(ctx, j, ref, lang)

	c.mu.Lock()
	j.artifact = artifact
	j.err = err
	if err != nil {
		j.status = StatusFailed
	} else {
		j.status = StatusSuccess
	}
	// Reset the key before broadcasting: requests arriving after
	// completion must start a fresh cache check, not join this job.
	delete(c.jobs, j.key.String())
	c.mu.Unlock()

	// Record before broadcasting so a waiter that goes on to read the
	// history sees this job's outcome.
	c.recordHistory(j, ref, lang, artifact, err)

	close(j.done)
}

func (c *Coordinator) execute(ctx context.Context, j *job, ref catalog.MediaRef, lang string) (Artifact, error) {
	track, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return Artifact{}, err
	}

	// The fetch gave us the current fingerprint; a matching cache
	// entry means the cached translation is still valid.
	entry, hit, err := c.store.Get(ctx, j.key, track.Fingerprint)
	if err != nil {
		log.Warn("Cache read failed for %s: %v", j.key, err)
	}
	if hit {
		c.markVerified(j.key, track.Fingerprint)
		return artifactFromEntry(entry, true), nil
	}

	texts, err := c.translator.Translate(ctx, track.Texts(), track.Language.String(), lang)
	if err != nil {
		return Artifact{}, err
	}

	translated := track.WithTexts(texts, parseLang(lang))
	data := subtitle.Serialize(translated, c.cfg.Format)

	newEntry := cache.Entry{
		Key:         j.key,
		Fingerprint: track.Fingerprint,
		ProviderID:  c.translator.ProviderID(),
		Format:      c.cfg.Format,
		Artifact:    data,
		CreatedAt:   time.Now(),
	}
	if err := c.store.Put(ctx, newEntry); err != nil {
		// The translation itself succeeded; serve it but let the next
		// request rebuild the missing cache entry.
		log.Error("Failed to cache artifact for %s: %v", j.key, err)
		return artifactFromEntry(newEntry, false), nil
	}
	c.markVerified(j.key, track.Fingerprint)

	return artifactFromEntry(newEntry, false), nil
}

func (c *Coordinator) markVerified(key cache.Key, fingerprint string) {
	c.mu.Lock()
	c.verified[key.String()] = verifiedFingerprint{fingerprint: fingerprint, at: time.Now()}
	c.mu.Unlock()
}

func (c *Coordinator) setStatus(j *job, status Status) {
	c.mu.Lock()
	j.status = status
	c.mu.Unlock()
}

func (c *Coordinator) recordHistory(j *job, ref catalog.MediaRef, lang string, artifact Artifact, err error) {
	if c.store == nil {
		return
	}
	record := cache.JobRecord{
		MediaType:   ref.Type,
		MediaID:     ref.ID,
		Language:    lang,
		Fingerprint: artifact.Fingerprint,
		ProviderID:  artifact.ProviderID,
		Status:      string(StatusSuccess),
		StartedAt:   j.startedAt,
		FinishedAt:  time.Now(),
	}
	if err != nil {
		record.Status = string(StatusFailed)
		record.Error = err.Error()
	}
	historyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.RecordJob(historyCtx, record); err != nil {
		log.Warn("Failed to record job history for %s: %v", j.key, err)
	}
}

// List snapshots the in-flight jobs for diagnostics.
func (c *Coordinator) List() []JobView {
	c.mu.Lock()
	defer c.mu.Unlock()

	ret := make([]JobView, 0, len(c.jobs))
	for _, j := range c.jobs {
		ret = append(ret, JobView{
			MediaType: j.key.MediaType,
			MediaID:   j.key.MediaID,
			Language:  j.key.Language,
			Status:    j.status,
			StartedAt: j.startedAt,
			Waiters:   j.waiters,
		})
	}
	return ret
}

func parseLang(code string) language.Tag {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}

func artifactFromEntry(entry cache.Entry, fromCache bool) Artifact {
	return Artifact{
		Data:        entry.Artifact,
		Format:      entry.Format,
		Fingerprint: entry.Fingerprint,
		ProviderID:  entry.ProviderID,
		FromCache:   fromCache,
	}
}
