package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
	"github.com/MimeLyc/stremio-sub-translator/internal/subtitle"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

// FetcherConfig configures source subtitle resolution.
type FetcherConfig struct {
	// SourceLanguage is the language searched for in the catalog.
	SourceLanguage string
	// MaxAttempts bounds retries against a flaky catalog.
	MaxAttempts int
	// RetryBaseDelay is the initial backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.SourceLanguage == "" {
		c.SourceLanguage = "en"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	return c
}

// Fetcher resolves a source-language subtitle track for a media
// reference. Concurrent fetches for the same media collapse into one
// catalog round trip.
type Fetcher struct {
	client *Client
	cfg    FetcherConfig
	group  singleflight.Group
}

func NewFetcher(client *Client, cfg FetcherConfig) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg.withDefaults(),
	}
}

// Fetch searches the catalog, picks the best candidate, downloads it
// and parses it into a track. The fingerprint is taken from the raw
// downloaded bytes, so an unchanged source file always fingerprints
// identically regardless of parsing.
func (f *Fetcher) Fetch(ctx context.Context, ref MediaRef) (*subtitle.Track, error) {
	v, err, shared := f.group.Do(ref.String(), func() (any, error) {
		return f.fetch(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("Catalog fetch for %s was shared with a concurrent caller", ref)
	}
	return v.(*subtitle.Track), nil
}

func (f *Fetcher) fetch(ctx context.Context, ref MediaRef) (*subtitle.Track, error) {
	var candidates []Candidate
	err := f.withRetry(ctx, func() error {
		var err error
		candidates, err = f.client.Search(ctx, ref, f.cfg.SourceLanguage)
		return err
	})
	if err != nil {
		return nil, f.classify(err, ref, "catalog search failed")
	}

	best, ok := selectBest(candidates)
	if !ok {
		return nil, pipeline.NewError(pipeline.ErrNotFound, "no source subtitle found").
			WithContext("media", ref.String()).
			WithContext("language", f.cfg.SourceLanguage)
	}
	log.Info("Selected subtitle %q for %s (%d downloads)", best.FileName, ref, best.DownloadCount)

	var raw []byte
	err = f.withRetry(ctx, func() error {
		var err error
		raw, err = f.client.Download(ctx, best)
		return err
	})
	if err != nil {
		return nil, f.classify(err, ref, "subtitle download failed")
	}

	track, err := subtitle.Parse(raw, formatOf(best.FileName))
	if err != nil {
		return nil, pipeline.WrapError(err, pipeline.ErrParse, "source subtitle is malformed beyond recovery").
			WithContext("media", ref.String()).
			WithContext("file", best.FileName)
	}
	return track, nil
}

// selectBest applies the candidate policy: exact media match first,
// then highest download count, ties broken by earliest upload.
func selectBest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExactMatch != sorted[j].ExactMatch {
			return sorted[i].ExactMatch
		}
		if sorted[i].DownloadCount != sorted[j].DownloadCount {
			return sorted[i].DownloadCount > sorted[j].DownloadCount
		}
		return sorted[i].UploadedAt.Before(sorted[j].UploadedAt)
	})
	return sorted[0], true
}

func (f *Fetcher) withRetry(ctx context.Context, fn func() error) error {
	delay := f.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if !retryableCatalogError(lastErr) {
			return lastErr
		}
		log.Warn("Catalog attempt %d/%d failed, will retry: %v", attempt, f.cfg.MaxAttempts, lastErr)
	}
	return lastErr
}

// retryableCatalogError treats rate limits, 5xx and plain network
// failures as transient. Well-formed 4xx answers are final.
func retryableCatalogError(err error) bool {
	var apiErr *ErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	return true
}

func (f *Fetcher) classify(err error, ref MediaRef, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pipeline.WrapError(err, pipeline.ErrTimeout, message).WithContext("media", ref.String())
	}
	return pipeline.WrapError(err, pipeline.ErrUpstream, message).WithContext("media", ref.String())
}

func formatOf(fileName string) string {
	if len(fileName) > 4 && fileName[len(fileName)-4:] == ".vtt" {
		return subtitle.FormatVTT
	}
	return subtitle.FormatSRT
}
