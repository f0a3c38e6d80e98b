package translator

import (
	"context"
	"fmt"
	"time"
)

// Supported translation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// geminiCompatURL is Gemini's OpenAI-compatible chat endpoint.
const geminiCompatURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Markers used on the wire with the model. Cue texts are joined with
// subtitleLineBreaker, and in-cue newlines are replaced with
// inlineBreakerPlaceholder so the model cannot confuse the two.
const (
	subtitleLineBreaker      = "@@@"
	inlineBreakerPlaceholder = "[[BR]]"
)

// Translator sends batches of cue text to a translation backend and
// returns translated text aligned 1:1 with the input. A call either
// returns exactly len(texts) results or an error, never partial output.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
	ProviderID() string
}

// Config enumerates everything needed to construct a Translator for a
// specific provider. The coordinator depends only on the Translator
// contract, never on a provider's transport details.
type Config struct {
	Provider    string
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// MaxChunkChars bounds the cumulative character count per request
	// chunk. Cue counts vary wildly in text length, so chunking is by
	// characters rather than a fixed cue count.
	MaxChunkChars int
	// MaxAttempts is the per-chunk attempt budget for transient errors.
	MaxAttempts int
	// RetryBaseDelay is the initial backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration
	// ContextCues is how many trailing cues of the previous chunk are
	// carried into the next chunk's prompt to keep terminology stable
	// across chunk boundaries.
	ContextCues int
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = 6000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.ContextCues < 0 {
		cfg.ContextCues = 0
	} else if cfg.ContextCues == 0 {
		cfg.ContextCues = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown translation provider: %q", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("translation provider API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("translation model is required")
	}
	return nil
}
