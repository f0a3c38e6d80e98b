package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

// New constructs a Translator for the configured provider.
func New(cfg Config) (Translator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	full := cfg.withDefaults()

	var b backend
	switch full.Provider {
	case ProviderOpenAI:
		b = newOpenAIBackend(full)
	case ProviderGemini:
		compat, err := newCompatBackend(full)
		if err != nil {
			return nil, err
		}
		b = compat
	}
	return newChunkedTranslator(b, full), nil
}

// chunkedTranslator splits cue batches into character-bounded chunks,
// translates them sequentially with a rolling context window, and
// enforces strict 1:1 output alignment per chunk.
type chunkedTranslator struct {
	backend backend
	cfg     Config
}

func newChunkedTranslator(b backend, cfg Config) *chunkedTranslator {
	return &chunkedTranslator{
		backend: b,
		cfg:     cfg,
	}
}

func (t *chunkedTranslator) ProviderID() string {
	return t.cfg.Provider
}

// contextPair is one source/translation pair carried across a chunk
// boundary to keep terminology and tone consistent.
type contextPair struct {
	source     string
	translated string
}

func (t *chunkedTranslator) Translate(
	ctx context.Context,
	texts []string,
	sourceLang string,
	targetLang string,
) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := chunkByChars(texts, t.cfg.MaxChunkChars)
	log.Debug("Translating %d cue texts in %d chunks (%s -> %s)", len(texts), len(chunks), sourceLang, targetLang)

	allTranslations := make([]string, 0, len(texts))
	var carried []contextPair

	for chunkIdx, chunk := range chunks {
		translated, err := t.translateChunk(ctx, chunk, sourceLang, targetLang, carried)
		if err != nil {
			var perr *pipeline.Error
			if errors.As(err, &perr) {
				perr.WithContext("chunk", fmt.Sprintf("%d/%d", chunkIdx+1, len(chunks)))
			}
			return nil, err
		}
		allTranslations = append(allTranslations, translated...)
		carried = trailingPairs(chunk, translated, t.cfg.ContextCues)
	}

	return allTranslations, nil
}

// translateChunk runs one chunk with the attempt budget. A response
// whose line count does not match the input is never partially
// accepted; it burns an attempt and is retried like a transient fault.
func (t *chunkedTranslator) translateChunk(
	ctx context.Context,
	chunk []string,
	sourceLang string,
	targetLang string,
	carried []contextPair,
) ([]string, error) {
	systemPrompt := t.buildPrompt(sourceLang, targetLang, carried)
	userMessage := encodeCueTexts(chunk)

	delay := t.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, pipeline.WrapError(err, pipeline.ErrTimeout, "deadline expired while backing off before retry")
			}
			delay *= 2
		}

		content, err := t.backend.Complete(ctx, systemPrompt, userMessage)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, pipeline.WrapError(err, pipeline.ErrTimeout, "translation request aborted by deadline")
			}
			if isRetryable(err) {
				log.Warn("Translation attempt %d/%d failed, will retry: %v", attempt, t.cfg.MaxAttempts, err)
				lastErr = err
				continue
			}
			return nil, pipeline.WrapError(err, pipeline.ErrUpstream, "translation backend rejected the request")
		}

		translated := decodeCueTexts(content)
		if len(translated) != len(chunk) {
			log.Warn("Translation attempt %d/%d returned %d lines for %d inputs", attempt, t.cfg.MaxAttempts, len(translated), len(chunk))
			lastErr = pipeline.NewError(pipeline.ErrProvider, "translated line count does not match input").
				WithContext("want", len(chunk)).
				WithContext("got", len(translated))
			continue
		}
		return translated, nil
	}

	if pipeline.KindOf(lastErr) == pipeline.ErrProvider {
		return nil, lastErr
	}
	return nil, pipeline.WrapError(lastErr, pipeline.ErrUpstream, "translation backend kept failing after retries")
}

// chunkByChars groups texts so each chunk stays under maxChars of
// cumulative length. A single oversized text still forms its own chunk.
func chunkByChars(texts []string, maxChars int) [][]string {
	var chunks [][]string
	var current []string
	currentLen := 0

	for _, text := range texts {
		if len(current) > 0 && currentLen+len(text) > maxChars {
			chunks = append(chunks, current)
			current = nil
			currentLen = 0
		}
		current = append(current, text)
		currentLen += len(text)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// encodeCueTexts joins cue texts with the cue separator, protecting
// in-cue line breaks with a placeholder the model is told to preserve.
func encodeCueTexts(texts []string) string {
	encoded := make([]string, len(texts))
	for i, text := range texts {
		encoded[i] = strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder)
	}
	return strings.Join(encoded, "\n"+subtitleLineBreaker+"\n")
}

// decodeCueTexts splits the model output back into one text per cue.
func decodeCueTexts(content string) []string {
	parts := strings.Split(content, subtitleLineBreaker)
	ret := make([]string, len(parts))
	for i, part := range parts {
		text := strings.TrimSpace(part)
		ret[i] = strings.ReplaceAll(text, inlineBreakerPlaceholder, "\n")
	}
	return ret
}

// trailingPairs collects the last n source/translation pairs of a chunk.
func trailingPairs(sources, translations []string, n int) []contextPair {
	if n <= 0 || len(sources) == 0 {
		return nil
	}
	start := len(sources) - n
	if start < 0 {
		start = 0
	}
	pairs := make([]contextPair, 0, len(sources)-start)
	for i := start; i < len(sources); i++ {
		pairs = append(pairs, contextPair{source: sources[i], translated: translations[i]})
	}
	return pairs
}

func (t *chunkedTranslator) buildPrompt(sourceLang, targetLang string, carried []contextPair) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translation expert. Translate subtitles from " + sourceLang + " to " + targetLang + ".\n\n")

	if len(carried) > 0 {
		prompt.WriteString("=== PRIOR CONTEXT ===\n")
		prompt.WriteString("These are the last subtitles translated before this batch. Keep names, terminology and tone consistent with them:\n")
		for _, pair := range carried {
			prompt.WriteString(fmt.Sprintf("- %q was translated as %q\n", pair.source, pair.translated))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Ensure the " + targetLang + " text flows naturally while preserving meaning\n")
	prompt.WriteString("2. Keep subtitle length appropriate for screen reading\n")
	prompt.WriteString("3. Preserve the " + subtitleLineBreaker + " subtitle separators exactly\n")
	prompt.WriteString("4. Preserve " + inlineBreakerPlaceholder + " inline break markers exactly\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated subtitles, separated by " + subtitleLineBreaker + "\n")
	prompt.WriteString("Do not include any explanations, notes, or additional text.\n")
	prompt.WriteString("The number of output subtitles must exactly match the number of input subtitles.\n")

	return prompt.String()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
