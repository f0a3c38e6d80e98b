package translator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/stremio-sub-translator/internal/llm"
	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
)

// fakeBackend scripts Complete responses. A respond func gets the call
// number (starting at 1) and the decoded input texts.
type fakeBackend struct {
	calls   int
	prompts []string
	inputs  [][]string
	respond func(call int, texts []string) (string, error)
}

func (f *fakeBackend) Complete(_ context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, systemPrompt)
	f.inputs = append(f.inputs, decodeCueTexts(userMessage))
	return f.respond(f.calls, decodeCueTexts(userMessage))
}

// echoTranslate returns a fake translation aligned with the input.
func echoTranslate(texts []string) (string, error) {
	translated := make([]string, len(texts))
	for i, text := range texts {
		translated[i] = "EL:" + strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder)
	}
	return strings.Join(translated, subtitleLineBreaker), nil
}

func testTranslator(b backend) *chunkedTranslator {
	cfg := Config{
		Provider:       ProviderOpenAI,
		MaxChunkChars:  40,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		ContextCues:    2,
	}
	return newChunkedTranslator(b, cfg.withDefaults())
}

func TestTranslate_AlignedOutput(t *testing.T) {
	b := &fakeBackend{respond: func(_ int, texts []string) (string, error) {
		return echoTranslate(texts)
	}}
	tr := testTranslator(b)

	got, err := tr.Translate(context.Background(), []string{"one", "two\nlines", "three"}, "en", "el")
	require.NoError(t, err)
	require.Equal(t, []string{"EL:one", "EL:two\nlines", "EL:three"}, got)
}

func TestTranslate_ChunksByCumulativeChars(t *testing.T) {
	b := &fakeBackend{respond: func(_ int, texts []string) (string, error) {
		return echoTranslate(texts)
	}}
	tr := testTranslator(b)

	// 4 texts of 15 chars each against a 40-char budget: 2+1+1 never
	// happens because chunking is greedy, so expect ceil(60/40)=2 chunks.
	texts := []string{
		strings.Repeat("a", 15),
		strings.Repeat("b", 15),
		strings.Repeat("c", 15),
		strings.Repeat("d", 15),
	}
	got, err := tr.Translate(context.Background(), texts, "en", "el")
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, 2, b.calls)
	assert.Len(t, b.inputs[0], 2)
	assert.Len(t, b.inputs[1], 2)
}

func TestTranslate_OversizedTextGetsOwnChunk(t *testing.T) {
	b := &fakeBackend{respond: func(_ int, texts []string) (string, error) {
		return echoTranslate(texts)
	}}
	tr := testTranslator(b)

	texts := []string{"short", strings.Repeat("x", 100), "tail"}
	_, err := tr.Translate(context.Background(), texts, "en", "el")
	require.NoError(t, err)
	assert.Equal(t, 3, b.calls)
}

func TestTranslate_CarriesRollingContext(t *testing.T) {
	b := &fakeBackend{respond: func(_ int, texts []string) (string, error) {
		return echoTranslate(texts)
	}}
	tr := testTranslator(b)

	texts := []string{
		strings.Repeat("a", 30),
		strings.Repeat("b", 30),
	}
	_, err := tr.Translate(context.Background(), texts, "en", "el")
	require.NoError(t, err)
	require.Equal(t, 2, b.calls)

	assert.NotContains(t, b.prompts[0], "PRIOR CONTEXT")
	assert.Contains(t, b.prompts[1], "PRIOR CONTEXT")
	assert.Contains(t, b.prompts[1], strings.Repeat("a", 30))
}

func TestTranslate_LengthMismatchFailsWholeCall(t *testing.T) {
	b := &fakeBackend{respond: func(_ int, texts []string) (string, error) {
		// always one line short
		return strings.Join(make([]string, len(texts)-1), subtitleLineBreaker), nil
	}}
	tr := testTranslator(b)

	_, err := tr.Translate(context.Background(), []string{"one", "two"}, "en", "el")
	require.Error(t, err)
	assert.True(t, pipeline.IsKind(err, pipeline.ErrProvider))
	assert.Equal(t, 3, b.calls, "mismatch should burn the full attempt budget")
}

func TestTranslate_RetriesRateLimitThenSucceeds(t *testing.T) {
	b := &fakeBackend{respond: func(call int, texts []string) (string, error) {
		if call == 1 {
			return "", &llm.StatusError{StatusCode: 429, Body: "rate limited"}
		}
		return echoTranslate(texts)
	}}
	tr := testTranslator(b)

	got, err := tr.Translate(context.Background(), []string{"one"}, "en", "el")
	require.NoError(t, err)
	assert.Equal(t, []string{"EL:one"}, got)
	assert.Equal(t, 2, b.calls)
}

func TestTranslate_ExhaustedRetriesSurfaceUpstream(t *testing.T) {
	b := &fakeBackend{respond: func(int, []string) (string, error) {
		return "", &llm.StatusError{StatusCode: 500, Body: "boom"}
	}}
	tr := testTranslator(b)

	_, err := tr.Translate(context.Background(), []string{"one"}, "en", "el")
	require.Error(t, err)
	assert.True(t, pipeline.IsKind(err, pipeline.ErrUpstream))
	assert.Equal(t, 3, b.calls)
}

func TestTranslate_DeadlineMapsToTimeout(t *testing.T) {
	b := &fakeBackend{respond: func(int, []string) (string, error) {
		return "", context.DeadlineExceeded
	}}
	tr := testTranslator(b)

	_, err := tr.Translate(context.Background(), []string{"one"}, "en", "el")
	require.Error(t, err)
	assert.True(t, pipeline.IsKind(err, pipeline.ErrTimeout))
	assert.Equal(t, 1, b.calls, "deadline errors must not be retried")
}

func TestTranslate_EmptyInput(t *testing.T) {
	b := &fakeBackend{respond: func(int, []string) (string, error) {
		return "", errors.New("should not be called")
	}}
	tr := testTranslator(b)

	got, err := tr.Translate(context.Background(), nil, "en", "el")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, b.calls)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "babelfish", APIKey: "k", Model: "m"})
	require.Error(t, err)
}
