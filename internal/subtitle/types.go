package subtitle

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Formats understood by the parser and serializer.
const (
	FormatSRT = "srt"
	FormatVTT = "vtt"
)

// Cue is a single timed block of subtitle text.
// Index is the ordinal position from the source file and is never
// renumbered mid-pipeline, so translated text can be reattached to the
// original timing even if a backend reorders its response.
type Cue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Lines []string      `json:"lines"`
}

// Text joins the cue lines with newlines.
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Track is an ordered cue sequence plus the fingerprint of the raw
// source bytes it was parsed from. Two tracks are the same artifact
// iff their fingerprints match.
type Track struct {
	Cues        []Cue        `json:"cues"`
	Language    language.Tag `json:"language"`
	Format      string       `json:"format"`
	Fingerprint string       `json:"fingerprint"`
}

// Texts returns the cue texts in order, one entry per cue.
func (t *Track) Texts() []string {
	ret := make([]string, 0, len(t.Cues))
	for _, cue := range t.Cues {
		ret = append(ret, cue.Text())
	}
	return ret
}

// WithTexts returns a copy of the track whose cue texts are replaced
// 1:1 by the given slice. Timings and indexes are preserved untouched.
func (t *Track) WithTexts(texts []string, lang language.Tag) *Track {
	cues := make([]Cue, len(t.Cues))
	for i, cue := range t.Cues {
		cues[i] = Cue{
			Index: cue.Index,
			Start: cue.Start,
			End:   cue.End,
			Lines: strings.Split(texts[i], "\n"),
		}
	}
	return &Track{
		Cues:        cues,
		Language:    lang,
		Format:      t.Format,
		Fingerprint: t.Fingerprint,
	}
}
