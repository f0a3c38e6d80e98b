package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

// srtTimeRe matches both SRT comma and VTT dot millisecond separators.
// Community files mix them freely.
var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// Parse converts raw subtitle bytes into a normalized Track. The
// fingerprint is computed from the raw bytes before any cleanup.
//
// Minor malformations common in community subtitle files (stray BOM,
// mixed line endings, missing final newline, a single broken cue) are
// tolerated: a malformed cue is dropped with a warning instead of
// failing the whole track.
func Parse(raw []byte, formatHint string) (*Track, error) {
	fingerprint := Fingerprint(raw)

	content := normalize(raw)
	format := detectFormat(content, formatHint)

	blocks := splitBlocks(content, format)
	cues := make([]Cue, 0, len(blocks))
	nextIndex := 1
	for _, block := range blocks {
		cue, err := parseBlock(block)
		if err != nil {
			log.Warn("Dropping malformed cue block %q: %v", truncateForLog(block), err)
			continue
		}
		if cue.Index == 0 {
			cue.Index = nextIndex
		}
		nextIndex = cue.Index + 1
		cues = append(cues, cue)
	}

	if len(cues) == 0 {
		return nil, pipeline.NewError(pipeline.ErrParse, "no parseable cues in subtitle data").
			WithContext("bytes", len(raw)).
			WithContext("format_hint", formatHint)
	}

	return &Track{
		Cues:        cues,
		Language:    detectLanguage(cues),
		Format:      format,
		Fingerprint: fingerprint,
	}, nil
}

// normalize strips a UTF-8 BOM and unifies line endings.
func normalize(raw []byte) string {
	content := bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	s := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func detectFormat(content, formatHint string) string {
	switch strings.ToLower(formatHint) {
	case FormatSRT:
		return FormatSRT
	case FormatVTT:
		return FormatVTT
	}
	if strings.HasPrefix(strings.TrimSpace(content), "WEBVTT") {
		return FormatVTT
	}
	return FormatSRT
}

// splitBlocks separates the content into cue blocks on blank lines.
// The VTT header block and NOTE/STYLE blocks are discarded.
func splitBlocks(content, format string) []string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	// a missing final newline leaves the last cue unflushed
	flush()

	if format == FormatVTT {
		filtered := blocks[:0]
		for _, block := range blocks {
			head := strings.SplitN(block, "\n", 2)[0]
			if strings.HasPrefix(head, "WEBVTT") ||
				strings.HasPrefix(head, "NOTE") ||
				strings.HasPrefix(head, "STYLE") ||
				strings.HasPrefix(head, "REGION") {
				continue
			}
			filtered = append(filtered, block)
		}
		blocks = filtered
	}
	return blocks
}

func parseBlock(block string) (Cue, error) {
	lines := strings.Split(block, "\n")

	cue := Cue{}
	i := 0

	// optional numeric index (SRT) or cue identifier (VTT)
	if i < len(lines) && !srtTimeRe.MatchString(lines[i]) {
		if idx, err := strconv.Atoi(strings.TrimSpace(lines[i])); err == nil {
			cue.Index = idx
		}
		i++
	}

	if i >= len(lines) {
		return Cue{}, fmt.Errorf("missing timing line")
	}
	start, end, err := parseTiming(lines[i])
	if err != nil {
		return Cue{}, err
	}
	if start >= end {
		return Cue{}, fmt.Errorf("cue start %v is not before end %v", start, end)
	}
	cue.Start = start
	cue.End = end
	i++

	if i >= len(lines) {
		return Cue{}, fmt.Errorf("cue has no text")
	}
	cue.Lines = lines[i:]
	return cue, nil
}

func parseTiming(timeString string) (time.Duration, time.Duration, error) {
	matches := srtTimeRe.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid timing line: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	start := parseTime(matches[1], matches[2], matches[3], matches[4])
	end := parseTime(matches[5], matches[6], matches[7], matches[8])
	return start, end, nil
}

// detectLanguage guesses the dominant language of the cue texts.
func detectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range cues {
		lang := whatlanggo.DetectLang(cue.Text()).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}

func truncateForLog(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
