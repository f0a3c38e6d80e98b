package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// Serialize renders the track in the given format. Output is
// deterministic byte-for-byte for the same track and format: LF line
// endings, renumber-free indexes, fixed timestamp formatting. This is
// what makes cached artifacts content-addressable.
func Serialize(track *Track, format string) []byte {
	var sb strings.Builder

	if format == FormatVTT {
		sb.WriteString("WEBVTT\n\n")
	}

	for _, cue := range track.Cues {
		if format != FormatVTT {
			fmt.Fprintf(&sb, "%d\n", cue.Index)
		}
		fmt.Fprintf(&sb, "%s --> %s\n", formatTimestamp(cue.Start, format), formatTimestamp(cue.End, format))
		for _, line := range cue.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String())
}

// formatTimestamp renders an SRT ("00:02:16,612") or VTT ("00:02:16.612") timestamp.
func formatTimestamp(d time.Duration, format string) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	sep := ","
	if format == FormatVTT {
		sep = "."
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, sep, milliseconds)
}
