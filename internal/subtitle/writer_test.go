package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testTrack() *Track {
	return &Track{
		Cues: []Cue{
			{Index: 1, Start: time.Second, End: 2 * time.Second, Lines: []string{"Hello."}},
			{Index: 2, Start: 3 * time.Second, End: 4500 * time.Millisecond, Lines: []string{"Two", "lines"}},
		},
		Language: language.English,
		Format:   FormatSRT,
	}
}

func TestSerialize_SRT(t *testing.T) {
	got := Serialize(testTrack(), FormatSRT)

	want := "1\n" +
		"00:00:01,000 --> 00:00:02,000\n" +
		"Hello.\n" +
		"\n" +
		"2\n" +
		"00:00:03,000 --> 00:00:04,500\n" +
		"Two\n" +
		"lines\n" +
		"\n"
	assert.Equal(t, want, string(got))
}

func TestSerialize_VTT(t *testing.T) {
	got := Serialize(testTrack(), FormatVTT)

	want := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:02.000\n" +
		"Hello.\n" +
		"\n" +
		"00:00:03.000 --> 00:00:04.500\n" +
		"Two\n" +
		"lines\n" +
		"\n"
	assert.Equal(t, want, string(got))
}

func TestSerialize_Deterministic(t *testing.T) {
	first := Serialize(testTrack(), FormatSRT)
	second := Serialize(testTrack(), FormatSRT)
	assert.Equal(t, first, second)
}

func TestSerialize_RoundTrip(t *testing.T) {
	data := Serialize(testTrack(), FormatSRT)

	parsed, err := Parse(data, FormatSRT)
	require.NoError(t, err)
	require.Len(t, parsed.Cues, 2)
	for i, cue := range testTrack().Cues {
		assert.Equal(t, cue.Index, parsed.Cues[i].Index)
		assert.Equal(t, cue.Start, parsed.Cues[i].Start)
		assert.Equal(t, cue.End, parsed.Cues[i].End)
		assert.Equal(t, cue.Lines, parsed.Cues[i].Lines)
	}
}

func TestWithTexts_PreservesTimingAndIndex(t *testing.T) {
	track := testTrack()
	translated := track.WithTexts([]string{"Γεια.", "Δύο\nγραμμές"}, language.Greek)

	require.Len(t, translated.Cues, 2)
	for i := range track.Cues {
		assert.Equal(t, track.Cues[i].Index, translated.Cues[i].Index)
		assert.Equal(t, track.Cues[i].Start, translated.Cues[i].Start)
		assert.Equal(t, track.Cues[i].End, translated.Cues[i].End)
	}
	assert.Equal(t, "Γεια.", translated.Cues[0].Text())
	assert.Equal(t, []string{"Δύο", "γραμμές"}, translated.Cues[1].Lines)
	assert.Equal(t, track.Fingerprint, translated.Fingerprint)
}
