package format

import (
	"testing"
	"time"

	"github.com/provideo/provideo/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCodecFromMimeType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"maps h264", "video/avc", "h264"},
		{"maps h265", "video/hevc", "h265"},
		{"maps aac", "audio/mp4a-latm", "aac"},
		{"maps opus", "audio/opus", "opus"},
		{"case insensitive", "Video/AVC", "h264"},
		{"trims whitespace", "  video/avc  ", "h264"},
		{"falls back to suffix", "video/theora", "theora"},
		{"no slash returns input", "weird", "weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodecFromMimeType(tt.input))
		})
	}
}

func TestContainerFormatFromPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"mp4 file", "/videos/movie.mp4", "mp4"},
		{"mkv file", "movie.mkv", "matroska"},
		{"hls url", "https://cdn.example.com/live.m3u8", "hls"},
		{"dash url", "https://cdn.example.com/stream.mpd", "dash"},
		{"strips query string", "https://cdn.example.com/a.MP4?token=abc", "mp4"},
		{"strips fragment", "movie.webm#t=10", "webm"},
		{"case insensitive", "MOVIE.MKV", "matroska"},
		{"unknown extension", "movie.xyz", ""},
		{"no extension", "https://cdn.example.com/stream", ""},
		{"dot in directory only", "/some.dir/stream", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContainerFormatFromPath(tt.input))
		})
	}
}

func TestParseTrackIDRoundTrip(t *testing.T) {
	wellFormed := []string{"0:0", "1:2", "10:345", "-1:2"}
	for _, s := range wellFormed {
		t.Run(s, func(t *testing.T) {
			group, index, ok := ParseTrackID(s)
			assert.True(t, ok)
			assert.Equal(t, s, FormatTrackID(group, index))
		})
	}
}

func TestParseTrackIDInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no separator", "12"},
		{"two separators", "1:2:3"},
		{"non-numeric group", "a:2"},
		{"non-numeric index", "1:b"},
		{"trailing garbage", "1:2x"},
		{"external id", "ext-3"},
		{"whitespace", "1 :2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := ParseTrackID(tt.input)
			assert.False(t, ok)
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond

	assert.Equal(t, 1000*time.Millisecond, ExponentialBackoff(0, base, max))
	assert.Equal(t, 2000*time.Millisecond, ExponentialBackoff(1, base, max))
	assert.Equal(t, 4000*time.Millisecond, ExponentialBackoff(2, base, max))
	assert.Equal(t, 30000*time.Millisecond, ExponentialBackoff(5, base, max))
	assert.Equal(t, 30000*time.Millisecond, ExponentialBackoff(30, base, max))
	assert.Equal(t, base, ExponentialBackoff(-1, base, max))

	// Non-decreasing in attempt and never above max
	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := ExponentialBackoff(attempt, base, max)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, max)
		prev = d
	}
}

func TestClampVolume(t *testing.T) {
	assert.Equal(t, 0.0, ClampVolume(-0.5))
	assert.Equal(t, 0.5, ClampVolume(0.5))
	assert.Equal(t, 1.0, ClampVolume(1.5))
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 0.25, ClampSpeed(0.1))
	assert.Equal(t, 1.5, ClampSpeed(1.5))
	assert.Equal(t, 4.0, ClampSpeed(10.0))
}

func TestDetectSubtitleFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected types.SubtitleFormat
	}{
		{"srt", "subs.srt", types.SubtitleFormatSRT},
		{"vtt", "subs.vtt", types.SubtitleFormatVTT},
		{"ssa", "subs.ssa", types.SubtitleFormatSSA},
		{"ass", "subs.ass", types.SubtitleFormatASS},
		{"ttml", "subs.ttml", types.SubtitleFormatTTML},
		{"xml as ttml", "subs.xml", types.SubtitleFormatTTML},
		{"uppercase with query", "X.SRT?x=1", types.SubtitleFormatSRT},
		{"vtt with fragment", "https://cdn.example.com/s.VTT#part", types.SubtitleFormatVTT},
		{"unrecognized defaults to srt", "subs.txt", types.SubtitleFormatSRT},
		{"no extension defaults to srt", "https://cdn.example.com/subs", types.SubtitleFormatSRT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectSubtitleFormat(tt.input))
		})
	}
}

func TestShouldEmitPosition(t *testing.T) {
	assert.True(t, ShouldEmitPosition(50, 0, 100), "first sample always emits")
	assert.True(t, ShouldEmitPosition(50, -1, 100), "negative last counts as first sample")
	assert.False(t, ShouldEmitPosition(1050, 1000, 100), "below threshold")
	assert.True(t, ShouldEmitPosition(1100, 1000, 100), "at threshold")
	assert.True(t, ShouldEmitPosition(900, 1000, 100), "backwards jump emits")
}

func TestShouldEmitBandwidth(t *testing.T) {
	assert.True(t, ShouldEmitBandwidth(12345, 0, 0.10), "first sample always emits")
	assert.False(t, ShouldEmitBandwidth(100, 100, 0.10))
	assert.False(t, ShouldEmitBandwidth(109, 100, 0.10))
	assert.True(t, ShouldEmitBandwidth(110, 100, 0.10))
	assert.True(t, ShouldEmitBandwidth(90, 100, 0.10), "drops count too")
}

func TestSkipClamp(t *testing.T) {
	tests := []struct {
		name     string
		position int64
		delta    int64
		duration int64
		expected int64
	}{
		{"forward within range", 1000, 5000, 60000, 6000},
		{"backward within range", 10000, -5000, 60000, 5000},
		{"clamps below zero", 1000, -5000, 60000, 0},
		{"clamps above duration", 58000, 5000, 60000, 60000},
		{"unknown duration skips upper clamp", 58000, 5000, 0, 63000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SkipClamp(tt.position, tt.delta, tt.duration))
		})
	}
}
