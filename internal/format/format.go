package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/provideo/provideo/pkg/types"
)

// Emission thresholds shared by every session. Position changes below the
// threshold and bandwidth changes below the fraction are not worth an event.
const (
	PositionEmitThresholdMs = 100
	BandwidthEmitFraction   = 0.10
	BandwidthThrottleWindow = 3 * time.Second
)

// Volume and speed bounds accepted from callers
const (
	MinVolume = 0.0
	MaxVolume = 1.0
	MinSpeed  = 0.25
	MaxSpeed  = 4.0
)

// Backoff defaults for network retry scheduling
const (
	BackoffBase = 1000 * time.Millisecond
	BackoffMax  = 30000 * time.Millisecond
)

var mimeCodecs = map[string]string{
	"video/avc":           "h264",
	"video/hevc":          "h265",
	"video/x-vnd.on2.vp8": "vp8",
	"video/x-vnd.on2.vp9": "vp9",
	"video/av01":          "av1",
	"video/mp4v-es":       "mpeg4",
	"audio/mp4a-latm":     "aac",
	"audio/mpeg":          "mp3",
	"audio/opus":          "opus",
	"audio/vorbis":        "vorbis",
	"audio/ac3":           "ac3",
	"audio/eac3":          "eac3",
	"audio/flac":          "flac",
	"audio/raw":           "pcm",
}

var containerExtensions = map[string]string{
	".mp4":  "mp4",
	".m4v":  "mp4",
	".mov":  "mov",
	".mkv":  "matroska",
	".webm": "webm",
	".avi":  "avi",
	".flv":  "flv",
	".ts":   "mpegts",
	".m3u8": "hls",
	".mpd":  "dash",
	".mp3":  "mp3",
	".aac":  "aac",
	".ogg":  "ogg",
	".wav":  "wav",
	".flac": "flac",
}

var subtitleExtensions = map[string]types.SubtitleFormat{
	".srt":  types.SubtitleFormatSRT,
	".vtt":  types.SubtitleFormatVTT,
	".ssa":  types.SubtitleFormatSSA,
	".ass":  types.SubtitleFormatASS,
	".ttml": types.SubtitleFormatTTML,
	".xml":  types.SubtitleFormatTTML,
	".dfxp": types.SubtitleFormatTTML,
}

// CodecFromMimeType maps a MIME type to a codec name. Unknown MIME types fall
// back to the suffix after the slash so callers always get something displayable.
func CodecFromMimeType(mime string) string {
	normalized := strings.ToLower(strings.TrimSpace(mime))
	if codec, ok := mimeCodecs[normalized]; ok {
		return codec
	}
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 && idx+1 < len(normalized) {
		return normalized[idx+1:]
	}
	return normalized
}

// ContainerFormatFromPath sniffs the container format from a URI or path
// extension. Query strings and fragments are stripped before matching.
// Returns "" when the extension is not recognized.
func ContainerFormatFromPath(uriOrPath string) string {
	ext := pathExtension(uriOrPath)
	if ext == "" {
		return ""
	}
	return containerExtensions[ext]
}

// DetectSubtitleFormat determines a subtitle format from a URL or path,
// defaulting to SRT when the extension is unrecognized.
func DetectSubtitleFormat(url string) types.SubtitleFormat {
	ext := pathExtension(url)
	if f, ok := subtitleExtensions[ext]; ok {
		return f
	}
	return types.SubtitleFormatSRT
}

// pathExtension returns the lowercased ".ext" of a path or URL with any query
// string or fragment removed. "" when there is no extension.
func pathExtension(uriOrPath string) string {
	s := uriOrPath
	if idx := strings.IndexAny(s, "?#"); idx >= 0 {
		s = s[:idx]
	}
	dot := strings.LastIndex(s, ".")
	if dot < 0 {
		return ""
	}
	ext := strings.ToLower(s[dot:])
	// A "." inside a directory segment is not an extension
	if strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

// ParseTrackID parses an embedded track id of the exact shape "<int>:<int>".
// Any other shape is invalid, not a partial parse.
func ParseTrackID(s string) (group int, index int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	group, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	index, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return group, index, true
}

// FormatTrackID is the inverse of ParseTrackID
func FormatTrackID(group, index int) string {
	return strconv.Itoa(group) + ":" + strconv.Itoa(index)
}

// ExponentialBackoff computes min(2^attempt * base, max).
// A negative attempt returns base.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}

// ClampVolume clamps a volume to [0.0, 1.0]
func ClampVolume(v float64) float64 {
	return clampFloat(v, MinVolume, MaxVolume)
}

// ClampSpeed clamps a playback speed to [0.25, 4.0]
func ClampSpeed(s float64) float64 {
	return clampFloat(s, MinSpeed, MaxSpeed)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ShouldEmitPosition reports whether a position sample differs enough from the
// last emitted one to be worth an event. The first sample always emits.
func ShouldEmitPosition(currentMs, lastMs, thresholdMs int64) bool {
	if lastMs <= 0 {
		return true
	}
	delta := currentMs - lastMs
	if delta < 0 {
		delta = -delta
	}
	return delta >= thresholdMs
}

// ShouldEmitBandwidth reports whether a bandwidth estimate changed by at least
// the given fraction of the last emitted value. The first sample always emits.
func ShouldEmitBandwidth(current, last int64, thresholdFraction float64) bool {
	if last <= 0 {
		return true
	}
	delta := current - last
	if delta < 0 {
		delta = -delta
	}
	return float64(delta) >= float64(last)*thresholdFraction
}

// SkipClamp applies a relative seek delta and clamps the result to the
// playable range [0, duration].
func SkipClamp(positionMs, deltaMs, durationMs int64) int64 {
	target := positionMs + deltaMs
	if target < 0 {
		return 0
	}
	if durationMs > 0 && target > durationMs {
		return durationMs
	}
	return target
}
