package mpv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/provideo/provideo/internal/buffering"
	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/pkg/types"
)

func TestBuildArgsMapsLoadOptions(t *testing.T) {
	source := types.SourceDescriptor{Type: types.SourceTypeNetwork, URI: "https://example.com/v.m3u8"}
	opts := engine.LoadOptions{
		Buffering:       buffering.Config{MaxBufferMs: 30000, BufferForPlaybackMs: 2000},
		MaxBitrate:      2_500_000,
		UserAgent:       "provideo/1.0",
		StartPositionMs: 1500,
		Looping:         true,
		Volume:          0.5,
	}

	args := buildArgs("/tmp/sock", source, opts)

	assert.Contains(t, args, "--demuxer-readahead-secs=30")
	assert.Contains(t, args, "--cache-pause-wait=2")
	assert.Contains(t, args, "--hls-bitrate=2500000")
	assert.Contains(t, args, "--user-agent=provideo/1.0")
	assert.Contains(t, args, "--start=1.500")
	assert.Contains(t, args, "--loop-file=inf")
	assert.Contains(t, args, "--volume=50")
	assert.Equal(t, source.URI, args[len(args)-1])
}

func TestBuildArgsOmitsUnsetConstraints(t *testing.T) {
	source := types.SourceDescriptor{Type: types.SourceTypeFile, URI: "/media/v.mkv"}
	args := buildArgs("/tmp/sock", source, engine.LoadOptions{})

	for _, a := range args {
		assert.NotContains(t, a, "--hls-bitrate")
		assert.NotContains(t, a, "--start=")
	}
	assert.Equal(t, "/media/v.mkv", args[len(args)-1])
}
