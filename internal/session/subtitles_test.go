package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/session"
	"github.com/provideo/provideo/pkg/types"
)

func TestLoaderReadsLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:01,000 --> 00:00:02,000\nhello\n"), 0o644))

	loader := session.NewLoader(nil, "")
	result := loader.Load(context.Background(), types.SourceTypeFile, path, types.SubtitleFormatSRT)
	loaded, err := result.Get()
	require.NoError(t, err)
	assert.Equal(t, path, loaded.LocalPath)
	assert.Equal(t, types.SubtitleFormatSRT, loaded.Format)
}

func TestLoaderResolvesAssetsAgainstRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "subs"), 0o755))
	path := filepath.Join(root, "subs", "movie.vtt")
	require.NoError(t, os.WriteFile(path, []byte("WEBVTT\n"), 0o644))

	loader := session.NewLoader(nil, root)
	result := loader.Load(context.Background(), types.SourceTypeAsset, "subs/movie.vtt", types.SubtitleFormatVTT)
	loaded, err := result.Get()
	require.NoError(t, err)
	assert.Equal(t, path, loaded.LocalPath)
}

func TestLoaderFailureIsAValue(t *testing.T) {
	loader := session.NewLoader(nil, "")

	result := loader.Load(context.Background(), types.SourceTypeFile, "/nonexistent/movie.srt", types.SubtitleFormatSRT)
	assert.True(t, result.IsError())

	result = loader.Load(context.Background(), types.SourceTypeNetwork, "https://example.com/movie.srt", types.SubtitleFormatSRT)
	assert.True(t, result.IsError(), "network load without a client must fail")
}

func TestAddExternalSubtitleAssignsMonotonicIDs(t *testing.T) {
	eng := newFakeEngine()
	s := newTestSession(t, eng, session.Options{}, session.Deps{Subtitles: session.NewLoader(nil, "")})

	first, err := s.AddExternalSubtitle(session.ExternalSubtitleRequest{
		Source:  types.SourceTypeNetwork,
		Path:    "https://example.com/a.srt",
		Content: "1\n00:00:01,000 --> 00:00:02,000\nfirst\n",
		Label:   "English",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", first.ID)
	assert.True(t, first.IsExternal)
	assert.Equal(t, types.TrackKindSubtitle, first.Kind)

	second, err := s.AddExternalSubtitle(session.ExternalSubtitleRequest{
		Source:  types.SourceTypeNetwork,
		Path:    "https://example.com/b.vtt",
		Content: "WEBVTT\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-2", second.ID)

	require.Eventually(t, func() bool {
		subs := s.ExternalSubtitles()
		return len(subs) == 2 && subs[0].Loaded && subs[1].Loaded
	}, 3*time.Second, 20*time.Millisecond)

	subs := s.ExternalSubtitles()
	assert.Equal(t, "ext-1", subs[0].ID)
	assert.Equal(t, types.SubtitleFormatSRT, subs[0].Format)
	assert.Equal(t, "ext-2", subs[1].ID)
	assert.Equal(t, types.SubtitleFormatVTT, subs[1].Format)

	// ids are never reused, even after a removal
	assert.True(t, s.RemoveExternalSubtitle("ext-2"))
	third, err := s.AddExternalSubtitle(session.ExternalSubtitleRequest{
		Source:  types.SourceTypeNetwork,
		Path:    "https://example.com/c.srt",
		Content: "1\n00:00:01,000 --> 00:00:02,000\nthird\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "ext-3", third.ID)
}

func TestRemoveExternalSubtitleUnknownID(t *testing.T) {
	eng := newFakeEngine()
	s := newTestSession(t, eng, session.Options{}, session.Deps{Subtitles: session.NewLoader(nil, "")})
	assert.False(t, s.RemoveExternalSubtitle("ext-99"))
}

func TestExternalSubtitleSelectableByExtID(t *testing.T) {
	eng := newFakeEngine()
	s := newTestSession(t, eng, session.Options{}, session.Deps{Subtitles: session.NewLoader(nil, "")})

	track, err := s.AddExternalSubtitle(session.ExternalSubtitleRequest{
		Source:  types.SourceTypeNetwork,
		Path:    "https://example.com/a.srt",
		Content: "1\n00:00:01,000 --> 00:00:02,000\nhi\n",
		Label:   "English",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return len(eng.subtitleAdds) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// the engine re-reads its track list with the sideloaded entry included
	eng.push(engine.TracksChanged{Tracks: []types.TrackDescriptor{
		{ID: "2:0", Kind: types.TrackKindSubtitle, Language: "en"},
		{ID: "2:1", Kind: types.TrackKindSubtitle, Label: "English", IsExternal: true},
	}})
	waitType(t, s.Events(), session.EventSubtitleTracksChanged)

	s.SetSubtitleTrack(track.ID)
	ev := waitType(t, s.Events(), session.EventSelectedSubtitleChanged)
	selected := ev.(session.SelectedSubtitleChanged)
	require.NotNil(t, selected.Track)
	assert.Equal(t, "ext-1", selected.Track.ID)

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Equal(t, "2:1", eng.selected[types.TrackKindSubtitle])
}

func TestDefaultExternalSubtitleSelectsOnDiscovery(t *testing.T) {
	eng := newFakeEngine()
	s := newTestSession(t, eng, session.Options{}, session.Deps{Subtitles: session.NewLoader(nil, "")})

	_, err := s.AddExternalSubtitle(session.ExternalSubtitleRequest{
		Source:    types.SourceTypeNetwork,
		Path:      "https://example.com/a.srt",
		Content:   "1\n00:00:01,000 --> 00:00:02,000\nhi\n",
		IsDefault: true,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return len(eng.subtitleAdds) == 1
	}, 3*time.Second, 20*time.Millisecond)

	eng.push(engine.TracksChanged{Tracks: []types.TrackDescriptor{
		{ID: "2:0", Kind: types.TrackKindSubtitle, IsExternal: true},
	}})
	ev := waitType(t, s.Events(), session.EventSelectedSubtitleChanged)
	selected := ev.(session.SelectedSubtitleChanged)
	require.NotNil(t, selected.Track)
	assert.Equal(t, "ext-1", selected.Track.ID)
}
