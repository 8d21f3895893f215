package manager_test

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/history"
	"github.com/provideo/provideo/internal/manager"
	"github.com/provideo/provideo/internal/session"
	"github.com/provideo/provideo/pkg/types"
)

// stubEngine satisfies engine.Engine with just enough state for routing tests
type stubEngine struct {
	mu       sync.Mutex
	events   chan engine.Event
	loadOpts engine.LoadOptions
	position int64
	released bool
}

func newStubEngine() *stubEngine {
	return &stubEngine{events: make(chan engine.Event, 16)}
}

func (f *stubEngine) Load(_ types.SourceDescriptor, opts engine.LoadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadOpts = opts
	return nil
}

func (f *stubEngine) Play() error                               { return nil }
func (f *stubEngine) Pause() error                              { return nil }
func (f *stubEngine) SeekTo(int64) error                        { return nil }
func (f *stubEngine) SetVolume(float64) error                   { return nil }
func (f *stubEngine) SetSpeed(float64) error                    { return nil }
func (f *stubEngine) SetLooping(bool) error                     { return nil }
func (f *stubEngine) SetScalingMode(types.ScalingMode) error    { return nil }
func (f *stubEngine) SelectTrack(types.TrackKind, string) error { return nil }
func (f *stubEngine) AddSubtitleSource(string, types.SubtitleFormat, string, string) error {
	return nil
}
func (f *stubEngine) SetSurfaceVisible(bool) error { return nil }

func (f *stubEngine) PositionMs() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *stubEngine) BufferedPositionMs() int64 { return 0 }
func (f *stubEngine) DurationMs() int64         { return 0 }
func (f *stubEngine) BandwidthEstimate() int64  { return 0 }

func (f *stubEngine) Events() <-chan engine.Event { return f.events }

func (f *stubEngine) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.released {
		f.released = true
		close(f.events)
	}
	return nil
}

func (f *stubEngine) startPosition() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadOpts.StartPositionMs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg manager.Config) (*manager.Manager, *[]*stubEngine) {
	t.Helper()
	engines := &[]*stubEngine{}
	if cfg.EngineFactory == nil {
		cfg.EngineFactory = func() (engine.Engine, error) {
			eng := newStubEngine()
			*engines = append(*engines, eng)
			return eng, nil
		}
	}
	cfg.Logger = testLogger()
	m := manager.New(cfg)
	t.Cleanup(m.DisposeAll)
	return m, engines
}

func networkSource(uri string) types.SourceDescriptor {
	return types.SourceDescriptor{Type: types.SourceTypeNetwork, URI: uri}
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	m, _ := newTestManager(t, manager.Config{})

	first, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	require.NoError(t, err)
	second, err := m.Create(networkSource("https://example.com/b.mp4"), session.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	// ids are not reused after disposal
	require.NoError(t, m.Dispose(first))
	third, err := m.Create(networkSource("https://example.com/c.mp4"), session.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), third)
}

func TestUnknownSessionIDReturnsTypedError(t *testing.T) {
	m, _ := newTestManager(t, manager.Config{})

	err := m.Play(99)
	var cmdErr manager.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, manager.CodeSessionNotFound, cmdErr.Code)

	_, err = m.GetPosition(99)
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, manager.CodeSessionNotFound, cmdErr.Code)

	err = m.Dispose(99)
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, manager.CodeSessionNotFound, cmdErr.Code)
}

func TestOutOfRangeArgumentsAreRejected(t *testing.T) {
	m, _ := newTestManager(t, manager.Config{})
	id, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	require.NoError(t, err)

	var cmdErr manager.CommandError

	require.ErrorAs(t, m.SeekTo(id, -5), &cmdErr)
	assert.Equal(t, manager.CodeInvalidArgument, cmdErr.Code)

	require.ErrorAs(t, m.SetVolume(id, 1.5), &cmdErr)
	assert.Equal(t, manager.CodeInvalidArgument, cmdErr.Code)

	require.ErrorAs(t, m.SetPlaybackSpeed(id, 0), &cmdErr)
	assert.Equal(t, manager.CodeInvalidArgument, cmdErr.Code)

	require.ErrorAs(t, m.SetScalingMode(id, "zoomed"), &cmdErr)
	assert.Equal(t, manager.CodeInvalidArgument, cmdErr.Code)
}

func TestEngineFactoryFailureSurfacesAsOperationError(t *testing.T) {
	m, _ := newTestManager(t, manager.Config{
		EngineFactory: func() (engine.Engine, error) {
			return nil, errors.New("mpv binary not found")
		},
	})

	_, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	var cmdErr manager.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, manager.CodeOperationError, cmdErr.Code)
}

func TestEventsAreForwardedInOrder(t *testing.T) {
	m, engines := newTestManager(t, manager.Config{})
	id, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	require.NoError(t, err)

	events, err := m.Events(id)
	require.NoError(t, err)

	eng := (*engines)[0]
	eng.events <- engine.StateChanged{State: engine.StateBuffering}
	eng.events <- engine.StateChanged{State: engine.StateReady, PlayWhenReady: true}

	var seen []session.EventType
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case ev, ok := <-events:
			require.True(t, ok)
			if ev.Type() == session.EventBufferingStarted || ev.Type() == session.EventBufferingEnded {
				seen = append(seen, ev.Type())
			}
		case <-deadline:
			t.Fatal("timed out waiting for forwarded events")
		}
	}
	assert.Equal(t, []session.EventType{session.EventBufferingStarted, session.EventBufferingEnded}, seen)
}

func TestCreateResumesFromHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "provideo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uri := "https://example.com/movie.m3u8"
	require.NoError(t, store.RecordProgress(uri, "Movie", 300000, 5400000))

	m, engines := newTestManager(t, manager.Config{History: store})
	_, err = m.Create(networkSource(uri), session.Options{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return (*engines)[0].startPosition() == 300000
	}, 3*time.Second, 20*time.Millisecond)

	// an explicit start position wins over history
	_, err = m.Create(networkSource(uri), session.Options{StartPositionMs: 1000})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return (*engines)[1].startPosition() == 1000
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCastingUnsupportedWithoutFactory(t *testing.T) {
	m, _ := newTestManager(t, manager.Config{})
	assert.False(t, m.IsCastingSupported())

	id, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	require.NoError(t, err)

	ok, err := m.StartCasting(id)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := m.GetCastState(id)
	require.NoError(t, err)
	assert.Equal(t, types.CastStateNotConnected, state)
}

func TestDisposeReleasesEngineAndRemovesSession(t *testing.T) {
	m, engines := newTestManager(t, manager.Config{})
	id, err := m.Create(networkSource("https://example.com/a.mp4"), session.Options{})
	require.NoError(t, err)

	require.NoError(t, m.Dispose(id))

	eng := (*engines)[0]
	eng.mu.Lock()
	released := eng.released
	eng.mu.Unlock()
	assert.True(t, released)

	err = m.Play(id)
	var cmdErr manager.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, manager.CodeSessionNotFound, cmdErr.Code)
}
