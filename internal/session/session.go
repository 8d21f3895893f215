package session

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/provideo/provideo/internal/background"
	"github.com/provideo/provideo/internal/buffering"
	"github.com/provideo/provideo/internal/cast"
	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/netmon"
	"github.com/provideo/provideo/pkg/types"
)

// LifecycleState is the session's externally visible playback state
type LifecycleState string

const (
	StateIdle      LifecycleState = "idle"
	StatePreparing LifecycleState = "preparing"
	StateBuffering LifecycleState = "buffering"
	StateReady     LifecycleState = "ready"
	StatePlaying   LifecycleState = "playing"
	StatePaused    LifecycleState = "paused"
	StateCompleted LifecycleState = "completed"
	StateError     LifecycleState = "error"
	StateDisposed  LifecycleState = "disposed"
)

const (
	playingPollInterval = 250 * time.Millisecond
	pausedPollInterval  = 1 * time.Second
	eventQueueSize      = 256

	// maxNetworkRetries is informational, carried on networkError events so
	// the caller can render attempt counts; the session itself only ever
	// retries once per connectivity restoration.
	maxNetworkRetries = 3
)

// Options is the immutable per-session configuration snapshot
type Options struct {
	Looping                   bool
	Volume                    float64
	Speed                     float64
	AllowPip                  bool
	AutoEnterPipOnBackground  bool
	AllowBackgroundPlayback   bool
	ShowSubtitlesByDefault    bool
	PreferredSubtitleLanguage string
	SubtitleRenderMode        types.SubtitleRenderMode
	BufferingTier             string
	ABRMode                   types.ABRMode
	MinBitrate                int64
	MaxBitrate                int64
	Headers                   map[string]string
	UserAgent                 string
	StartPositionMs           int64
	Metadata                  types.MediaMetadata
}

// Deps are the session's injected collaborators. Engine is required; the
// rest are optional and simply disable their feature when nil.
type Deps struct {
	Engine         engine.Engine
	Netmon         netmon.Monitor
	CastController cast.Controller
	Registry       *background.Registry
	Subtitles      SubtitleLoader
	Logger         *slog.Logger
}

// networkResilience is the stall/recovery bookkeeping, owner goroutine only
type networkResilience struct {
	bufferingDueToNetwork bool
	wasPlayingBeforeStall bool
	retryCount            int
	hadNetworkError       bool
	wasDisconnected       bool
}

// lastEmitted holds the dedup state for poll-driven events. A seek resets
// position to -1 so the next poll always emits.
type lastEmitted struct {
	positionMs  int64
	bufferedMs  int64
	bandwidth   int64
	bandwidthAt time.Time
}

// snapshot is the read side of the session, guarded by its own RWMutex so
// getters never touch the owner goroutine. Written only by the owner.
type snapshot struct {
	state           LifecycleState
	buffering       bool
	playing         bool
	positionMs      int64
	bufferedMs      int64
	durationMs      int64
	bandwidth       int64
	volume          float64
	speed           float64
	looping         bool
	width, height   int
	subtitleTracks  []types.TrackDescriptor
	audioTracks     []types.TrackDescriptor
	qualityTracks   []types.TrackDescriptor
	selectedSub     *types.TrackDescriptor
	selectedAudio   *types.TrackDescriptor
	selectedQuality *types.TrackDescriptor
	externalSubs    map[string]types.ExternalSubtitle
	renderMode      types.SubtitleRenderMode
	pipActive       bool
	pipActions      []string
	fullscreen      bool
	backgroundOn    bool
	castState       types.CastState
	castDevice      *types.CastDevice
	casting         bool
	metadata        types.MediaMetadata
	videoMeta       *types.VideoMetadata
	chapters        []types.Chapter
}

// subtitleLatch is the one-way auto-selection latch: once evaluated (either
// way) it never auto-selects again, even across track-list refreshes.
type subtitleLatch int

const (
	latchNotYetEvaluated subtitleLatch = iota
	latchAutoSelected
	latchManualOrSkipped
)

// Session is one playback session: it exclusively owns a native engine and
// serializes all state mutation onto a single owner goroutine. Public
// commands post closures onto that goroutine and never block on the engine;
// getters read a lock-guarded snapshot.
type Session struct {
	id     int64
	source types.SourceDescriptor
	opts   Options
	logger *slog.Logger

	eng      engine.Engine
	monitor  netmon.Monitor
	bridge   *cast.Bridge
	registry *background.Registry
	loader   SubtitleLoader

	commands chan func()
	events   chan Event
	quit     chan struct{}
	done     chan struct{}

	mu   sync.RWMutex
	snap snapshot

	disposeOnce sync.Once

	// extCounter backs ext-N id allocation; atomic so AddExternalSubtitle
	// can mint ids without an owner-goroutine round trip
	extCounter atomic.Int64

	// owner-goroutine state below
	resilience           networkResilience
	emitted              lastEmitted
	latch                subtitleLatch
	extOrder             []string
	extEngine            map[string]string // ext-N -> engine track id
	pendingDefaultExt    string
	retryTimer           *time.Timer
	stateBeforeBuffering LifecycleState
	disposed             bool

	engineEvents <-chan engine.Event
	netEvents    <-chan bool
}

// New constructs a session around an already-built engine. The source is not
// validated here; validation happens asynchronously after Run, mirroring the
// asynchronous preparation of the underlying player.
func New(id int64, source types.SourceDescriptor, opts Options, deps Deps) *Session {
	if opts.Volume == 0 {
		opts.Volume = 1.0
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}
	if opts.SubtitleRenderMode == "" {
		opts.SubtitleRenderMode = types.SubtitleRenderAuto
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)

	s := &Session{
		id:        id,
		source:    source,
		opts:      opts,
		logger:    logger,
		eng:       deps.Engine,
		monitor:   deps.Netmon,
		registry:  deps.Registry,
		loader:    deps.Subtitles,
		commands:  make(chan func(), 64),
		events:    make(chan Event, eventQueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		extEngine: make(map[string]string),
		emitted:   lastEmitted{positionMs: -1, bufferedMs: -1},
		snap: snapshot{
			state:        StateIdle,
			volume:       opts.Volume,
			speed:        opts.Speed,
			looping:      opts.Looping,
			renderMode:   opts.SubtitleRenderMode,
			castState:    types.CastStateNotConnected,
			metadata:     opts.Metadata,
			externalSubs: make(map[string]types.ExternalSubtitle),
		},
	}

	if deps.CastController != nil {
		s.bridge = cast.NewBridge(deps.CastController, s.castHooks(), s.post, s.castMedia, logger)
	}
	return s
}

func (s *Session) ID() int64 { return s.id }

// Events is the session's ordered outbound stream. Closed by Dispose.
func (s *Session) Events() <-chan Event { return s.events }

// Run starts the owner goroutine and kicks off preparation. Call once.
func (s *Session) Run() {
	s.engineEvents = s.eng.Events()
	if s.monitor != nil {
		s.netEvents = s.monitor.Events()
		if err := s.monitor.Start(); err != nil {
			s.logger.Warn("connectivity monitor failed to start", "error", err)
		}
	}
	if s.bridge != nil {
		go s.bridge.Run()
	}

	go s.run()
	s.post(s.prepare)
}

func (s *Session) run() {
	defer close(s.done)

	poll := time.NewTimer(pausedPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-s.quit:
			return

		case fn := <-s.commands:
			fn()

		case ev, ok := <-s.engineEvents:
			if !ok {
				s.engineEvents = nil
				continue
			}
			s.handleEngineEvent(ev)

		case connected, ok := <-s.netEvents:
			if !ok {
				s.netEvents = nil
				continue
			}
			s.handleConnectivity(connected)

		case <-poll.C:
			s.pollTick()
			poll.Reset(s.pollInterval())
		}
	}
}

// post marshals fn onto the owner goroutine. Dropped after dispose.
func (s *Session) post(fn func()) {
	select {
	case s.commands <- fn:
	case <-s.quit:
	}
}

// emit appends to the outbound stream in production order
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Session) pollInterval() time.Duration {
	s.mu.RLock()
	playing := s.snap.playing
	s.mu.RUnlock()
	if playing {
		return playingPollInterval
	}
	return pausedPollInterval
}

// write mutates the snapshot under the write lock, owner goroutine only
func (s *Session) write(fn func(*snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

func (s *Session) setState(state LifecycleState) {
	s.mu.Lock()
	changed := s.snap.state != state
	s.snap.state = state
	s.mu.Unlock()
	if changed {
		s.emit(PlaybackStateChanged{State: state})
	}
}

// prepare validates the source and starts asynchronous engine preparation.
// Invalid sources surface as an error event, not a synchronous failure.
func (s *Session) prepare() {
	if err := validateSource(s.source); err != nil {
		s.logger.Error("invalid source", "uri", s.source.URI, "error", err)
		s.emit(Error{Code: "INVALID_SOURCE", Message: err.Error()})
		return
	}

	s.setState(StatePreparing)
	opts := engine.LoadOptions{
		Buffering:       buffering.ForTier(s.opts.BufferingTier),
		ABRMode:         s.opts.ABRMode,
		MinBitrate:      s.opts.MinBitrate,
		MaxBitrate:      s.opts.MaxBitrate,
		Headers:         s.opts.Headers,
		UserAgent:       s.opts.UserAgent,
		StartPositionMs: s.opts.StartPositionMs,
		Looping:         s.opts.Looping,
		Volume:          s.opts.Volume,
	}
	if err := s.eng.Load(s.source, opts); err != nil {
		s.emit(Error{Code: "INVALID_SOURCE", Message: err.Error()})
		s.setState(StateIdle)
		return
	}
	if s.opts.Speed != 1.0 {
		_ = s.eng.SetSpeed(s.opts.Speed)
	}
}

func validateSource(source types.SourceDescriptor) error {
	if strings.TrimSpace(source.URI) == "" {
		return fmt.Errorf("empty source uri")
	}
	switch source.Type {
	case types.SourceTypeNetwork:
		u, err := url.Parse(source.URI)
		if err != nil {
			return fmt.Errorf("unparseable url %q: %w", source.URI, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("unsupported url scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("url %q has no host", source.URI)
		}
	case types.SourceTypeFile, types.SourceTypeAsset:
		// existence is checked by the engine at load time
	default:
		return fmt.Errorf("unknown source type %q", source.Type)
	}
	return nil
}

// Dispose tears the session down: polling stops, timers and callbacks are
// cancelled, the registry entry is removed, the engine is released and the
// event stream closes. Idempotent; blocks until teardown completes.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.post(s.teardown)
	})
	<-s.done
}

func (s *Session) teardown() {
	if s.disposed {
		return
	}
	s.disposed = true

	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.monitor != nil {
		s.monitor.Stop()
		s.netEvents = nil
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
	if s.registry != nil {
		s.registry.Unregister(s.id)
	}
	if err := s.eng.Release(); err != nil {
		s.logger.Warn("engine release failed", "error", err)
	}
	s.engineEvents = nil

	s.setState(StateDisposed)
	close(s.quit)
	close(s.events)
}
