// Package manager is the plugin façade: it routes the inbound command
// surface to the right playback session, translates failures into the typed
// command-error taxonomy, and owns session id assignment.
package manager

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/provideo/provideo/internal/background"
	"github.com/provideo/provideo/internal/cast"
	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/history"
	"github.com/provideo/provideo/internal/netmon"
	"github.com/provideo/provideo/internal/session"
	"github.com/provideo/provideo/pkg/types"
)

// Command error codes
const (
	CodeInvalidSource   = "INVALID_SOURCE"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeNetworkError    = "NETWORK_ERROR"
	CodePlaybackError   = "PLAYBACK_ERROR"
	CodeOperationError  = "OPERATION_ERROR"
)

// CommandError is a typed failure returned from explicit caller commands.
// Asynchronous failures surface on the event stream instead.
type CommandError struct {
	Code    string
	Message string
}

func (e CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound(id int64) error {
	return CommandError{Code: CodeSessionNotFound, Message: fmt.Sprintf("no session with id %d", id)}
}

func invalidArgument(format string, args ...any) error {
	return CommandError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Config wires the manager's collaborators. EngineFactory is required; nil
// optional factories disable their feature for every session.
type Config struct {
	EngineFactory  func() (engine.Engine, error)
	MonitorFactory func() netmon.Monitor
	CastFactory    func() cast.Controller
	Registry       *background.Registry
	Loader         session.SubtitleLoader
	History        *history.Store
	Logger         *slog.Logger
}

// Manager owns all live sessions. Ids are small integers assigned at create
// and never reused while the manager lives.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[int64]*managed
	nextID   int64
}

// managed pairs a session with its event pump output
type managed struct {
	session *session.Session
	events  <-chan session.Event
}

func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.With("component", "manager"),
		sessions: make(map[int64]*managed),
	}
}

// Create builds a session for the source, starts it and returns its id.
// When the history store knows the media and no explicit start position was
// given, playback resumes where it left off.
func (m *Manager) Create(source types.SourceDescriptor, opts session.Options) (int64, error) {
	if m.cfg.EngineFactory == nil {
		return 0, CommandError{Code: CodeOperationError, Message: "no engine factory configured"}
	}
	eng, err := m.cfg.EngineFactory()
	if err != nil {
		return 0, CommandError{Code: CodeOperationError, Message: fmt.Sprintf("engine construction failed: %v", err)}
	}

	if opts.StartPositionMs == 0 && m.cfg.History != nil {
		if point, err := m.cfg.History.Lookup(source.URI); err == nil && point != nil {
			opts.StartPositionMs = point.PositionMs
			m.logger.Info("resuming from history", "uri", source.URI, "position", point.PositionMs)
		}
	}

	deps := session.Deps{
		Engine:    eng,
		Registry:  m.cfg.Registry,
		Subtitles: m.cfg.Loader,
		Logger:    m.logger,
	}
	if m.cfg.MonitorFactory != nil {
		deps.Netmon = m.cfg.MonitorFactory()
	}
	if m.cfg.CastFactory != nil {
		deps.CastController = m.cfg.CastFactory()
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	s := session.New(id, source, opts, deps)
	entry := &managed{session: s, events: m.pump(id, source, s)}
	m.sessions[id] = entry
	m.mu.Unlock()

	s.Run()
	m.logger.Info("session created", "id", id, "uri", source.URI, "type", source.Type)
	return id, nil
}

// Events returns the session's ordered event stream. Each session has one
// consumer; the manager's history recording taps the stream in between
// without reordering it.
func (m *Manager) Events(id int64) (<-chan session.Event, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.events, nil
}

// Dispose tears a session down and records its final position
func (m *Manager) Dispose(id int64) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return notFound(id)
	}

	entry.session.Dispose()
	m.logger.Info("session disposed", "id", id)
	return nil
}

// DisposeAll tears down every live session, for process shutdown
func (m *Manager) DisposeAll() {
	m.mu.Lock()
	entries := make([]*managed, 0, len(m.sessions))
	for id, entry := range m.sessions {
		entries = append(entries, entry)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.session.Dispose()
	}
}

func (m *Manager) get(id int64) (*managed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return entry, nil
}

// Transport commands

func (m *Manager) Play(id int64) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.Play()
	return nil
}

func (m *Manager) Pause(id int64) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.Pause()
	return nil
}

func (m *Manager) Stop(id int64) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.Stop()
	return nil
}

func (m *Manager) SeekTo(id int64, positionMs int64) error {
	if positionMs < 0 {
		return invalidArgument("negative seek position %d", positionMs)
	}
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SeekTo(positionMs)
	return nil
}

func (m *Manager) SetPlaybackSpeed(id int64, speed float64) error {
	if speed <= 0 {
		return invalidArgument("non-positive playback speed %v", speed)
	}
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetSpeed(speed)
	return nil
}

func (m *Manager) SetVolume(id int64, volume float64) error {
	if volume < 0 || volume > 1 {
		return invalidArgument("volume %v outside [0,1]", volume)
	}
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetVolume(volume)
	return nil
}

func (m *Manager) SetLooping(id int64, looping bool) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetLooping(looping)
	return nil
}

func (m *Manager) SetScalingMode(id int64, mode types.ScalingMode) error {
	switch mode {
	case types.ScalingModeFit, types.ScalingModeFill, types.ScalingModeStretch:
	default:
		return invalidArgument("unknown scaling mode %q", mode)
	}
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetScalingMode(mode)
	return nil
}

// Track commands

func (m *Manager) SetSubtitleTrack(id int64, trackID string) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetSubtitleTrack(trackID)
	return nil
}

func (m *Manager) SetSubtitleRenderMode(id int64, mode types.SubtitleRenderMode) error {
	switch mode {
	case types.SubtitleRenderAuto, types.SubtitleRenderNative, types.SubtitleRenderFlutter:
	default:
		return invalidArgument("unknown subtitle render mode %q", mode)
	}
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetSubtitleRenderMode(mode)
	return nil
}

func (m *Manager) SetAudioTrack(id int64, trackID string) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetAudioTrack(trackID)
	return nil
}

func (m *Manager) AddExternalSubtitle(id int64, req session.ExternalSubtitleRequest) (types.TrackDescriptor, error) {
	entry, err := m.get(id)
	if err != nil {
		return types.TrackDescriptor{}, err
	}
	track, err := entry.session.AddExternalSubtitle(req)
	if err != nil {
		return types.TrackDescriptor{}, invalidArgument("%v", err)
	}
	return track, nil
}

func (m *Manager) RemoveExternalSubtitle(id int64, trackID string) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.RemoveExternalSubtitle(trackID), nil
}

func (m *Manager) GetExternalSubtitles(id int64) ([]types.ExternalSubtitle, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.session.ExternalSubtitles(), nil
}

// Queries

func (m *Manager) GetPosition(id int64) (int64, error) {
	entry, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return entry.session.PositionMs(), nil
}

func (m *Manager) GetDuration(id int64) (int64, error) {
	entry, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return entry.session.DurationMs(), nil
}

func (m *Manager) GetVideoQualities(id int64) ([]types.TrackDescriptor, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.session.VideoQualities(), nil
}

func (m *Manager) SetVideoQuality(id int64, trackID string) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.SetVideoQuality(trackID), nil
}

func (m *Manager) GetCurrentVideoQuality(id int64) (*types.TrackDescriptor, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.session.CurrentVideoQuality(), nil
}

// Lifecycle surface commands

func (m *Manager) EnterPip(id int64) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.EnterPip(), nil
}

// HandleAppBackgrounded notifies every live session of a foreground exit.
func (m *Manager) HandleAppBackgrounded() {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		sessions = append(sessions, entry.session)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.HandleAppBackgrounded()
	}
}

func (m *Manager) ExitPip(id int64) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.ExitPip()
	return nil
}

func (m *Manager) SetPipActions(id int64, actions []string) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetPipActions(actions)
	return nil
}

func (m *Manager) EnterFullscreen(id int64) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.EnterFullscreen(), nil
}

func (m *Manager) ExitFullscreen(id int64) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.ExitFullscreen()
	return nil
}

func (m *Manager) SetBackgroundPlayback(id int64, enabled bool) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.SetBackgroundPlayback(enabled), nil
}

func (m *Manager) SetMediaMetadata(id int64, meta types.MediaMetadata) error {
	entry, err := m.get(id)
	if err != nil {
		return err
	}
	entry.session.SetMediaMetadata(meta)
	return nil
}

// Casting surface

func (m *Manager) IsCastingSupported() bool {
	return m.cfg.CastFactory != nil
}

func (m *Manager) GetAvailableCastDevices(id int64) ([]types.CastDevice, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.session.CastDevices(), nil
}

func (m *Manager) StartCasting(id int64) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.StartCasting(), nil
}

func (m *Manager) StopCasting(id int64) (bool, error) {
	entry, err := m.get(id)
	if err != nil {
		return false, err
	}
	return entry.session.StopCasting(), nil
}

func (m *Manager) GetCastState(id int64) (types.CastState, error) {
	entry, err := m.get(id)
	if err != nil {
		return types.CastStateNotConnected, err
	}
	return entry.session.CastState(), nil
}

func (m *Manager) GetCurrentCastDevice(id int64) (*types.CastDevice, error) {
	entry, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return entry.session.CastDevice(), nil
}
