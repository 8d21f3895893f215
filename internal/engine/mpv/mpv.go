package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/diniamo/gopv"
	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/format"
	"github.com/provideo/provideo/pkg/types"
)

const (
	ipcReadyTimeout  = 10 * time.Second
	ipcProbeInterval = 100 * time.Millisecond
	monitorInterval  = 250 * time.Millisecond
	eventBufferSize  = 64
)

// Engine drives a local mpv process over JSON IPC and adapts it to the
// engine.Engine capability surface. mpv exposes state as observable
// properties, so the adapter runs a monitor goroutine that diffs property
// snapshots into normalized engine events.
type Engine struct {
	mu sync.Mutex

	logger *slog.Logger

	client *gopv.Client
	cmd    *exec.Cmd
	socket string

	source types.SourceDescriptor
	opts   engine.LoadOptions

	events chan engine.Event
	cancel context.CancelFunc
	closed bool

	// cached position data, written by the monitor, read by getters
	cache struct {
		sync.RWMutex
		positionMs int64
		bufferedMs int64
		durationMs int64
		bandwidth  int64
	}

	// track-id translation: "group:index" ids handed out to the session map
	// to mpv's own numeric track ids per kind
	trackIDs map[string]mpvTrackRef

	// last observed property snapshot, monitor goroutine only
	last monitorSnapshot

	hiddenVideoTrack string
	surfaceHidden    bool
}

type mpvTrackRef struct {
	kind  types.TrackKind
	mpvID int64
}

type monitorSnapshot struct {
	stateKnown    bool
	buffering     bool
	paused        bool
	eof           bool
	idleActive    bool
	durationMs    int64
	width, height int
	trackListHash string
	metadataSent  bool
	chaptersSent  bool
	cueText       string
}

// New creates an idle mpv engine. The mpv process is spawned by Load.
func New(logger *slog.Logger) (*Engine, error) {
	if _, err := findExecutable(); err != nil {
		return nil, err
	}
	return &Engine{
		logger:   logger.With("engine", "mpv"),
		events:   make(chan engine.Event, eventBufferSize),
		trackIDs: make(map[string]mpvTrackRef),
	}, nil
}

// Load spawns mpv with the buffering policy baked into its cache options and
// connects to the IPC socket asynchronously. Preparation results surface on
// the event channel.
func (e *Engine) Load(source types.SourceDescriptor, opts engine.LoadOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine released")
	}
	if e.cmd != nil {
		return fmt.Errorf("engine already loaded")
	}

	socket, err := newSocketPath()
	if err != nil {
		return fmt.Errorf("failed to allocate ipc socket: %w", err)
	}
	e.socket = socket
	e.source = source
	e.opts = opts

	args := buildArgs(socket, source, opts)
	cmd := exec.Command("mpv", args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mpv: %w", err)
	}
	e.cmd = cmd

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.initialize(ctx)
	go e.waitProcess()
	return nil
}

func buildArgs(socket string, source types.SourceDescriptor, opts engine.LoadOptions) []string {
	args := []string{
		ipcArgument(socket),
		"--idle=yes",
		"--no-config",
		"--no-ytdl",
		"--msg-level=all=warn",
		"--force-window=no",
		"--cache=yes",
	}

	// mpv's demuxer readahead is the closest analogue of a load-control
	// max-buffer target
	if opts.Buffering.MaxBufferMs > 0 {
		args = append(args, fmt.Sprintf("--demuxer-readahead-secs=%d", opts.Buffering.MaxBufferMs/1000))
	}
	if opts.Buffering.BufferForPlaybackMs > 0 {
		args = append(args, fmt.Sprintf("--cache-pause-wait=%d", opts.Buffering.BufferForPlaybackMs/1000))
	}

	// mpv picks HLS variants by a single bitrate preference rather than a
	// constrained adaptive ladder, so the max constraint is the only part of
	// ABRMode/MinBitrate that can be honored here.
	if opts.MaxBitrate > 0 {
		args = append(args, fmt.Sprintf("--hls-bitrate=%d", opts.MaxBitrate))
	}

	if opts.StartPositionMs > 0 {
		args = append(args, fmt.Sprintf("--start=%.3f", float64(opts.StartPositionMs)/1000))
	}
	if opts.Looping {
		args = append(args, "--loop-file=inf")
	}
	if opts.Volume > 0 {
		args = append(args, fmt.Sprintf("--volume=%d", int(format.ClampVolume(opts.Volume)*100)))
	}
	if opts.UserAgent != "" {
		args = append(args, fmt.Sprintf("--user-agent=%s", opts.UserAgent))
	}
	for key, value := range opts.Headers {
		args = append(args, fmt.Sprintf("--http-header-fields=%s: %s", key, value))
	}

	uri := source.URI
	if source.Type == types.SourceTypeAsset {
		uri = assetPath(source.URI)
	}
	args = append(args, uri)
	return args
}

// assetPath resolves a bundled-asset reference relative to the executable
func assetPath(ref string) string {
	exe, err := os.Executable()
	if err != nil {
		return ref
	}
	return fmt.Sprintf("%s/../assets/%s", exe, ref)
}

func (e *Engine) initialize(ctx context.Context) {
	if err := e.waitForSocket(ctx); err != nil {
		e.failLoad(fmt.Errorf("timeout waiting for mpv ipc at %s: %w", e.socket, err))
		return
	}

	client, err := gopv.Connect(e.socket, func(err error) {
		e.emit(engine.Error{Kind: engine.ErrorKindOther, Code: "MPV_IPC", Message: err.Error()})
	})
	if err != nil {
		e.failLoad(fmt.Errorf("failed to connect to mpv ipc at %s: %w", e.socket, err))
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.client = client
	e.mu.Unlock()

	go e.monitor(ctx)
}

func (e *Engine) waitForSocket(ctx context.Context) error {
	deadline := time.After(ipcReadyTimeout)
	ticker := time.NewTicker(ipcProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("socket never appeared")
		case <-ticker.C:
			if _, err := os.Stat(e.socket); err == nil {
				// give mpv a beat to accept connections
				time.Sleep(200 * time.Millisecond)
				return nil
			}
		}
	}
}

func (e *Engine) failLoad(err error) {
	e.logger.Error("mpv load failed", "error", err)
	kind := engine.ErrorKindSource
	if e.source.Type == types.SourceTypeNetwork {
		kind = engine.ErrorKindNetwork
	}
	e.emit(engine.Error{Kind: kind, Code: "LOAD_FAILED", Message: err.Error()})
	_ = e.Release()
}

func (e *Engine) waitProcess() {
	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()
	if cmd == nil {
		return
	}

	err := cmd.Wait()

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if err != nil && !closed {
		e.emit(engine.Error{Kind: engine.ErrorKindOther, Code: "ENGINE_EXIT", Message: fmt.Sprintf("mpv exited unexpectedly: %v", err)})
	}
}

// monitor polls mpv properties and diffs them into engine events
func (e *Engine) monitor(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

func (e *Engine) pollOnce() {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()
	if client == nil {
		return
	}

	paused := e.boolProp("pause")
	buffering := e.boolProp("paused-for-cache") || e.boolProp("seeking")
	eof := e.boolProp("eof-reached")
	idleActive := e.boolProp("idle-active")

	positionMs := int64(e.floatProp("time-pos") * 1000)
	durationMs := int64(e.floatProp("duration") * 1000)
	bufferedMs := positionMs + int64(e.floatProp("demuxer-cache-duration")*1000)
	bandwidth := int64(e.floatProp("cache-speed")) * 8

	e.cache.Lock()
	e.cache.positionMs = positionMs
	e.cache.bufferedMs = bufferedMs
	e.cache.durationMs = durationMs
	e.cache.bandwidth = bandwidth
	e.cache.Unlock()

	prev := e.last
	cur := prev
	cur.paused = paused
	cur.buffering = buffering
	cur.eof = eof
	cur.idleActive = idleActive
	cur.durationMs = durationMs

	// State transitions
	state := engine.StateReady
	switch {
	case eof:
		state = engine.StateEnded
	case buffering:
		state = engine.StateBuffering
	case idleActive:
		state = engine.StateIdle
	}
	prevState := engine.StateIdle
	if prev.stateKnown {
		switch {
		case prev.eof:
			prevState = engine.StateEnded
		case prev.buffering:
			prevState = engine.StateBuffering
		case prev.idleActive:
			prevState = engine.StateIdle
		default:
			prevState = engine.StateReady
		}
	}
	cur.stateKnown = true

	if !prev.stateKnown || state != prevState || paused != prev.paused {
		e.emit(engine.StateChanged{State: state, PlayWhenReady: !paused})
	}
	if state == engine.StateEnded && prevState != engine.StateEnded {
		e.emit(engine.Completed{})
	}
	if durationMs > 0 && durationMs != prev.durationMs {
		e.emit(engine.DurationKnown{DurationMs: durationMs})
	}

	// Video size
	width := int(e.floatProp("width"))
	height := int(e.floatProp("height"))
	if width > 0 && height > 0 && (width != prev.width || height != prev.height) {
		cur.width, cur.height = width, height
		e.emit(engine.VideoSizeChanged{Width: width, Height: height})
	}

	// Track list
	tracks, hash := e.readTrackList()
	if hash != prev.trackListHash && len(tracks) > 0 {
		cur.trackListHash = hash
		e.emit(engine.TracksChanged{Tracks: tracks})
	}

	// Container metadata, once per load
	if !prev.metadataSent && durationMs > 0 {
		cur.metadataSent = true
		e.emit(engine.MetadataExtracted{Metadata: types.VideoMetadata{
			DurationMs: durationMs,
			Width:      width,
			Height:     height,
			Container:  e.stringProp("file-format"),
			VideoCodec: e.stringProp("video-codec"),
			AudioCodec: e.stringProp("audio-codec"),
			FrameRate:  e.floatProp("container-fps"),
		}})
	}

	if !prev.chaptersSent {
		if chapters := e.readChapters(durationMs); len(chapters) > 0 {
			cur.chaptersSent = true
			e.emit(engine.ChaptersExtracted{Chapters: chapters})
		}
	}

	// Subtitle cue
	cue := e.stringProp("sub-text")
	if cue != prev.cueText {
		cur.cueText = cue
		startMs := int64(e.floatProp("sub-start") * 1000)
		endMs := int64(e.floatProp("sub-end") * 1000)
		e.emit(engine.CueChanged{Text: cue, StartMs: startMs, EndMs: endMs, Active: cue != ""})
	}

	e.last = cur
}

// readTrackList converts mpv's track-list into TrackDescriptors with
// "group:index" ids. Groups: 0 video, 1 audio, 2 subtitle, matching the index
// into mpv's per-kind ordering.
func (e *Engine) readTrackList() ([]types.TrackDescriptor, string) {
	raw, err := e.request("get_property", "track-list")
	if err != nil {
		return nil, ""
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, ""
	}

	kindGroup := map[string]int{"video": 0, "audio": 1, "sub": 2}
	kindName := map[string]types.TrackKind{"video": types.TrackKindVideo, "audio": types.TrackKindAudio, "sub": types.TrackKindSubtitle}
	counters := map[string]int{}

	ids := make(map[string]mpvTrackRef)
	var tracks []types.TrackDescriptor
	hash := ""

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mpvType, _ := entry["type"].(string)
		group, known := kindGroup[mpvType]
		if !known {
			continue
		}
		index := counters[mpvType]
		counters[mpvType]++

		id := format.FormatTrackID(group, index)
		mpvID := int64(floatOf(entry["id"]))
		ids[id] = mpvTrackRef{kind: kindName[mpvType], mpvID: mpvID}

		desc := types.TrackDescriptor{
			ID:         id,
			Kind:       kindName[mpvType],
			Label:      stringOf(entry["title"]),
			Language:   stringOf(entry["lang"]),
			Codec:      stringOf(entry["codec"]),
			Width:      int(floatOf(entry["demux-w"])),
			Height:     int(floatOf(entry["demux-h"])),
			IsExternal: boolOf(entry["external"]),
			IsSelected: boolOf(entry["selected"]),
		}
		tracks = append(tracks, desc)
		hash += fmt.Sprintf("%s|%s|%s|%v;", id, desc.Language, desc.Codec, desc.IsSelected)
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

	e.mu.Lock()
	e.trackIDs = ids
	e.mu.Unlock()
	return tracks, hash
}

func (e *Engine) readChapters(durationMs int64) []types.Chapter {
	raw, err := e.request("get_property", "chapter-list")
	if err != nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	chapters := make([]types.Chapter, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start := int64(floatOf(entry["time"]) * 1000)
		chapters = append(chapters, types.Chapter{Title: stringOf(entry["title"]), StartMs: start})
		if i > 0 {
			chapters[i-1].EndMs = start
		}
	}
	if len(chapters) > 0 && durationMs > 0 {
		chapters[len(chapters)-1].EndMs = durationMs
	}
	return chapters
}

func (e *Engine) Play() error  { return e.setProp("pause", false) }
func (e *Engine) Pause() error { return e.setProp("pause", true) }

func (e *Engine) SeekTo(positionMs int64) error {
	return e.setProp("time-pos", float64(positionMs)/1000)
}

func (e *Engine) SetVolume(volume float64) error {
	return e.setProp("volume", format.ClampVolume(volume)*100)
}

func (e *Engine) SetSpeed(speed float64) error {
	return e.setProp("speed", format.ClampSpeed(speed))
}

func (e *Engine) SetLooping(looping bool) error {
	value := "no"
	if looping {
		value = "inf"
	}
	return e.setProp("loop-file", value)
}

func (e *Engine) SetScalingMode(mode types.ScalingMode) error {
	switch mode {
	case types.ScalingModeFill:
		if err := e.setProp("keepaspect", true); err != nil {
			return err
		}
		return e.setProp("panscan", 1.0)
	case types.ScalingModeStretch:
		return e.setProp("keepaspect", false)
	default: // fit
		if err := e.setProp("keepaspect", true); err != nil {
			return err
		}
		return e.setProp("panscan", 0.0)
	}
}

func (e *Engine) SelectTrack(kind types.TrackKind, id string) error {
	prop := map[types.TrackKind]string{
		types.TrackKindVideo:    "vid",
		types.TrackKindAudio:    "aid",
		types.TrackKindSubtitle: "sid",
	}[kind]
	if prop == "" {
		return fmt.Errorf("unknown track kind %q", kind)
	}

	if id == "" {
		// clear override: auto for video/audio, off for subtitles
		if kind == types.TrackKindSubtitle {
			return e.setProp(prop, "no")
		}
		return e.setProp(prop, "auto")
	}

	e.mu.Lock()
	ref, ok := e.trackIDs[id]
	e.mu.Unlock()
	if !ok || ref.kind != kind {
		// stale id after a track-list refresh; silently tolerated
		return nil
	}
	return e.setProp(prop, strconv.FormatInt(ref.mpvID, 10))
}

func (e *Engine) AddSubtitleSource(uri string, _ types.SubtitleFormat, label, language string) error {
	args := []any{uri, "auto"}
	if label != "" {
		args = append(args, label)
		if language != "" {
			args = append(args, language)
		}
	}
	_, err := e.request("sub-add", args...)
	return err
}

func (e *Engine) SetSurfaceVisible(visible bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if visible == !e.surfaceHidden {
		return nil
	}
	if !visible {
		current, err := e.requestLocked("get_property", "vid")
		if err == nil {
			e.hiddenVideoTrack = fmt.Sprintf("%v", current)
		}
		e.surfaceHidden = true
		return e.setPropLocked("vid", "no")
	}
	e.surfaceHidden = false
	restore := e.hiddenVideoTrack
	if restore == "" || restore == "no" || restore == "false" {
		restore = "auto"
	}
	return e.setPropLocked("vid", restore)
}

func (e *Engine) PositionMs() int64 {
	e.cache.RLock()
	defer e.cache.RUnlock()
	return e.cache.positionMs
}

func (e *Engine) BufferedPositionMs() int64 {
	e.cache.RLock()
	defer e.cache.RUnlock()
	return e.cache.bufferedMs
}

func (e *Engine) DurationMs() int64 {
	e.cache.RLock()
	defer e.cache.RUnlock()
	return e.cache.durationMs
}

func (e *Engine) BandwidthEstimate() int64 {
	e.cache.RLock()
	defer e.cache.RUnlock()
	return e.cache.bandwidth
}

func (e *Engine) Events() <-chan engine.Event {
	return e.events
}

// Release quits mpv and tears down IPC. Safe to call more than once; the
// event channel closes on the first call.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	client := e.client
	cmd := e.cmd
	socket := e.socket
	cancel := e.cancel
	e.client = nil
	e.cmd = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if client != nil {
		// ask mpv to quit, but don't wait on a dead pipe; the process kill
		// below cleans up regardless
		done := make(chan struct{})
		go func() {
			_, _ = client.Request("quit")
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if socket != "" {
		_ = os.Remove(socket)
	}

	close(e.events)
	return nil
}

func (e *Engine) emit(ev engine.Event) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("dropping engine event, consumer too slow", "event", fmt.Sprintf("%T", ev))
	}
}

func (e *Engine) request(command string, args ...any) (any, error) {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("mpv not connected")
	}
	return client.Request(append([]any{command}, args...)...)
}

func (e *Engine) requestLocked(command string, args ...any) (any, error) {
	if e.client == nil {
		return nil, fmt.Errorf("mpv not connected")
	}
	return e.client.Request(append([]any{command}, args...)...)
}

func (e *Engine) setProp(name string, value any) error {
	_, err := e.request("set_property", name, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

func (e *Engine) setPropLocked(name string, value any) error {
	_, err := e.requestLocked("set_property", name, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

func (e *Engine) boolProp(name string) bool {
	result, err := e.request("get_property", name)
	if err != nil {
		return false
	}
	val, _ := result.(bool)
	return val
}

func (e *Engine) floatProp(name string) float64 {
	result, err := e.request("get_property", name)
	if err != nil {
		return 0
	}
	return floatOf(result)
}

func (e *Engine) stringProp(name string) string {
	result, err := e.request("get_property", name)
	if err != nil {
		return ""
	}
	return stringOf(result)
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}
