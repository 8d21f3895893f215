package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/samber/mo"

	"github.com/provideo/provideo/internal/fetch"
	"github.com/provideo/provideo/internal/format"
	"github.com/provideo/provideo/pkg/types"
)

const externalIDPrefix = "ext-"

// LoadedSubtitle is the product of a subtitle load: a local path the engine
// can sideload from.
type LoadedSubtitle struct {
	LocalPath string
	Format    types.SubtitleFormat
}

// SubtitleLoader resolves an external subtitle source to a local file.
// Failure is a value, not a panic or a callback exception; callers inspect
// the Result.
type SubtitleLoader interface {
	Load(ctx context.Context, source types.SourceType, path string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle]
	StoreContent(content string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle]
}

// Loader is the default SubtitleLoader: network URLs go through the shared
// HTTP client, file paths are used in place, asset paths resolve against an
// asset root directory. Fetched content lands in a scratch directory.
type Loader struct {
	client    *fetch.Client
	assetRoot string
	scratch   string
	seq       atomic.Int64
}

func NewLoader(client *fetch.Client, assetRoot string) *Loader {
	return &Loader{
		client:    client,
		assetRoot: assetRoot,
		scratch:   os.TempDir(),
	}
}

func (l *Loader) Load(ctx context.Context, source types.SourceType, path string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle] {
	switch source {
	case types.SourceTypeNetwork:
		return l.loadNetwork(ctx, path, sf)
	case types.SourceTypeFile:
		return l.loadFile(path, sf)
	case types.SourceTypeAsset:
		return l.loadFile(filepath.Join(l.assetRoot, path), sf)
	default:
		return mo.Err[LoadedSubtitle](fmt.Errorf("unknown subtitle source type %q", source))
	}
}

func (l *Loader) loadNetwork(ctx context.Context, url string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle] {
	if l.client == nil {
		return mo.Err[LoadedSubtitle](fmt.Errorf("no http client configured for subtitle fetch"))
	}
	content, err := l.client.GetText(ctx, url, nil)
	if err != nil {
		return mo.Err[LoadedSubtitle](fmt.Errorf("subtitle fetch failed: %w", err))
	}
	return l.StoreContent(content, sf)
}

func (l *Loader) loadFile(path string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle] {
	info, err := os.Stat(path)
	if err != nil {
		return mo.Err[LoadedSubtitle](fmt.Errorf("subtitle file unreadable: %w", err))
	}
	if info.IsDir() {
		return mo.Err[LoadedSubtitle](fmt.Errorf("subtitle path %s is a directory", path))
	}
	return mo.Ok(LoadedSubtitle{LocalPath: path, Format: sf})
}

// StoreContent writes pre-fetched subtitle text to the scratch directory
func (l *Loader) StoreContent(content string, sf types.SubtitleFormat) mo.Result[LoadedSubtitle] {
	name := fmt.Sprintf("provideo-sub-%d.%s", l.seq.Add(1), sf)
	path := filepath.Join(l.scratch, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return mo.Err[LoadedSubtitle](fmt.Errorf("writing subtitle scratch file: %w", err))
	}
	return mo.Ok(LoadedSubtitle{LocalPath: path, Format: sf})
}

// ExternalSubtitleRequest is the caller's add-subtitle payload. Format is
// sniffed from the path when empty; Content short-circuits fetching when the
// caller already converted the cues.
type ExternalSubtitleRequest struct {
	Source    types.SourceType
	Path      string
	Format    types.SubtitleFormat
	Label     string
	Language  string
	IsDefault bool
	Content   string
}

// AddExternalSubtitle registers a sideloaded subtitle track and starts
// loading it in the background; the session stays responsive while the load
// is in flight. The returned descriptor carries the session-generated
// "ext-N" id, which is stable for the life of the session and never reused.
// Load failures surface on the event stream, leaving the track unloaded.
func (s *Session) AddExternalSubtitle(req ExternalSubtitleRequest) (types.TrackDescriptor, error) {
	if strings.TrimSpace(req.Path) == "" && req.Content == "" {
		return types.TrackDescriptor{}, fmt.Errorf("external subtitle needs a path or content")
	}
	if req.Format == "" {
		req.Format = format.DetectSubtitleFormat(req.Path)
	}

	id := externalIDPrefix + strconv.FormatInt(s.extCounter.Add(1), 10)
	descriptor := types.TrackDescriptor{
		ID:         id,
		Kind:       types.TrackKindSubtitle,
		Label:      req.Label,
		Language:   req.Language,
		IsExternal: true,
	}
	record := types.ExternalSubtitle{
		ID:       id,
		Source:   req.Source,
		Path:     req.Path,
		Format:   req.Format,
		Label:    req.Label,
		Language: req.Language,
	}

	s.post(func() {
		s.extOrder = append(s.extOrder, id)
		s.write(func(sn *snapshot) { sn.externalSubs[id] = record })
		if req.IsDefault {
			s.pendingDefaultExt = id
		}
		go s.loadExternalSubtitle(id, req)
	})
	return descriptor, nil
}

// loadExternalSubtitle runs on a background worker and posts its result back
// to the owner goroutine.
func (s *Session) loadExternalSubtitle(id string, req ExternalSubtitleRequest) {
	var result mo.Result[LoadedSubtitle]
	switch {
	case s.loader == nil:
		result = mo.Err[LoadedSubtitle](fmt.Errorf("no subtitle loader configured"))
	case req.Content != "":
		result = s.loader.StoreContent(req.Content, req.Format)
	default:
		result = s.loader.Load(context.Background(), req.Source, req.Path, req.Format)
	}

	s.post(func() {
		loaded, err := result.Get()
		if err != nil {
			s.logger.Warn("external subtitle load failed", "id", id, "error", err)
			s.emit(Error{Code: "OPERATION_ERROR", Message: fmt.Sprintf("subtitle %s: %v", id, err)})
			return
		}
		if _, ok := s.snap.externalSubs[id]; !ok {
			// removed while the load was in flight
			return
		}
		if err := s.eng.AddSubtitleSource(loaded.LocalPath, loaded.Format, req.Label, req.Language); err != nil {
			s.logger.Warn("engine rejected external subtitle", "id", id, "error", err)
			s.emit(Error{Code: "OPERATION_ERROR", Message: fmt.Sprintf("subtitle %s: %v", id, err)})
			return
		}
		s.write(func(sn *snapshot) {
			record := sn.externalSubs[id]
			record.Loaded = true
			sn.externalSubs[id] = record
		})
		s.logger.Debug("external subtitle loaded", "id", id, "path", loaded.LocalPath)
	})
}

// RemoveExternalSubtitle drops an external subtitle from the registry,
// deselecting it first when it was active. Returns whether the id existed.
func (s *Session) RemoveExternalSubtitle(id string) bool {
	s.mu.RLock()
	_, existed := s.snap.externalSubs[id]
	s.mu.RUnlock()
	if !existed {
		return false
	}

	s.post(func() {
		if _, ok := s.snap.externalSubs[id]; !ok {
			return
		}
		if s.snap.selectedSub != nil && s.snap.selectedSub.ID == id {
			if err := s.eng.SelectTrack(types.TrackKindSubtitle, ""); err != nil {
				s.logger.Warn("deselect removed subtitle failed", "error", err)
			}
			s.write(func(sn *snapshot) { sn.selectedSub = nil })
			s.emit(SelectedSubtitleChanged{Track: nil})
		}
		delete(s.extEngine, id)
		for i, extID := range s.extOrder {
			if extID == id {
				s.extOrder = append(s.extOrder[:i], s.extOrder[i+1:]...)
				break
			}
		}
		s.write(func(sn *snapshot) { delete(sn.externalSubs, id) })
	})
	return true
}

// ExternalSubtitles lists the registered external subtitles in addition order
func (s *Session) ExternalSubtitles() []types.ExternalSubtitle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ExternalSubtitle, 0, len(s.snap.externalSubs))
	for _, sub := range s.snap.externalSubs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		return extSeqOf(out[i].ID) < extSeqOf(out[j].ID)
	})
	return out
}

func extSeqOf(id string) int64 {
	n, _ := strconv.ParseInt(strings.TrimPrefix(id, externalIDPrefix), 10, 64)
	return n
}
