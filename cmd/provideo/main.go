package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/provideo/provideo/internal/background"
	"github.com/provideo/provideo/internal/config"
	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/engine/mpv"
	"github.com/provideo/provideo/internal/fetch"
	"github.com/provideo/provideo/internal/history"
	"github.com/provideo/provideo/internal/manager"
	"github.com/provideo/provideo/internal/netmon"
	"github.com/provideo/provideo/internal/session"
	"github.com/provideo/provideo/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile  string
	logLevel string

	// Global config and logger
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "provideo",
	Short: "Playback session engine with network resilience and cast handoff",
	Long: `provideo runs media playback sessions over a local mpv engine: normalized
event streams, network-outage recovery, buffering policies, external
subtitles and resume history, driven from the command line.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		cfg, _, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/provideo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	playCmd.Flags().String("tier", "", "buffering tier (min, low, medium, high, max)")
	playCmd.Flags().String("sub-lang", "", "preferred subtitle language")
	playCmd.Flags().Bool("subtitles", false, "show subtitles by default")
	playCmd.Flags().String("add-subtitle", "", "sideload a subtitle file or URL")
	playCmd.Flags().Int64("seek", 0, "start position in milliseconds")
	playCmd.Flags().Float64("volume", 0, "initial volume (0.0-1.0)")
	playCmd.Flags().Bool("loop", false, "loop playback")
	playCmd.Flags().Bool("no-resume", false, "ignore saved resume position")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(recentCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <uri>",
	Short: "Play a media URI and stream session events to the log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri := args[0]

		store, err := history.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		fetchClient := fetch.NewClient(fetch.ClientConfig{
			Timeout:    time.Duration(cfg.Network.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Network.MaxRetries,
			UserAgent:  cfg.Network.UserAgent,
			Logger:     logger,
		})

		mgr := manager.New(manager.Config{
			EngineFactory: func() (engine.Engine, error) {
				return mpv.New(logger)
			},
			MonitorFactory: func() netmon.Monitor {
				return netmon.NewProbeMonitor(netmon.Config{
					ProbeAddress:  cfg.Network.ProbeAddress,
					ProbeInterval: time.Duration(cfg.Network.ProbeIntervalSecs) * time.Second,
				}, logger)
			},
			Registry: background.NewRegistry(),
			Loader:   session.NewLoader(fetchClient, ""),
			History:  store,
			Logger:   logger,
		})
		defer mgr.DisposeAll()

		opts := sessionOptions(cmd)
		if noResume, _ := cmd.Flags().GetBool("no-resume"); noResume && opts.StartPositionMs == 0 {
			// a 1ms start position skips the history lookup without a
			// perceptible offset
			opts.StartPositionMs = 1
		}

		source := sourceFor(uri)
		id, err := mgr.Create(source, opts)
		if err != nil {
			return err
		}

		if sub, _ := cmd.Flags().GetString("add-subtitle"); sub != "" {
			_, err := mgr.AddExternalSubtitle(id, session.ExternalSubtitleRequest{
				Source: sourceFor(sub).Type,
				Path:   sub,
			})
			if err != nil {
				logger.Warn("sideloading subtitle failed", "path", sub, "error", err)
			}
		}

		events, err := mgr.Events(id)
		if err != nil {
			return err
		}

		mgr.Play(id)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sigs:
				logger.Info("interrupted, shutting down")
				return mgr.Dispose(id)
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if done := logEvent(id, ev); done {
					return mgr.Dispose(id)
				}
			}
		}
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently watched media with resume positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		points, err := store.Recent(20)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Println("No watch history yet.")
			return nil
		}
		for _, p := range points {
			title := p.Title
			if title == "" {
				title = p.MediaURI
			}
			status := fmt.Sprintf("%s / %s",
				formatDuration(p.PositionMs), formatDuration(p.DurationMs))
			if p.Completed {
				status = "finished"
			}
			fmt.Printf("%-50s  %-20s  %s\n", truncate(title, 50), status, humanize.Time(p.WatchedAt))
		}
		return nil
	},
}

// sourceFor classifies a URI the way a caller would: URLs are network
// sources, everything else is a local file
func sourceFor(uri string) types.SourceDescriptor {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return types.SourceDescriptor{Type: types.SourceTypeNetwork, URI: uri}
	}
	return types.SourceDescriptor{Type: types.SourceTypeFile, URI: uri}
}

func sessionOptions(cmd *cobra.Command) session.Options {
	opts := session.Options{
		Looping:                   cfg.Player.Looping,
		Volume:                    cfg.Player.Volume,
		Speed:                     cfg.Player.Speed,
		AllowPip:                  cfg.Player.AllowPip,
		AllowBackgroundPlayback:   cfg.Player.AllowBackgroundPlayback,
		ShowSubtitlesByDefault:    cfg.Player.ShowSubtitlesByDefault,
		PreferredSubtitleLanguage: cfg.Player.PreferredSubtitleLanguage,
		BufferingTier:             cfg.Player.BufferingTier,
		UserAgent:                 cfg.Network.UserAgent,
	}

	if tier, _ := cmd.Flags().GetString("tier"); tier != "" {
		opts.BufferingTier = tier
	}
	if lang, _ := cmd.Flags().GetString("sub-lang"); lang != "" {
		opts.PreferredSubtitleLanguage = lang
		opts.ShowSubtitlesByDefault = true
	}
	if subs, _ := cmd.Flags().GetBool("subtitles"); subs {
		opts.ShowSubtitlesByDefault = true
	}
	if seek, _ := cmd.Flags().GetInt64("seek"); seek > 0 {
		opts.StartPositionMs = seek
	}
	if volume, _ := cmd.Flags().GetFloat64("volume"); volume > 0 {
		opts.Volume = volume
	}
	if loop, _ := cmd.Flags().GetBool("loop"); loop {
		opts.Looping = true
	}
	return opts
}

// logEvent renders one session event; returns true when the session is over
func logEvent(id int64, ev session.Event) bool {
	log := logger.With("session", id)
	switch ev := ev.(type) {
	case session.PlaybackStateChanged:
		log.Info("state", "value", ev.State)
	case session.PositionChanged:
		log.Debug("position", "ms", ev.PositionMs)
	case session.DurationChanged:
		log.Info("duration", "value", formatDuration(ev.DurationMs))
	case session.VideoSizeChanged:
		log.Info("video size", "width", ev.Width, "height", ev.Height)
	case session.BandwidthEstimateChanged:
		log.Info("bandwidth", "estimate", humanize.SI(float64(ev.BitsPerSecond), "bps"))
	case session.BufferingStarted:
		log.Info("buffering", "reason", ev.Reason)
	case session.BufferingEnded:
		log.Info("buffering ended")
	case session.NetworkError:
		log.Warn("network error", "message", ev.Message,
			"willRetry", ev.WillRetry, "attempt", ev.RetryAttempt)
	case session.PlaybackRecovered:
		log.Info("playback recovered", "retries", ev.RetriesUsed)
	case session.NetworkStateChanged:
		log.Info("network", "connected", ev.Connected)
	case session.SubtitleTracksChanged:
		log.Info("subtitle tracks", "count", len(ev.Tracks))
	case session.SelectedSubtitleChanged:
		if ev.Track != nil {
			log.Info("subtitle selected", "id", ev.Track.ID, "language", ev.Track.Language)
		} else {
			log.Info("subtitles off")
		}
	case session.VideoMetadataExtracted:
		log.Info("media info", "container", ev.Metadata.Container,
			"video", ev.Metadata.VideoCodec, "audio", ev.Metadata.AudioCodec)
	case session.ChaptersExtracted:
		log.Info("chapters", "count", len(ev.Chapters))
	case session.Error:
		log.Error("playback failed", "code", ev.Code, "message", ev.Message)
		return ev.Code == "INVALID_SOURCE" || ev.Code == "PLAYBACK_ERROR"
	case session.PlaybackCompleted:
		log.Info("playback completed")
		return true
	}
	return false
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
