package netmon

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	defaultProbeInterval = 3 * time.Second
	defaultProbeTimeout  = 2 * time.Second
	eventBufferSize      = 8
)

// Monitor reports internet-reachability transitions. Implementations emit a
// value on every connected/disconnected flip, never for unchanged samples.
type Monitor interface {
	// Events delivers reachability transitions. The first value reflects the
	// initial probe. Closed by Stop.
	Events() <-chan bool
	Start() error
	// Stop is idempotent
	Stop()
}

// Config for the probe-based monitor
type Config struct {
	// ProbeAddress is a host:port dialed to decide reachability
	ProbeAddress  string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// ProbeMonitor decides reachability by periodically dialing a well-known
// address. It stands in for a platform connectivity callback on systems
// without one.
type ProbeMonitor struct {
	cfg    Config
	logger *slog.Logger

	events chan bool
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	started  bool
	stopped  bool
	lastSeen *bool

	// dial is swappable for tests
	dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

func NewProbeMonitor(cfg Config, logger *slog.Logger) *ProbeMonitor {
	if cfg.ProbeAddress == "" {
		cfg.ProbeAddress = "1.1.1.1:443"
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return &ProbeMonitor{
		cfg:    cfg,
		logger: logger.With("component", "netmon"),
		events: make(chan bool, eventBufferSize),
		done:   make(chan struct{}),
		dial:   net.DialTimeout,
	}
}

func (m *ProbeMonitor) Events() <-chan bool {
	return m.events
}

func (m *ProbeMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return nil
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
	return nil
}

func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel := m.cancel
	started := m.started
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-m.done
	}
	close(m.events)
}

func (m *ProbeMonitor) run(ctx context.Context) {
	defer close(m.done)

	m.sample()
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *ProbeMonitor) sample() {
	connected := m.probe()

	m.mu.Lock()
	changed := m.lastSeen == nil || *m.lastSeen != connected
	m.lastSeen = &connected
	stopped := m.stopped
	m.mu.Unlock()

	if !changed || stopped {
		return
	}
	m.logger.Info("network reachability changed", "connected", connected)
	select {
	case m.events <- connected:
	default:
	}
}

func (m *ProbeMonitor) probe() bool {
	conn, err := m.dial("tcp", m.cfg.ProbeAddress, m.cfg.ProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
