package goSession

import (
	"log/slog"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/bus"
	"github.com/MrEthical07/goSession/internal/clock"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/session"
)

// Builder assembles a Manager. Configure it once, call Build once.
type Builder struct {
	config  Config
	store   session.Store
	backend Backend
	bus     *bus.Bus
	sink    NotificationSink
	clock   clock.Clock

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persisted session store. Without it, Build opens
// the store described by Config.Storage and the Manager closes it.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithBackend sets the REST backend. Without it, Build creates an
// *api.Client from Config.API wired to the store and the bus.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithBus shares an existing unauthorized signal bus, typically one an
// externally built api.Client already fires.
func (b *Builder) WithBus(sb *bus.Bus) *Builder {
	b.bus = sb
	return b
}

func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.config.Logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the configuration, wires the collaborators, subscribes
// to the unauthorized bus and starts the background check. The returned
// Manager starts with IsLoading set until Restore runs.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if b.store != nil && cfg.Storage.Driver != StorageMemory {
		// An explicit store overrides the configured driver.
		cfg.Storage = StorageConfig{Driver: StorageMemory}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}
	signals := b.bus
	if signals == nil {
		signals = bus.New()
	}

	store := b.store
	ownsStore := false
	if store == nil {
		opened, err := OpenStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		store = opened
		ownsStore = true
	}

	m := &Manager{
		config:    cfg,
		store:     store,
		ownsStore: ownsStore,
		bus:       signals,
		clock:     clk,
		logger:    logger.With("component", "gosession"),
		metrics:   NewMetrics(cfg.Metrics),
		stop:      make(chan struct{}),
		watchers:  make(map[uint64]func(State)),
		state:     State{IsLoading: true},
	}

	backend := b.backend
	if backend == nil {
		client, err := api.New(cfg.API.BaseURL,
			api.WithTimeout(cfg.API.Timeout),
			api.WithTokenSource(api.StoreTokens(store)),
			api.WithUnauthorizedSignal(signals),
			api.WithLogger(logger.With("component", "api")),
		)
		if err != nil {
			if ownsStore {
				_ = store.Close()
			}
			return nil, err
		}
		backend = client
		m.client = client
	} else if client, ok := backend.(*api.Client); ok {
		m.client = client
	}
	m.backend = backend

	sink := b.sink
	if sink == nil {
		sink = notify.NoOpSink{}
	}
	switch {
	case !cfg.Notifications.Enabled:
		m.notifier = notify.NoOpSink{}
	case cfg.Notifications.Async:
		m.dispatcher = notify.NewDispatcher(notify.Config{
			BufferSize: cfg.Notifications.BufferSize,
			DropIfFull: cfg.Notifications.DropIfFull,
			Now:        m.clock.Now,
		}, sink)
		m.notifier = m.dispatcher
	default:
		m.notifier = sink
	}

	m.unsubscribe = signals.Subscribe(m.handleUnauthorized)
	if !cfg.Session.DisableBackgroundCheck {
		m.startBackgroundCheck()
	}

	b.built = true
	return m, nil
}
