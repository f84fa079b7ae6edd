package configsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goappconfig/internal/cache"
	"github.com/TimurManjosov/goappconfig/internal/connectivity"
	"github.com/TimurManjosov/goappconfig/internal/filestore"
	"github.com/TimurManjosov/goappconfig/internal/models"
	"github.com/TimurManjosov/goappconfig/internal/telemetry"
)

// defaultRetryInterval is the fixed delay before the single scheduled
// retry after a failed pull, and before a push reconnect attempt.
const defaultRetryInterval = 600 * time.Second

// Config wires one sync engine.
type Config struct {
	Fetcher *Fetcher
	Stream  *Stream
	Cache   *cache.Store
	Files   *filestore.Store
	Monitor connectivity.Monitor
	Metrics *telemetry.Metrics

	// LiveUpdates enables the pull, the push subscription, and the
	// connectivity listener. When false the engine only serves what the
	// snapshot file provides.
	LiveUpdates bool

	// BootstrapPath, when set, seeds the persisted snapshot before any
	// network call.
	BootstrapPath string

	RetryInterval time.Duration
	Log           zerolog.Logger
}

// Engine reconciles the pull channel, the push subscription, and the
// local snapshot into the cache.
type Engine struct {
	fetcher       *Fetcher
	stream        *Stream
	cache         *cache.Store
	files         *filestore.Store
	monitor       connectivity.Monitor
	metrics       *telemetry.Metrics
	liveUpdates   bool
	bootstrapPath string
	retryInterval time.Duration
	log           zerolog.Logger

	loading atomic.Bool

	mu           sync.Mutex
	listener     func()
	streamCancel context.CancelFunc
	streamDone   chan struct{}
	connCancel   func()
	retryTimer   *time.Timer
	offline      bool
}

// NewEngine returns an engine; call Load to run the first sync cycle.
func NewEngine(cfg Config) *Engine {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	return &Engine{
		fetcher:       cfg.Fetcher,
		stream:        cfg.Stream,
		cache:         cfg.Cache,
		files:         cfg.Files,
		monitor:       cfg.Monitor,
		metrics:       cfg.Metrics,
		liveUpdates:   cfg.LiveUpdates,
		bootstrapPath: cfg.BootstrapPath,
		retryInterval: cfg.RetryInterval,
		log:           cfg.Log,
	}
}

// SetListener registers the callback fired after every successful cache
// reload driven by network or file sync. A nil fn detaches it.
func (e *Engine) SetListener(fn func()) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// Load runs one full sync cycle: seed the snapshot from the bootstrap
// file, reload the cache, then pull and start the push subscription when
// live updates are on. Concurrent calls collapse into the in-flight
// cycle; the duplicate returns immediately.
func (e *Engine) Load(ctx context.Context) {
	if !e.loading.CompareAndSwap(false, true) {
		e.log.Debug().Msg("load already in flight, skipping")
		return
	}
	defer e.loading.Store(false)

	if e.bootstrapPath != "" {
		if err := e.files.Seed(e.bootstrapPath); err != nil {
			e.log.Error().Err(err).Str("path", e.bootstrapPath).Msg("seeding snapshot from bootstrap file failed")
		}
	}

	if err := e.cache.Reload(); err != nil {
		e.log.Error().Err(err).Msg("cache reload failed")
	}
	e.publishCacheCounts()

	if !e.liveUpdates {
		e.stopStream()
		e.detachConnectivity()
		return
	}

	e.fetchAndUpdate(ctx)
	e.ensureStream()
	e.ensureConnectivity()
}

// FetchNow runs one pull immediately, outside the Load cycle. Used for
// manual refresh.
func (e *Engine) FetchNow(ctx context.Context) error {
	return e.fetchAndUpdate(ctx)
}

// Feature returns the cached feature, reloading the cache once on a miss
// to cover lookups racing the initial load.
func (e *Engine) Feature(id string) (models.Feature, bool) {
	if f, ok := e.cache.Feature(id); ok {
		return f, true
	}
	if err := e.cache.Reload(); err != nil {
		e.log.Error().Err(err).Msg("lazy cache reload failed")
	}
	f, ok := e.cache.Feature(id)
	if !ok {
		e.log.Error().Str("feature_id", id).Msg("feature not found")
	}
	return f, ok
}

// Property returns the cached property with the same lazy reload as
// Feature.
func (e *Engine) Property(id string) (models.Property, bool) {
	if p, ok := e.cache.Property(id); ok {
		return p, true
	}
	if err := e.cache.Reload(); err != nil {
		e.log.Error().Err(err).Msg("lazy cache reload failed")
	}
	p, ok := e.cache.Property(id)
	if !ok {
		e.log.Error().Str("property_id", id).Msg("property not found")
	}
	return p, ok
}

// Close stops the push subscription, the connectivity listener, and any
// scheduled retry. Safe to call multiple times.
func (e *Engine) Close() error {
	e.stopStream()
	e.detachConnectivity()

	e.mu.Lock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	e.mu.Unlock()
	return nil
}

// fetchAndUpdate performs one pull and, on success, persists the body,
// reloads the cache, and fires the change listener. A pull that exhausts
// its immediate retries schedules exactly one delayed retry. A body that
// fails to decode is logged and still written; the cache reload then
// reports the real damage.
func (e *Engine) fetchAndUpdate(ctx context.Context) error {
	if e.metrics != nil {
		e.metrics.FetchAttempts.Inc()
	}

	body, err := e.fetcher.Fetch(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.FetchFailures.Inc()
		}
		e.log.Error().Err(err).Msg("configuration pull exhausted retries")
		e.scheduleDelayedRetry()
		return err
	}

	if _, perr := models.ParseConfiguration(body); perr != nil {
		e.log.Warn().Err(perr).Msg("pulled document failed to decode, persisting anyway")
	}

	if err := e.files.Write(body); err != nil {
		e.log.Error().Err(err).Msg("persisting pulled snapshot failed")
		return err
	}
	if err := e.cache.Reload(); err != nil {
		e.log.Error().Err(err).Msg("cache reload after pull failed")
		return err
	}
	e.publishCacheCounts()

	e.notifyListener()
	return nil
}

func (e *Engine) notifyListener() {
	e.mu.Lock()
	fn := e.listener
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *Engine) publishCacheCounts() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetCacheCounts(e.cache.Counts())
}

// scheduleDelayedRetry arms the single delayed retry. An already armed
// timer is left alone so failures during the wait never stack retries.
func (e *Engine) scheduleDelayedRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retryTimer != nil {
		return
	}
	e.log.Info().Dur("after", e.retryInterval).Msg("scheduling delayed configuration retry")
	e.retryTimer = time.AfterFunc(e.retryInterval, func() {
		e.mu.Lock()
		e.retryTimer = nil
		e.mu.Unlock()
		e.fetchAndUpdate(context.Background())
	})
}

// ensureStream starts the push subscription goroutine if none is active.
func (e *Engine) ensureStream() {
	if e.stream == nil {
		return
	}
	e.mu.Lock()
	if e.streamCancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.streamCancel = cancel
	e.streamDone = done
	e.mu.Unlock()

	go e.runStream(ctx, done)
}

func (e *Engine) stopStream() {
	e.mu.Lock()
	cancel := e.streamCancel
	done := e.streamDone
	e.streamCancel = nil
	e.streamDone = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// runStream holds the push subscription open, pulls on every event, and
// reconnects after the retry interval when the connection drops. The
// first successful open after a drop triggers one pull to resync.
func (e *Engine) runStream(ctx context.Context, done chan struct{}) {
	defer close(done)

	retrying := false
	for {
		err := e.stream.Listen(ctx,
			func() {
				if retrying {
					retrying = false
					e.fetchAndUpdate(ctx)
				}
			},
			func() {
				e.fetchAndUpdate(ctx)
			},
		)
		if ctx.Err() != nil {
			return
		}

		e.log.Warn().Err(err).Dur("reconnect_in", e.retryInterval).Msg("push subscription dropped")
		if e.metrics != nil {
			e.metrics.StreamReconnects.Inc()
		}
		retrying = true

		select {
		case <-time.After(e.retryInterval):
		case <-ctx.Done():
			return
		}
	}
}

// ensureConnectivity attaches the reachability listener. An offline
// transition is only recorded; the first online transition after it
// triggers one pull.
func (e *Engine) ensureConnectivity() {
	if e.monitor == nil {
		return
	}
	e.mu.Lock()
	if e.connCancel != nil {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	cancel := e.monitor.Subscribe(func(online bool) {
		if !online {
			e.mu.Lock()
			e.offline = true
			e.mu.Unlock()
			e.log.Warn().Msg("connectivity lost, serving cached configuration")
			return
		}
		e.mu.Lock()
		wasOffline := e.offline
		e.offline = false
		e.mu.Unlock()
		if wasOffline {
			e.log.Info().Msg("connectivity restored, refreshing configuration")
			go e.fetchAndUpdate(context.Background())
		}
	})

	e.mu.Lock()
	e.connCancel = cancel
	e.mu.Unlock()
}

func (e *Engine) detachConnectivity() {
	e.mu.Lock()
	cancel := e.connCancel
	e.connCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
