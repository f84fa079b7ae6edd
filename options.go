package appconfig

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goappconfig/internal/configsync"
	"github.com/TimurManjosov/goappconfig/internal/connectivity"
)

// Option customises a Client at construction.
type Option func(*options)

type options struct {
	logger           *zerolog.Logger
	httpClient       *http.Client
	overrideBase     string
	retryInterval    time.Duration
	meteringInterval time.Duration
	registry         prometheus.Registerer
	fs               afero.Fs
	cacheDir         string
	monitor          connectivity.Monitor
	tokens           configsync.TokenSource
}

// WithLogger replaces the client's default stderr logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.logger = &log }
}

// WithHTTPClient sets the HTTP client used for pulls and metering uploads.
// The push subscription uses a timeout-free clone of it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL overrides the region-derived service host. Meant for the
// local stub server and tests.
func WithBaseURL(base string) Option {
	return func(o *options) { o.overrideBase = base }
}

// WithRetryInterval changes the fixed delay used for the scheduled pull
// retry and push reconnects.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) { o.retryInterval = d }
}

// WithMeteringInterval changes how often aggregated usage is uploaded.
func WithMeteringInterval(d time.Duration) Option {
	return func(o *options) { o.meteringInterval = d }
}

// WithMetricsRegistry registers the client's prometheus metrics on reg.
// Without it the metrics exist but are not exported.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithFilesystem replaces the filesystem backing the persisted snapshot.
func WithFilesystem(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithCacheDir sets the directory holding persisted snapshot files.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithConnectivityMonitor attaches a reachability monitor. The engine
// subscribes to it only while live updates are enabled.
func WithConnectivityMonitor(m connectivity.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithTokenSource replaces the default apikey-as-bearer token source.
func WithTokenSource(ts configsync.TokenSource) Option {
	return func(o *options) { o.tokens = ts }
}

// ContextOption customises SetContext.
type ContextOption func(*contextOptions)

type contextOptions struct {
	bootstrapPath string
	liveUpdates   bool
}

// WithBootstrapFile seeds the persisted snapshot from a local document
// before any network call, enabling offline startup.
func WithBootstrapFile(path string) ContextOption {
	return func(o *contextOptions) { o.bootstrapPath = path }
}

// WithLiveUpdates toggles the pull, the push subscription, and the
// connectivity listener. Disabled clients serve only file-backed data.
func WithLiveUpdates(enabled bool) ContextOption {
	return func(o *contextOptions) { o.liveUpdates = enabled }
}
