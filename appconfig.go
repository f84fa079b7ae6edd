// Package appconfig is a client SDK for a remote feature-flag and
// configuration service. A Client keeps a local snapshot of features,
// properties, and targeting segments converged with the service over a
// hybrid pull+push protocol, evaluates values for an entity against
// segment rules, and meters every evaluation.
package appconfig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goappconfig/internal/cache"
	"github.com/TimurManjosov/goappconfig/internal/configsync"
	"github.com/TimurManjosov/goappconfig/internal/engine"
	"github.com/TimurManjosov/goappconfig/internal/filestore"
	"github.com/TimurManjosov/goappconfig/internal/metering"
	"github.com/TimurManjosov/goappconfig/internal/models"
	"github.com/TimurManjosov/goappconfig/internal/telemetry"
	"github.com/TimurManjosov/goappconfig/internal/validation"
)

var (
	// ErrInvalidInit reports missing client coordinates.
	ErrInvalidInit = errors.New("region, guid, and apikey are required")

	// ErrContextNotSet is returned by data accessors before SetContext.
	ErrContextNotSet = errors.New("context not set, call SetContext first")

	// ErrContextAlreadySet is returned by a second SetContext call.
	ErrContextAlreadySet = errors.New("context already set")

	// ErrNotFound reports an id unknown to the local cache.
	ErrNotFound = errors.New("not found")
)

// Client is one connection to a configuration service instance. Multiple
// independent clients may coexist in a process.
type Client struct {
	log     zerolog.Logger
	opts    options
	urls    *configsync.URLBuilder
	tokens  configsync.TokenSource
	metrics *telemetry.Metrics

	mu     sync.Mutex
	engine *configsync.Engine
	store  *cache.Store
	eval   *engine.Evaluator
	meter  *metering.Aggregator
	closed bool
}

// NewClient validates the service coordinates and returns a client.
// apikey is used as a bearer token unless WithTokenSource overrides it.
// Call SetContext before reading any data.
func NewClient(region, guid, apikey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(region) == "" || strings.TrimSpace(guid) == "" || strings.TrimSpace(apikey) == "" {
		return nil, ErrInvalidInit
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Str("component", "appconfig").Logger()
		o.logger = &l
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.cacheDir == "" {
		o.cacheDir = filepath.Join(os.TempDir(), "appconfig")
	}
	if o.tokens == nil {
		o.tokens = configsync.StaticToken(apikey)
	}

	return &Client{
		log:     *o.logger,
		opts:    o,
		urls:    configsync.NewURLBuilder(region, guid, o.overrideBase),
		tokens:  o.tokens,
		metrics: telemetry.New(o.registry),
	}, nil
}

// SetContext binds the client to one collection and environment and starts
// the first sync cycle in the background. Live updates default to on.
func (c *Client) SetContext(collectionID, environmentID string, opts ...ContextOption) error {
	if err := validation.ValidateID("collection", collectionID); err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	if err := validation.ValidateID("environment", environmentID); err != nil {
		return fmt.Errorf("set context: %w", err)
	}

	co := contextOptions{liveUpdates: true}
	for _, opt := range opts {
		opt(&co)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return ErrContextAlreadySet
	}

	snapshotPath := filepath.Join(c.opts.cacheDir,
		fmt.Sprintf("appconfig-%s-%s.json", collectionID, environmentID))
	files := filestore.New(c.opts.fs, snapshotPath, c.log)
	store := cache.New(files, c.log)

	meter := metering.New(metering.Config{
		URL:           c.urls.MeteringURL(),
		CollectionID:  collectionID,
		EnvironmentID: environmentID,
		Tokens:        c.tokens,
		Client:        c.opts.httpClient,
		Interval:      c.opts.meteringInterval,
		Log:           c.log,
	})
	meter.Start()

	// The push connection is held open indefinitely; it must not inherit
	// the pull client's timeout.
	streamClient := &http.Client{Transport: c.opts.httpClient.Transport}

	eng := configsync.NewEngine(configsync.Config{
		Fetcher:       configsync.NewFetcher(c.urls.ConfigURL(collectionID, environmentID), c.tokens, c.opts.httpClient, c.log),
		Stream:        configsync.NewStream(c.urls.EventsURL(), c.tokens, streamClient, c.log),
		Cache:         store,
		Files:         files,
		Monitor:       c.opts.monitor,
		Metrics:       c.metrics,
		LiveUpdates:   co.liveUpdates,
		BootstrapPath: co.bootstrapPath,
		RetryInterval: c.opts.retryInterval,
		Log:           c.log,
	})

	c.engine = eng
	c.store = store
	c.eval = engine.NewEvaluator(store, meter, c.log)
	c.meter = meter

	go eng.Load(context.Background())
	return nil
}

// RegisterConfigurationUpdateListener sets the callback fired after every
// successful cache reload driven by network or file sync.
func (c *Client) RegisterConfigurationUpdateListener(fn func()) error {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return ErrContextNotSet
	}
	eng.SetListener(fn)
	return nil
}

// FetchConfigurations triggers a full sync cycle in the background.
// Concurrent triggers collapse into the in-flight cycle.
func (c *Client) FetchConfigurations() error {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return ErrContextNotSet
	}
	go eng.Load(context.Background())
	return nil
}

// GetFeature returns the feature with the given id from the local cache,
// reloading once on a miss.
func (c *Client) GetFeature(featureID string) (*Feature, error) {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return nil, ErrContextNotSet
	}
	m, ok := eng.Feature(featureID)
	if !ok {
		return nil, fmt.Errorf("feature %q: %w", featureID, ErrNotFound)
	}
	return &Feature{client: c, model: m}, nil
}

// GetFeatures returns all cached features.
func (c *Client) GetFeatures() (map[string]*Feature, error) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil, ErrContextNotSet
	}
	out := make(map[string]*Feature)
	for id, m := range store.Features() {
		out[id] = &Feature{client: c, model: m}
	}
	return out, nil
}

// GetProperty returns the property with the given id from the local cache,
// reloading once on a miss.
func (c *Client) GetProperty(propertyID string) (*Property, error) {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng == nil {
		return nil, ErrContextNotSet
	}
	m, ok := eng.Property(propertyID)
	if !ok {
		return nil, fmt.Errorf("property %q: %w", propertyID, ErrNotFound)
	}
	return &Property{client: c, model: m}, nil
}

// GetProperties returns all cached properties.
func (c *Client) GetProperties() (map[string]*Property, error) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil, ErrContextNotSet
	}
	out := make(map[string]*Property)
	for id, m := range store.Properties() {
		out[id] = &Property{client: c, model: m}
	}
	return out, nil
}

// Close stops the push subscription, outstanding retries, and the metering
// worker, flushing pending usage once. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.engine != nil {
		_ = c.engine.Close()
	}
	if c.meter != nil {
		_ = c.meter.Close()
	}
	return nil
}

// Feature is the caller-facing view of one feature flag.
type Feature struct {
	client *Client
	model  models.Feature
}

// FeatureID returns the feature's id.
func (f *Feature) FeatureID() string { return f.model.FeatureID }

// Name returns the feature's display name.
func (f *Feature) Name() string { return f.model.Name }

// DataType returns the declared value type.
func (f *Feature) DataType() string { return f.model.Type }

// IsEnabled reports whether the feature is switched on.
func (f *Feature) IsEnabled() bool { return f.model.IsEnabled() }

// CurrentValue evaluates the feature for the entity. A disabled feature
// yields its disabled value; without attributes the enabled value is
// served. An empty entityID is a caller error and yields nil.
func (f *Feature) CurrentValue(entityID string, attributes map[string]any) any {
	if err := validation.ValidateEntityID(entityID); err != nil {
		f.client.log.Error().Err(err).Str("feature_id", f.model.FeatureID).Msg("evaluation rejected")
		return nil
	}
	f.client.metrics.Evaluations.WithLabelValues("feature").Inc()

	model := f.latest()
	return f.client.eval.EvaluateFeature(model, entityID, attributes).Value
}

// latest re-reads the feature so evaluation follows the freshest snapshot
// even on a wrapper handed out before a reload.
func (f *Feature) latest() models.Feature {
	if m, ok := f.client.store.Feature(f.model.FeatureID); ok {
		return m
	}
	return f.model
}

// Property is the caller-facing view of one configuration property.
type Property struct {
	client *Client
	model  models.Property
}

// PropertyID returns the property's id.
func (p *Property) PropertyID() string { return p.model.PropertyID }

// Name returns the property's display name.
func (p *Property) Name() string { return p.model.Name }

// DataType returns the declared value type.
func (p *Property) DataType() string { return p.model.Type }

// CurrentValue evaluates the property for the entity, falling back to the
// property's own value when no segment rule matches.
func (p *Property) CurrentValue(entityID string, attributes map[string]any) any {
	if err := validation.ValidateEntityID(entityID); err != nil {
		p.client.log.Error().Err(err).Str("property_id", p.model.PropertyID).Msg("evaluation rejected")
		return nil
	}
	p.client.metrics.Evaluations.WithLabelValues("property").Inc()

	model := p.model
	if m, ok := p.client.store.Property(p.model.PropertyID); ok {
		model = m
	}
	return p.client.eval.EvaluateProperty(model, entityID, attributes).Value
}
