// Package metering aggregates evaluation counts per feature, property,
// entity, and segment, and periodically uploads them in batches.
package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// defaultInterval is how often aggregated usage is uploaded.
	defaultInterval = 10 * time.Minute

	// batchLimit caps the number of usages sent in one request.
	batchLimit = 25
)

// TokenSource supplies the bearer token attached to upload requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type usageKey struct {
	featureID  string
	propertyID string
	entityID   string
	segmentID  string
}

type usageValue struct {
	count    int64
	lastSeen time.Time
}

// Usage is one aggregated evaluation record on the wire.
type Usage struct {
	FeatureID      string `json:"feature_id,omitempty"`
	PropertyID     string `json:"property_id,omitempty"`
	EntityID       string `json:"entity_id"`
	SegmentID      string `json:"segment_id"`
	EvaluationTime string `json:"evaluation_time"`
	Count          int64  `json:"count"`
}

type payload struct {
	CollectionID  string  `json:"collection_id"`
	EnvironmentID string  `json:"environment_id"`
	Usages        []Usage `json:"usages"`
}

// Aggregator collects evaluation counts and flushes them on a fixed
// interval. RecordEvaluation is cheap and safe for concurrent use; the
// upload happens on a background worker.
type Aggregator struct {
	url           string
	collectionID  string
	environmentID string
	tokens        TokenSource
	client        *http.Client
	interval      time.Duration
	log           zerolog.Logger

	mu     sync.Mutex
	usages map[usageKey]*usageValue

	done   chan struct{}
	stop   chan struct{}
	closed atomic.Bool
}

// Config carries the fixed parameters of one aggregator.
type Config struct {
	URL           string
	CollectionID  string
	EnvironmentID string
	Tokens        TokenSource
	Client        *http.Client
	Interval      time.Duration
	Log           zerolog.Logger
}

// New returns an aggregator; call Start to begin the upload worker.
func New(cfg Config) *Aggregator {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Aggregator{
		url:           cfg.URL,
		collectionID:  cfg.CollectionID,
		environmentID: cfg.EnvironmentID,
		tokens:        cfg.Tokens,
		client:        cfg.Client,
		interval:      cfg.Interval,
		log:           cfg.Log,
		usages:        make(map[usageKey]*usageValue),
		done:          make(chan struct{}),
		stop:          make(chan struct{}),
	}
}

// RecordEvaluation counts one evaluation. Exactly one of featureID and
// propertyID is set per call.
func (a *Aggregator) RecordEvaluation(featureID, propertyID, entityID, segmentID string) {
	key := usageKey{
		featureID:  featureID,
		propertyID: propertyID,
		entityID:   entityID,
		segmentID:  segmentID,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.usages[key]; ok {
		v.count++
		v.lastSeen = time.Now().UTC()
		return
	}
	a.usages[key] = &usageValue{count: 1, lastSeen: time.Now().UTC()}
}

// Pending reports the number of distinct aggregated usage records.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.usages)
}

// Start launches the periodic upload worker.
func (a *Aggregator) Start() {
	go a.worker()
}

// Close flushes remaining usage once and stops the worker. Safe to call
// multiple times.
func (a *Aggregator) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(a.stop)
	<-a.done
	return nil
}

func (a *Aggregator) worker() {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush(context.Background())
		case <-a.stop:
			a.Flush(context.Background())
			return
		}
	}
}

// Flush uploads the aggregated usage in batches. Records are removed
// only when their batch was accepted, so a failed upload keeps counting.
func (a *Aggregator) Flush(ctx context.Context) {
	batches := a.takeBatches()
	for _, batch := range batches {
		if err := a.send(ctx, batch); err != nil {
			a.log.Warn().Err(err).Int("usages", len(batch)).Msg("metering upload failed, keeping records")
			a.restore(batch)
		}
	}
}

// takeBatches drains the aggregate map into wire batches of at most
// batchLimit usages each.
func (a *Aggregator) takeBatches() [][]Usage {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.usages) == 0 {
		return nil
	}

	var batches [][]Usage
	batch := make([]Usage, 0, batchLimit)
	for key, v := range a.usages {
		batch = append(batch, Usage{
			FeatureID:      key.featureID,
			PropertyID:     key.propertyID,
			EntityID:       key.entityID,
			SegmentID:      key.segmentID,
			EvaluationTime: v.lastSeen.Format(time.RFC3339),
			Count:          v.count,
		})
		if len(batch) == batchLimit {
			batches = append(batches, batch)
			batch = make([]Usage, 0, batchLimit)
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	a.usages = make(map[usageKey]*usageValue)
	return batches
}

// restore folds a failed batch back into the aggregate map.
func (a *Aggregator) restore(batch []Usage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range batch {
		key := usageKey{
			featureID:  u.FeatureID,
			propertyID: u.PropertyID,
			entityID:   u.EntityID,
			segmentID:  u.SegmentID,
		}
		if v, ok := a.usages[key]; ok {
			v.count += u.Count
			continue
		}
		lastSeen, err := time.Parse(time.RFC3339, u.EvaluationTime)
		if err != nil {
			lastSeen = time.Now().UTC()
		}
		a.usages[key] = &usageValue{count: u.Count, lastSeen: lastSeen}
	}
}

func (a *Aggregator) send(ctx context.Context, batch []Usage) error {
	body, err := json.Marshal(payload{
		CollectionID:  a.collectionID,
		EnvironmentID: a.environmentID,
		Usages:        batch,
	})
	if err != nil {
		return fmt.Errorf("encode metering payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build metering request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	if a.tokens != nil {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve metering token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post metering usage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metering endpoint returned %d", resp.StatusCode)
	}

	a.log.Debug().Int("usages", len(batch)).Msg("metering usage uploaded")
	return nil
}
