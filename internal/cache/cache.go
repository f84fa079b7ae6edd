// Package cache holds the in-memory feature, property, and segment maps.
// The three maps are always replaced together from one snapshot document via
// an atomic pointer swap, so readers never observe a partially updated view.
package cache

import (
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goappconfig/internal/filestore"
	"github.com/TimurManjosov/goappconfig/internal/models"
)

type tables struct {
	features   map[string]models.Feature
	properties map[string]models.Property
	segments   map[string]models.Segment
}

// Store is the local configuration cache, rebuilt from the persisted
// snapshot on every reload.
type Store struct {
	current atomic.Pointer[tables]
	files   *filestore.Store
	log     zerolog.Logger
}

// New returns an empty cache backed by the given snapshot store.
func New(files *filestore.Store, log zerolog.Logger) *Store {
	s := &Store{files: files, log: log}
	s.current.Store(&tables{
		features:   map[string]models.Feature{},
		properties: map[string]models.Property{},
		segments:   map[string]models.Segment{},
	})
	return s
}

// Reload reads the persisted snapshot and swaps in fresh maps. A category
// present in the document replaces its map wholesale (present-but-empty
// clears it); an absent category keeps its previous map. Malformed entries
// are skipped with a warning and never abort the rest of the load.
func (s *Store) Reload() error {
	data, err := s.files.Read()
	if err != nil {
		if err == filestore.ErrNoSnapshot {
			s.log.Debug().Msg("no persisted snapshot yet, cache left as-is")
			return nil
		}
		return fmt.Errorf("reload cache: %w", err)
	}

	result, err := models.ParseConfiguration(data)
	if err != nil {
		return fmt.Errorf("reload cache: %w", err)
	}
	for _, skipped := range result.Skipped {
		s.log.Warn().Str("entry", skipped.String()).Msg("skipping malformed snapshot entry")
	}

	prev := s.current.Load()
	next := &tables{
		features:   prev.features,
		properties: prev.properties,
		segments:   prev.segments,
	}
	if result.Features != nil {
		next.features = result.Features
	}
	if result.Properties != nil {
		next.properties = result.Properties
	}
	if result.Segments != nil {
		next.segments = result.Segments
	}
	s.current.Store(next)

	s.log.Debug().
		Int("features", len(next.features)).
		Int("properties", len(next.properties)).
		Int("segments", len(next.segments)).
		Msg("cache reloaded")
	return nil
}

// Feature returns the cached feature with the given id.
func (s *Store) Feature(id string) (models.Feature, bool) {
	f, ok := s.current.Load().features[id]
	return f, ok
}

// Property returns the cached property with the given id.
func (s *Store) Property(id string) (models.Property, bool) {
	p, ok := s.current.Load().properties[id]
	return p, ok
}

// Segment returns the cached segment with the given id.
func (s *Store) Segment(id string) (models.Segment, bool) {
	seg, ok := s.current.Load().segments[id]
	return seg, ok
}

// Features returns a copy of the feature map.
func (s *Store) Features() map[string]models.Feature {
	return maps.Clone(s.current.Load().features)
}

// Properties returns a copy of the property map.
func (s *Store) Properties() map[string]models.Property {
	return maps.Clone(s.current.Load().properties)
}

// Counts reports the number of cached features, properties, and segments.
func (s *Store) Counts() (features, properties, segments int) {
	t := s.current.Load()
	return len(t.features), len(t.properties), len(t.segments)
}
