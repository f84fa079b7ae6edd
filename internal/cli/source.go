package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goappconfig/internal/configsync"
	"github.com/TimurManjosov/goappconfig/internal/models"
)

// LoadDocument resolves the configuration document for one CLI run. A
// non-empty filePath wins over the service; otherwise one pull is issued
// against the profile's config endpoint.
func LoadDocument(ctx context.Context, profile *Profile, filePath string, log zerolog.Logger) (*models.ParseResult, error) {
	var (
		data []byte
		err  error
	)
	if filePath != "" {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot file: %w", err)
		}
	} else {
		urls := configsync.NewURLBuilder(profile.Region, profile.Guid, profile.BaseURL)
		fetcher := configsync.NewFetcher(
			urls.ConfigURL(profile.Collection, profile.Environment),
			configsync.StaticToken(profile.APIKey),
			nil,
			log,
		)
		data, err = fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
	}

	result, err := models.ParseConfiguration(data)
	if err != nil {
		return nil, err
	}
	for _, skipped := range result.Skipped {
		log.Warn().Str("entry", skipped.String()).Msg("skipping malformed entry")
	}
	return result, nil
}

// SegmentMap adapts a parsed segment map to the evaluation engine's
// segment lookup.
type SegmentMap map[string]models.Segment

func (m SegmentMap) Segment(id string) (models.Segment, bool) {
	s, ok := m[id]
	return s, ok
}
