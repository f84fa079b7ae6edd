// Package configsync keeps the local configuration snapshot converged with
// the remote service. It combines an initial pull, a persistent push
// subscription delivering invalidation signals, bounded retries with one
// delayed follow-up, and reachability-triggered refreshes.
package configsync

import (
	"fmt"
	"net/url"
)

const defaultDomain = "apprapp.cloud.ibm.com"

// URLBuilder derives the service endpoints from the instance coordinates.
// An override base replaces the region-derived host for local or test
// deployments.
type URLBuilder struct {
	base string
	guid string
}

// NewURLBuilder returns a builder for the given region and instance guid.
// overrideBase, when non-empty, is used verbatim as the scheme+host.
func NewURLBuilder(region, guid, overrideBase string) *URLBuilder {
	base := overrideBase
	if base == "" {
		base = fmt.Sprintf("https://%s.%s", region, defaultDomain)
	}
	return &URLBuilder{base: base, guid: guid}
}

// Base returns the scheme+host all endpoints share.
func (b *URLBuilder) Base() string { return b.base }

// ConfigURL is the pull endpoint for one collection and environment.
func (b *URLBuilder) ConfigURL(collectionID, environmentID string) string {
	return fmt.Sprintf("%s/apprapp/feature/v1/instances/%s/collections/%s/config?environment_id=%s",
		b.base, b.guid, url.PathEscape(collectionID), url.QueryEscape(environmentID))
}

// EventsURL is the push subscription endpoint.
func (b *URLBuilder) EventsURL() string {
	return fmt.Sprintf("%s/apprapp/events/v1/instances/%s", b.base, b.guid)
}

// MeteringURL is the usage upload endpoint.
func (b *URLBuilder) MeteringURL() string {
	return fmt.Sprintf("%s/apprapp/events/v1/instances/%s/usage", b.base, b.guid)
}
