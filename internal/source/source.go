// Package source implements addon discovery: the individual data sources
// (git submodule index, macro git mirror, macro wiki, local cache) and the
// aggregator that runs them in order, filters, and de-duplicates their
// results.
package source

import (
	"context"
	"time"

	"github.com/kestrelcad/addons/internal/addon"
)

// FoundFunc receives each discovered addon, one call per addon.
type FoundFunc func(*addon.Addon)

// Source is one origin of addon discovery. Run reports every addon it finds
// through found and returns when discovery is complete. It must poll ctx
// before each unit of work and return promptly on cancellation; partial
// results already reported stand. A non-nil error means the source's
// required feed was unusable and its remaining phases were abandoned;
// transient per-item failures are absorbed and logged inside the source.
type Source interface {
	Name() string
	Run(ctx context.Context, found FoundFunc) error
}

// cancelled is the cancellation poll used before each discovery step.
func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// unixTime converts a feed timestamp (fractional seconds since the epoch)
// to a time.Time.
func unixTime(seconds float64) time.Time {
	return time.Unix(int64(seconds), 0)
}
