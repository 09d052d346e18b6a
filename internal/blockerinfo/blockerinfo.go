// Package blockerinfo contains the in-memory cache of the metadata of the
// documents most recently applied by the content-blocker bundles.
package blockerinfo

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/notifier"
	"github.com/AdguardTeam/cbupdater/internal/optslog"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	cache "github.com/patrickmn/go-cache"
)

// Config is the configuration structure for a [Cache].
type Config struct {
	// Logger is used to log the updates of the cache.  It must not be nil.
	Logger *slog.Logger

	// Topology is used to list the bundles in [Cache.All].  It must not be
	// nil.
	Topology *rulegroup.Topology
}

// Cache stores the most recent dispatch metadata of every bundle.  Entries
// are never removed.  It is safe for concurrent use.
type Cache struct {
	logger   *slog.Logger
	cache    *cache.Cache
	topology *rulegroup.Topology
}

// New returns a new properly initialized *Cache.  c must not be nil and must
// be valid.
func New(c *Config) (bc *Cache) {
	return &Cache{
		logger:   c.Logger,
		cache:    cache.New(cache.NoExpiration, 0),
		topology: c.Topology,
	}
}

// type check
var _ notifier.Handler = (*Cache)(nil)

// HandleEvent implements the [notifier.Handler] interface for *Cache.  It
// saves the metadata of [*cblocker.ExtensionUpdated] events with non-empty
// bundle identifiers and ignores all other events.
func (bc *Cache) HandleEvent(ctx context.Context, ev cblocker.Event) (err error) {
	upd, ok := ev.(*cblocker.ExtensionUpdated)
	if !ok || upd.Info == nil || upd.Info.BundleID == "" {
		return nil
	}

	bc.save(ctx, upd.Info)

	return nil
}

// save overwrites the entry of the bundle of info.
func (bc *Cache) save(ctx context.Context, info *cblocker.DispatchInfo) {
	optslog.Debug2(
		ctx,
		bc.logger,
		"saving info",
		"bundle_id", info.BundleID,
		"rules", info.RulesCount,
	)

	bc.cache.SetDefault(string(info.BundleID), info.Clone())
}

// Entry is the status of a single bundle.
type Entry struct {
	// RulesInfo is the metadata of the document most recently applied by the
	// bundle.  It is nil if the bundle has not applied any documents yet.
	RulesInfo *cblocker.DispatchInfo `json:"rulesInfo,omitempty"`

	// BundleID is the identifier of the bundle.
	BundleID rulegroup.BundleID `json:"bundleId"`

	// GroupFilterIDs are the filter groups of the bundle.
	GroupFilterIDs []rulegroup.FilterGroupID `json:"groupIds"`
}

// All returns the statuses of all bundles of the topology in the declaration
// order.  The bundles which are not in the topology are not included.
func (bc *Cache) All(ctx context.Context) (entries []*Entry) {
	bundles := bc.topology.Bundles()
	entries = make([]*Entry, 0, len(bundles))
	for _, b := range bundles {
		e := &Entry{
			BundleID:       b.ID,
			GroupFilterIDs: b.FilterGroupIDs,
		}

		if v, ok := bc.cache.Get(string(b.ID)); ok {
			e.RulesInfo = v.(*cblocker.DispatchInfo).Clone()
		}

		entries = append(entries, e)
	}

	optslog.Debug1(ctx, bc.logger, "listed bundles", "num", len(entries))

	return entries
}
