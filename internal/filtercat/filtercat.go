// Package filtercat contains the index of filter lists by their filter groups,
// also known as categories.
package filtercat

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/refreshable"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/service"
	"github.com/c2h5oh/datasize"
)

// Metrics is an interface for collection of the statistics of the index.
type Metrics interface {
	// SetFiltersCount sets the number of filter lists in the index.
	SetFiltersCount(ctx context.Context, n int)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// SetFiltersCount implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetFiltersCount(_ context.Context, _ int) {}

// Config is the configuration structure for an [*Index].
type Config struct {
	// Logger is used to log the refreshes.  It must not be nil.
	Logger *slog.Logger

	// ErrColl is used to collect the errors of invalid index entries.  It must
	// not be nil.
	ErrColl errcoll.Interface

	// Metrics is used to collect the statistics.  It must not be nil.
	Metrics Metrics

	// URL is the location of the index.  It must be either a file URL or an
	// HTTP(S) URL.
	URL *url.URL

	// CachePath is the path to the file caching the index downloaded from an
	// HTTP(S) URL.
	CachePath string

	// Staleness is the time after which the cached index is considered stale.
	Staleness time.Duration

	// Timeout is the timeout of the HTTP requests.
	Timeout time.Duration

	// MaxSize is the maximum size of the index.
	MaxSize datasize.ByteSize
}

// Index is the index of filter lists by their filter groups.  It is safe for
// concurrent use.
type Index struct {
	logger  *slog.Logger
	errColl errcoll.Interface
	metrics Metrics
	refr    *refreshable.Refreshable

	// mu protects byGroup.
	mu      *sync.RWMutex
	byGroup map[rulegroup.FilterGroupID][]rulegroup.FilterID
}

// New returns a new empty *Index.  c must not be nil and must be valid.  Call
// [Index.RefreshInitial] to fill it.
func New(c *Config) (idx *Index, err error) {
	refr, err := refreshable.New(&refreshable.Config{
		Logger:    c.Logger,
		URL:       c.URL,
		ID:        "filter index",
		CachePath: c.CachePath,
		Staleness: c.Staleness,
		Timeout:   c.Timeout,
		MaxSize:   c.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("filter index: %w", err)
	}

	return &Index{
		logger:  c.Logger,
		errColl: c.ErrColl,
		metrics: c.Metrics,
		refr:    refr,
		mu:      &sync.RWMutex{},
		byGroup: map[rulegroup.FilterGroupID][]rulegroup.FilterID{},
	}, nil
}

// type check
var _ rulegroup.CategoryIndex = (*Index)(nil)

// FiltersByGroupID implements the [rulegroup.CategoryIndex] interface for
// *Index.  ids must not be modified.
func (idx *Index) FiltersByGroupID(
	_ context.Context,
	id rulegroup.FilterGroupID,
) (ids []rulegroup.FilterID) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.byGroup[id]
}

// type check
var _ service.Refresher = (*Index)(nil)

// Refresh implements the [service.Refresher] interface for *Index.
func (idx *Index) Refresh(ctx context.Context) (err error) {
	return idx.refresh(ctx, false)
}

// RefreshInitial loads the index for the first time using the cached index
// regardless of its staleness.
func (idx *Index) RefreshInitial(ctx context.Context) (err error) {
	return idx.refresh(ctx, true)
}

// refresh reloads the index.  The current index is kept on errors.
func (idx *Index) refresh(ctx context.Context, acceptStale bool) (err error) {
	data, err := idx.refr.Refresh(ctx, acceptStale)
	if err != nil {
		return fmt.Errorf("loading filter index: %w", err)
	}

	resp, err := decodeIndex(data)
	if err != nil {
		return fmt.Errorf("decoding filter index: %w", err)
	}

	byGroup, n := resp.toInternal(ctx, idx.logger, idx.errColl)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byGroup = byGroup
	idx.metrics.SetFiltersCount(ctx, n)

	idx.logger.InfoContext(ctx, "loaded filter index", "filters", n, "groups", len(byGroup))

	return nil
}

// Groups returns the identifiers of all filter groups in the index sorted in
// ascending order.
func (idx *Index) Groups() (ids []rulegroup.FilterGroupID) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for id := range idx.byGroup {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
