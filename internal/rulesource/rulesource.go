// Package rulesource contains the storage of the rules of the enabled filter
// lists.
package rulesource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/cbupdate"
	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/refreshable"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/c2h5oh/datasize"
)

// Metrics is an interface for collection of the statistics of the storage.
type Metrics interface {
	// SetRulesCount sets the number of rules of the filter list.
	SetRulesCount(ctx context.Context, id rulegroup.FilterID, n int)

	// ObserveRefresh records the duration and the result of a refresh of all
	// filter lists.
	ObserveRefresh(ctx context.Context, dur time.Duration, err error)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// SetRulesCount implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetRulesCount(_ context.Context, _ rulegroup.FilterID, _ int) {}

// ObserveRefresh implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRefresh(_ context.Context, _ time.Duration, _ error) {}

// List is the configuration of a single filter list.
type List struct {
	// URL is the location of the filter list.  It must be either a file URL or
	// an HTTP(S) URL.
	URL *url.URL

	// ID is the identifier of the filter list.
	ID rulegroup.FilterID
}

// Config is the configuration structure for a [*Storage].
type Config struct {
	// Logger is used to log the refreshes.  It must not be nil.
	Logger *slog.Logger

	// ErrColl is used to collect the errors of the filter lists.  It must not
	// be nil.
	ErrColl errcoll.Interface

	// Metrics is used to collect the statistics.  It must not be nil.
	Metrics Metrics

	// Lists are the enabled filter lists.  The identifiers must be unique.
	Lists []*List

	// CacheDir is the directory for the cached filter lists downloaded from
	// HTTP(S) URLs.  It must exist.
	CacheDir string

	// Staleness is the time after which a cached filter list is considered
	// stale.
	Staleness time.Duration

	// Timeout is the timeout of the HTTP requests.
	Timeout time.Duration

	// MaxSize is the maximum size of a filter list.
	MaxSize datasize.ByteSize
}

// Storage contains the rules of the enabled filter lists.  It is safe for
// concurrent use.
type Storage struct {
	logger  *slog.Logger
	errColl errcoll.Interface
	metrics Metrics
	lists   []*list

	// mu protects rules.
	mu    *sync.RWMutex
	rules map[rulegroup.FilterID][]*rulegroup.Rule
}

// list is a single refreshable filter list.
type list struct {
	refr *refreshable.Refreshable
	id   rulegroup.FilterID
}

// New returns a new empty *Storage.  c must not be nil and must be valid.  Call
// [Storage.RefreshInitial] to fill it.
func New(c *Config) (s *Storage, err error) {
	lists := make([]*list, 0, len(c.Lists))
	for i, l := range c.Lists {
		idStr := strconv.Itoa(int(l.ID))

		var refr *refreshable.Refreshable
		refr, err = refreshable.New(&refreshable.Config{
			Logger:    c.Logger.With("filter_id", l.ID),
			URL:       l.URL,
			ID:        "filter " + idStr,
			CachePath: filepath.Join(c.CacheDir, idStr+".txt"),
			Staleness: c.Staleness,
			Timeout:   c.Timeout,
			MaxSize:   c.MaxSize,
		})
		if err != nil {
			return nil, fmt.Errorf("rule source: list at index %d: %w", i, err)
		}

		lists = append(lists, &list{
			refr: refr,
			id:   l.ID,
		})
	}

	return &Storage{
		logger:  c.Logger,
		errColl: c.ErrColl,
		metrics: c.Metrics,
		lists:   lists,
		mu:      &sync.RWMutex{},
		rules:   map[rulegroup.FilterID][]*rulegroup.Rule{},
	}, nil
}

// type check
var _ cbupdate.RuleSource = (*Storage)(nil)

// Rules implements the [cbupdate.RuleSource] interface for *Storage.  The
// rules are returned in the order of the configured filter lists.
func (s *Storage) Rules(_ context.Context) (rules []*rulegroup.Rule) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lists {
		rules = append(rules, s.rules[l.id]...)
	}

	return rules
}

// type check
var _ service.Refresher = (*Storage)(nil)

// Refresh implements the [service.Refresher] interface for *Storage.  The
// previous rules of the filter lists that failed to refresh are kept.
func (s *Storage) Refresh(ctx context.Context) (err error) {
	return s.refresh(ctx, false)
}

// RefreshInitial fills the storage for the first time using the cached filter
// lists regardless of their staleness.
func (s *Storage) RefreshInitial(ctx context.Context) (err error) {
	return s.refresh(ctx, true)
}

// refreshResult is the result of refreshing a single filter list.
type refreshResult struct {
	err   error
	rules []*rulegroup.Rule
	id    rulegroup.FilterID
}

// refresh concurrently refreshes all filter lists.
func (s *Storage) refresh(ctx context.Context, acceptStale bool) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRefresh(ctx, time.Since(start), err) }()

	s.logger.InfoContext(ctx, "refresh started", "lists", len(s.lists))
	defer s.logger.InfoContext(ctx, "refresh finished")

	resCh := make(chan refreshResult, len(s.lists))
	for _, l := range s.lists {
		go s.refreshList(ctx, l, acceptStale, resCh)
	}

	results := make(map[rulegroup.FilterID][]*rulegroup.Rule, len(s.lists))
	var errs []error
	for range s.lists {
		res := <-resCh
		if res.err != nil {
			errs = append(errs, res.err)
			errcoll.Collect(ctx, s.errColl, s.logger, "refreshing filter list", res.err)

			continue
		}

		results[res.id] = res.rules
		s.metrics.SetRulesCount(ctx, res.id, len(res.rules))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rules := range results {
		s.rules[id] = rules
	}

	return errors.Join(errs...)
}

// refreshList refreshes a single filter list and sends the result to resCh.
// It is intended to be used as a goroutine.
func (s *Storage) refreshList(
	ctx context.Context,
	l *list,
	acceptStale bool,
	resCh chan<- refreshResult,
) {
	defer recoverAndLog(ctx, s.logger, l.id, resCh)

	res := refreshResult{
		id: l.id,
	}

	data, err := l.refr.Refresh(ctx, acceptStale)
	if err != nil {
		res.err = err
	} else if res.rules, err = parseRules(l.id, data); err != nil {
		res.err = fmt.Errorf("filter %d: parsing: %w", l.id, err)
	}

	resCh <- res
}

// recoverAndLog is a deferred helper that recovers from a panic in
// [Storage.refreshList] and sends the recovered error to resCh.
func recoverAndLog(
	ctx context.Context,
	l *slog.Logger,
	id rulegroup.FilterID,
	resCh chan<- refreshResult,
) {
	err := errors.FromRecovered(recover())
	if err == nil {
		return
	}

	l.ErrorContext(ctx, "recovered panic", "filter_id", id, slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	resCh <- refreshResult{
		id:  id,
		err: fmt.Errorf("filter %d: %w", id, err),
	}
}

// parseRules returns the non-empty lines of data as the rules of the filter
// list.  Comments are kept, since they may contain affinity directives.
func parseRules(id rulegroup.FilterID, data []byte) (rules []*rulegroup.Rule, err error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(nil, bufio.MaxScanTokenSize*16)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		rules = append(rules, &rulegroup.Rule{
			Text:     text,
			FilterID: id,
		})
	}

	return slices.Clip(rules), sc.Err()
}
