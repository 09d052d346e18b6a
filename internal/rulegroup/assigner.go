package rulegroup

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/cbupdater/internal/optslog"
)

// CategoryIndex is the index of filter lists by their filter groups.
type CategoryIndex interface {
	// FiltersByGroupID returns the identifiers of the filter lists belonging
	// to the filter group in their declaration order.  It returns nil if there
	// are no such filter lists.
	FiltersByGroupID(ctx context.Context, id FilterGroupID) (ids []FilterID)
}

// AssignerConfig is the configuration structure for an [Assigner].
type AssignerConfig struct {
	// Logger is used to log the grouping process.  It must not be nil.
	Logger *slog.Logger

	// Topology is the set of groups to distribute rules among.  It must not be
	// nil.
	Topology *Topology

	// Index is used to find the filter lists of filter groups.  It must not be
	// nil.
	Index CategoryIndex
}

// Assigner distributes rules among the groups of a topology.
type Assigner struct {
	logger   *slog.Logger
	topology *Topology
	index    CategoryIndex
}

// NewAssigner returns a new properly initialized *Assigner.  c must not be nil
// and must be valid.
func NewAssigner(c *AssignerConfig) (a *Assigner) {
	return &Assigner{
		logger:   c.Logger,
		topology: c.Topology,
		index:    c.Index,
	}
}

// Topology returns the topology a distributes rules among.
func (a *Assigner) Topology() (t *Topology) {
	return a.topology
}

// Result is the set of rules of a single group.
type Result struct {
	// Group is the group the rules belong to.  It is never nil.
	Group *Group

	// Rules are the rules of the group without duplicates in their first-seen
	// order.  Rules routed to the group by affinity directives go after the
	// rules of the group's own filter lists.
	Rules []*Rule
}

// GroupRules distributes rules among the groups of the topology.  results
// contains exactly one item per group in the declaration order of the groups,
// even if there are no rules for a group.
func (a *Assigner) GroupRules(ctx context.Context, rules []*Rule) (results []*Result) {
	byFilter := make(map[FilterID][]*Rule)
	for _, r := range rules {
		if r == nil {
			continue
		}

		byFilter[r.FilterID] = append(byFilter[r.FilterID], r)
	}

	groups := a.topology.Groups()
	native := make([][]*Rule, len(groups))
	redirected := make(map[GroupKey][]*Rule, len(groups))

	// The user filter doesn't depend on the group, so route it only once.
	var userNative, userRedirected []*RoutedRule
	for _, rr := range a.topology.Route(byFilter[FilterIDUser]) {
		if len(rr.Groups) == 0 {
			userNative = append(userNative, rr)
		} else {
			userRedirected = append(userRedirected, rr)
		}
	}

	for i, g := range groups {
		for _, fgID := range g.FilterGroupIDs {
			for _, fID := range a.index.FiltersByGroupID(ctx, fgID) {
				for _, rr := range a.topology.Route(byFilter[fID]) {
					if len(rr.Groups) == 0 {
						native[i] = append(native[i], rr.Rule)

						continue
					}

					a.redirect(ctx, redirected, rr)
				}
			}
		}

		for _, rr := range userNative {
			native[i] = append(native[i], rr.Rule)
		}

		// Redirecting the user rules again for the following groups would only
		// add exact duplicates to the side table, so keep the position of the
		// first redirection.
		if i == 0 {
			for _, rr := range userRedirected {
				a.redirect(ctx, redirected, rr)
			}
		}
	}

	results = make([]*Result, 0, len(groups))
	for i, g := range groups {
		groupRules := native[i]
		if extra := redirected[g.Key]; len(extra) > 0 {
			optslog.Debug3(
				ctx,
				a.logger,
				"appending affinity rules",
				"group", g.Key,
				"native", len(groupRules),
				"affinity", len(extra),
			)

			groupRules = append(groupRules, extra...)
		}

		res := &Result{
			Group: g,
			Rules: dedup(groupRules),
		}

		a.logger.InfoContext(ctx, "grouped rules", "group", g.Key, "rules", len(res.Rules))

		results = append(results, res)
	}

	return results
}

// redirect adds the rule routed by an affinity directive to the side table of
// each of its destination groups.
func (a *Assigner) redirect(ctx context.Context, redirected map[GroupKey][]*Rule, rr *RoutedRule) {
	for _, g := range rr.Groups {
		optslog.Trace2(ctx, a.logger, "rule routed", "rule", rr.Rule.Text, "group", g.Key)

		redirected[g.Key] = append(redirected[g.Key], rr.Rule)
	}
}

// dedup returns rules without the nil rules, the rules with empty texts, and
// the rules the texts of which have already been seen.
func dedup(rules []*Rule) (unique []*Rule) {
	seen := make(map[string]struct{}, len(rules))
	unique = make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r == nil || r.Text == "" {
			continue
		}

		if _, ok := seen[r.Text]; ok {
			continue
		}

		seen[r.Text] = struct{}{}
		unique = append(unique, r)
	}

	return unique
}
