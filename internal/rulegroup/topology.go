package rulegroup

import (
	"fmt"
	"slices"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// GroupKey is the unique name of a rule group.
type GroupKey string

// Group keys of the reference topology.
const (
	GroupKeyGeneral  GroupKey = "general"
	GroupKeyPrivacy  GroupKey = "privacy"
	GroupKeySecurity GroupKey = "security"
	GroupKeySocial   GroupKey = "socialWidgetsAndAnnoyances"
	GroupKeyOther    GroupKey = "other"
	GroupKeyCustom   GroupKey = "custom"
)

// BundleID is an opaque identifier of a content-blocker extension bundle that
// consumes one converted JSON document.
type BundleID string

// Bundle identifiers of the reference topology.
const (
	BundleIDGeneral          BundleID = "com.adguard.safari.AdGuard.BlockerExtension"
	BundleIDPrivacy          BundleID = "com.adguard.safari.AdGuard.BlockerPrivacy"
	BundleIDSecurity         BundleID = "com.adguard.safari.AdGuard.BlockerSecurity"
	BundleIDSocial           BundleID = "com.adguard.safari.AdGuard.BlockerSocial"
	BundleIDOther            BundleID = "com.adguard.safari.AdGuard.BlockerOther"
	BundleIDCustom           BundleID = "com.adguard.safari.AdGuard.BlockerCustom"
	BundleIDAdvancedBlocking BundleID = "com.adguard.safari.AdGuard.AdvancedBlocking"
)

// AffinityAll is the affinity alias that refers to every group of a topology.
// It cannot be used as the alias of a single group.
const AffinityAll = "all"

// Group is a named set of filter groups, the rules of which are sent to a
// single content-blocker bundle.
type Group struct {
	// Key is the unique name of the group.
	Key GroupKey

	// BundleID is the identifier of the bundle receiving the converted rules
	// of this group.
	BundleID BundleID

	// Affinity is the alias used to refer to this group in the affinity
	// directives, e.g. "social".
	Affinity string

	// FilterGroupIDs are the filter groups claimed by this group, in the order
	// in which their rules are collected.
	FilterGroupIDs []FilterGroupID
}

// Topology is an immutable, ordered set of rule groups.
type Topology struct {
	groups     []*Group
	byAffinity map[string][]*Group
}

// NewTopology returns a new properly initialized topology.  The order of
// groups is preserved.  groups must not be modified after calling NewTopology.
func NewTopology(groups []*Group) (t *Topology, err error) {
	defer func() { err = errors.Annotate(err, "rule groups: %w") }()

	if len(groups) == 0 {
		return nil, errors.ErrEmptyValue
	}

	keys := container.NewMapSet[GroupKey]()
	bundles := container.NewMapSet[BundleID]()

	t = &Topology{
		groups:     groups,
		byAffinity: make(map[string][]*Group, len(groups)+1),
	}

	var errs []error
	for i, g := range groups {
		err = validateGroup(g, keys, bundles, t.byAffinity)
		if err != nil {
			errs = append(errs, fmt.Errorf("group at index %d: %w", i, err))

			continue
		}

		keys.Add(g.Key)
		bundles.Add(g.BundleID)
		t.byAffinity[g.Affinity] = []*Group{g}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	t.byAffinity[AffinityAll] = slices.Clone(groups)

	return t, nil
}

// validateGroup returns an error if g is invalid or conflicts with the groups
// that have already been added.
func validateGroup(
	g *Group,
	keys *container.MapSet[GroupKey],
	bundles *container.MapSet[BundleID],
	byAffinity map[string][]*Group,
) (err error) {
	if g == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("key", g.Key),
		validate.NotEmpty("bundle_id", g.BundleID),
		validate.NotEmpty("affinity", g.Affinity),
	}

	if keys.Has(g.Key) {
		errs = append(errs, fmt.Errorf("key: %w: %q", errors.ErrDuplicated, g.Key))
	}

	if bundles.Has(g.BundleID) {
		errs = append(errs, fmt.Errorf("bundle_id: %w: %q", errors.ErrDuplicated, g.BundleID))
	}

	if g.Affinity == AffinityAll {
		errs = append(errs, fmt.Errorf("affinity: %q is reserved", AffinityAll))
	} else if _, ok := byAffinity[g.Affinity]; ok {
		errs = append(errs, fmt.Errorf("affinity: %w: %q", errors.ErrDuplicated, g.Affinity))
	}

	return errors.Join(errs...)
}

// DefaultTopology returns the reference topology of six groups.
func DefaultTopology() (t *Topology) {
	return errors.Must(NewTopology([]*Group{{
		Key:      GroupKeyGeneral,
		BundleID: BundleIDGeneral,
		Affinity: "general",
		FilterGroupIDs: []FilterGroupID{
			FilterGroupIDAdBlocking,
			FilterGroupIDLanguageSpecific,
		},
	}, {
		Key:            GroupKeyPrivacy,
		BundleID:       BundleIDPrivacy,
		Affinity:       "privacy",
		FilterGroupIDs: []FilterGroupID{FilterGroupIDPrivacy},
	}, {
		Key:            GroupKeySecurity,
		BundleID:       BundleIDSecurity,
		Affinity:       "security",
		FilterGroupIDs: []FilterGroupID{FilterGroupIDSecurity},
	}, {
		Key:      GroupKeySocial,
		BundleID: BundleIDSocial,
		Affinity: "social",
		FilterGroupIDs: []FilterGroupID{
			FilterGroupIDSocial,
			FilterGroupIDAnnoyances,
		},
	}, {
		Key:            GroupKeyOther,
		BundleID:       BundleIDOther,
		Affinity:       "other",
		FilterGroupIDs: []FilterGroupID{FilterGroupIDOther},
	}, {
		Key:            GroupKeyCustom,
		BundleID:       BundleIDCustom,
		Affinity:       "custom",
		FilterGroupIDs: []FilterGroupID{FilterGroupIDCustom},
	}}))
}

// Groups returns the groups of the topology in the declaration order.  The
// returned slice must not be modified.
func (t *Topology) Groups() (groups []*Group) {
	return t.groups
}

// Len returns the number of groups in the topology.
func (t *Topology) Len() (n int) {
	return len(t.groups)
}

// resolve returns the groups referred to by the affinity alias.  It returns
// nil if the alias is unknown.
func (t *Topology) resolve(alias string) (groups []*Group) {
	return t.byAffinity[alias]
}

// Bundle is the description of a content-blocker bundle.
type Bundle struct {
	// ID is the identifier of the bundle.
	ID BundleID

	// FilterGroupIDs are the filter groups the rules of which are sent to the
	// bundle.
	FilterGroupIDs []FilterGroupID
}

// Bundles returns the bundles of the topology in the declaration order of the
// groups.
func (t *Topology) Bundles() (bundles []*Bundle) {
	bundles = make([]*Bundle, 0, len(t.groups))
	for _, g := range t.groups {
		bundles = append(bundles, &Bundle{
			ID:             g.BundleID,
			FilterGroupIDs: g.FilterGroupIDs,
		})
	}

	return bundles
}
