package cmd

import (
	"fmt"

	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// groupConfig is the configuration of a single rule group.
type groupConfig struct {
	// Key is the unique name of the group.
	Key rulegroup.GroupKey `yaml:"key"`

	// BundleID is the identifier of the bundle receiving the group's document.
	BundleID rulegroup.BundleID `yaml:"bundle_id"`

	// Affinity is the alias of the group in the affinity directives.
	Affinity string `yaml:"affinity"`

	// FilterGroupIDs are the filter groups claimed by the group.
	FilterGroupIDs []rulegroup.FilterGroupID `yaml:"filter_group_ids"`
}

// groupConfigs are the rule groups in the order of dispatching.
type groupConfigs []*groupConfig

// type check
var _ validate.Interface = groupConfigs(nil)

// Validate implements the [validate.Interface] interface for groupConfigs.  An
// empty list is valid and means the reference topology.
func (gcs groupConfigs) Validate() (err error) {
	if len(gcs) == 0 {
		return nil
	}

	for i, gc := range gcs {
		if gc == nil {
			return fmt.Errorf("at index %d: %w", i, errors.ErrNoValue)
		}
	}

	_, err = rulegroup.NewTopology(gcs.groups())

	return err
}

// groups converts the configuration into rule groups.  gcs must not contain
// nil items.
func (gcs groupConfigs) groups() (groups []*rulegroup.Group) {
	groups = make([]*rulegroup.Group, 0, len(gcs))
	for _, gc := range gcs {
		groups = append(groups, &rulegroup.Group{
			Key:            gc.Key,
			BundleID:       gc.BundleID,
			Affinity:       gc.Affinity,
			FilterGroupIDs: gc.FilterGroupIDs,
		})
	}

	return groups
}

// toInternal returns the topology described by gcs.  gcs must be valid.
func (gcs groupConfigs) toInternal() (t *rulegroup.Topology) {
	if len(gcs) == 0 {
		return rulegroup.DefaultTopology()
	}

	return errors.Must(rulegroup.NewTopology(gcs.groups()))
}
