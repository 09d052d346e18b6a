package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of the updater.  The
// order of the fields should generally not be altered.
type configuration struct {
	// ContentBlockers is the configuration of the update pipeline.
	ContentBlockers *contentBlockersConfig `yaml:"content_blockers"`

	// Filters contains the configuration of the filter index and the filter
	// lists.
	Filters *filtersConfig `yaml:"filters"`

	// Whitelist is the configuration of the whitelisted domains.
	Whitelist *whitelistConfig `yaml:"whitelist"`

	// Groups are the rule groups in the order of dispatching.  If empty, the
	// reference topology is used.
	Groups groupConfigs `yaml:"groups"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "content_blockers",
		Value: c.ContentBlockers,
	}, {
		Key:   "filters",
		Value: c.Filters,
	}, {
		Key:   "whitelist",
		Value: c.Whitelist,
	}, {
		Key:   "groups",
		Value: c.Groups,
	}}

	var errs []error
	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return c.validateAdvancedBundle()
}

// validateAdvancedBundle returns an error if the advanced-blocking bundle is
// also the bundle of one of the groups.  The sections must be valid.
func (c *configuration) validateAdvancedBundle() (err error) {
	id := c.ContentBlockers.advancedBundleID()
	for _, b := range c.Groups.toInternal().Bundles() {
		if b.ID == id {
			return fmt.Errorf(
				"content_blockers: advanced_blocking_bundle_id: %w: %q",
				errors.ErrDuplicated,
				id,
			)
		}
	}

	return nil
}

// parseConfig reads the configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}
