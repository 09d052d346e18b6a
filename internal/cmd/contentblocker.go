package cmd

import (
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
)

// contentBlockersConfig is the configuration of the update pipeline and the
// converter.
type contentBlockersConfig struct {
	// AdvancedBlockingBundleID is the identifier of the bundle receiving the
	// advanced-blocking document.  If empty,
	// [rulegroup.BundleIDAdvancedBlocking] is used.
	AdvancedBlockingBundleID rulegroup.BundleID `yaml:"advanced_blocking_bundle_id"`

	// Debounce is the quiet period after the last update request before the
	// pipeline runs.
	Debounce timeutil.Duration `yaml:"debounce"`

	// ConverterTimeout is the timeout of a single run of the converter.
	ConverterTimeout timeutil.Duration `yaml:"converter_timeout"`

	// MaxOutputSize is the maximum size of the report of the converter.
	MaxOutputSize datasize.ByteSize `yaml:"max_output_size"`

	// RulesLimit is the maximum number of rules in a single converted
	// document.
	RulesLimit int `yaml:"rules_limit"`
}

// type check
var _ validate.Interface = (*contentBlockersConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *contentBlockersConfig.
func (c *contentBlockersConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.Positive("debounce", c.Debounce),
		validate.Positive("converter_timeout", c.ConverterTimeout),
		validate.Positive("max_output_size", c.MaxOutputSize),
		validate.Positive("rules_limit", c.RulesLimit),
	)
}

// advancedBundleID returns the identifier of the advanced-blocking bundle.
func (c *contentBlockersConfig) advancedBundleID() (id rulegroup.BundleID) {
	if c.AdvancedBlockingBundleID == "" {
		return rulegroup.BundleIDAdvancedBlocking
	}

	return c.AdvancedBlockingBundleID
}
