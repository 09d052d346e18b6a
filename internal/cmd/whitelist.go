package cmd

import (
	"context"

	"github.com/AdguardTeam/cbupdater/internal/cbupdate"
	"github.com/AdguardTeam/cbupdater/internal/whitelist"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// whitelistConfig is the configuration of the whitelisted domains.
type whitelistConfig struct {
	// Domains are the whitelisted domains.
	Domains []string `yaml:"domains"`

	// Inverted, if true, means that filtering is only enabled on Domains.
	Inverted bool `yaml:"inverted"`
}

// type check
var _ validate.Interface = (*whitelistConfig)(nil)

// Validate implements the [validate.Interface] interface for *whitelistConfig.
func (c *whitelistConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	_, err = c.toInternal()

	return err
}

// toInternal returns the whitelist described by c.
func (c *whitelistConfig) toInternal() (l *whitelist.List, err error) {
	return whitelist.New(&whitelist.Config{
		Domains:  c.Domains,
		Inverted: c.Inverted,
	})
}

// settings is the [cbupdate.Settings] implementation based on the environment
// and the configuration file.
type settings struct {
	whitelist         *whitelist.List
	filteringDisabled bool
}

// type check
var _ cbupdate.Settings = (*settings)(nil)

// IsFilteringDisabled implements the [cbupdate.Settings] interface for
// *settings.
func (s *settings) IsFilteringDisabled(_ context.Context) (ok bool) {
	return s.filteringDisabled
}

// IsDefaultWhitelistMode implements the [cbupdate.Settings] interface for
// *settings.
func (s *settings) IsDefaultWhitelistMode(_ context.Context) (ok bool) {
	return s.whitelist.IsDefaultMode()
}
