package cmd

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/rulesource"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
)

// filtersConfig contains the configuration of the filter index and the filter
// lists.  See the environment for the index URL and the maximum sizes.
type filtersConfig struct {
	// Lists are the filter lists.  The user filter has the ID
	// [rulegroup.FilterIDUser].
	Lists filterListConfigs `yaml:"lists"`

	// RefreshIvl defines how often the filter index and the filter lists are
	// refreshed.
	RefreshIvl timeutil.Duration `yaml:"refresh_interval"`

	// RefreshTimeout is the timeout for the refresh of the index and of all
	// filter lists.
	RefreshTimeout timeutil.Duration `yaml:"refresh_timeout"`

	// Staleness is the time after which the cached files are downloaded again.
	Staleness timeutil.Duration `yaml:"staleness"`
}

// type check
var _ validate.Interface = (*filtersConfig)(nil)

// Validate implements the [validate.Interface] interface for *filtersConfig.
func (c *filtersConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.Positive("refresh_interval", c.RefreshIvl),
		validate.Positive("refresh_timeout", c.RefreshTimeout),
		validate.Positive("staleness", c.Staleness),
	}

	errs = validate.Append(errs, "lists", c.Lists)

	return errors.Join(errs...)
}

// filterListConfig is the configuration of a single filter list.
type filterListConfig struct {
	// URL is the location of the filter list.  It must be either a file URL or
	// an HTTP(S) URL.
	URL *urlutil.URL `yaml:"url"`

	// ID is the identifier of the filter list.
	ID rulegroup.FilterID `yaml:"id"`

	// Enabled shows if the rules of the filter list are used.
	Enabled bool `yaml:"enabled"`
}

// type check
var _ validate.Interface = (*filterListConfig)(nil)

// Validate implements the [validate.Interface] interface for *filterListConfig.
func (c *filterListConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotNegative("id", c.ID),
	}

	if c.URL == nil {
		errs = append(errs, fmt.Errorf("url: %w", errors.ErrNoValue))
	} else if s := c.URL.Scheme; !strings.EqualFold(s, urlutil.SchemeFile) &&
		!urlutil.IsValidHTTPURLScheme(s) {
		errs = append(errs, fmt.Errorf("url: bad scheme %q", s))
	}

	return errors.Join(errs...)
}

// filterListConfigs are the configurations of the filter lists.
type filterListConfigs []*filterListConfig

// type check
var _ validate.Interface = filterListConfigs(nil)

// Validate implements the [validate.Interface] interface for filterListConfigs.
func (lcs filterListConfigs) Validate() (err error) {
	ids := container.NewMapSet[rulegroup.FilterID]()

	var errs []error
	for i, lc := range lcs {
		err = lc.Validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("at index %d: %w", i, err))

			continue
		}

		if ids.Has(lc.ID) {
			errs = append(errs, fmt.Errorf("at index %d: id: %w: %d", i, errors.ErrDuplicated, lc.ID))

			continue
		}

		ids.Add(lc.ID)
	}

	return errors.Join(errs...)
}

// toInternal returns the enabled filter lists.  lcs must be valid.
func (lcs filterListConfigs) toInternal() (lists []*rulesource.List) {
	for _, lc := range lcs {
		if !lc.Enabled {
			continue
		}

		u := lc.URL.URL
		lists = append(lists, &rulesource.List{
			URL: &u,
			ID:  lc.ID,
		})
	}

	return lists
}
