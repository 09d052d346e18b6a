// Package whitelist contains the list of domains on which filtering is
// disabled, or, in the inverted mode, the only domains on which it is enabled.
package whitelist

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/urlfilter/rules"
)

// Rule syntax.
const (
	// invertedRulePrefix is the rule that disables filtering on all
	// documents.
	invertedRulePrefix = "@@||*$document"

	// domainModifier starts the list of domains of a rule.
	domainModifier = ",domain="

	// domainSep separates the domains in the domain modifier.
	domainSep = "|"

	// negation marks the domain in the domain modifier as excluded.
	negation = "~"
)

// listID is the list identifier for the rules parsed during validation.
const listID rules.ListID = 0

// InvertedRule returns the exception rule disabling filtering on every
// document except the ones on domains.  domains are written in the same
// order.
func InvertedRule(domains []string) (rule string) {
	if len(domains) == 0 {
		return invertedRulePrefix
	}

	b := &strings.Builder{}
	_, _ = b.WriteString(invertedRulePrefix)
	_, _ = b.WriteString(domainModifier)
	for i, d := range domains {
		if i > 0 {
			_, _ = b.WriteString(domainSep)
		}

		_, _ = b.WriteString(negation)
		_, _ = b.WriteString(d)
	}

	return b.String()
}

// domainRule returns the exception rule disabling filtering on the documents
// of domain.
func domainRule(domain string) (rule string) {
	return "@@||" + domain + "^$document"
}

// Config is the configuration structure for a [List].
type Config struct {
	// Domains are the domains of the list.  All of them must be valid
	// hostnames.
	Domains []string

	// Inverted, if true, means that Domains are the only domains on which
	// filtering is enabled.
	Inverted bool
}

// List is an immutable whitelist.
type List struct {
	domains []string
	rules   []string
	mode    bool
}

// New returns a new properly initialized *List.  c must not be nil.
func New(c *Config) (l *List, err error) {
	defer func() { err = errors.Annotate(err, "whitelist: %w") }()

	set := container.NewMapSet[string]()

	var errs []error
	domains := make([]string, 0, len(c.Domains))
	ruleTexts := make([]string, 0, len(c.Domains))
	for i, d := range c.Domains {
		d = strings.ToLower(d)
		err = validateDomain(d)
		if err != nil {
			errs = append(errs, fmt.Errorf("domain at index %d: %w", i, err))

			continue
		}

		if set.Has(d) {
			errs = append(errs, fmt.Errorf("domain at index %d: %w: %q", i, errors.ErrDuplicated, d))

			continue
		}

		set.Add(d)
		domains = append(domains, d)
		ruleTexts = append(ruleTexts, domainRule(d))
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return &List{
		domains: domains,
		rules:   ruleTexts,
		mode:    !c.Inverted,
	}, nil
}

// validateDomain returns an error if d is not a valid hostname or if it
// doesn't produce a valid exception rule.
func validateDomain(d string) (err error) {
	err = netutil.ValidateHostname(d)
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return err
	}

	nr, err := rules.NewNetworkRule(domainRule(d), listID)
	if err != nil {
		return fmt.Errorf("building rule: %w", err)
	} else if !nr.Whitelist {
		return fmt.Errorf("rule %q is not an exception", domainRule(d))
	}

	return nil
}

// Rules returns the exception rules of the list, one per domain.  The returned
// slice must not be modified.
func (l *List) Rules(_ context.Context) (ruleTexts []string) {
	return l.rules
}

// Domains returns a copy of the domains of the list.
func (l *List) Domains(_ context.Context) (domains []string) {
	return slices.Clone(l.domains)
}

// IsDefaultMode returns true if the list is not inverted.
func (l *List) IsDefaultMode() (ok bool) {
	return l.mode
}
