package rulegroup

import "strings"

// Affinity directive syntax.  The bare directive resets the routing to the
// default group, the directive with arguments routes the following rules to
// the groups referred to by the comma-separated aliases.
const (
	affinityDirective      = "!#safari_cb_affinity"
	affinityDirectiveStart = affinityDirective + "("
	affinityDirectiveEnd   = ")"
	affinityArgSep         = ","
)

// DirectiveKind is the kind of a parsed rule line.
type DirectiveKind uint8

// DirectiveKind values.
const (
	// DirectiveNone means that the line is not an affinity directive.
	DirectiveNone DirectiveKind = iota

	// DirectiveReset means that the line closes the current affinity block.
	DirectiveReset

	// DirectiveOverride means that the line opens a new affinity block.
	DirectiveOverride
)

// Directive is the result of parsing a single rule line.
type Directive struct {
	// Groups are the groups the following rules are routed to.  It is only
	// set for [DirectiveOverride], and it may be empty if the directive is
	// malformed or contains only unknown aliases, in which case the following
	// rules are routed to their default group.
	Groups []*Group

	// Kind is the kind of the line.
	Kind DirectiveKind
}

// ParseDirective parses text as an affinity directive.  Unknown aliases are
// ignored, and aliases may refer to the same group more than once.  A
// directive without the closing parenthesis has no effective groups.
func (t *Topology) ParseDirective(text string) (d Directive) {
	if text == affinityDirective {
		return Directive{
			Kind: DirectiveReset,
		}
	}

	args, ok := strings.CutPrefix(text, affinityDirectiveStart)
	if !ok {
		return Directive{
			Kind: DirectiveNone,
		}
	}

	d = Directive{
		Kind: DirectiveOverride,
	}

	args, ok = strings.CutSuffix(args, affinityDirectiveEnd)
	if !ok {
		return d
	}

	for alias := range strings.SplitSeq(args, affinityArgSep) {
		d.Groups = append(d.Groups, t.resolve(strings.TrimSpace(alias))...)
	}

	return d
}

// RoutedRule is a rule along with the groups it has been routed to by an
// affinity directive.
type RoutedRule struct {
	// Rule is the routed rule.  It is never nil.
	Rule *Rule

	// Groups are the groups the rule has been routed to.  If Groups is empty,
	// the rule goes to its default group.
	Groups []*Group
}

// Route routes the rules of a single filter list according to the affinity
// directives within it.  Directive lines as well as nil rules and rules with
// empty text are not included into routed.
func (t *Topology) Route(rules []*Rule) (routed []*RoutedRule) {
	var current []*Group
	for _, r := range rules {
		if r == nil || r.Text == "" {
			continue
		}

		d := t.ParseDirective(r.Text)
		switch d.Kind {
		case DirectiveReset:
			current = nil
		case DirectiveOverride:
			current = d.Groups
		default:
			routed = append(routed, &RoutedRule{
				Rule:   r,
				Groups: current,
			})
		}
	}

	return routed
}
