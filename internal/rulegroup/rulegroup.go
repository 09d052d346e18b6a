// Package rulegroup contains the content-blocker group topology and the logic
// of distributing filtering rules among the groups.
package rulegroup

import "strings"

// FilterID is the identifier of a filter list.
type FilterID int

// FilterIDUser is the identifier of the user-defined filter.
//
// NOTE:  Pseudo-rules that don't come from any real filter list, such as the
// whitelist rules, are also tagged with this ID, so that they get into every
// group.  DO NOT change it.
const FilterIDUser FilterID = 0

// FilterGroupID is the identifier of a filter category, for example "Ad
// blocking" or "Privacy".
type FilterGroupID int

// Filter-group identifiers used by the reference topology.
const (
	FilterGroupIDCustom           FilterGroupID = 0
	FilterGroupIDAdBlocking       FilterGroupID = 1
	FilterGroupIDPrivacy          FilterGroupID = 2
	FilterGroupIDSocial           FilterGroupID = 3
	FilterGroupIDAnnoyances       FilterGroupID = 4
	FilterGroupIDSecurity         FilterGroupID = 5
	FilterGroupIDOther            FilterGroupID = 6
	FilterGroupIDLanguageSpecific FilterGroupID = 7
)

// commentPrefix is the prefix of comment and directive lines.
const commentPrefix = "!"

// Rule is a single filtering rule tagged with the filter list it came from.
// Rules must not be changed after they have been created.
type Rule struct {
	// Text is the text of the rule.  Rules with empty text are ignored.
	Text string

	// FilterID is the identifier of the filter list the rule belongs to.
	FilterID FilterID
}

// IsComment returns true if r is a comment or a directive line.  Such lines
// are never converted, but may change the routing of the following rules.
func (r *Rule) IsComment() (ok bool) {
	return strings.HasPrefix(r.Text, commentPrefix)
}

// Texts returns the texts of rules in the same order.
func Texts(rules []*Rule) (texts []string) {
	texts = make([]string, 0, len(rules))
	for _, r := range rules {
		texts = append(texts, r.Text)
	}

	return texts
}
