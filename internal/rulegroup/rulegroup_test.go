package rulegroup_test

import (
	"context"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/agdtest"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutil.DiscardLogOutput(m)
}

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// Filter identifiers for tests.
const (
	testFilterIDAds      rulegroup.FilterID = 2
	testFilterIDLanguage rulegroup.FilterID = 3
	testFilterIDPrivacy  rulegroup.FilterID = 4
	testFilterIDSocial   rulegroup.FilterID = 5
	testFilterIDCustom   rulegroup.FilterID = 1000
)

// newTestIndex returns a category index for tests that maps the filter groups
// of the reference topology to the test filters.
func newTestIndex() (idx *agdtest.CategoryIndex) {
	filters := map[rulegroup.FilterGroupID][]rulegroup.FilterID{
		rulegroup.FilterGroupIDAdBlocking:       {testFilterIDAds},
		rulegroup.FilterGroupIDLanguageSpecific: {testFilterIDLanguage},
		rulegroup.FilterGroupIDPrivacy:          {testFilterIDPrivacy},
		rulegroup.FilterGroupIDSocial:           {testFilterIDSocial},
		rulegroup.FilterGroupIDCustom:           {testFilterIDCustom},
	}

	return &agdtest.CategoryIndex{
		OnFiltersByGroupID: func(
			_ context.Context,
			id rulegroup.FilterGroupID,
		) (ids []rulegroup.FilterID) {
			return filters[id]
		},
	}
}

// newTestAssigner returns a new assigner with the reference topology and the
// test index.
func newTestAssigner() (a *rulegroup.Assigner) {
	return rulegroup.NewAssigner(&rulegroup.AssignerConfig{
		Logger:   slogutil.NewDiscardLogger(),
		Topology: rulegroup.DefaultTopology(),
		Index:    newTestIndex(),
	})
}

// newRules is a helper that returns rules with the given texts from a single
// filter.
func newRules(id rulegroup.FilterID, texts ...string) (rules []*rulegroup.Rule) {
	for _, text := range texts {
		rules = append(rules, &rulegroup.Rule{
			Text:     text,
			FilterID: id,
		})
	}

	return rules
}

// textsByKey returns the rule texts of results by their group keys.
func textsByKey(results []*rulegroup.Result) (m map[rulegroup.GroupKey][]string) {
	m = make(map[rulegroup.GroupKey][]string, len(results))
	for _, res := range results {
		m[res.Group.Key] = rulegroup.Texts(res.Rules)
	}

	return m
}

func TestRule_IsComment(t *testing.T) {
	t.Parallel()

	assert.True(t, (&rulegroup.Rule{Text: "! Title: Test"}).IsComment())
	assert.True(t, (&rulegroup.Rule{Text: "!#safari_cb_affinity"}).IsComment())
	assert.False(t, (&rulegroup.Rule{Text: "||example.org^"}).IsComment())
	assert.False(t, (&rulegroup.Rule{Text: "example.org##.ad"}).IsComment())
}

func TestAssigner_GroupRules(t *testing.T) {
	t.Parallel()

	a := newTestAssigner()

	testCases := []struct {
		want  map[rulegroup.GroupKey][]string
		name  string
		rules []*rulegroup.Rule
	}{{
		name:  "empty",
		rules: nil,
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {},
			rulegroup.GroupKeyPrivacy:  {},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}, {
		name: "native",
		rules: concatRules(
			newRules(testFilterIDAds, "||ads.example^"),
			newRules(testFilterIDLanguage, "||lang.example^"),
			newRules(testFilterIDPrivacy, "||tracker.example^"),
			newRules(testFilterIDSocial, "||widget.example^"),
			newRules(testFilterIDCustom, "||custom.example^"),
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {"||ads.example^", "||lang.example^"},
			rulegroup.GroupKeyPrivacy:  {"||tracker.example^"},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {"||widget.example^"},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {"||custom.example^"},
		},
	}, {
		name: "affinity",
		rules: concatRules(
			newRules(testFilterIDPrivacy, "||tracker.example^"),
			newRules(
				testFilterIDAds,
				"!#safari_cb_affinity(privacy)",
				"rule1",
				"!#safari_cb_affinity",
				"rule2",
			),
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {"rule2"},
			rulegroup.GroupKeyPrivacy:  {"||tracker.example^", "rule1"},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}, {
		name: "affinity_all",
		rules: newRules(
			testFilterIDPrivacy,
			"!#safari_cb_affinity(all)",
			"everywhere",
			"!#safari_cb_affinity",
			"||tracker.example^",
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {"everywhere"},
			rulegroup.GroupKeyPrivacy:  {"||tracker.example^", "everywhere"},
			rulegroup.GroupKeySecurity: {"everywhere"},
			rulegroup.GroupKeySocial:   {"everywhere"},
			rulegroup.GroupKeyOther:    {"everywhere"},
			rulegroup.GroupKeyCustom:   {"everywhere"},
		},
	}, {
		name: "affinity_several",
		rules: newRules(
			testFilterIDAds,
			"!#safari_cb_affinity(security, social, unknown)",
			"rule",
			"!#safari_cb_affinity",
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {},
			rulegroup.GroupKeyPrivacy:  {},
			rulegroup.GroupKeySecurity: {"rule"},
			rulegroup.GroupKeySocial:   {"rule"},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}, {
		name: "malformed_affinity",
		rules: newRules(
			testFilterIDPrivacy,
			"!#safari_cb_affinity(general",
			"rule",
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {},
			rulegroup.GroupKeyPrivacy:  {"rule"},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}, {
		name: "dedup",
		rules: concatRules(
			newRules(testFilterIDAds, "a", "b", "a", ""),
			newRules(testFilterIDLanguage, "b", "c"),
			newRules(testFilterIDPrivacy, "!#safari_cb_affinity(general)", "c", "d"),
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {"a", "b", "c", "d"},
			rulegroup.GroupKeyPrivacy:  {},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}, {
		name: "user_filter",
		rules: concatRules(
			newRules(testFilterIDAds, "||ads.example^"),
			newRules(
				rulegroup.FilterIDUser,
				"||user.example^",
				"!#safari_cb_affinity(privacy)",
				"||user-privacy.example^",
			),
			newRules(testFilterIDPrivacy, "!#safari_cb_affinity(privacy)", "||self.example^"),
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral: {"||ads.example^", "||user.example^"},
			rulegroup.GroupKeyPrivacy: {
				"||user.example^",
				"||user-privacy.example^",
				"||self.example^",
			},
			rulegroup.GroupKeySecurity: {"||user.example^"},
			rulegroup.GroupKeySocial:   {"||user.example^"},
			rulegroup.GroupKeyOther:    {"||user.example^"},
			rulegroup.GroupKeyCustom:   {"||user.example^"},
		},
	}, {
		name: "unknown_filter",
		rules: concatRules(
			newRules(42, "||unknown.example^"),
			[]*rulegroup.Rule{nil},
		),
		want: map[rulegroup.GroupKey][]string{
			rulegroup.GroupKeyGeneral:  {},
			rulegroup.GroupKeyPrivacy:  {},
			rulegroup.GroupKeySecurity: {},
			rulegroup.GroupKeySocial:   {},
			rulegroup.GroupKeyOther:    {},
			rulegroup.GroupKeyCustom:   {},
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := testutil.ContextWithTimeout(t, testTimeout)
			results := a.GroupRules(ctx, tc.rules)
			require.Len(t, results, a.Topology().Len())

			for i, g := range a.Topology().Groups() {
				assert.Same(t, g, results[i].Group)
			}

			assert.Equal(t, tc.want, textsByKey(results))
		})
	}
}

func TestAssigner_GroupRules_order(t *testing.T) {
	t.Parallel()

	rules := concatRules(
		newRules(testFilterIDPrivacy, "p1", "p2"),
		newRules(testFilterIDAds, "!#safari_cb_affinity(privacy)", "a1"),
		newRules(rulegroup.FilterIDUser, "!#safari_cb_affinity(privacy)", "u1"),
		newRules(testFilterIDSocial, "!#safari_cb_affinity(privacy,privacy)", "s1"),
	)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	results := newTestAssigner().GroupRules(ctx, rules)

	want := []*rulegroup.Result{
		results[0],
		{
			Group: rulegroup.DefaultTopology().Groups()[1],
			Rules: concatRules(
				newRules(testFilterIDPrivacy, "p1", "p2"),
				newRules(testFilterIDAds, "a1"),
				newRules(rulegroup.FilterIDUser, "u1"),
				newRules(testFilterIDSocial, "s1"),
			),
		},
	}

	agdtest.AssertEqualResults(t, want, results[:2])
}

// concatRules is a helper that joins the rule slices.
func concatRules(ruleSets ...[]*rulegroup.Rule) (rules []*rulegroup.Rule) {
	for _, s := range ruleSets {
		rules = append(rules, s...)
	}

	return rules
}

func BenchmarkAssigner_GroupRules(b *testing.B) {
	a := newTestAssigner()
	rules := concatRules(
		newRules(testFilterIDAds, "||a.example^", "||b.example^", "||c.example^"),
		newRules(testFilterIDPrivacy, "!#safari_cb_affinity(all)", "||d.example^"),
		newRules(rulegroup.FilterIDUser, "||e.example^", "||a.example^"),
	)

	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		_ = a.GroupRules(ctx, rules)
	}
}
