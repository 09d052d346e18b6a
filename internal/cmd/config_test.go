package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig is the configuration file used in tests.
const testConfig = `
content_blockers:
  debounce: 500ms
  converter_timeout: 30s
  max_output_size: 64MB
  rules_limit: 150000
filters:
  refresh_interval: 1h
  refresh_timeout: 1m
  staleness: 30m
  lists:
  - id: 0
    url: 'file:///var/lib/cbupdater/user.txt'
    enabled: true
  - id: 2
    url: 'https://filters.example/2.txt'
    enabled: true
  - id: 3
    url: 'https://filters.example/3.txt'
    enabled: false
whitelist:
  inverted: false
  domains:
  - example.com
`

// writeConfig writes data into a temporary file and returns its path.
func writeConfig(tb testing.TB, data string) (p string) {
	tb.Helper()

	p = filepath.Join(tb.TempDir(), "config.yaml")
	err := os.WriteFile(p, []byte(data), 0o600)
	require.NoError(tb, err)

	return p
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	c, err := parseConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	cb := c.ContentBlockers
	assert.Equal(t, 500*time.Millisecond, time.Duration(cb.Debounce))
	assert.Equal(t, 64*datasize.MB, cb.MaxOutputSize)
	assert.Equal(t, 150_000, cb.RulesLimit)
	assert.Equal(t, rulegroup.BundleIDAdvancedBlocking, cb.advancedBundleID())

	lists := c.Filters.Lists.toInternal()
	require.Len(t, lists, 2)

	assert.Equal(t, rulegroup.FilterIDUser, lists[0].ID)
	assert.Equal(t, "/var/lib/cbupdater/user.txt", lists[0].URL.Path)
	assert.Equal(t, rulegroup.FilterID(2), lists[1].ID)
	assert.Equal(t, "filters.example", lists[1].URL.Host)

	assert.Equal(t, rulegroup.DefaultTopology().Groups(), c.Groups.toInternal().Groups())

	wl, err := c.Whitelist.toInternal()
	require.NoError(t, err)

	assert.True(t, wl.IsDefaultMode())
}

func TestParseConfig_errors(t *testing.T) {
	t.Parallel()

	_, err := parseConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = parseConfig(writeConfig(t, "content_blockers: [\n"))
	assert.Error(t, err)
}

func TestConfiguration_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		data         string
		wantErrParts []string
	}{{
		name: "empty",
		data: "{}",
		wantErrParts: []string{
			"content_blockers: no value",
			"filters: no value",
			"whitelist: no value",
		},
	}, {
		name: "bad_values",
		data: `
content_blockers:
  debounce: 0s
  converter_timeout: 30s
  max_output_size: 1MB
  rules_limit: 1
filters:
  refresh_interval: 1h
  refresh_timeout: 1m
  staleness: 30m
  lists:
  - id: 1
    url: 'ftp://filters.example/1.txt'
  - id: 2
    url: 'https://filters.example/2.txt'
  - id: 2
    url: 'https://filters.example/2.txt'
whitelist:
  domains: []
`,
		wantErrParts: []string{
			"content_blockers: debounce",
			"filters: lists: at index 0: url: bad scheme \"ftp\"",
			"at index 2: id: duplicated value: 2",
		},
	}, {
		name: "advanced_bundle_conflict",
		data: `
content_blockers:
  debounce: 1s
  converter_timeout: 30s
  max_output_size: 1MB
  rules_limit: 1
  advanced_blocking_bundle_id: 'com.adguard.safari.AdGuard.BlockerPrivacy'
filters:
  refresh_interval: 1h
  refresh_timeout: 1m
  staleness: 30m
whitelist:
  domains: []
`,
		wantErrParts: []string{
			"content_blockers: advanced_blocking_bundle_id: duplicated value: " +
				"\"com.adguard.safari.AdGuard.BlockerPrivacy\"",
		},
	}, {
		name: "custom_groups",
		data: `
content_blockers:
  debounce: 1s
  converter_timeout: 30s
  max_output_size: 1MB
  rules_limit: 1
filters:
  refresh_interval: 1h
  refresh_timeout: 1m
  staleness: 30m
whitelist:
  domains: []
groups:
- key: 'all_rules'
  bundle_id: 'com.example.Blocker'
  affinity: 'main'
  filter_group_ids: [1, 2, 3]
`,
		wantErrParts: nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, err := parseConfig(writeConfig(t, tc.data))
			require.NoError(t, err)

			err = c.Validate()
			if len(tc.wantErrParts) == 0 {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)

			for _, part := range tc.wantErrParts {
				assert.ErrorContains(t, err, part)
			}
		})
	}
}

func TestGroupConfigs_toInternal(t *testing.T) {
	t.Parallel()

	gcs := groupConfigs{{
		Key:            "first",
		BundleID:       "com.example.First",
		Affinity:       "first",
		FilterGroupIDs: []rulegroup.FilterGroupID{1},
	}, {
		Key:            "second",
		BundleID:       "com.example.Second",
		Affinity:       "second",
		FilterGroupIDs: []rulegroup.FilterGroupID{2, 3},
	}}

	require.NoError(t, gcs.Validate())

	bundles := gcs.toInternal().Bundles()
	require.Len(t, bundles, 2)

	assert.Equal(t, rulegroup.BundleID("com.example.First"), bundles[0].ID)
	assert.Equal(t, []rulegroup.FilterGroupID{2, 3}, bundles[1].FilterGroupIDs)

	gcs = append(gcs, &groupConfig{
		Key:      "first",
		BundleID: "com.example.Third",
		Affinity: "third",
	})

	assert.Error(t, gcs.Validate())

	assert.Error(t, groupConfigs{nil}.Validate())
}
