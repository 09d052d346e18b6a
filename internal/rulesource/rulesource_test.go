package rulesource_test

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/agdtest"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/cbupdater/internal/rulesource"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/c2h5oh/datasize"
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
	testFilterIDAds     rulegroup.FilterID = 2
	testFilterIDPrivacy rulegroup.FilterID = 3
)

// writeList is a helper that writes text into a file in dir and returns the
// file URL of it.
func writeList(tb testing.TB, dir, name, text string) (u *url.URL) {
	tb.Helper()

	p := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(p, []byte(text), 0o600))

	return &url.URL{
		Scheme: urlutil.SchemeFile,
		Path:   p,
	}
}

// newTestStorage is a helper that returns a storage with the given lists.
func newTestStorage(
	tb testing.TB,
	errColl *agdtest.ErrorCollector,
	mtrc rulesource.Metrics,
	lists ...*rulesource.List,
) (s *rulesource.Storage) {
	tb.Helper()

	s, err := rulesource.New(&rulesource.Config{
		Logger:    slogutil.NewDiscardLogger(),
		ErrColl:   errColl,
		Metrics:   mtrc,
		Lists:     lists,
		CacheDir:  tb.TempDir(),
		Staleness: time.Hour,
		Timeout:   testTimeout,
		MaxSize:   64 * datasize.KB,
	})
	require.NoError(tb, err)

	return s
}

func TestStorage_Rules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lists := []*rulesource.List{{
		URL: writeList(t, dir, "user.txt", "||user.example^\n"),
		ID:  rulegroup.FilterIDUser,
	}, {
		URL: writeList(t, dir, "ads.txt", "! Title: Ads\n\n  ||ads.example^  \r\nexample.org##.ad\n"),
		ID:  testFilterIDAds,
	}}

	counts := map[rulegroup.FilterID]int{}
	var refreshErr error
	mtrc := &agdtest.RuleSourceMetrics{
		OnSetRulesCount: func(_ context.Context, id rulegroup.FilterID, n int) {
			counts[id] = n
		},
		OnObserveRefresh: func(_ context.Context, _ time.Duration, err error) {
			refreshErr = err
		},
	}

	s := newTestStorage(t, agdtest.NewErrorCollector(), mtrc, lists...)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	assert.Empty(t, s.Rules(ctx))

	require.NoError(t, s.RefreshInitial(ctx))
	require.NoError(t, refreshErr)

	want := []*rulegroup.Rule{{
		Text:     "||user.example^",
		FilterID: rulegroup.FilterIDUser,
	}, {
		Text:     "! Title: Ads",
		FilterID: testFilterIDAds,
	}, {
		Text:     "||ads.example^",
		FilterID: testFilterIDAds,
	}, {
		Text:     "example.org##.ad",
		FilterID: testFilterIDAds,
	}}

	assert.Equal(t, want, s.Rules(ctx))
	assert.Equal(t, map[rulegroup.FilterID]int{
		rulegroup.FilterIDUser: 1,
		testFilterIDAds:        3,
	}, counts)
}

func TestStorage_Refresh_keepPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	adsURL := writeList(t, dir, "ads.txt", "||ads.example^\n")
	privacyURL := writeList(t, dir, "privacy.txt", "||tracker.example^\n")

	var collected []error
	errColl := &agdtest.ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			collected = append(collected, err)
		},
	}

	s := newTestStorage(t, errColl, rulesource.EmptyMetrics{}, &rulesource.List{
		URL: adsURL,
		ID:  testFilterIDAds,
	}, &rulesource.List{
		URL: privacyURL,
		ID:  testFilterIDPrivacy,
	})

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	require.NoError(t, s.RefreshInitial(ctx))
	require.Len(t, s.Rules(ctx), 2)

	require.NoError(t, os.Remove(privacyURL.Path))
	require.NoError(t, os.WriteFile(adsURL.Path, []byte("||new-ads.example^\n"), 0o600))

	err := s.Refresh(ctx)
	require.Error(t, err)
	require.Len(t, collected, 1)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, collected[0], fs.ErrNotExist)
	assert.Equal(t, []string{
		"||new-ads.example^",
		"||tracker.example^",
	}, rulegroup.Texts(s.Rules(ctx)))
}

func TestNew_badURL(t *testing.T) {
	t.Parallel()

	_, err := rulesource.New(&rulesource.Config{
		Logger:  slogutil.NewDiscardLogger(),
		ErrColl: agdtest.NewErrorCollector(),
		Metrics: rulesource.EmptyMetrics{},
		Lists: []*rulesource.List{{
			URL: &url.URL{Scheme: "ftp", Host: "filters.example"},
			ID:  testFilterIDAds,
		}},
		CacheDir: t.TempDir(),
	})
	testutil.AssertErrorMsg(
		t,
		`rule source: list at index 0: refreshable "filter 2": bad url scheme "ftp"`,
		err,
	)
}
