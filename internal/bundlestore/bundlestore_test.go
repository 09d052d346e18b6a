package bundlestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/agdtest"
	"github.com/AdguardTeam/cbupdater/internal/bundlestore"
	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testJSON is the common converted document for tests.
const testJSON = `[{"trigger":{"url-filter":".*"},"action":{"type":"block"}}]`

func TestStore_HandleEvent(t *testing.T) {
	t.Parallel()

	var published []cblocker.Event
	pub := &agdtest.Publisher{
		OnPublish: func(_ context.Context, ev cblocker.Event) (err error) {
			published = append(published, ev)

			return nil
		},
	}

	s := bundlestore.New(&bundlestore.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Publisher: pub,
		Dir:       t.TempDir(),
	})

	info := &cblocker.DispatchInfo{
		BundleID:       rulegroup.BundleIDGeneral,
		FilterGroupIDs: []rulegroup.FilterGroupID{rulegroup.FilterGroupIDAdBlocking},
		RulesCount:     1,
	}

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	err := s.HandleEvent(ctx, &cblocker.DispatchRequired{
		Info:     info,
		BundleID: rulegroup.BundleIDGeneral,
		JSON:     testJSON,
	})
	require.NoError(t, err)

	p, err := s.Path(rulegroup.BundleIDGeneral)
	require.NoError(t, err)

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	assert.Equal(t, testJSON, string(data))

	require.Len(t, published, 1)
	require.IsType(t, (*cblocker.ExtensionUpdated)(nil), published[0])

	ack := published[0].(*cblocker.ExtensionUpdated)
	assert.Equal(t, info, ack.Info)
	assert.NotSame(t, info, ack.Info)

	err = s.HandleEvent(ctx, &cblocker.UpdateCompleted{RulesCount: 1})
	require.NoError(t, err)

	assert.Len(t, published, 1)
}

func TestStore_HandleEvent_errors(t *testing.T) {
	t.Parallel()

	const testError errors.Error = "test error"

	pub := &agdtest.Publisher{
		OnPublish: func(_ context.Context, _ cblocker.Event) (err error) {
			return testError
		},
	}

	s := bundlestore.New(&bundlestore.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Publisher: pub,
		Dir:       t.TempDir(),
	})

	testCases := []struct {
		name       string
		bundleID   rulegroup.BundleID
		wantErrMsg string
	}{{
		name:       "bad_id",
		bundleID:   "../etc/passwd",
		wantErrMsg: `applying bundle "../etc/passwd": bad bundle id: "../etc/passwd"`,
	}, {
		name:       "empty_id",
		bundleID:   "",
		wantErrMsg: `applying bundle "": bad bundle id: ""`,
	}, {
		name:       "publish",
		bundleID:   rulegroup.BundleIDPrivacy,
		wantErrMsg: `applying bundle "` + string(rulegroup.BundleIDPrivacy) + `": test error`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := testutil.ContextWithTimeout(t, testTimeout)
			err := s.HandleEvent(ctx, &cblocker.DispatchRequired{
				Info:     &cblocker.DispatchInfo{BundleID: tc.bundleID},
				BundleID: tc.bundleID,
				JSON:     testJSON,
			})
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
		})
	}
}
