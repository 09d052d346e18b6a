package debugsvc_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/agdtest"
	"github.com/AdguardTeam/cbupdater/internal/blockerinfo"
	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/debugsvc"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutil.DiscardLogOutput(m)
}

// testTimeout is a common timeout for tests.
const testTimeout = 1 * time.Second

// newTestService is a helper that returns a new service with the given
// refreshers and update requester and a blocker-info cache with a single
// entry.
func newTestService(
	tb testing.TB,
	refrs debugsvc.Refreshers,
	upd debugsvc.UpdateRequester,
) (svc *debugsvc.Service) {
	tb.Helper()

	topology := rulegroup.DefaultTopology()
	info := blockerinfo.New(&blockerinfo.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Topology: topology,
	})

	ctx := testutil.ContextWithTimeout(tb, testTimeout)
	err := info.HandleEvent(ctx, &cblocker.ExtensionUpdated{
		Info: &cblocker.DispatchInfo{
			BundleID:   rulegroup.BundleIDGeneral,
			RulesCount: 42,
		},
	})
	require.NoError(tb, err)

	return debugsvc.New(&debugsvc.Config{
		Logger:      slogutil.NewDiscardLogger(),
		Gatherer:    prometheus.NewRegistry(),
		Updater:     upd,
		BlockerInfo: info,
		Refreshers:  refrs,
		Addr:        "127.0.0.1:0",
	})
}

// serve is a helper that serves a single request and returns the recorded
// response.
func serve(tb testing.TB, h http.Handler, method, target, body string) (rw *httptest.ResponseRecorder) {
	tb.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	return rw
}

func TestService_Handler(t *testing.T) {
	t.Parallel()

	updated := 0
	upd := &agdtest.UpdateRequester{
		OnRequestUpdate: func() { updated++ },
	}

	svc := newTestService(t, debugsvc.Refreshers{}, upd)
	h := svc.Handler()

	t.Run("health_check", func(t *testing.T) {
		rw := serve(t, h, http.MethodGet, debugsvc.PathPatternHealthCheck, "")
		assert.Equal(t, http.StatusOK, rw.Code)
		assert.Equal(t, "OK\n", rw.Body.String())
		assert.NotEmpty(t, rw.Header().Get(httphdr.Server))
	})

	t.Run("metrics", func(t *testing.T) {
		rw := serve(t, h, http.MethodGet, debugsvc.PathPatternMetrics, "")
		assert.Equal(t, http.StatusOK, rw.Code)
	})

	t.Run("update", func(t *testing.T) {
		rw := serve(t, h, http.MethodPost, debugsvc.PathPatternDebugAPIUpdate, "")
		assert.Equal(t, http.StatusAccepted, rw.Code)
		assert.Equal(t, 1, updated)
	})

	t.Run("content_blockers", func(t *testing.T) {
		rw := serve(t, h, http.MethodGet, debugsvc.PathPatternContentBlockers, "")
		require.Equal(t, http.StatusOK, rw.Code)

		body := rw.Body.String()
		assert.Contains(t, body, `"bundleId":"`+string(rulegroup.BundleIDGeneral)+`"`)
		assert.Contains(t, body, `"rulesCount":42`)
		assert.Contains(t, body, `"bundleId":"`+string(rulegroup.BundleIDCustom)+`"`)
	})

	t.Run("bad_method", func(t *testing.T) {
		rw := serve(t, h, http.MethodGet, debugsvc.PathPatternDebugAPIUpdate, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
	})
}

func TestService_Handler_refresh(t *testing.T) {
	t.Parallel()

	const testError errors.Error = "test error"

	var refreshed []string
	newRefr := func(id string, err error) (r *agdtest.Refresher) {
		return &agdtest.Refresher{
			OnRefresh: func(_ context.Context) (_ error) {
				refreshed = append(refreshed, id)

				return err
			},
		}
	}

	refrs := debugsvc.Refreshers{
		"content_blockers": newRefr("content_blockers", nil),
		"filter_lists":     newRefr("filter_lists", testError),
	}

	svc := newTestService(t, refrs, &agdtest.UpdateRequester{})
	h := svc.Handler()

	testCases := []struct {
		name          string
		body          string
		wantBody      string
		wantRefreshed []string
		wantCode      int
	}{{
		name:          "single",
		body:          `{"ids":["content_blockers"]}`,
		wantBody:      `{"results":{"content_blockers":"ok"}}` + "\n",
		wantRefreshed: []string{"content_blockers"},
		wantCode:      http.StatusOK,
	}, {
		name: "all",
		body: `{"ids":["*"]}`,
		wantBody: `{"results":{"content_blockers":"ok",` +
			`"filter_lists":"error: test error"}}` + "\n",
		wantRefreshed: []string{"content_blockers", "filter_lists"},
		wantCode:      http.StatusOK,
	}, {
		name:          "not_found",
		body:          `{"ids":["unknown"]}`,
		wantBody:      `{"results":{"unknown":"error: refresher not found"}}` + "\n",
		wantRefreshed: nil,
		wantCode:      http.StatusOK,
	}, {
		name:          "no_ids",
		body:          `{"ids":[]}`,
		wantBody:      "no ids\n",
		wantRefreshed: nil,
		wantCode:      http.StatusBadRequest,
	}, {
		name:          "star_with_others",
		body:          `{"ids":["*","filter_lists"]}`,
		wantBody:      `"*" cannot be used with other ids` + "\n",
		wantRefreshed: nil,
		wantCode:      http.StatusBadRequest,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			refreshed = nil

			rw := serve(t, h, http.MethodPost, debugsvc.PathPatternDebugAPIRefresh, tc.body)
			assert.Equal(t, tc.wantCode, rw.Code)
			assert.Equal(t, tc.wantBody, rw.Body.String())
			assert.Equal(t, tc.wantRefreshed, refreshed)
		})
	}
}

func TestService_Start(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, debugsvc.Refreshers{}, &agdtest.UpdateRequester{})

	err := svc.Start(testutil.ContextWithTimeout(t, testTimeout))
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, func() (err error) {
		return svc.Shutdown(testutil.ContextWithTimeout(t, testTimeout))
	})

	addr := svc.LocalAddr()
	require.NotNil(t, addr)

	client := &http.Client{
		Timeout: testTimeout,
	}

	resp, err := client.Get(fmt.Sprintf("http://%s%s", addr, debugsvc.PathPatternHealthCheck))
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, resp.Body.Close)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))
}
