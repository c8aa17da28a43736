package routes

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"backchain/chain"
	"backchain/chain/chaintest"
	"backchain/gateway/middleware"
	"backchain/views"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

type handleSource struct{ set *chain.HandleSet }

func (s handleSource) Handles() *chain.HandleSet { return s.set }

func newTestServer(t *testing.T, cfg Config, opts ...views.Option) (*httptest.Server, *chaintest.Deployment) {
	t.Helper()
	d := chaintest.NewDeployment(testAccount)
	if cfg.Views == nil {
		now := time.Unix(1_700_000_000, 0)
		opts = append([]views.Option{views.WithClock(func() time.Time { return now })}, opts...)
		cfg.Views = views.New(handleSource{d.ReadOnlyHandles()}, opts...)
	}
	handler, err := New(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, d
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestRouterRequiresViews(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, errNoViews)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestDashboardRoute(t *testing.T) {
	srv, d := newTestServer(t, Config{})
	supply := new(big.Int).Mul(big.NewInt(2_000_000), big.NewInt(1e18))
	d.Token.SetSupply(supply)
	d.Token.SetBalance(chaintest.DelegationAddress, new(big.Int).Div(supply, big.NewInt(4)))

	var body dashboardResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/dashboard", &body))
	require.Equal(t, supply.String(), body.TotalSupply)
	require.False(t, body.SupplyEstimated)
	require.Equal(t, 25.0, body.LockedPercent)
}

func TestDashboardNetworkFailureIsBadGateway(t *testing.T) {
	srv, d := newTestServer(t, Config{})
	d.Delegation.Fails("totalNetworkPStake", chaintest.NetworkError{Msg: "dial tcp: connection refused"})

	var body map[string]string
	require.Equal(t, http.StatusBadGateway, getJSON(t, srv.URL+"/v1/dashboard", &body))
	require.NotEmpty(t, body["error"])
}

func TestAccountRoutes(t *testing.T) {
	srv, d := newTestServer(t, Config{})
	d.Token.SetBalance(testAccount, big.NewInt(77))
	d.Delegation.Returns("pendingDelegatorRewards", big.NewInt(100))

	var account accountResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/accounts/"+testAccount.Hex(), &account))
	require.Equal(t, "77", account.Balance)
	require.True(t, account.ClaimEnabled)

	var rewards rewardsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/accounts/"+testAccount.Hex()+"/rewards", &rewards))
	require.Equal(t, "50", rewards.Claimable)
	require.Equal(t, "50", rewards.Treasury)
	require.Equal(t, "None", rewards.Booster.Name)

	var certs struct {
		Certificates []certificateResponse `json:"certificates"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/accounts/"+testAccount.Hex()+"/certificates", &certs))
	require.Empty(t, certs.Certificates)
}

func TestRewardsFollowHoldingChanges(t *testing.T) {
	srv, d := newTestServer(t, Config{}, views.WithoutCaches())
	d.Delegation.Returns("pendingDelegatorRewards", big.NewInt(1000))
	d.Booster.EmitTransfer(common.Address{}, testAccount, 3, 10)
	d.Booster.Returns("boostBips", big.NewInt(3000))
	url := srv.URL + "/v1/accounts/" + testAccount.Hex() + "/rewards"

	var rewards rewardsResponse
	require.Equal(t, http.StatusOK, getJSON(t, url, &rewards))
	require.Equal(t, "800", rewards.Claimable)

	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	d.Booster.EmitTransfer(testAccount, other, 3, 11)
	rewards = rewardsResponse{}
	require.Equal(t, http.StatusOK, getJSON(t, url, &rewards))
	require.Equal(t, "500", rewards.Claimable)
	require.Equal(t, "500", rewards.Treasury)
	require.Equal(t, "None", rewards.Booster.Name)
}

func TestAccountRejectsBadAddress(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	var body map[string]string
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/accounts/not-an-address", &body))
	require.Contains(t, body["error"], "invalid address")
}

func TestActionsRoutePaginates(t *testing.T) {
	srv, d := newTestServer(t, Config{})
	d.Actions.Returns("actionCounter", big.NewInt(8))
	d.Actions.OnCall("actions", func(args ...any) (any, error) {
		rec := chain.EmptyAction()
		rec.ID = new(big.Int).Set(args[0].(*big.Int))
		return rec, nil
	})

	var body struct {
		Actions    []actionResponse `json:"actions"`
		Page       int              `json:"page"`
		TotalPages int              `json:"totalPages"`
		Total      int              `json:"total"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/actions?page=5", &body))
	require.Equal(t, 2, body.Page)
	require.Equal(t, 2, body.TotalPages)
	require.Equal(t, 8, body.Total)
	require.Len(t, body.Actions, 2)
	require.Equal(t, uint64(2), body.Actions[0].ID)

	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/actions?filter=lottery", nil))
}

func TestStoreRouteWithoutPoolIsUnavailable(t *testing.T) {
	d := chaintest.NewDeployment(testAccount)
	set := chain.Assemble(true, d.Token.ReadOnly(), d.Delegation.ReadOnly())
	srv, _ := newTestServer(t, Config{Views: views.New(handleSource{set})})

	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/v1/store", nil))
}

func TestCertificateRouteValidatesID(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/certificates/abc", nil))
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/certificates/3", nil))
}

func TestRateLimitedRoutes(t *testing.T) {
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		LimitPublic: {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	srv, _ := newTestServer(t, Config{RateLimiter: limiter})

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/validators", nil))
	require.Equal(t, http.StatusTooManyRequests, getJSON(t, srv.URL+"/v1/validators", nil))
	// Account routes have their own bucket.
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/accounts/"+testAccount.Hex(), nil))
}

func TestMetricsRoute(t *testing.T) {
	obs := middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true, MetricsPrefix: "routes_test"}, nil)
	srv, _ := newTestServer(t, Config{Observability: obs})

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/validators", nil))
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/accounts/"+testAccount.Hex()+"/rewards", nil))
	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `routes_test_requests_total{method="GET",route="/v1/validators",status="200"} 1`)
	require.Contains(t, string(body), `routes_test_requests_total{method="GET",route="/v1/accounts/{address}/rewards",status="200"} 1`)
	require.NotContains(t, string(body), `route="root"`)
}
