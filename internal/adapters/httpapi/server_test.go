package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/marketwin/internal/adapters/metrics"
	"github.com/bnema/marketwin/internal/adapters/repo/memory"
	"github.com/bnema/marketwin/internal/adapters/secrets/file"
	"github.com/bnema/marketwin/internal/application"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/bnema/marketwin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type apiFixture struct {
	server   *Server
	accounts *application.AccountService
	executor *mocks.MockFeatureExecutor
}

func newAPIFixture(t *testing.T, opts ...Option) *apiFixture {
	t.Helper()

	repo := memory.NewRepository()
	catalog := domain.DefaultPlanCatalog()
	clock := ports.SystemClock{}
	period := domain.MonthlyPeriod{}

	ledger := application.NewLedger(repo, clock, period)
	evaluator := application.NewEvaluator(catalog, repo, ledger)
	registry := application.NewConnectionRegistry(repo, file.NewStore(t.TempDir()), clock)
	adapter := application.NewDispatchAdapter()
	executor := mocks.NewMockFeatureExecutor(t)
	accounts := application.NewAccountService(repo, catalog, clock, period)

	opts = append([]Option{WithMetrics(metrics.New(nil))}, opts...)
	server, err := New(Deps{
		Accounts:  accounts,
		Evaluator: evaluator,
		Registry:  registry,
		Gateway:   application.NewGateway(evaluator, ledger, registry, adapter, executor),
		Adapter:   adapter,
	}, testSecret, opts...)
	require.NoError(t, err)

	return &apiFixture{server: server, accounts: accounts, executor: executor}
}

func (f *apiFixture) createAccount(t *testing.T, id domain.AccountID, plan domain.PlanID) {
	t.Helper()

	_, err := f.accounts.CreateAccount(context.Background(), application.CreateAccountCommand{ID: id, Name: "Shop " + string(id), Plan: plan})
	require.NoError(t, err)
}

func token(t *testing.T, id domain.AccountID, admin bool) string {
	t.Helper()

	raw, err := IssueToken(testSecret, id, admin, time.Hour, time.Now())
	require.NoError(t, err)
	return raw
}

func (f *apiFixture) do(t *testing.T, method, path, bearer, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestNewRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, "")
	require.Error(t, err)
}

func TestServerAuthentication(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.createAccount(t, "acc-1", domain.PlanFree)
	f.createAccount(t, "acc-2", domain.PlanFree)

	rec, _ := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/v1/accounts/acc-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["error"])

	rec, _ = f.do(t, http.MethodGet, "/v1/accounts/acc-1", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := IssueToken(testSecret, "acc-1", false, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	rec, _ = f.do(t, http.MethodGet, "/v1/accounts/acc-1", expired, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/v1/accounts/acc-1", token(t, "acc-2", false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["error"])

	rec, body = f.do(t, http.MethodGet, "/v1/accounts/acc-1", token(t, "acc-1", false), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc-1", body["id"])
	assert.Equal(t, "free", body["plan"])

	rec, _ = f.do(t, http.MethodGet, "/v1/accounts", token(t, "acc-1", false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServerAdminManagesAccounts(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	admin := token(t, "", true)

	rec, body := f.do(t, http.MethodPost, "/v1/accounts", admin, `{"id":"bakery","name":"Rosa's Bakery","plan":"local_boost","business_type":"bakery"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "local_boost", body["plan"])
	assert.Equal(t, "active", body["status"])

	rec, body = f.do(t, http.MethodPost, "/v1/accounts", admin, `{"id":"bakery","name":"Again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["error"])

	rec, body = f.do(t, http.MethodPost, "/v1/accounts", admin, `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/v1/accounts", admin, `{"name":"X","plan":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodPut, "/v1/accounts/bakery/subscription", admin, `{"plan":"scale","status":"past_due"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "scale", body["plan"])
	assert.Equal(t, "past_due", body["status"])

	rec, _ = f.do(t, http.MethodPut, "/v1/accounts/bakery/subscription", token(t, "bakery", false), `{"plan":"enterprise"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/v1/accounts/ghost", admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerUseFeature(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.createAccount(t, "free", domain.PlanFree)
	f.createAccount(t, "boost", domain.PlanLocalBoost)

	rec, body := f.do(t, http.MethodPost, "/v1/accounts/free/features/aiContent", token(t, "free", false), `{}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", body["error"])
	assert.Equal(t, "aiContent", body["feature"])
	assert.Equal(t, float64(0), body["remaining"])

	f.executor.EXPECT().
		Execute(mock.Anything, mock.MatchedBy(func(req ports.FeatureRequest) bool {
			return req.AccountID == "boost" && req.Input["tone"] == "warm"
		})).
		Return(ports.FeatureResult{Output: map[string]any{"text": "hello"}}, nil).
		Once()

	rec, body = f.do(t, http.MethodPost, "/v1/accounts/boost/features/aiContent", token(t, "boost", false), `{"input":{"tone":"warm"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(9), body["remaining"])

	rec, body = f.do(t, http.MethodGet, "/v1/accounts/boost/entitlements/aiContent", token(t, "boost", false), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "10", body["quota"])
	assert.Equal(t, float64(1), body["used"])

	rec, _ = f.do(t, http.MethodGet, "/v1/accounts/boost/entitlements/videoEdits", token(t, "boost", false), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/v1/accounts/boost/features/socialPosts", token(t, "boost", false), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/v1/accounts/boost/summary", token(t, "boost", false), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local_boost", body["plan"])
	assert.Len(t, body["features"], 4)
}

func TestServerConnectionsAndPublish(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.createAccount(t, "shop", domain.PlanGrowthAccelerator)
	bearer := token(t, "shop", false)

	rec, body := f.do(t, http.MethodPost, "/v1/accounts/shop/posts", bearer, `{"content":"Great sale! #sale","platforms":["instagram"]}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PLATFORM_NOT_CONNECTED", body["error"])
	assert.Equal(t, "instagram", body["platform"])

	rec, _ = f.do(t, http.MethodPut, "/v1/accounts/shop/connections/instagram", bearer, `{"access_token":"ig"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/v1/accounts/shop/connections/instagram", bearer, `{"access_token":"ig","identifiers":{"business_id":"b-1"}}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	f.executor.EXPECT().Execute(mock.Anything, mock.Anything).Return(ports.FeatureResult{}, nil).Once()

	rec, body = f.do(t, http.MethodPost, "/v1/accounts/shop/posts", bearer, `{"content":"Great sale! #sale","platforms":["instagram"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(99), body["remaining"])
	payloads, ok := body["payloads"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payloads, "instagram")

	rec, _ = f.do(t, http.MethodPost, "/v1/accounts/shop/posts", bearer, `{"content":"hi","platforms":["myspace"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/v1/accounts/shop/connections/instagram", bearer, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/v1/accounts/shop/connections/instagram", bearer, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/shop/connections", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	statusRec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(statusRec, req)
	require.Equal(t, http.StatusOK, statusRec.Code)

	var statuses []application.ConnectionStatus
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &statuses))
	require.Len(t, statuses, len(domain.Platforms()))
	for _, status := range statuses {
		assert.False(t, status.Connected, status.Platform)
	}
}

func TestServerDispatchPreview(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/dispatch/preview", strings.NewReader(`{"content":"Great sale! #sale #local","platforms":["twitter","tiktok"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, "anyone", false))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payloads []domain.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payloads))
	require.Len(t, payloads, 2)
	assert.Equal(t, domain.PlatformTwitter, payloads[0].Platform)
	assert.Equal(t, []string{"sale", "local"}, payloads[1].Hashtags)

	rec2, body := f.do(t, http.MethodPost, "/v1/dispatch/preview", token(t, "anyone", false), `{"content":"","platforms":["twitter"]}`)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
	assert.Equal(t, "validation_error", body["error"])
}

func TestServerRateLimitsByPlan(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, WithPlanLimits(map[domain.PlanID]PlanLimit{
		domain.PlanFree: {RequestsPerMinute: 1, Burst: 2},
	}))
	f.createAccount(t, "acc-1", domain.PlanFree)
	bearer := token(t, "acc-1", false)

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodGet, "/v1/accounts/acc-1", bearer, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := f.do(t, http.MethodGet, "/v1/accounts/acc-1", bearer, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", body["error"])
}

func TestServerServesMetrics(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	_, _ = f.do(t, http.MethodGet, "/healthz", "", "")

	rec, _ := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `marketwin_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}
