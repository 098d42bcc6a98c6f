package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/marketwin/internal/adapters/httpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPrintsBuildInfo(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev (commit none")
}

func TestUnknownStorageDriverFailsWiring(t *testing.T) {
	t.Setenv("MW_STORAGE_DRIVER", "mongo")

	_, _, err := executeCLI(t, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestAccountCreateListAndShow(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home,
		"account", "create",
		"--id", "acc-1",
		"--name", "Corner Bakery",
		"--business-name", "Corner Bakery LLC",
		"--business-type", "bakery",
		"--plan", "local_boost",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created account Corner Bakery (acc-1) on plan local_boost")
	assert.FileExists(t, filepath.Join(home, ".marketwin", "accounts.toml"))

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "acc-1\tCorner Bakery\tlocal_boost\tactive")

	stdout, _, err = executeCLI(t, home, "account", "show", "acc-1", "--json")
	require.NoError(t, err)
	var shown accountOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, "Corner Bakery LLC", shown.BusinessName)
	assert.Empty(t, shown.ConnectedPlatforms)
}

func TestAccountCreateRejectsUnknownPlan(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "account", "create", "--name", "Shop", "--plan", "platinum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plan")
}

func TestAccountPlanChangesSubscription(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "free")

	stdout, _, err := executeCLI(t, home, "account", "plan", "acc-1", "--plan", "scale", "--status", "past_due")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Account acc-1 is on plan scale (past_due)")

	_, _, err = executeCLI(t, home, "account", "plan", "acc-1")
	require.Error(t, err)
}

func TestUsageRecordThenRemaining(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "local_boost")

	stdout, _, err := executeCLI(t, home, "usage", "record", "--account", "acc-1", "--feature", "aiContent")
	require.NoError(t, err)
	assert.Contains(t, stdout, "aiContent usage for account acc-1: 1 this period")

	stdout, _, err = executeCLI(t, home, "entitlement", "remaining", "--account", "acc-1", "--feature", "aiContent")
	require.NoError(t, err)
	assert.Equal(t, "9\n", stdout)

	stdout, _, err = executeCLI(t, home, "usage", "show", "--account", "acc-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Marketwin Plan Usage")
	assert.Contains(t, stdout, "1/10 used, 9 left")
}

func TestEntitlementCheckDeniesFreePlanAIContent(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "free")

	stdout, _, err := executeCLI(t, home, "entitlement", "check", "--account", "acc-1", "--feature", "aiContent", "--json")
	require.NoError(t, err)

	var decision decisionOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &decision))
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
	assert.Equal(t, "free", string(decision.Plan))

	stdout, _, err = executeCLI(t, home, "entitlement", "check", "--account", "acc-1", "--feature", "reviewsMonitored")
	require.NoError(t, err)
	assert.Contains(t, stdout, "reviewsMonitored on free: allowed, used 0 of 10, remaining 10")
}

func TestEntitlementRejectsUnknownFeature(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "free")

	_, _, err := executeCLI(t, home, "entitlement", "remaining", "--account", "acc-1", "--feature", "videoEditing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feature")
}

func TestConnectionConnectStatusDisconnect(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "scale")

	_, _, err := executeCLI(t, home,
		"connection", "connect",
		"--account", "acc-1",
		"--platform", "facebook",
		"--access-token", "fb-token",
		"--identifier", "page_id=12345",
	)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "connection", "status", "--account", "acc-1")
	require.NoError(t, err)
	assert.Regexp(t, `facebook\s+connected`, stdout)
	assert.Regexp(t, `twitter\s+not connected`, stdout)

	secrets, err := os.ReadDir(filepath.Join(home, ".marketwin", "secrets"))
	require.NoError(t, err)
	assert.NotEmpty(t, secrets)

	_, _, err = executeCLI(t, home, "connection", "disconnect", "--account", "acc-1", "--platform", "facebook")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "connection", "disconnect", "--account", "acc-1", "--platform", "facebook")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "connection", "status", "--account", "acc-1")
	require.NoError(t, err)
	assert.Regexp(t, `facebook\s+not connected`, stdout)
}

func TestConnectionConnectRequiresIdentifiers(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "scale")

	_, _, err := executeCLI(t, home,
		"connection", "connect",
		"--account", "acc-1",
		"--platform", "instagram",
		"--access-token", "ig-token",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business_id")
}

func TestConnectionLoginRequiresProviderConfig(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "scale")

	_, _, err := executeCLI(t, home, "connection", "login", "--account", "acc-1", "--platform", "tiktok")
	require.ErrorIs(t, err, errOAuthNotConfigured)
}

func TestDispatchPreviewShapesPerPlatform(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(),
		"dispatch", "preview",
		"--platform", "instagram,facebook",
		"--json",
		"Fresh croissants today #bakery #local",
	)
	require.NoError(t, err)

	var payloads []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &payloads))
	require.Len(t, payloads, 2)
	assert.Equal(t, "instagram", payloads[0]["platform"])
	assert.Equal(t, []any{"bakery", "local"}, payloads[0]["hashtags"])
	assert.Equal(t, "facebook", payloads[1]["platform"])
	assert.Equal(t, "Fresh croissants today #bakery #local", payloads[1]["content"])
}

func TestFeatureUseRunsWorkflowAndRecordsUsage(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-content", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"Two for one on sourdough"}`))
	}))
	defer server.Close()
	t.Setenv("MW_WORKFLOW_BASE_URL", server.URL)

	home := t.TempDir()
	createAccount(t, home, "acc-1", "local_boost")

	stdout, _, err := executeCLI(t, home,
		"feature", "use",
		"--account", "acc-1",
		"--feature", "aiContent",
		"--input", "topic=sourdough",
		"--json",
	)
	require.NoError(t, err)
	assert.Equal(t, "sourdough", received["topic"])
	assert.Equal(t, "acc-1", received["userId"])

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.EqualValues(t, 1, out["count"])
	assert.EqualValues(t, 9, out["remaining"])

	stdout, _, err = executeCLI(t, home, "entitlement", "remaining", "--account", "acc-1", "--feature", "aiContent")
	require.NoError(t, err)
	assert.Equal(t, "9\n", stdout)
}

func TestFeatureUseDeniedDoesNotCallWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("workflow must not be called for a denied feature")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	t.Setenv("MW_WORKFLOW_BASE_URL", server.URL)

	home := t.TempDir()
	createAccount(t, home, "acc-1", "free")

	_, _, err := executeCLI(t, home, "feature", "use", "--account", "acc-1", "--feature", "emailCampaigns")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestFeatureUseSocialPostsNeedsConnectedPlatform(t *testing.T) {
	home := t.TempDir()
	createAccount(t, home, "acc-1", "local_boost")

	_, _, err := executeCLI(t, home,
		"feature", "use",
		"--account", "acc-1",
		"--feature", "socialPosts",
		"--content", "Open late tonight",
		"--platform", "twitter",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twitter")
}

func TestAccountTokenIssuesVerifiableJWT(t *testing.T) {
	t.Setenv("MW_HTTP_JWT_SECRET", "cli-test-secret")
	home := t.TempDir()
	createAccount(t, home, "acc-1", "free")

	stdout, _, err := executeCLI(t, home, "account", "token", "acc-1", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := httpapi.ValidateToken(string(bytes.TrimSpace([]byte(stdout))), "cli-test-secret", time.Now)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", string(claims.AccountID))
	assert.False(t, claims.Admin)

	_, _, err = executeCLI(t, home, "account", "token")
	require.Error(t, err)
}

func createAccount(t *testing.T, home, id, plan string) {
	t.Helper()

	_, _, err := executeCLI(t, home, "account", "create", "--id", id, "--name", "Account "+id, "--plan", plan)
	require.NoError(t, err)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("MW_SECRETS_BACKEND", "file")
	t.Setenv("MW_LOG_LEVEL", "error")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
