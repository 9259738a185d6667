package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvera/ojt-core/config"
)

func (e *testEnv) portal(path, login string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if login != "" {
		req.SetBasicAuth(login, "secret")
	}
	return e.do(req)
}

func TestPortal_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.portal("/my/ojt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `Basic realm="OJT Portal"`)

	req := httptest.NewRequest(http.MethodGet, "/my/ojt", nil)
	req.SetBasicAuth("ayu", "wrong")
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPortal_DashboardShowsOwnRecords(t *testing.T) {
	env := newTestEnv(t)
	backend := env.ongoingBatch("Backend")
	frontend := env.ongoingBatch("Frontend")
	env.enroll(backend, "p-ayu", "Ayu")
	env.enroll(frontend, "p-ayu", "Ayu")
	env.enroll(backend, "p-budi", "Budi")

	rec := env.portal("/my/ojt", "ayu")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ayu — Backend")
	assert.Contains(t, body, "Ayu — Frontend")
	assert.NotContains(t, body, "Budi")
	assert.Contains(t, body, "Page 1 of 1 (2 records)")
}

func TestPortal_ParticipantDetail(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	ayu := env.enroll(b, "p-ayu", "Ayu")
	budi := env.enroll(b, "p-budi", "Budi")
	env.session(b, "Kickoff", t0, "")

	rec := env.portal("/my/ojt/participant/"+ayu.ID+"?ret=/my/ojt?page=1", "ayu")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ayu — Backend")
	assert.NotContains(t, body, "No attendance records.")
	assert.Contains(t, body, `href="/my/ojt?page=1"`)

	rec = env.portal("/my/ojt/participant/"+budi.ID, "ayu")
	assert.Equal(t, http.StatusNotFound, rec.Code, "other partners' records read as missing")

	rec = env.portal("/my/ojt/participant/"+budi.ID, "staff")
	assert.Equal(t, http.StatusOK, rec.Code, "internal users see every record")

	rec = env.portal("/my/ojt/participant/missing", "ayu")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortal_ReturnLinkIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	b := env.ongoingBatch("Backend")
	ayu := env.enroll(b, "p-ayu", "Ayu")

	rec := env.portal("/my/ojt/participant/"+ayu.ID+"?ret=https://evil.example.com", "ayu")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "evil.example.com")
	assert.Contains(t, rec.Body.String(), `href="/my/ojt"`)
}

func TestPortal_Disabled(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.features.DisableFeature(config.FeaturePortal))

	rec := env.portal("/my/ojt", "ayu")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.features.SetPartnerOverride("p-budi", config.FeaturePortal, true)
	rec = env.portal("/my/ojt", "budi")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSafeReturn(t *testing.T) {
	tests := map[string]string{
		"":                    "/my/ojt",
		"/my/ojt?page=3":      "/my/ojt?page=3",
		"//evil.example.com":  "/my/ojt",
		`/\evil.example.com`:  "/my/ojt",
		"https://example.com": "/my/ojt",
		"relative/path":       "/my/ojt",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeReturn(in), in)
	}
}

func TestPortalPageURL(t *testing.T) {
	assert.Equal(t, "/my/ojt", portalPageURL(1))
	assert.Equal(t, "/my/ojt?page=4", portalPageURL(4))
}
