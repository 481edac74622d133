package server

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/oauth"
	"github.com/ccontavalli/webauth/lib/oauth/oform"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newIdentityProvider returns an oauth2 provider logging in everyone as Alice.
func newIdentityProvider(t *testing.T) *oauth.Provider {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token":"token","token_type":"bearer","expires_in":3600,"scope":"profile email"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub":"alice-1","name":"Alice","email":"a@x.com","given_name":"Alice","family_name":"Liddell"}`))
	})
	idp := httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	return &oauth.Provider{
		ID:          "fake",
		DisplayName: "Fake IdP",
		Config: oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: idp.URL + "/authorize", TokenURL: idp.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       []string{"profile", "email"},
		},
		NameAttribute:    "sub",
		SubjectAttribute: "sub",
		Verifiers:        []oauth.VerifierFactory{oauth.NewUserInfoVerifierFactory(idp.URL + "/userinfo")},
	}
}

type testApp struct {
	*httptest.Server
	client  *http.Client
	metrics *Metrics
}

func newTestApp(t *testing.T) *testApp {
	extractor, err := oauth.NewExtractor(session.NewMemory(), []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	directory, err := oform.NewStaticDirectory(oform.User{Name: "bob", Password: "{noop}secret"})
	require.NoError(t, err)
	federation, err := oauth.NewFederation(extractor, []*oauth.Provider{newIdentityProvider(t)})
	require.NoError(t, err)

	metrics := NewMetrics()
	srv, err := New(extractor, directory, WithFederation(federation), WithMetrics(metrics), WithLogger(logger.Nil))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{Server: ts, client: client, metrics: metrics}
}

// do sends a request, and returns the status, the redirect location and the body.
func (app *testApp) do(t *testing.T, method, path string, form url.Values) (int, string, string) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, app.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := app.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(data)
}

func (app *testApp) get(t *testing.T, path string) (int, string, string) {
	return app.do(t, http.MethodGet, path, nil)
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)

	status, location, _ := app.get(t, "/")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login", location)

	status, _, body := app.get(t, "/login")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `action="/perform_login"`)
	assert.Contains(t, body, `href="/oauth2/authorization/fake"`)
	assert.Contains(t, body, "Fake IdP")
	assert.NotContains(t, body, "banner error")

	resp, err := app.client.Get(app.URL + "/css/site.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")

	status, _, _ = app.get(t, "/images/logo.svg")
	assert.Equal(t, http.StatusOK, status)
}

func TestProtectedPagesRedirect(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/home", "/admin", "/home/settings"} {
		status, location, _ := app.get(t, path)
		assert.Equal(t, http.StatusFound, status, "path %s", path)
		assert.Equal(t, "/login", location, "path %s", path)
	}
}

func TestFormLoginAndLogout(t *testing.T) {
	app := newTestApp(t)

	status, location, _ := app.do(t, http.MethodPost, "/perform_login", url.Values{"username": {"bob"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login?error=true", location)
	_, _, body := app.get(t, location)
	assert.Contains(t, body, "banner error")

	status, location, _ = app.do(t, http.MethodPost, "/perform_login", url.Values{"username": {"bob"}, "password": {"secret"}})
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/home", location)

	status, _, body = app.get(t, "/home")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Welcome, bob")
	assert.Contains(t, body, "ROLE_USER")
	assert.Contains(t, body, "No provider attributes")

	appURL, err := url.Parse(app.URL)
	require.NoError(t, err)
	stolen := app.client.Jar.Cookies(appURL)
	require.NotEmpty(t, stolen)

	status, location, _ = app.do(t, http.MethodPost, "/perform_logout", url.Values{})
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login?logout=true", location)
	_, _, body = app.get(t, location)
	assert.Contains(t, body, "logged out")

	status, location, _ = app.get(t, "/home")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login", location)

	// Replaying the session cookie after logout does not bring the session back.
	req, err := http.NewRequest(http.MethodGet, app.URL+"/home", nil)
	require.NoError(t, err)
	for _, cookie := range stolen {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("form", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("form", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logouts))
}

func TestOAuth2Login(t *testing.T) {
	app := newTestApp(t)

	status, location, _ := app.get(t, "/oauth2/authorization/fake")
	require.Equal(t, http.StatusTemporaryRedirect, status)
	authorize, err := url.Parse(location)
	require.NoError(t, err)
	assert.Equal(t, app.URL+"/oauth2/code/fake", authorize.Query().Get("redirect_uri"))

	callback := "/oauth2/code/fake?code=good-code&state=" + url.QueryEscape(authorize.Query().Get("state"))
	status, location, _ = app.get(t, callback)
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/home", location)

	status, _, body := app.get(t, "/home")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Welcome, Alice")
	assert.Contains(t, body, "a@x.com")
	assert.Contains(t, body, "Liddell")
	assert.Contains(t, body, "SCOPE_profile")
	assert.Contains(t, body, "<th>sub</th>")

	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("fake", "success")))
}

func TestOAuth2LoginFailures(t *testing.T) {
	app := newTestApp(t)

	status, location, _ := app.get(t, "/oauth2/code/fake?error=access_denied")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login?error=true", location)

	// A callback with no login in progress.
	status, location, _ = app.get(t, "/oauth2/code/fake?code=good-code&state=whatever")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login?error=true", location)

	status, location, _ = app.get(t, "/oauth2/authorization/nope")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login?error=true", location)

	status, location, _ = app.get(t, "/home")
	assert.Equal(t, http.StatusFound, status)
	assert.Equal(t, "/login", location)

	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("fake", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("fake", "invalid_state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(app.metrics.logins.WithLabelValues("unknown", "error")))
}

func TestTemplates(t *testing.T) {
	_, err := ParseTemplates(map[string][]byte{"broken.html": []byte("{{if}}")})
	assert.ErrorContains(t, err, "broken.html")

	templates, err := DefaultTemplates()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	assert.Error(t, templates.Render(w, "missing.html", nil))
	assert.Equal(t, 0, w.Body.Len())
}
