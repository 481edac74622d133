package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyAccess(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, p.Validate())

	public := []string{
		"/", "/login", "/login/oauth2/code/github", "/perform_login", "/perform_logout",
		"/oauth2/authorization/github", "/oauth2/code/google",
		"/css/site.css", "/js/app.js", "/images/logo/small.png",
	}
	for _, path := range public {
		assert.Equal(t, Public, p.Access(path), "path %s", path)
	}

	protected := []string{"/home", "/admin", "/css.evil", "/loginx", "/api/v1/profile"}
	for _, path := range protected {
		assert.Equal(t, Authenticated, p.Access(path), "path %s", path)
	}
}

func TestRulesFirstMatchWins(t *testing.T) {
	p := DefaultPolicy()
	p.Rules = []Rule{
		{Pattern: "/docs/private/**", Access: Authenticated},
		{Pattern: "/docs/**", Access: Public},
	}
	assert.Equal(t, Public, p.Access("/docs/index.html"))
	assert.Equal(t, Authenticated, p.Access("/docs/private/plan.html"))
}

func TestValidate(t *testing.T) {
	p := DefaultPolicy()
	p.Rules = append(p.Rules, Rule{Pattern: "/broken/[a", Access: Public})
	assert.ErrorContains(t, p.Validate(), "invalid pattern")

	p = DefaultPolicy()
	p.Rules = []Rule{{Pattern: "css/**", Access: Public}}
	assert.ErrorContains(t, p.Validate(), "must start with /")

	p = DefaultPolicy()
	p.Logout.URL = ""
	assert.ErrorContains(t, p.Validate(), "logout url")
}

func TestAccessString(t *testing.T) {
	assert.Equal(t, "public", Public.String())
	assert.Equal(t, "authenticated", Authenticated.String())
}

func staticResolver(auth *identity.Authentication) AuthenticationResolver {
	return ResolverFunc(func(r *http.Request) (*identity.Authentication, error) {
		return auth, nil
	})
}

func TestFilter(t *testing.T) {
	var seen *identity.Authentication
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = identity.GetAuthentication(r.Context())
		w.Write([]byte("page"))
	})

	p := DefaultPolicy()

	t.Run("public without session", func(t *testing.T) {
		handler := p.Filter(staticResolver(nil), logger.Nil, next)
		for _, path := range []string{"/login", "/css/site.css", "/oauth2/code/github"} {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
			assert.Equal(t, "page", w.Body.String())
			assert.Equal(t, identity.AnonymousUser, seen.Name())
			assert.False(t, seen.Authenticated)
		}
	})

	t.Run("protected without session", func(t *testing.T) {
		handler := p.Filter(staticResolver(nil), logger.Nil, next)
		for _, path := range []string{"/home", "/anything/else"} {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			assert.Equal(t, http.StatusFound, w.Code, "path %s", path)
			assert.Equal(t, "/login", w.Header().Get("Location"))
		}
	})

	t.Run("protected with session", func(t *testing.T) {
		auth := &identity.Authentication{Principal: &identity.CredentialsIdentity{Username: "bob"}, Authorities: []string{"ROLE_USER"}, Authenticated: true}
		handler := p.Filter(staticResolver(auth), logger.Nil, next)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/home", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Same(t, auth, seen)
	})

	t.Run("resolver error is anonymous", func(t *testing.T) {
		failing := ResolverFunc(func(r *http.Request) (*identity.Authentication, error) {
			return nil, assert.AnError
		})
		handler := p.Filter(failing, logger.Nil, next)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/home", nil))
		assert.Equal(t, http.StatusFound, w.Code)
	})
}
