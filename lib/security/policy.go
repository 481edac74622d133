// Package security decides which requests need an authenticated user.
//
// A Policy is pure configuration: an ordered list of route rules, plus the
// endpoints used to log in and out. The Filter middleware applies it to every
// request, before any handler runs.
package security

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Access is the requirement a rule puts on a request.
type Access int

const (
	// Authenticated requests must carry a valid session.
	Authenticated Access = iota
	// Public requests are served to anyone.
	Public
)

func (a Access) String() string {
	switch a {
	case Authenticated:
		return "authenticated"
	case Public:
		return "public"
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// Rule tags all the paths matching Pattern with an Access.
//
// Patterns are globs where * matches within a path segment and ** matches
// any number of segments, eg "/css/**".
type Rule struct {
	Pattern string
	Access  Access
}

// FormLogin configures username and password login.
type FormLogin struct {
	// LoginPage is where users are sent when they need to authenticate.
	LoginPage string
	// ProcessingURL receives the POST with the credentials.
	ProcessingURL string
	SuccessURL    string
	FailureURL    string
}

// OAuth2Login configures login through federated identity providers.
type OAuth2Login struct {
	LoginPage string
	// AuthorizationPrefix followed by the provider id starts the login, eg /oauth2/authorization/github.
	AuthorizationPrefix string
	// CallbackPrefix followed by the provider id is the redirect URL registered with the provider.
	CallbackPrefix string
	SuccessURL     string
	FailureURL     string
}

// Logout configures how sessions are terminated.
type Logout struct {
	URL               string
	SuccessURL        string
	InvalidateSession bool
	// ClearAuthentication removes the authentication from the current request too.
	ClearAuthentication bool
}

type Policy struct {
	// Rules are evaluated in order, the first matching rule wins.
	// Paths matching no rule require authentication.
	Rules []Rule

	FormLogin   FormLogin
	OAuth2Login OAuth2Login
	Logout      Logout
}

// DefaultPolicy returns the policy of the web application.
func DefaultPolicy() *Policy {
	return &Policy{
		Rules: PublicRules("/", "/login/**", "/perform_login", "/oauth2/**", "/css/**", "/js/**", "/images/**"),
		FormLogin: FormLogin{
			LoginPage:     "/login",
			ProcessingURL: "/perform_login",
			SuccessURL:    "/home",
			FailureURL:    "/login?error=true",
		},
		OAuth2Login: OAuth2Login{
			LoginPage:           "/login",
			AuthorizationPrefix: "/oauth2/authorization/",
			CallbackPrefix:      "/oauth2/code/",
			SuccessURL:          "/home",
			FailureURL:          "/login?error=true",
		},
		Logout: Logout{
			URL:                 "/perform_logout",
			SuccessURL:          "/login?logout=true",
			InvalidateSession:   true,
			ClearAuthentication: true,
		},
	}
}

// PublicRules returns a Public rule for each pattern.
func PublicRules(patterns ...string) []Rule {
	rules := make([]Rule, 0, len(patterns))
	for _, pattern := range patterns {
		rules = append(rules, Rule{Pattern: pattern, Access: Public})
	}
	return rules
}

// Validate returns an error if the policy cannot be enforced.
func (p *Policy) Validate() error {
	for ix, rule := range p.Rules {
		if !strings.HasPrefix(rule.Pattern, "/") {
			return fmt.Errorf("rule#%d: %s - pattern must start with /", ix, rule.Pattern)
		}
		if !doublestar.ValidatePattern(rule.Pattern) {
			return fmt.Errorf("rule#%d: %s - invalid pattern", ix, rule.Pattern)
		}
	}

	endpoints := map[string]string{
		"form login page":           p.FormLogin.LoginPage,
		"form login processing url": p.FormLogin.ProcessingURL,
		"form login success url":    p.FormLogin.SuccessURL,
		"form login failure url":    p.FormLogin.FailureURL,
		"oauth2 authorization url":  p.OAuth2Login.AuthorizationPrefix,
		"oauth2 callback url":       p.OAuth2Login.CallbackPrefix,
		"oauth2 success url":        p.OAuth2Login.SuccessURL,
		"oauth2 failure url":        p.OAuth2Login.FailureURL,
		"logout url":                p.Logout.URL,
		"logout success url":        p.Logout.SuccessURL,
	}
	for name, endpoint := range endpoints {
		if !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must be an absolute path, got %q", name, endpoint)
		}
	}
	return nil
}

// Access classifies a request path.
func (p *Policy) Access(path string) Access {
	for _, permitted := range p.permitted() {
		if path == permitted {
			return Public
		}
	}

	for _, rule := range p.Rules {
		if matched, _ := doublestar.Match(rule.Pattern, path); matched {
			return rule.Access
		}
	}
	return Authenticated
}

// IsPublic returns true if path can be served without authentication.
func (p *Policy) IsPublic(path string) bool {
	return p.Access(path) == Public
}

// permitted returns the login and logout endpoints, always reachable.
func (p *Policy) permitted() []string {
	return []string{
		p.FormLogin.LoginPage,
		p.FormLogin.ProcessingURL,
		pathOf(p.FormLogin.FailureURL),
		p.OAuth2Login.LoginPage,
		pathOf(p.OAuth2Login.FailureURL),
		p.Logout.URL,
		pathOf(p.Logout.SuccessURL),
	}
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}
