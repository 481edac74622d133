// Package server implements the web application: the login page, the
// profile page, and the endpoints logging users in and out.
package server

import (
	"fmt"
	"net/http"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/khttp/kassets"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/oauth"
	"github.com/ccontavalli/webauth/lib/oauth/oform"
	"github.com/ccontavalli/webauth/lib/security"
	"github.com/kataras/muxie"
)

type Server struct {
	policy     *security.Policy
	extractor  *oauth.Extractor
	form       *oform.Authenticator
	federation *oauth.Federation
	templates  *Templates
	metrics    *Metrics
	log        logger.Logger
}

type Options struct {
	Policy     *security.Policy
	Federation *oauth.Federation
	Templates  *Templates
	Metrics    *Metrics
	Log        logger.Logger
}

type Modifier func(*Options)

func WithPolicy(policy *security.Policy) Modifier {
	return func(o *Options) {
		o.Policy = policy
	}
}

// WithFederation enables login with the providers of federation.
func WithFederation(federation *oauth.Federation) Modifier {
	return func(o *Options) {
		o.Federation = federation
	}
}

func WithTemplates(templates *Templates) Modifier {
	return func(o *Options) {
		o.Templates = templates
	}
}

func WithMetrics(metrics *Metrics) Modifier {
	return func(o *Options) {
		o.Metrics = metrics
	}
}

func WithLogger(log logger.Logger) Modifier {
	return func(o *Options) {
		o.Log = log
	}
}

// New creates a Server storing sessions with extractor, and checking passwords with directory.
func New(extractor *oauth.Extractor, directory oform.UserDirectory, mods ...Modifier) (*Server, error) {
	options := &Options{
		Policy: security.DefaultPolicy(),
		Log:    logger.Nil,
	}
	for _, m := range mods {
		m(options)
	}

	if err := options.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid security policy - %w", err)
	}
	if options.Templates == nil {
		templates, err := DefaultTemplates()
		if err != nil {
			return nil, err
		}
		options.Templates = templates
	}
	if options.Metrics == nil {
		options.Metrics = NewMetrics()
	}
	if options.Federation == nil {
		federation, err := oauth.NewFederation(extractor, nil)
		if err != nil {
			return nil, err
		}
		options.Federation = federation
	}

	return &Server{
		policy:     options.Policy,
		extractor:  extractor,
		form:       oform.NewAuthenticator(extractor, directory, oform.WithLoginPage(options.Policy.FormLogin.LoginPage)),
		federation: options.Federation,
		templates:  options.Templates,
		metrics:    options.Metrics,
		log:        options.Log,
	}, nil
}

// Handler returns the http handler of the application, with the security policy enforced.
func (s *Server) Handler() http.Handler {
	p := s.policy
	mux := muxie.NewMux()

	mux.Handle("/", muxie.Methods().HandleFunc(http.MethodGet, s.index))
	mux.Handle(p.FormLogin.LoginPage, muxie.Methods().HandleFunc(http.MethodGet, s.login))
	mux.Handle("/home", muxie.Methods().HandleFunc(http.MethodGet, oauth.WithAuthentication(s.home)))

	mux.Handle(p.FormLogin.ProcessingURL, muxie.Methods().HandleFunc(http.MethodPost,
		oauth.AuthHandler(s.form, s.log, p.FormLogin.SuccessURL, p.FormLogin.FailureURL, s.metrics.LoginObserver("form"))))
	mux.Handle(p.OAuth2Login.AuthorizationPrefix+":provider", muxie.Methods().HandleFunc(http.MethodGet, s.authorize))
	mux.Handle(p.OAuth2Login.CallbackPrefix+":provider", muxie.Methods().HandleFunc(http.MethodGet, s.callback))
	mux.Handle(p.Logout.URL, muxie.Methods().HandleFunc(http.MethodPost,
		oauth.LogoutHandler(s.extractor, s.log, p.Logout.SuccessURL, s.metrics.LogoutObserver())))

	kassets.RegisterAssets(StaticAssets(), kassets.MuxMapper(mux))
	return p.Filter(s.extractor, s.log, mux)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.policy.FormLogin.LoginPage, http.StatusFound)
}

type providerLink struct {
	ID   string
	Name string
	URL  string
}

type loginPage struct {
	Title         string
	Error         bool
	Logout        bool
	ProcessingURL string
	Providers     []providerLink
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := loginPage{
		Title:         "Sign in",
		Error:         query.Has("error"),
		Logout:        query.Has("logout"),
		ProcessingURL: s.policy.FormLogin.ProcessingURL,
	}
	for _, provider := range s.federation.Providers() {
		page.Providers = append(page.Providers, providerLink{
			ID:   provider.ID,
			Name: provider.DisplayName,
			URL:  s.policy.OAuth2Login.AuthorizationPrefix + provider.ID,
		})
	}
	s.render(w, "login.html", page)
}

type homePage struct {
	Title     string
	Profile   Profile
	LogoutURL string
}

func (s *Server) home(w http.ResponseWriter, r *http.Request, auth *identity.Authentication) {
	s.render(w, "home.html", homePage{
		Title:     "Profile",
		Profile:   BuildProfile(auth),
		LogoutURL: s.policy.Logout.URL,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates.Render(w, name, data); err != nil {
		s.log.Errorf("could not render %s - %s", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// provider returns the authenticator named in the url, or sends the user to the failure page.
func (s *Server) provider(w http.ResponseWriter, r *http.Request) (*oauth.Authenticator, bool) {
	id := muxie.GetParam(w, "provider")
	authenticator, found := s.federation.Get(id)
	if !found {
		s.log.Warnf("login requested with unknown provider %q", id)
		s.metrics.Login("unknown", fmt.Errorf("unknown provider %q", id))
		http.Redirect(w, r, s.policy.OAuth2Login.FailureURL, http.StatusFound)
	}
	return authenticator, found
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	authenticator, found := s.provider(w, r)
	if !found {
		return
	}
	oauth.LoginHandler(authenticator, s.log, s.policy.OAuth2Login.FailureURL)(w, r)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	authenticator, found := s.provider(w, r)
	if !found {
		return
	}
	oauth.AuthHandler(authenticator, s.log, s.policy.OAuth2Login.SuccessURL, s.policy.OAuth2Login.FailureURL,
		s.metrics.LoginObserver(authenticator.Provider().ID))(w, r)
}
