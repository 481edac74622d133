package oauth

import (
	"context"
	"fmt"
	"slices"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/microsoft"
)

const (
	GoogleIssuer      = "https://accounts.google.com"
	MicrosoftLogin    = "https://login.microsoftonline.com/"
	MicrosoftUserInfo = "https://graph.microsoft.com/oidc/userinfo"
)

// Provider describes an oauth2 identity provider.
type Provider struct {
	// ID is used in URLs, eg /oauth2/authorization/<id>.
	ID string
	// DisplayName is shown to users on the login page.
	DisplayName string
	// Config is the oauth2 configuration. An empty RedirectURL is computed from each request.
	Config oauth2.Config
	// NameAttribute is the claim naming the user.
	NameAttribute string
	// SubjectAttribute is the claim uniquely identifying the user.
	SubjectAttribute string
	Verifiers        []VerifierFactory
}

// OIDC returns true if logins through the provider are OpenID Connect logins.
func (p *Provider) OIDC() bool {
	return slices.Contains(p.Config.Scopes, oidc.ScopeOpenID)
}

// Google returns a provider logging users in with their Google account.
//
// The endpoints are discovered from the Google issuer, which requires network access.
func Google(ctx context.Context, clientID, clientSecret string) (*Provider, error) {
	return OIDC(ctx, "google", "Google", GoogleIssuer, clientID, clientSecret)
}

// GitHub returns a provider logging users in with their GitHub account.
func GitHub(clientID, clientSecret string) *Provider {
	return &Provider{
		ID:          "github",
		DisplayName: "GitHub",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user"},
		},
		NameAttribute:    "id",
		SubjectAttribute: "id",
		Verifiers: []VerifierFactory{
			NewGitHubUserVerifierFactory(""),
			NewOptionalVerifierFactory(NewGitHubEmailVerifierFactory("")),
		},
	}
}

// Microsoft returns a provider logging users in with a Microsoft account of tenant.
//
// Use "common" as tenant to accept both personal and organizational accounts.
// The id_token signing keys are fetched when the first login completes.
func Microsoft(ctx context.Context, tenant, clientID, clientSecret string) *Provider {
	return &Provider{
		ID:          "microsoft",
		DisplayName: "Microsoft",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "User.Read"},
		},
		NameAttribute:    "sub",
		SubjectAttribute: "sub",
		Verifiers: []VerifierFactory{
			MicrosoftIDTokenVerifierFactory(ctx, tenant, clientID),
			NewOptionalVerifierFactory(NewUserInfoVerifierFactory(MicrosoftUserInfo)),
		},
	}
}

// MicrosoftIssuer returns the id_token issuer of a Microsoft tenant.
func MicrosoftIssuer(tenant string) string {
	return MicrosoftLogin + tenant + "/v2.0"
}

// MicrosoftIDTokenVerifierFactory checks id_tokens issued for tenant.
//
// The multi tenant endpoints (common, organizations, consumers) issue tokens
// from the tenant of each user: the issuer is checked against the tid claim.
func MicrosoftIDTokenVerifierFactory(ctx context.Context, tenant, clientID string) VerifierFactory {
	keys := oidc.NewRemoteKeySet(ctx, MicrosoftLogin+tenant+"/discovery/v2.0/keys")
	config := &oidc.Config{ClientID: clientID}

	var issuer func(identity.Claims) string
	switch tenant {
	case "common", "organizations", "consumers":
		config.SkipIssuerCheck = true
		issuer = microsoftTenantIssuer
	}
	verifier := oidc.NewVerifier(MicrosoftIssuer(tenant), keys, config)

	return func(conf *oauth2.Config) (Verifier, error) {
		return &IDTokenVerifier{verifier: verifier, issuer: issuer}, nil
	}
}

func microsoftTenantIssuer(claims identity.Claims) string {
	tid, _ := claims.String("tid")
	return MicrosoftIssuer(tid)
}

// OIDC returns a provider for a generic OpenID Connect issuer, using discovery.
func OIDC(ctx context.Context, id, name, issuer, clientID, clientSecret string) (*Provider, error) {
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("could not discover oidc provider %s - %w", issuer, err)
	}

	verifiers := []VerifierFactory{
		NewIDTokenVerifierFactory(discovered.Verifier(&oidc.Config{ClientID: clientID})),
	}

	var endpoints struct {
		UserInfo string `json:"userinfo_endpoint"`
	}
	if err := discovered.Claims(&endpoints); err == nil && endpoints.UserInfo != "" {
		verifiers = append(verifiers, NewOptionalVerifierFactory(NewOIDCUserInfoVerifierFactory(discovered)))
	}

	return &Provider{
		ID:          id,
		DisplayName: name,
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     discovered.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		NameAttribute:    "sub",
		SubjectAttribute: "sub",
		Verifiers:        verifiers,
	}, nil
}

// ClientFlags are the credentials of the application registered with a provider.
type ClientFlags struct {
	ClientID     string
	ClientSecret string
}

func (cf *ClientFlags) Register(set kflags.FlagSet, prefix, name string) *ClientFlags {
	set.StringVar(&cf.ClientID, prefix+"client-id", cf.ClientID, "Client id of the application registered with "+name+" - enables login with "+name)
	set.StringVar(&cf.ClientSecret, prefix+"client-secret", cf.ClientSecret, "Client secret of the application registered with "+name)
	return cf
}

type Flags struct {
	Google    ClientFlags
	GitHub    ClientFlags
	Microsoft ClientFlags
	OIDC      ClientFlags

	MicrosoftTenant string
	OIDCIssuer      string
	OIDCName        string
}

func DefaultFlags() *Flags {
	return &Flags{
		MicrosoftTenant: "common",
		OIDCName:        "Single Sign On",
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	f.Google.Register(set, prefix+"google-", "Google")
	f.GitHub.Register(set, prefix+"github-", "GitHub")
	f.Microsoft.Register(set, prefix+"microsoft-", "Microsoft")
	f.OIDC.Register(set, prefix+"oidc-", "the OIDC issuer")

	set.StringVar(&f.MicrosoftTenant, prefix+"microsoft-tenant", f.MicrosoftTenant, "Microsoft tenant accepted for login: common, organizations, consumers, or a tenant id")
	set.StringVar(&f.OIDCIssuer, prefix+"oidc-issuer", f.OIDCIssuer, "URL of a generic OpenID Connect issuer")
	set.StringVar(&f.OIDCName, prefix+"oidc-name", f.OIDCName, "Name of the generic OpenID Connect provider shown on the login page")
	return f
}

// Providers returns the providers enabled by the flags, in the order they are shown to users.
func (f *Flags) Providers(ctx context.Context) ([]*Provider, error) {
	var providers []*Provider
	if f.Google.ClientID != "" {
		google, err := Google(ctx, f.Google.ClientID, f.Google.ClientSecret)
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
	}
	if f.GitHub.ClientID != "" {
		providers = append(providers, GitHub(f.GitHub.ClientID, f.GitHub.ClientSecret))
	}
	if f.Microsoft.ClientID != "" {
		if f.MicrosoftTenant == "" {
			return nil, kflags.NewUsageErrorf("--microsoft-tenant must be set when microsoft login is enabled")
		}
		providers = append(providers, Microsoft(ctx, f.MicrosoftTenant, f.Microsoft.ClientID, f.Microsoft.ClientSecret))
	}
	if f.OIDC.ClientID != "" {
		if f.OIDCIssuer == "" {
			return nil, kflags.NewUsageErrorf("--oidc-issuer must be set when oidc login is enabled")
		}
		generic, err := OIDC(ctx, "oidc", f.OIDCName, f.OIDCIssuer, f.OIDC.ClientID, f.OIDC.ClientSecret)
		if err != nil {
			return nil, err
		}
		providers = append(providers, generic)
	}
	return providers, nil
}
