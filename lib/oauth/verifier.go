package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ccontavalli/webauth/lib/identity"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/coreos/go-oidc"
	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

// Verifier is an object capable of verifying an oauth2.Token after obtaining it.
//
// Verifiers also add the information retrieved from the remote provider to the
// claims of the user, using some provider specific mechanisms. Claims already
// present are never overwritten.
type Verifier interface {
	Scopes() []string
	Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error)
}

type VerifierFactory func(conf *oauth2.Config) (Verifier, error)

// UserInfoVerifier retrieves the claims from a JSON user info endpoint.
//
// Used for endpoints with no client library, like Microsoft Graph.
type UserInfoVerifier struct {
	conf *oauth2.Config
	url  string
}

func NewUserInfoVerifierFactory(url string) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		return &UserInfoVerifier{conf: conf, url: url}, nil
	}
}

func (uv *UserInfoVerifier) Scopes() []string {
	return nil
}

func (uv *UserInfoVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	info, err := getJSON(ctx, uv.conf, tok, uv.url)
	if err != nil {
		return claims, err
	}
	return claims.Merge(info), nil
}

// getJSON fetches url with the credentials in tok, and decodes the JSON object returned.
func getJSON(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, url string) (identity.Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach %s - %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("could not read %s - %w", url, err)
	}
	claims, err := decodeClaims(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON from %s - %w", url, err)
	}
	return claims, nil
}

// decodeClaims parses a JSON object, keeping numbers as json.Number.
func decodeClaims(data []byte) (identity.Claims, error) {
	var claims identity.Claims
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// IDTokenVerifier checks the id_token returned with the access token by OIDC providers.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
	// issuer, if set, returns the issuer expected for the claims of a token.
	// Used when the oidc verifier was configured to skip the issuer check.
	issuer func(claims identity.Claims) string
}

func NewIDTokenVerifierFactory(verifier *oidc.IDTokenVerifier) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		return &IDTokenVerifier{verifier: verifier}, nil
	}
}

func (iv *IDTokenVerifier) Scopes() []string {
	return []string{oidc.ScopeOpenID}
}

func (iv *IDTokenVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return claims, fmt.Errorf("no id_token returned by the provider")
	}

	idt, err := iv.verifier.Verify(ctx, raw)
	if err != nil {
		return claims, fmt.Errorf("invalid id_token - %w", err)
	}

	var payload json.RawMessage
	if err := idt.Claims(&payload); err != nil {
		return claims, fmt.Errorf("invalid id_token claims - %w", err)
	}
	values, err := decodeClaims(payload)
	if err != nil {
		return claims, fmt.Errorf("invalid id_token claims - %w", err)
	}

	if iv.issuer != nil {
		if expected := iv.issuer(values); idt.Issuer != expected {
			return claims, fmt.Errorf("invalid id_token - issuer %q, expected %q", idt.Issuer, expected)
		}
	}
	return claims.Merge(values), nil
}

// OIDCUserInfoVerifier retrieves the claims from the user info endpoint of an OIDC provider.
type OIDCUserInfoVerifier struct {
	provider *oidc.Provider
}

func NewOIDCUserInfoVerifierFactory(provider *oidc.Provider) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		return &OIDCUserInfoVerifier{provider: provider}, nil
	}
}

func (ov *OIDCUserInfoVerifier) Scopes() []string {
	return []string{oidc.ScopeOpenID}
}

func (ov *OIDCUserInfoVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	info, err := ov.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return claims, fmt.Errorf("could not retrieve user info - %w", err)
	}

	var payload json.RawMessage
	if err := info.Claims(&payload); err != nil {
		return claims, fmt.Errorf("invalid user info - %w", err)
	}
	values, err := decodeClaims(payload)
	if err != nil {
		return claims, fmt.Errorf("invalid user info - %w", err)
	}
	return claims.Merge(values), nil
}

// newGitHubClient returns a GitHub API client authenticated with tok.
//
// An empty baseURL selects the public GitHub API.
func newGitHubClient(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, baseURL *url.URL) *github.Client {
	client := github.NewClient(conf.Client(ctx, tok))
	if baseURL != nil {
		client.BaseURL = baseURL
	}
	return client
}

func parseGitHubURL(baseURL string) (*url.URL, error) {
	if baseURL == "" {
		return nil, nil
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url %q - %w", baseURL, err)
	}
	return parsed, nil
}

// GitHubUserVerifier retrieves the profile of the user from the GitHub users API.
type GitHubUserVerifier struct {
	conf    *oauth2.Config
	baseURL *url.URL
}

// NewGitHubUserVerifierFactory returns a factory of GitHubUserVerifier.
//
// baseURL is the root of the GitHub API, empty for api.github.com.
func NewGitHubUserVerifierFactory(baseURL string) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		parsed, err := parseGitHubURL(baseURL)
		if err != nil {
			return nil, err
		}
		return &GitHubUserVerifier{conf: conf, baseURL: parsed}, nil
	}
}

func (gv *GitHubUserVerifier) Scopes() []string {
	return []string{"read:user"}
}

func (gv *GitHubUserVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	user, _, err := newGitHubClient(ctx, gv.conf, tok, gv.baseURL).Users.Get(ctx, "")
	if err != nil {
		return claims, fmt.Errorf("could not retrieve github user - %w", err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return claims, err
	}
	values, err := decodeClaims(data)
	if err != nil {
		return claims, err
	}
	return claims.Merge(values), nil
}

// GitHubEmailVerifier fills in the email of users hiding it from their public profile.
type GitHubEmailVerifier struct {
	conf    *oauth2.Config
	baseURL *url.URL
}

// NewGitHubEmailVerifierFactory returns a factory of GitHubEmailVerifier.
//
// baseURL is the root of the GitHub API, empty for api.github.com.
func NewGitHubEmailVerifierFactory(baseURL string) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		parsed, err := parseGitHubURL(baseURL)
		if err != nil {
			return nil, err
		}
		return &GitHubEmailVerifier{conf: conf, baseURL: parsed}, nil
	}
}

func (gv *GitHubEmailVerifier) Scopes() []string {
	return []string{"user:email"}
}

func (gv *GitHubEmailVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	if email, _ := claims.String("email"); email != "" {
		return claims, nil
	}

	emails, _, err := newGitHubClient(ctx, gv.conf, tok, gv.baseURL).Users.ListEmails(ctx, nil)
	if err != nil {
		return claims, fmt.Errorf("could not retrieve github emails - %w", err)
	}
	for _, email := range emails {
		if email.GetPrimary() && email.GetVerified() {
			if claims == nil {
				claims = identity.Claims{}
			}
			claims["email"] = email.GetEmail()
			return claims, nil
		}
	}
	return claims, fmt.Errorf("no primary verified email among %d addresses", len(emails))
}

// OptionalVerifier runs a verifier, logging and ignoring its failures.
type OptionalVerifier struct {
	inner Verifier
}

func (ov *OptionalVerifier) Scopes() []string {
	return ov.inner.Scopes()
}

func (ov *OptionalVerifier) Verify(ctx context.Context, log logger.Logger, claims identity.Claims, tok *oauth2.Token) (identity.Claims, error) {
	result, err := ov.inner.Verify(ctx, log, claims, tok)
	if err != nil {
		log.Warnf("ignored verifier %T - error: %s", ov.inner, err)
		return claims, nil
	}
	return result, nil
}

func NewOptionalVerifierFactory(factory VerifierFactory) VerifierFactory {
	return func(conf *oauth2.Config) (Verifier, error) {
		inner, err := factory(conf)
		if err != nil {
			return nil, err
		}
		return &OptionalVerifier{inner: inner}, nil
	}
}
