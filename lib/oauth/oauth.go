// Package oauth logs users in through federated identity providers, and
// keeps track of them with a server side session.
//
// # Introduction
//
// To use the library, you have to:
//
//  1. Create an Extractor, owning the session store and the session cookie.
//  2. Create an Authenticator per provider, or a Federation grouping them,
//     using the Google, GitHub, Microsoft or OIDC provider definitions.
//  3. Set up two urls in your mux per provider: one to start the login
//     process (LoginHandler, PerformLogin), and one to end it and create the
//     session (AuthHandler, PerformAuth).
//
// In your other http handlers, use the Extractor as the resolver of a
// security.Policy filter, and WithAuthentication to receive the
// authentication of the user as a parameter.
//
// # Examples
//
//	extractor, err := oauth.NewExtractor(store, key, oauth.WithSessionLifetime(30*time.Minute))
//	provider := oauth.GitHub("client-id", "client-secret")
//	github, err := oauth.NewAuthenticator(extractor, provider)
//
//	mux.HandleFunc("/oauth2/authorization/github", oauth.LoginHandler(github, log, "/login?error=true"))
//	mux.HandleFunc("/oauth2/code/github", oauth.AuthHandler(github, log, "/home", "/login?error=true"))
//
// From within your handler, you can use:
//
//	auth := oauth.GetAuthentication(r.Context())
//	if auth == nil || !auth.Authenticated {
//	    http.Error(w, "not authenticated", http.StatusUnauthorized)
//	} else {
//	    log.Printf("user: %s", auth.Name())
//	}
//
// # Authentication mechanisms
//
// An [Extractor] maps the session cookie sent by a browser to the
// Authentication stored in the session store. It does not know how the user
// logged in, and is all a backend needs to check credentials.
//
// An [Authenticator] runs the oauth2 authorization code flow with a single
// provider: it redirects the user to the provider after setting a signed
// cookie, verifies the state and the code received at the end of the flow,
// collects the user attributes with a chain of [Verifier]s, and finally
// creates the session through its Extractor.
//
// Both implement the [IAuthenticator] interface, as does the form login
// authenticator in the oform package.
package oauth
