package oauth

import "fmt"

// Federation groups the Authenticators of all the configured providers.
type Federation struct {
	order          []*Authenticator
	authenticators map[string]*Authenticator
}

// NewFederation creates an Authenticator for each provider.
func NewFederation(extractor *Extractor, providers []*Provider, mods ...Modifier) (*Federation, error) {
	f := &Federation{authenticators: map[string]*Authenticator{}}
	for _, provider := range providers {
		if _, found := f.authenticators[provider.ID]; found {
			return nil, fmt.Errorf("provider %s configured more than once", provider.ID)
		}

		authenticator, err := NewAuthenticator(extractor, provider, mods...)
		if err != nil {
			return nil, err
		}
		f.authenticators[provider.ID] = authenticator
		f.order = append(f.order, authenticator)
	}
	return f, nil
}

// Get returns the Authenticator of a provider id.
func (f *Federation) Get(id string) (*Authenticator, bool) {
	authenticator, found := f.authenticators[id]
	return authenticator, found
}

// Providers returns the configured providers, in configuration order.
func (f *Federation) Providers() []*Provider {
	providers := make([]*Provider, 0, len(f.order))
	for _, authenticator := range f.order {
		providers = append(providers, authenticator.Provider())
	}
	return providers
}
