package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type encodedPrincipal struct {
	Kind          string `json:"kind"`
	Provider      string `json:"provider,omitempty"`
	Subject       string `json:"subject,omitempty"`
	NameAttribute string `json:"name_attribute,omitempty"`
	Claims        Claims `json:"claims,omitempty"`
	Username      string `json:"username,omitempty"`
	Text          string `json:"text,omitempty"`
}

type encodedAuthentication struct {
	Principal     *encodedPrincipal `json:"principal,omitempty"`
	Authorities   []string          `json:"authorities,omitempty"`
	Authenticated bool              `json:"authenticated"`
}

// MarshalJSON encodes the principal with a kind discriminator.
func (a Authentication) MarshalJSON() ([]byte, error) {
	encoded := encodedAuthentication{
		Authorities:   a.Authorities,
		Authenticated: a.Authenticated,
	}

	switch p := a.Principal.(type) {
	case nil:
	case *ClaimsIdentity:
		encoded.Principal = &encodedPrincipal{Kind: p.kind(), Provider: p.Provider, Subject: p.Subject, NameAttribute: p.NameAttribute, Claims: p.Claims}
	case *CredentialsIdentity:
		encoded.Principal = &encodedPrincipal{Kind: p.kind(), Username: p.Username}
	case *AnonymousIdentity:
		encoded.Principal = &encodedPrincipal{Kind: p.kind(), Text: p.Text}
	default:
		return nil, fmt.Errorf("unknown principal type %T", a.Principal)
	}
	return json.Marshal(encoded)
}

// UnmarshalJSON decodes an Authentication. Numeric claims are kept as json.Number.
func (a *Authentication) UnmarshalJSON(data []byte) error {
	var encoded encodedAuthentication
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&encoded); err != nil {
		return err
	}

	result := Authentication{Authorities: encoded.Authorities, Authenticated: encoded.Authenticated}
	if p := encoded.Principal; p != nil {
		switch p.Kind {
		case "claims":
			result.Principal = &ClaimsIdentity{Provider: p.Provider, Subject: p.Subject, NameAttribute: p.NameAttribute, Claims: p.Claims}
		case "credentials":
			result.Principal = &CredentialsIdentity{Username: p.Username}
		case "anonymous":
			result.Principal = &AnonymousIdentity{Text: p.Text}
		default:
			return fmt.Errorf("unknown principal kind %q", p.Kind)
		}
	}
	*a = result
	return nil
}
