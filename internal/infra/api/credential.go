package api

import "net/http"

// Credential attaches the caller's session to an outgoing request. Issuance
// and refresh belong to the surrounding application.
type Credential interface {
	Apply(req *http.Request)
}

// DefaultCookieName is the session cookie the marketplace backend reads.
const DefaultCookieName = "access_token"

// CookieCredential sends the session token as a cookie.
type CookieCredential struct {
	Name  string
	Token string
}

func (c CookieCredential) Apply(req *http.Request) {
	if c.Token == "" {
		return
	}
	name := c.Name
	if name == "" {
		name = DefaultCookieName
	}
	req.AddCookie(&http.Cookie{Name: name, Value: c.Token})
}

// BearerCredential sends the session token in the Authorization header.
type BearerCredential struct {
	Token string
}

func (c BearerCredential) Apply(req *http.Request) {
	if c.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
}

// Credentials applies several credentials in order.
type Credentials []Credential

func (cs Credentials) Apply(req *http.Request) {
	for _, c := range cs {
		if c != nil {
			c.Apply(req)
		}
	}
}
