package credentials

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// Auth authenticates one outgoing request.
type Auth interface {
	Apply(req *http.Request) error
}

// AuthFunc adapts a function to Auth.
type AuthFunc func(req *http.Request) error

// Apply calls f(req).
func (f AuthFunc) Apply(req *http.Request) error { return f(req) }

// BearerAuth sets "Authorization: <type> <token>".
func BearerAuth(tok *oauth2.Token) Auth {
	return AuthFunc(func(req *http.Request) error {
		if tok == nil || tok.AccessToken == "" {
			return errors.New("empty access token")
		}
		tok.SetAuthHeader(req)
		return nil
	})
}

// QueryTokenAuth passes the token as the query parameter param.
func QueryTokenAuth(param, token string) Auth {
	return AuthFunc(func(req *http.Request) error {
		if token == "" {
			return errors.New("empty access token")
		}
		q := req.URL.Query()
		q.Set(param, token)
		req.URL.RawQuery = q.Encode()
		return nil
	})
}

// BasicAuth sets HTTP Basic credentials.
func BasicAuth(user, password string) Auth {
	return AuthFunc(func(req *http.Request) error {
		if user == "" {
			return errors.New("empty basic auth user")
		}
		req.SetBasicAuth(user, password)
		return nil
	})
}
