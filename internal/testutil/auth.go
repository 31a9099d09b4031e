package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/lifedata/connector/internal/credentials"
)

// Auth hands out a fixed bearer token and counts refreshes. After a
// refresh the token becomes RefreshedToken.
type Auth struct {
	mu             sync.Mutex
	Token          string
	RefreshedToken string
	Refreshes      int
	Err            error
}

func (a *Auth) AccessAuth(ctx context.Context, service string) (credentials.Auth, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	token := a.Token
	return credentials.AuthFunc(func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}), nil
}

func (a *Auth) ForceRefresh(ctx context.Context, service string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Refreshes++
	if a.RefreshedToken != "" {
		a.Token = a.RefreshedToken
	}
	return nil
}
