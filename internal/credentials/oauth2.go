package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/models"
	"golang.org/x/oauth2"
)

const maxTokenBody = 1 << 20

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func oauth2Auth(p Profile, cred *models.Credential) Auth {
	if p.QueryParam != "" {
		return QueryTokenAuth(p.QueryParam, cred.AccessToken)
	}
	return BearerAuth(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: cred.TokenType})
}

// refreshLocked exchanges the refresh token. The stored row is updated
// before the cache; any failure leaves both untouched.
func (s *Store) refreshLocked(ctx context.Context, p Profile, cred *models.Credential) error {
	tok, body, err := s.requestToken(ctx, p, cred)
	if err != nil {
		return s.refreshFailed(ctx, p, body, err)
	}
	if tok == nil {
		s.confirmed[p.Service] = true
		s.metrics.RecordTokenRefresh(p.Service, "noop")
		s.logger.Audit(logging.NewAuditEvent(logging.TokenRefreshNoop, p.Service, "refresh").
			WithDetail("reason", "endpoint reported token still valid"))
		return nil
	}

	if err := s.repo.UpdateToken(ctx, p.Table, p.Service, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		return s.refreshFailed(ctx, p, "", err)
	}

	next := cred.Clone()
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		next.TokenType = tok.TokenType
	}
	expiry := tok.Expiry
	next.ExpiresAt = &expiry
	next.UpdatedAt = s.clock.Now().UTC()
	s.cache[p.Service] = next

	s.metrics.RecordTokenRefresh(p.Service, "success")
	s.logger.Audit(logging.NewAuditEvent(logging.TokenRefreshed, p.Service, "refresh").
		WithDetail("expires_at", expiry.Format(time.RFC3339)).
		WithDetail("refresh_token_rotated", tok.RefreshToken != ""))
	s.logger.InfoWithContext(ctx, "token refreshed", "service", p.Service, "expires_at", expiry.Format(time.RFC3339))
	return nil
}

// requestToken posts the refresh grant. A nil token with a nil error means
// the endpoint answered that the current token is still valid.
func (s *Store) requestToken(ctx context.Context, p Profile, cred *models.Credential) (*oauth2.Token, string, error) {
	if cred.RefreshToken == "" {
		return nil, "", fmt.Errorf("no refresh token stored")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	if p.AuthStyle == oauth2.AuthStyleInParams {
		form.Set("client_id", cred.ClientID)
		form.Set("client_secret", cred.ClientSecret)
	}
	if p.SendRedirectURI {
		form.Set("redirect_uri", cred.Meta(models.MetaRedirectURI))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.AuthStyle != oauth2.AuthStyleInParams {
		req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, "", err
	}
	body := string(raw)

	if p.HTMLMeansValid && strings.HasPrefix(strings.TrimSpace(body), "<") {
		return nil, body, nil
	}

	var parsed tokenResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, body, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, body, fmt.Errorf("response has no access_token: %s", excerpt(body))
	}

	lifetime := p.Lifetime
	if parsed.ExpiresIn > 0 {
		lifetime = time.Duration(parsed.ExpiresIn) * time.Second
	}
	return &oauth2.Token{
		AccessToken:  parsed.AccessToken,
		TokenType:    parsed.TokenType,
		RefreshToken: parsed.RefreshToken,
		Expiry:       s.clock.Now().UTC().Add(lifetime),
	}, body, nil
}

func (s *Store) refreshFailed(ctx context.Context, p Profile, body string, err error) error {
	s.metrics.RecordTokenRefresh(p.Service, "failure")
	s.logger.Audit(logging.NewAuditEvent(logging.TokenRefreshFailed, p.Service, "refresh").WithError(err))
	s.logger.ErrorWithContext(ctx, "token refresh failed", "service", p.Service, "error", err)
	return &apperrors.ErrTokenRefreshFailed{Service: p.Service, Body: body, Err: err}
}

func excerpt(s string) string {
	if len(s) > apperrors.MaxBodyExcerpt {
		return s[:apperrors.MaxBodyExcerpt]
	}
	return s
}
