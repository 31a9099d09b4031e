package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lifedata/connector/internal/clock"
	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/metrics"
	"github.com/lifedata/connector/internal/models"
)

// Store hands out request authenticators for one run. Rows are loaded on
// first use and cached; OAuth2 tokens close to expiry are refreshed and
// written back before the cache changes.
type Store struct {
	repo     *Repository
	client   *httpclient.Client
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *logging.Logger
	profiles map[string]Profile

	mu    sync.Mutex
	cache map[string]*models.Credential
	// confirmed marks tokens the endpoint reported as still valid.
	confirmed map[string]bool
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithStoreMetrics records refresh outcomes.
func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithStoreLogger sets the logger used for audit events.
func WithStoreLogger(l *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store. client carries token endpoint requests.
func NewStore(repo *Repository, client *httpclient.Client, profiles []Profile, opts ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		client:    client.ForProvider("oauth"),
		clock:     clock.Real{},
		logger:    logging.Nop(),
		profiles:  make(map[string]Profile, len(profiles)),
		cache:     make(map[string]*models.Credential),
		confirmed: make(map[string]bool),
	}
	for _, p := range profiles {
		s.profiles[p.Service] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile returns the profile registered for service.
func (s *Store) Profile(service string) (Profile, bool) {
	p, ok := s.profiles[service]
	return p, ok
}

// Credential returns a copy of the cached row for service, loading it if
// needed. Providers use it for non-secret settings such as metadata.
func (s *Store) Credential(ctx context.Context, service string) (*models.Credential, error) {
	p, err := s.profile(service)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.loadLocked(ctx, p)
	if err != nil {
		return nil, err
	}
	return cred.Clone(), nil
}

// AccessAuth returns an authenticator for service. An OAuth2 token within
// the refresh threshold of its expiry, or without a known expiry, is
// refreshed first.
func (s *Store) AccessAuth(ctx context.Context, service string) (Auth, error) {
	p, err := s.profile(service)
	if err != nil {
		return nil, err
	}

	if p.Kind == models.AuthStatic && p.StaticToken != "" {
		return BasicAuth(p.StaticToken, "api_token"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.loadLocked(ctx, p)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case models.AuthOAuth2:
		if !s.freshLocked(p, cred) {
			if err := s.refreshLocked(ctx, p, cred); err != nil {
				return nil, err
			}
			cred = s.cache[p.Service]
		}
		return oauth2Auth(p, cred), nil
	case models.AuthOAuth1:
		secret := cred.Meta(models.MetaAccessTokenSecret)
		if secret == "" {
			return nil, fmt.Errorf("%s credentials have no %s", p.Service, models.MetaAccessTokenSecret)
		}
		return NewOAuth1Signer(OAuth1Credentials{
			ConsumerKey:    cred.ClientID,
			ConsumerSecret: cred.ClientSecret,
			Token:          cred.AccessToken,
			TokenSecret:    secret,
		}, s.clock.Now), nil
	case models.AuthStatic:
		return BasicAuth(cred.AccessToken, "api_token"), nil
	default:
		return nil, fmt.Errorf("unsupported auth kind %q for %s", p.Kind, p.Service)
	}
}

// ForceRefresh refreshes an OAuth2 token regardless of its expiry. Provider
// clients call it after a 401.
func (s *Store) ForceRefresh(ctx context.Context, service string) error {
	p, err := s.profile(service)
	if err != nil {
		return err
	}
	if p.Kind != models.AuthOAuth2 {
		return &apperrors.ErrTokenRefreshFailed{Service: service, Err: errors.New("credentials are not refreshable")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.loadLocked(ctx, p)
	if err != nil {
		return err
	}
	delete(s.confirmed, p.Service)
	return s.refreshLocked(ctx, p, cred)
}

func (s *Store) profile(service string) (Profile, error) {
	p, ok := s.profiles[service]
	if !ok {
		return Profile{}, &apperrors.ErrUnknownProvider{Name: service}
	}
	return p, nil
}

func (s *Store) loadLocked(ctx context.Context, p Profile) (*models.Credential, error) {
	if cred, ok := s.cache[p.Service]; ok {
		return cred, nil
	}
	cred, err := s.repo.Load(ctx, p.Table, p.Service)
	if err != nil {
		var missing *apperrors.ErrCredentialsNotFound
		if errors.As(err, &missing) {
			s.logger.Audit(logging.NewAuditEvent(logging.CredentialMissing, p.Service, "load").
				WithSeverity(logging.SeverityError).
				WithDetail("table", p.Table))
		}
		return nil, err
	}
	s.cache[p.Service] = cred
	s.logger.DebugWithContext(ctx, "credentials loaded", "service", p.Service, "table", p.Table)
	return cred, nil
}

func (s *Store) freshLocked(p Profile, cred *models.Credential) bool {
	if s.confirmed[p.Service] {
		return true
	}
	if cred.ExpiresAt == nil {
		return false
	}
	return cred.ExpiresAt.Sub(s.clock.Now()) > p.Threshold
}
