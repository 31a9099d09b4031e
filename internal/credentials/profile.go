// Package credentials loads provider credentials from the warehouse, keeps
// OAuth2 access tokens fresh, and turns credentials into request
// authenticators.
package credentials

import (
	"time"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/warehouse"
	"golang.org/x/oauth2"
)

// Profile describes how one service authenticates.
type Profile struct {
	Service string
	Kind    models.AuthKind
	// Table is the credential table holding the service row.
	Table string

	// OAuth2 only.
	TokenURL  string
	AuthStyle oauth2.AuthStyle
	Threshold time.Duration
	Lifetime  time.Duration
	// SendRedirectURI adds metadata.redirect_uri to the refresh form.
	SendRedirectURI bool
	// HTMLMeansValid treats an HTML refresh response as "token still valid".
	HTMLMeansValid bool
	// QueryParam places the access token in the query string instead of
	// the Authorization header.
	QueryParam string

	// Static only. When set it overrides the stored row.
	StaticToken string
}

// FitbitProfile refreshes with HTTP Basic client authentication.
func FitbitProfile(cfg config.OAuth2Config) Profile {
	return Profile{
		Service:   models.ServiceFitbit,
		Kind:      models.AuthOAuth2,
		Table:     warehouse.OAuth2CredentialsTable,
		TokenURL:  cfg.TokenURL,
		AuthStyle: oauth2.AuthStyleInHeader,
		Threshold: cfg.RefreshThreshold,
		Lifetime:  cfg.TokenLifetime,
	}
}

// TanitaProfile refreshes with client credentials in the form body and
// passes the access token as a query parameter.
func TanitaProfile(cfg config.OAuth2Config) Profile {
	return Profile{
		Service:         models.ServiceTanita,
		Kind:            models.AuthOAuth2,
		Table:           warehouse.OAuth2CredentialsTable,
		TokenURL:        cfg.TokenURL,
		AuthStyle:       oauth2.AuthStyleInParams,
		Threshold:       cfg.RefreshThreshold,
		Lifetime:        cfg.TokenLifetime,
		SendRedirectURI: true,
		HTMLMeansValid:  true,
		QueryParam:      "access_token",
	}
}

// ZaimProfile signs every request with OAuth 1.0a.
func ZaimProfile() Profile {
	return Profile{
		Service: models.ServiceZaim,
		Kind:    models.AuthOAuth1,
		Table:   warehouse.CredentialsTable,
	}
}

// TogglProfile uses the API token as a Basic auth user name. An empty token
// means the stored credentials row is used.
func TogglProfile(token string) Profile {
	return Profile{
		Service:     models.ServiceToggl,
		Kind:        models.AuthStatic,
		Table:       warehouse.CredentialsTable,
		StaticToken: token,
	}
}

// Profiles builds the profile of every supported service from config.
func Profiles(cfg *config.Config) []Profile {
	return []Profile{
		FitbitProfile(cfg.Providers.Fitbit.OAuth),
		TanitaProfile(cfg.Providers.Tanita.OAuth),
		ZaimProfile(),
		TogglProfile(cfg.Providers.Toggl.APIToken),
	}
}

// TableFor returns the credential table a service is stored in.
func TableFor(service string) string {
	switch service {
	case models.ServiceFitbit, models.ServiceTanita:
		return warehouse.OAuth2CredentialsTable
	default:
		return warehouse.CredentialsTable
	}
}
