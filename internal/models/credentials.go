package models

import (
	"fmt"
	"strconv"
	"time"
)

// Service names as stored in the credential tables.
const (
	ServiceFitbit = "fitbit"
	ServiceTanita = "tanita_health_planet"
	ServiceZaim   = "zaim"
	ServiceToggl  = "toggl_track"
)

// AuthKind tells how a service authenticates.
type AuthKind string

const (
	AuthOAuth2 AuthKind = "oauth2"
	AuthOAuth1 AuthKind = "oauth1"
	AuthStatic AuthKind = "static"
)

// Credential is one row of data_warehouse.oauth2_credentials or
// data_warehouse.credentials. For OAuth1 services ClientID/ClientSecret hold
// the consumer key and secret and the token secret lives in metadata. For
// static services AccessToken holds the API token.
type Credential struct {
	ServiceName  string         `json:"service_name"`
	ClientID     string         `json:"client_id,omitempty"`
	ClientSecret string         `json:"client_secret,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	Scope        string         `json:"scope,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Metadata keys used by providers.
const (
	MetaRedirectURI       = "redirect_uri"
	MetaAccessTokenSecret = "access_token_secret"
	MetaWorkspaceID       = "workspace_id"
)

// Meta returns a metadata value rendered as a string, or "".
func (c *Credential) Meta(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	switch v := c.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a deep copy so cached values cannot be mutated by callers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Masked returns a copy safe to print.
func (c *Credential) Masked() *Credential {
	out := c.Clone()
	if out == nil {
		return nil
	}
	out.ClientSecret = Mask(out.ClientSecret)
	out.AccessToken = Mask(out.AccessToken)
	out.RefreshToken = Mask(out.RefreshToken)
	if s, ok := out.Metadata[MetaAccessTokenSecret].(string); ok {
		out.Metadata[MetaAccessTokenSecret] = Mask(s)
	}
	return out
}

// Mask keeps the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
