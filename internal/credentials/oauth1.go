package credentials

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuth1Credentials are the four secrets of an OAuth 1.0a client.
type OAuth1Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// OAuth1Signer signs each request with HMAC-SHA1. Every call draws a new
// nonce and timestamp.
type OAuth1Signer struct {
	creds OAuth1Credentials
	now   func() time.Time
	nonce func() string
}

// NewOAuth1Signer creates a signer. now may be nil for the wall clock.
func NewOAuth1Signer(creds OAuth1Credentials, now func() time.Time) *OAuth1Signer {
	if now == nil {
		now = time.Now
	}
	return &OAuth1Signer{creds: creds, now: now, nonce: NewNonce}
}

// NewNonce returns a random UUID without hyphens.
func NewNonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Apply sets the Authorization header on req.
func (s *OAuth1Signer) Apply(req *http.Request) error {
	req.Header.Set("Authorization", AuthorizationHeader(req.Method, req.URL, s.creds, s.nonce(), s.now()))
	return nil
}

// Param is one signed name/value pair.
type Param struct {
	Key   string
	Value string
}

// AuthorizationHeader builds the OAuth header for a request to u. The
// signature covers the oauth_* parameters and u's query parameters.
func AuthorizationHeader(method string, u *url.URL, creds OAuth1Credentials, nonce string, ts time.Time) string {
	oauth := []Param{
		{"oauth_consumer_key", creds.ConsumerKey},
		{"oauth_nonce", nonce},
		{"oauth_signature_method", "HMAC-SHA1"},
		{"oauth_timestamp", strconv.FormatInt(ts.Unix(), 10)},
		{"oauth_token", creds.Token},
		{"oauth_version", "1.0"},
	}

	all := append([]Param(nil), oauth...)
	for k, vs := range u.Query() {
		for _, v := range vs {
			all = append(all, Param{k, v})
		}
	}

	sig := Sign(method, baseURL(u), all, creds.ConsumerSecret, creds.TokenSecret)
	oauth = append(oauth, Param{"oauth_signature", sig})
	sortParams(oauth)

	parts := make([]string, len(oauth))
	for i, p := range oauth {
		parts[i] = PercentEncode(p.Key) + `="` + PercentEncode(p.Value) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// Sign returns the base64 HMAC-SHA1 signature of
// METHOD&enc(url)&enc(sorted params).
func Sign(method, rawURL string, params []Param, consumerSecret, tokenSecret string) string {
	sorted := append([]Param(nil), params...)
	sortParams(sorted)

	pairs := make([]string, len(sorted))
	for i, p := range sorted {
		pairs[i] = PercentEncode(p.Key) + "=" + PercentEncode(p.Value)
	}

	base := strings.ToUpper(method) + "&" + PercentEncode(rawURL) + "&" + PercentEncode(strings.Join(pairs, "&"))
	key := PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PercentEncode escapes everything outside the RFC 3986 unreserved set.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// sortParams orders by encoded key, then encoded value.
func sortParams(ps []Param) {
	sort.Slice(ps, func(i, j int) bool {
		ki, kj := PercentEncode(ps[i].Key), PercentEncode(ps[j].Key)
		if ki != kj {
			return ki < kj
		}
		return PercentEncode(ps[i].Value) < PercentEncode(ps[j].Value)
	})
}

func baseURL(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
}
