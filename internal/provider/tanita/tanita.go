// Package tanita syncs body composition and blood pressure measurements
// from Tanita Health Planet.
package tanita

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
)

const (
	Name = "tanita"

	// MaxDaysPerRequest is the longest range Health Planet serves at once.
	MaxDaysPerRequest = 90

	requestDateFmt = "20060102150405"
	version        = "v1"
)

// Measurement tags.
const (
	TagWeight         = "6021"
	TagBodyFatPercent = "6022"
	TagSystolic       = "622E"
	TagDiastolic      = "622F"
	TagPulse          = "6230"
)

// JST is Japan Standard Time. Japan has no daylight saving.
var JST = time.FixedZone("JST", 9*60*60)

// Client fetches Health Planet entities.
type Client struct {
	api  *provider.API
	base string
}

// New creates a Client. A 401 refreshes the OAuth2 token once.
func New(cfg config.TanitaConfig, client *httpclient.Client, auth provider.Authenticator, opts ...provider.APIOption) *Client {
	opts = append(opts, provider.WithRefreshOn401())
	return &Client{
		api:  provider.NewAPI(Name, models.ServiceTanita, client, auth, opts...),
		base: cfg.BaseURL,
	}
}

func (c *Client) Name() string { return Name }

// Entities returns the Health Planet jobs in sync order.
func (c *Client) Entities() []provider.Entity {
	return []provider.Entity{
		c.entity("body_composition", "innerscan.json", []string{TagWeight, TagBodyFatPercent}, bodyCompositionRecords),
		c.entity("blood_pressure", "sphygmomanometer.json", []string{TagSystolic, TagDiastolic, TagPulse}, bloodPressureRecords),
	}
}

func (c *Client) entity(name, endpoint string, tags []string, transform func([]item) []models.RawRecord) provider.Entity {
	return provider.Entity{
		Provider:  Name,
		Name:      name,
		Table:     "raw_tanita_health_planet__" + name,
		Version:   version,
		Mode:      provider.ModeRange,
		ChunkDays: MaxDaysPerRequest,
		Fetch: func(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
			items, err := c.measurements(ctx, endpoint, tags, w)
			if err != nil {
				return nil, err
			}
			return transform(items), nil
		},
	}
}

type item struct {
	Date    string `json:"date"`
	KeyData string `json:"keydata"`
	Model   string `json:"model"`
	Tag     string `json:"tag"`
}

func (c *Client) measurements(ctx context.Context, endpoint string, tags []string, w fetch.Window) ([]item, error) {
	q := url.Values{}
	q.Set("date", "1")
	q.Set("from", FormatRequestDate(w.Start))
	q.Set("to", FormatRequestDate(w.Last()))
	q.Set("tag", strings.Join(tags, ","))

	var resp struct {
		Data []item `json:"data"`
	}
	if err := c.api.Get(ctx, c.base+"/"+endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FormatRequestDate renders t as yyyyMMddHHmmss in JST.
func FormatRequestDate(t time.Time) string {
	return t.In(JST).Format(requestDateFmt)
}
