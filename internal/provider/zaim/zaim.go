// Package zaim syncs household accounting masters and money records from
// the Zaim v2 API.
package zaim

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/lifedata/connector/internal/clock"
	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
)

const (
	Name    = "zaim"
	Version = "v2"
	dateFmt = "2006-01-02"
)

// Tokyo is the zone Zaim dates are expressed in.
var Tokyo = time.FixedZone("Asia/Tokyo", 9*60*60)

// Client fetches Zaim entities. Tokens never expire, so a 401 is final.
type Client struct {
	api       *provider.API
	base      string
	pageSize  int
	pageDelay time.Duration
	sleeper   clock.Sleeper
}

// New creates a Client. sleeper paces money pages.
func New(cfg config.ZaimConfig, client *httpclient.Client, auth provider.Authenticator, sleeper clock.Sleeper, opts ...provider.APIOption) *Client {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	size := cfg.PageSize
	if size <= 0 {
		size = 100
	}
	return &Client{
		api:       provider.NewAPI(Name, models.ServiceZaim, client, auth, opts...),
		base:      cfg.BaseURL,
		pageSize:  size,
		pageDelay: cfg.PageDelay,
		sleeper:   sleeper,
	}
}

func (c *Client) Name() string { return Name }

// Entities returns masters first, then money.
func (c *Client) Entities() []provider.Entity {
	return []provider.Entity{
		c.master("category", func(ctx context.Context) ([]models.RawRecord, error) {
			var resp struct {
				Categories []category `json:"categories"`
			}
			if err := c.get(ctx, "/home/category", url.Values{"mapping": {"1"}}, &resp); err != nil {
				return nil, err
			}
			return mapAll(resp.Categories, categoryRecord), nil
		}),
		c.master("genre", func(ctx context.Context) ([]models.RawRecord, error) {
			var resp struct {
				Genres []genre `json:"genres"`
			}
			if err := c.get(ctx, "/home/genre", url.Values{"mapping": {"1"}}, &resp); err != nil {
				return nil, err
			}
			return mapAll(resp.Genres, genreRecord), nil
		}),
		c.master("account", func(ctx context.Context) ([]models.RawRecord, error) {
			var resp struct {
				Accounts []account `json:"accounts"`
			}
			if err := c.get(ctx, "/home/account", url.Values{"mapping": {"1"}}, &resp); err != nil {
				return nil, err
			}
			return mapAll(resp.Accounts, accountRecord), nil
		}),
		{
			Provider: Name,
			Name:     "money",
			Table:    table("money"),
			Version:  Version,
			Mode:     provider.ModePaged,
			Fetch:    c.money,
		},
	}
}

func (c *Client) master(name string, fn func(ctx context.Context) ([]models.RawRecord, error)) provider.Entity {
	return provider.Entity{
		Provider: Name,
		Name:     name,
		Table:    table(name),
		Version:  Version,
		Mode:     provider.ModeMaster,
		Fetch: func(ctx context.Context, _ fetch.Window) ([]models.RawRecord, error) {
			return fn(ctx)
		},
	}
}

func table(entity string) string {
	return "raw_zaim__" + entity
}

// FormatDate renders t as a Tokyo calendar date.
func FormatDate(t time.Time) string {
	return t.In(Tokyo).Format(dateFmt)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.api.Get(ctx, u, out)
}

func (c *Client) money(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
	start, end := FormatDate(w.Start), FormatDate(w.End.AddDate(0, 0, -1))
	items, err := fetch.FetchPaginated(ctx, c.pageSize, c.pageDelay, c.sleeper, func(ctx context.Context, offset, size int) ([]moneyRecord, error) {
		q := url.Values{}
		q.Set("mapping", "1")
		q.Set("start_date", start)
		q.Set("end_date", end)
		q.Set("page", strconv.Itoa(offset/size+1))
		q.Set("limit", strconv.Itoa(size))

		var resp struct {
			Money []moneyRecord `json:"money"`
		}
		if err := c.get(ctx, "/home/money", q, &resp); err != nil {
			return nil, err
		}
		return resp.Money, nil
	})
	if err != nil {
		return nil, err
	}
	return mapAll(items, moneyRecordToRaw), nil
}

func mapAll[T any](items []T, fn func(T) models.RawRecord) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}
