// Package fitbit syncs sleep, activity and physiology series from the
// Fitbit Web API.
package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
)

const (
	Name      = "fitbit"
	dateFmt   = "2006-01-02"
	versionV1 = "v1"
)

// Client fetches Fitbit entities.
type Client struct {
	api  *provider.API
	base string
}

// New creates a Client. A 401 refreshes the OAuth2 token once.
func New(cfg config.FitbitConfig, client *httpclient.Client, auth provider.Authenticator, opts ...provider.APIOption) *Client {
	opts = append(opts, provider.WithRefreshOn401())
	return &Client{
		api:  provider.NewAPI(Name, models.ServiceFitbit, client, auth, opts...),
		base: cfg.BaseURL,
	}
}

func (c *Client) Name() string { return Name }

// Entities returns the Fitbit jobs in sync order.
func (c *Client) Entities() []provider.Entity {
	return []provider.Entity{
		c.ranged("sleep", "v1.2", 100, false, c.sleep),
		{
			Provider: Name,
			Name:     "activity",
			Table:    table("activity"),
			Version:  versionV1,
			Mode:     provider.ModeDaily,
			Fetch:    c.activity,
		},
		c.ranged("heart_rate", versionV1, 30, false, c.heartRate),
		c.ranged("hrv", versionV1, 30, false, c.hrv),
		c.ranged("spo2", versionV1, 30, true, c.spo2),
		c.ranged("breathing_rate", versionV1, 30, true, c.breathingRate),
		c.ranged("cardio_score", versionV1, 30, true, c.cardioScore),
		c.ranged("temperature_skin", versionV1, 30, true, c.temperatureSkin),
	}
}

type rangeFetch func(ctx context.Context, start, end string) ([]models.RawRecord, error)

// ranged builds a date-range entity. Optional entities read a 404 as a
// window without data.
func (c *Client) ranged(name, version string, chunkDays int, optional bool, fn rangeFetch) provider.Entity {
	return provider.Entity{
		Provider:  Name,
		Name:      name,
		Table:     table(name),
		Version:   version,
		Mode:      provider.ModeRange,
		ChunkDays: chunkDays,
		Fetch: func(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
			recs, err := fn(ctx, w.Start.UTC().Format(dateFmt), w.Last().UTC().Format(dateFmt))
			if optional {
				return fetch.NotFoundAsEmpty(recs, err)
			}
			return recs, err
		},
	}
}

func table(entity string) string {
	return "raw_fitbit__" + entity
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.api.Get(ctx, c.base+path, out)
}

func (c *Client) sleep(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		Sleep []sleepLog `json:"sleep"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1.2/user/-/sleep/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.Sleep, sleepRecord), nil
}

func (c *Client) activity(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
	return fetch.FetchDaily(ctx, w.Start.UTC(), w.Last().UTC(), func(ctx context.Context, day time.Time) (models.RawRecord, bool, error) {
		date := day.Format(dateFmt)
		var resp struct {
			Summary *activitySummary `json:"summary"`
		}
		if err := c.get(ctx, fmt.Sprintf("/1/user/-/activities/date/%s.json", date), &resp); err != nil {
			return models.RawRecord{}, false, err
		}
		if resp.Summary == nil {
			return models.RawRecord{}, false, nil
		}
		return activityRecord(date, *resp.Summary), true, nil
	})
}

func (c *Client) heartRate(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		Days []heartRateDay `json:"activities-heart"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/activities/heart/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.Days, heartRateRecord), nil
}

func (c *Client) hrv(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		HRV []hrvDay `json:"hrv"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/hrv/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.HRV, hrvRecord), nil
}

func (c *Client) spo2(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var raw json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/spo2/date/%s/%s.json", start, end), &raw); err != nil {
		return nil, err
	}
	days, err := decodeSpO2(raw)
	if err != nil {
		return nil, err
	}
	return mapAll(days, spo2Record), nil
}

func (c *Client) breathingRate(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		BR []breathingRateDay `json:"br"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/br/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.BR, breathingRateRecord), nil
}

func (c *Client) cardioScore(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		CardioScore []cardioScoreDay `json:"cardioScore"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/cardioscore/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.CardioScore, cardioScoreRecord), nil
}

func (c *Client) temperatureSkin(ctx context.Context, start, end string) ([]models.RawRecord, error) {
	var resp struct {
		TempSkin []temperatureSkinDay `json:"tempSkin"`
	}
	if err := c.get(ctx, fmt.Sprintf("/1/user/-/temp/skin/date/%s/%s.json", start, end), &resp); err != nil {
		return nil, err
	}
	return mapAll(resp.TempSkin, temperatureSkinRecord), nil
}

// decodeSpO2 accepts both the bare array of the range endpoint and the
// {"value": [...]} envelope.
func decodeSpO2(raw json.RawMessage) ([]spo2Day, error) {
	trimmed := firstByte(raw)
	if trimmed == 0 || string(raw) == "null" {
		return nil, nil
	}
	if trimmed == '[' {
		var days []spo2Day
		if err := json.Unmarshal(raw, &days); err != nil {
			return nil, fmt.Errorf("decode spo2: %w", err)
		}
		return days, nil
	}
	var env struct {
		Value []spo2Day `json:"value"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode spo2: %w", err)
	}
	return env.Value, nil
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c
		}
	}
	return 0
}

func mapAll[T any](items []T, fn func(T) models.RawRecord) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}
