package fitbit

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/provider"
	"github.com/lifedata/connector/internal/testutil"
	"github.com/lifedata/connector/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*Client, *testutil.API, *testutil.Auth) {
	t.Helper()
	api := testutil.NewAPI(t)
	httpc, _ := testutil.HTTPClient()
	auth := &testutil.Auth{Token: "tok", RefreshedToken: "tok2"}
	return New(config.FitbitConfig{BaseURL: api.URL}, httpc, auth), api, auth
}

func entity(t *testing.T, c *Client, name string) provider.Entity {
	t.Helper()
	for _, e := range c.Entities() {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no entity %q", name)
	return provider.Entity{}
}

func window(start string, days int) fetch.Window {
	s, _ := time.Parse("2006-01-02", start)
	return fetch.Window{Start: s, End: s.AddDate(0, 0, days)}
}

func TestEntities_OrderAndTables(t *testing.T) {
	c, _, _ := newClient(t)
	var names []string
	for _, e := range c.Entities() {
		names = append(names, e.Name)
		assert.True(t, warehouse.IsRawTable(e.Table), e.Table)
		assert.Equal(t, Name, e.Provider)
	}
	assert.Equal(t, []string{"sleep", "activity", "heart_rate", "hrv", "spo2", "breathing_rate", "cardio_score", "temperature_skin"}, names)
	assert.Equal(t, 100, entity(t, c, "sleep").ChunkDays)
	assert.Equal(t, "v1.2", entity(t, c, "sleep").Version)
	assert.Equal(t, provider.ModeDaily, entity(t, c, "activity").Mode)
}

func TestSleep_WindowDatesAndTransform(t *testing.T) {
	c, api, _ := newClient(t)
	api.JSON("/1.2/user/-/sleep/date/2024-01-01/2024-04-09.json", `{"sleep":[
		{"logId":4412345678,"dateOfSleep":"2024-01-02","startTime":"2024-01-01T23:10:00.000","endTime":"2024-01-02T06:40:00.000",
		 "duration":27000000,"efficiency":93,"isMainSleep":true,"minutesAsleep":410,"minutesAwake":40,"timeInBed":450,"type":"stages",
		 "levels":{"summary":{"deep":{"minutes":80}}}}]}`)

	recs, err := entity(t, c, "sleep").Fetch(context.Background(), window("2024-01-01", 100))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "4412345678", recs[0].SourceID)

	raw, err := json.Marshal(recs[0].Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"log_id":"4412345678","date":"2024-01-02","start_time":"2024-01-01T23:10:00.000",
		"end_time":"2024-01-02T06:40:00.000","duration_ms":27000000,"efficiency":93,"is_main_sleep":true,
		"minutes_asleep":410,"minutes_awake":40,"time_in_bed":450,"sleep_type":"stages",
		"levels":{"summary":{"deep":{"minutes":80}}}}`, string(raw))
	assert.Equal(t, "Bearer tok", api.Requests()[0].Header.Get("Authorization"))
}

func TestActivity_DailySkipsMissingSummary(t *testing.T) {
	c, api, _ := newClient(t)
	api.JSON("/1/user/-/activities/date/2024-03-01.json", `{"summary":{"steps":9000,"caloriesOut":2400,
		"distances":[{"activity":"tracker","distance":6.1},{"activity":"total","distance":6.4}],"floors":12}}`)
	api.JSON("/1/user/-/activities/date/2024-03-02.json", `{"goals":{}}`)
	api.JSON("/1/user/-/activities/date/2024-03-03.json", `{"summary":{"steps":10,"distances":[]}}`)

	recs, err := entity(t, c, "activity").Fetch(context.Background(), window("2024-03-01", 3))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2024-03-01", recs[0].SourceID)
	assert.Equal(t, "2024-03-03", recs[1].SourceID)

	p := recs[0].Payload.(map[string]any)
	assert.Equal(t, 6.4, p["distance_km"])
	assert.Equal(t, 9000, p["steps"])
	assert.Equal(t, 0.0, recs[1].Payload.(map[string]any)["distance_km"])
	assert.Len(t, api.Requests(), 3)
}

func TestOptionalEntities_NotFoundIsEmpty(t *testing.T) {
	c, _, _ := newClient(t)
	for _, name := range []string{"spo2", "breathing_rate", "cardio_score", "temperature_skin"} {
		recs, err := entity(t, c, name).Fetch(context.Background(), window("2024-01-01", 30))
		assert.NoError(t, err, name)
		assert.Empty(t, recs, name)
	}

	_, err := entity(t, c, "hrv").Fetch(context.Background(), window("2024-01-01", 30))
	assert.Error(t, err, "hrv is not optional")
}

func TestForbiddenIsNotEmpty(t *testing.T) {
	c, api, _ := newClient(t)
	api.Handle("/1/user/-/spo2/date/2024-01-01/2024-01-30.json", func(*http.Request) (int, string) {
		return http.StatusForbidden, `{"errors":[{"errorType":"insufficient_scope"}]}`
	})
	_, err := entity(t, c, "spo2").Fetch(context.Background(), window("2024-01-01", 30))
	assert.Error(t, err)
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	c, api, auth := newClient(t)
	api.Handle("/1/user/-/hrv/date/2024-01-01/2024-01-30.json", func(r *http.Request) (int, string) {
		if r.Header.Get("Authorization") != "Bearer tok2" {
			return http.StatusUnauthorized, `{"errors":[{"errorType":"expired_token"}]}`
		}
		return http.StatusOK, `{"hrv":[{"dateTime":"2024-01-05","value":{"dailyRmssd":41.2,"deepRmssd":50.1}}]}`
	})

	recs, err := entity(t, c, "hrv").Fetch(context.Background(), window("2024-01-01", 30))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, auth.Refreshes)
	assert.Equal(t, 41.2, recs[0].Payload.(map[string]any)["daily_rmssd"])
}

func TestDecodeSpO2_BothShapes(t *testing.T) {
	arr, err := decodeSpO2(json.RawMessage(` [{"dateTime":"2024-01-01","value":{"avg":96.1,"min":93,"max":99}}]`))
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, 96.1, arr[0].Value.Avg)

	env, err := decodeSpO2(json.RawMessage(`{"value":[{"dateTime":"2024-01-02","value":{"avg":95,"min":92,"max":98}}]}`))
	require.NoError(t, err)
	require.Len(t, env, 1)
	assert.Equal(t, "2024-01-02", env[0].DateTime)

	none, err := decodeSpO2(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseVO2Max(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		in   string
		want VO2Max
	}{
		{"41-45", VO2Max{Value: f(43), RangeLow: f(41), RangeHigh: f(45)}},
		{"44.5", VO2Max{Value: f(44.5)}},
		{"", VO2Max{}},
		{"n/a", VO2Max{}},
		{"a-b", VO2Max{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVO2Max(tt.in), tt.in)
	}
}

func TestCardioScoreRecord(t *testing.T) {
	var d cardioScoreDay
	require.NoError(t, json.Unmarshal([]byte(`{"dateTime":"2024-02-01","value":{"vo2Max":"38-42"}}`), &d))
	raw, err := json.Marshal(cardioScoreRecord(d).Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-02-01","vo2_max":40,"vo2_max_range_low":38,"vo2_max_range_high":42}`, string(raw))
}
