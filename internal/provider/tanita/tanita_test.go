package tanita

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
	return New(config.TanitaConfig{BaseURL: api.URL + "/status"}, httpc, auth), api, auth
}

func byName(t *testing.T, c *Client, name string) provider.Entity {
	t.Helper()
	for _, e := range c.Entities() {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no entity %q", name)
	return provider.Entity{}
}

const innerscan = `{"birth_date":"19800101","height":"170","sex":"male","data":[
	{"date":"202401020730","keydata":"65.20","model":"01000117","tag":"6021"},
	{"date":"202401020730","keydata":"18.50","model":"01000117","tag":"6022"},
	{"date":"202401030715","keydata":"65.00","model":"01000117","tag":"6021"}]}`

func TestEntities(t *testing.T) {
	c, _, _ := newClient(t)
	es := c.Entities()
	require.Len(t, es, 2)
	assert.Equal(t, "body_composition", es[0].Name)
	assert.Equal(t, "blood_pressure", es[1].Name)
	for _, e := range es {
		assert.True(t, warehouse.IsRawTable(e.Table), e.Table)
		assert.Equal(t, MaxDaysPerRequest, e.ChunkDays)
	}
}

func TestBodyComposition_RequestAndGrouping(t *testing.T) {
	c, api, _ := newClient(t)
	api.JSON("/status/innerscan.json", innerscan)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := byName(t, c, "body_composition").Fetch(context.Background(), fetch.Window{Start: start, End: start.AddDate(0, 0, 90)})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	q := api.Requests()[0].URL.Query()
	assert.Equal(t, "1", q.Get("date"))
	assert.Equal(t, "20240101090000", q.Get("from"))
	assert.Equal(t, "20240331085959", q.Get("to"))
	assert.Equal(t, "6021,6022", q.Get("tag"))
	assert.Equal(t, "Bearer tok", api.Requests()[0].Header.Get("Authorization"))

	assert.Equal(t, "2024-01-01T22:30:00.000Z", recs[0].SourceID)
	raw, err := json.Marshal(recs[0].Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"202401020730","keydata":"65.20","model":"01000117","tag":"6021",
		"weight":"65.20","body_fat_percent":"18.50","_measured_at_jst":"2024-01-02T07:30:00+09:00"}`, string(raw))

	second := recs[1].Payload.(map[string]any)
	assert.Equal(t, "65.00", second["weight"])
	assert.Nil(t, second["body_fat_percent"])
}

func TestBloodPressure_Transform(t *testing.T) {
	items := []item{
		{Date: "202402101200", KeyData: "128", Model: "BP", Tag: TagSystolic},
		{Date: "202402101200", KeyData: "82", Model: "BP", Tag: TagDiastolic},
		{Date: "202402101200", KeyData: "66", Model: "BP", Tag: TagPulse},
		{Date: "bogus", KeyData: "1", Tag: TagPulse},
	}
	recs := bloodPressureRecords(items)
	require.Len(t, recs, 1)
	assert.Equal(t, "2024-02-10T03:00:00.000Z", recs[0].SourceID)
	p := recs[0].Payload.(map[string]any)
	assert.Equal(t, "128", p["systolic"])
	assert.Equal(t, "82", p["diastolic"])
	assert.Equal(t, "66", p["pulse"])
	assert.Equal(t, TagSystolic, p["tag"])
}

func TestEmptyData(t *testing.T) {
	c, api, _ := newClient(t)
	api.JSON("/status/sphygmomanometer.json", `{"data":[]}`)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := byName(t, c, "blood_pressure").Fetch(context.Background(), fetch.Window{Start: start, End: start.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUnauthorizedRefreshes(t *testing.T) {
	c, api, auth := newClient(t)
	api.Handle("/status/innerscan.json", func(r *http.Request) (int, string) {
		if r.Header.Get("Authorization") != "Bearer tok2" {
			return http.StatusUnauthorized, "expired"
		}
		return http.StatusOK, innerscan
	})
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := byName(t, c, "body_composition").Fetch(context.Background(), fetch.Window{Start: start, End: start.AddDate(0, 0, 5)})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, auth.Refreshes)
}

func TestParseResponseDate(t *testing.T) {
	at, err := ParseResponseDate("202412312359")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 14, 59, 0, 0, time.UTC), at.UTC())

	_, err = ParseResponseDate("2024")
	assert.Error(t, err)
}
