package toggl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/clock"
	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
	"github.com/lifedata/connector/internal/testutil"
	"github.com/lifedata/connector/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, wid string, auth provider.Authenticator) (*Client, *testutil.API, *clock.Fake) {
	t.Helper()
	api := testutil.NewAPI(t)
	httpc, _ := testutil.HTTPClient()
	fake := clock.NewFake(time.Unix(0, 0))
	cfg := config.TogglConfig{
		BaseURL:         api.URL + "/api/v9",
		ReportsURL:      api.URL + "/reports/api/v3",
		WorkspaceID:     wid,
		ReportPageSize:  1000,
		ReportPageDelay: time.Second,
	}
	if auth == nil {
		auth = &testutil.Auth{Token: "t"}
	}
	return New(cfg, httpc, auth, fake), api, fake
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

func window() fetch.Window {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return fetch.Window{Start: start, End: start.AddDate(0, 0, 10)}
}

// reportPage returns n groups of one entry each, ids starting at from.
func reportPage(from, n int) string {
	var groups []string
	for i := 0; i < n; i++ {
		groups = append(groups, fmt.Sprintf(
			`{"user_id":7,"username":"me","project_id":42,"task_id":null,"billable":false,"description":"work","tag_ids":[1],"time_entries":[{"id":%d,"seconds":60,"start":"2024-01-01T09:00:00+00:00"}]}`,
			from+i))
	}
	return "[" + strings.Join(groups, ",") + "]"
}

func TestEntities_Order(t *testing.T) {
	c, _, _ := newClient(t, "123", nil)
	var names []string
	for _, e := range c.Entities() {
		names = append(names, e.Name)
		assert.True(t, warehouse.IsRawTable(e.Table), e.Table)
	}
	assert.Equal(t, []string{
		"projects", "clients", "tags", "me", "workspaces", "users", "groups",
		"time_entries", "time_entries_report",
	}, names)

	report := byName(t, c, "time_entries_report")
	assert.Equal(t, "v3", report.Version)
	assert.Equal(t, ReportChunkDays, report.ChunkDays)
	assert.True(t, report.UpsertPerChunk)
	assert.Equal(t, "v9", byName(t, c, "time_entries").Version)
}

func TestMasters(t *testing.T) {
	c, api, _ := newClient(t, "123", nil)
	api.JSON("/api/v9/workspaces/123/projects", `[{"id":1,"name":"A","active":true},{"id":2,"name":"B"}]`)
	api.JSON("/api/v9/me", `{"id":99,"email":"me@example.com","default_workspace_id":123}`)
	api.JSON("/api/v9/workspaces", `[{"id":123,"name":"Home"}]`)
	api.JSON("/api/v9/workspaces/123/groups", `null`)

	ctx := context.Background()
	projects, err := byName(t, c, "projects").Fetch(ctx, fetch.Window{})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "1", projects[0].SourceID)
	assert.Equal(t, "A", projects[0].Payload.(map[string]any)["name"])

	me, err := byName(t, c, "me").Fetch(ctx, fetch.Window{})
	require.NoError(t, err)
	require.Len(t, me, 1)
	assert.Equal(t, "99", me[0].SourceID)

	ws, err := byName(t, c, "workspaces").Fetch(ctx, fetch.Window{})
	require.NoError(t, err)
	require.Len(t, ws, 1)

	groups, err := byName(t, c, "groups").Fetch(ctx, fetch.Window{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestMasters_RequireWorkspace(t *testing.T) {
	c, _, _ := newClient(t, "", nil)
	_, err := byName(t, c, "tags").Fetch(context.Background(), fetch.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace")
}

type metaAuth struct {
	*testutil.Auth
	workspace string
}

func (m *metaAuth) Credential(ctx context.Context, service string) (*models.Credential, error) {
	return &models.Credential{ServiceName: service, Metadata: map[string]any{models.MetaWorkspaceID: m.workspace}}, nil
}

func TestMasters_WorkspaceFromMetadata(t *testing.T) {
	c, api, _ := newClient(t, "", &metaAuth{Auth: &testutil.Auth{Token: "t"}, workspace: "555"})
	api.JSON("/api/v9/workspaces/555/tags", `[{"id":5,"name":"deep"}]`)

	recs, err := byName(t, c, "tags").Fetch(context.Background(), fetch.Window{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5", recs[0].SourceID)
}

func TestTimeEntries_DateRange(t *testing.T) {
	c, api, _ := newClient(t, "123", nil)
	api.JSON("/api/v9/me/time_entries", `[{"id":3000000001,"workspace_id":123,"duration":3600}]`)

	recs, err := byName(t, c, "time_entries").Fetch(context.Background(), window())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "3000000001", recs[0].SourceID)

	q := api.Requests()[0].URL.Query()
	assert.Equal(t, "2024-01-01", q.Get("start_date"))
	assert.Equal(t, "2024-01-10", q.Get("end_date"))
}

func TestReport_PaginatesAndFlattens(t *testing.T) {
	c, api, fake := newClient(t, "123", nil)
	api.Handle("/reports/api/v3/workspace/123/search/time_entries", func(r *http.Request) (int, string) {
		var q reportQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			return http.StatusBadRequest, err.Error()
		}
		switch q.FirstRowNumber {
		case 1:
			return 200, reportPage(1, 1000)
		case 1001:
			return 200, reportPage(1001, 1000)
		default:
			return 200, reportPage(2001, 400)
		}
	})

	recs, err := byName(t, c, "time_entries_report").Fetch(context.Background(), window())
	require.NoError(t, err)
	assert.Len(t, recs, 2400)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, fake.Sleeps())

	var queries []reportQuery
	for _, b := range api.Bodies() {
		var q reportQuery
		require.NoError(t, json.Unmarshal([]byte(b), &q))
		queries = append(queries, q)
	}
	require.Len(t, queries, 3)
	assert.Equal(t, []int{1, 1001, 2001}, []int{queries[0].FirstRowNumber, queries[1].FirstRowNumber, queries[2].FirstRowNumber})
	assert.Equal(t, "2024-01-01", queries[0].StartDate)
	assert.Equal(t, "2024-01-10", queries[0].EndDate)
	assert.Equal(t, 1000, queries[0].PageSize)

	row := recs[0].Payload.(map[string]any)
	assert.Equal(t, "1", recs[0].SourceID)
	assert.Equal(t, "me", row["username"])
	assert.Equal(t, "work", row["description"])
	assert.Equal(t, 60.0, row["seconds"])
	assert.Contains(t, row, "task_id")
	assert.Nil(t, row["task_id"])
}

func TestFlatten(t *testing.T) {
	var groups []reportGroup
	require.NoError(t, json.Unmarshal([]byte(`[
		{"user_id":1,"project_id":2,"time_entries":[{"id":10,"seconds":5},{"id":11,"seconds":6,"project_id":9}]},
		{"user_id":3,"time_entries":[]},
		{"user_id":4}
	]`), &groups))

	rows := flatten(groups)
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0]["user_id"])
	assert.Equal(t, 2.0, rows[1]["project_id"], "group fields win")
	assert.NotContains(t, rows[0], "username")
}

func TestToRecords(t *testing.T) {
	recs := toRecords([]map[string]any{
		{"id": 1.0},
		{"id": "abc"},
		{"name": "no id"},
		{"id": json.Number("9007199254740993")},
	})
	require.Len(t, recs, 3)
	assert.Equal(t, "1", recs[0].SourceID)
	assert.Equal(t, "abc", recs[1].SourceID)
	assert.Equal(t, "9007199254740993", recs[2].SourceID)
}
