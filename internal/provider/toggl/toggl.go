// Package toggl syncs workspace masters, time entries and the detailed
// report from Toggl Track.
package toggl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/lifedata/connector/internal/clock"
	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/httpclient"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/provider"
)

const (
	Name = "toggl"

	versionTrack   = "v9"
	versionReports = "v3"
	dateFmt        = "2006-01-02"

	// ReportChunkDays bounds one detailed report query.
	ReportChunkDays = 365
)

// CredentialSource exposes stored credential rows. *credentials.Store
// satisfies it.
type CredentialSource interface {
	Credential(ctx context.Context, service string) (*models.Credential, error)
}

// Client fetches Toggl Track entities.
type Client struct {
	api         *provider.API
	base        string
	reports     string
	workspaceID string
	creds       CredentialSource
	pageSize    int
	pageDelay   time.Duration
	sleeper     clock.Sleeper
}

// New creates a Client. Without cfg.WorkspaceID the workspace is read from
// the stored credential metadata when auth is a CredentialSource.
func New(cfg config.TogglConfig, client *httpclient.Client, auth provider.Authenticator, sleeper clock.Sleeper, opts ...provider.APIOption) *Client {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	size := cfg.ReportPageSize
	if size <= 0 {
		size = 1000
	}
	c := &Client{
		api:         provider.NewAPI(Name, models.ServiceToggl, client, auth, opts...),
		base:        cfg.BaseURL,
		reports:     cfg.ReportsURL,
		workspaceID: cfg.WorkspaceID,
		pageSize:    size,
		pageDelay:   cfg.ReportPageDelay,
		sleeper:     sleeper,
	}
	if src, ok := auth.(CredentialSource); ok {
		c.creds = src
	}
	return c
}

func (c *Client) Name() string { return Name }

// Entities returns masters, then time entries, then the detailed report.
func (c *Client) Entities() []provider.Entity {
	return []provider.Entity{
		c.workspaceList("projects"),
		c.workspaceList("clients"),
		c.workspaceList("tags"),
		c.master("me", func(ctx context.Context) ([]models.RawRecord, error) {
			var me map[string]any
			if err := c.api.Get(ctx, c.base+"/me", &me); err != nil {
				return nil, err
			}
			return toRecords([]map[string]any{me}), nil
		}),
		c.master("workspaces", func(ctx context.Context) ([]models.RawRecord, error) {
			var items []map[string]any
			if err := c.api.Get(ctx, c.base+"/workspaces", &items); err != nil {
				return nil, err
			}
			return toRecords(items), nil
		}),
		c.workspaceList("users"),
		c.workspaceList("groups"),
		{
			Provider: Name,
			Name:     "time_entries",
			Table:    table("time_entries"),
			Version:  versionTrack,
			Mode:     provider.ModeRange,
			Fetch:    c.timeEntries,
		},
		{
			Provider:       Name,
			Name:           "time_entries_report",
			Table:          table("time_entries_report"),
			Version:        versionReports,
			Mode:           provider.ModeRange,
			ChunkDays:      ReportChunkDays,
			UpsertPerChunk: true,
			Fetch:          c.detailedReport,
		},
	}
}

func table(entity string) string {
	return "raw_toggl_track__" + entity
}

func (c *Client) master(name string, fn func(ctx context.Context) ([]models.RawRecord, error)) provider.Entity {
	return provider.Entity{
		Provider: Name,
		Name:     name,
		Table:    table(name),
		Version:  versionTrack,
		Mode:     provider.ModeMaster,
		Fetch: func(ctx context.Context, _ fetch.Window) ([]models.RawRecord, error) {
			return fn(ctx)
		},
	}
}

func (c *Client) workspaceList(name string) provider.Entity {
	return c.master(name, func(ctx context.Context) ([]models.RawRecord, error) {
		wid, err := c.workspace(ctx)
		if err != nil {
			return nil, err
		}
		var items []map[string]any
		if err := c.api.Get(ctx, fmt.Sprintf("%s/workspaces/%s/%s", c.base, url.PathEscape(wid), name), &items); err != nil {
			return nil, err
		}
		return toRecords(items), nil
	})
}

func (c *Client) workspace(ctx context.Context) (string, error) {
	if c.workspaceID != "" {
		return c.workspaceID, nil
	}
	if c.creds != nil {
		cred, err := c.creds.Credential(ctx, models.ServiceToggl)
		if err != nil {
			return "", err
		}
		if wid := cred.Meta(models.MetaWorkspaceID); wid != "" {
			c.workspaceID = wid
			return wid, nil
		}
	}
	return "", errors.New("toggl workspace id is not configured")
}

func (c *Client) timeEntries(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
	q := url.Values{}
	q.Set("start_date", w.Start.UTC().Format(dateFmt))
	q.Set("end_date", w.Last().UTC().Format(dateFmt))

	var items []map[string]any
	if err := c.api.Get(ctx, c.base+"/me/time_entries?"+q.Encode(), &items); err != nil {
		return nil, err
	}
	return toRecords(items), nil
}

type reportQuery struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	FirstRowNumber int    `json:"first_row_number"`
	PageSize       int    `json:"page_size"`
}

func (c *Client) detailedReport(ctx context.Context, w fetch.Window) ([]models.RawRecord, error) {
	wid, err := c.workspace(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/workspace/%s/search/time_entries", c.reports, url.PathEscape(wid))
	start, end := w.Start.UTC().Format(dateFmt), w.Last().UTC().Format(dateFmt)

	rows, err := fetch.FetchPaginated(ctx, c.pageSize, c.pageDelay, c.sleeper, func(ctx context.Context, offset, size int) ([]map[string]any, error) {
		var groups []reportGroup
		body := reportQuery{StartDate: start, EndDate: end, FirstRowNumber: offset + 1, PageSize: size}
		if err := c.api.PostJSON(ctx, endpoint, body, &groups); err != nil {
			return nil, err
		}
		return flatten(groups), nil
	})
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}
