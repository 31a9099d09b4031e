package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lifedata/connector/internal/config"
	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/models"
)

// Provider names as registered by the provider packages.
const (
	Toggl  = "toggl"
	Fitbit = "fitbit"
	Tanita = "tanita"
	Zaim   = "zaim"
)

// Schedule names.
const (
	ScheduleDaily            = "daily"
	ScheduleWeeklyHistorical = "weekly-historical"
	ScheduleFullHistorical   = "full-historical"
	ScheduleZaimMoneyAll     = "zaim-money-all"
)

// togglDaily is everything but the detailed report.
var togglDaily = []string{"projects", "clients", "tags", "me", "workspaces", "users", "groups", "time_entries"}

// Step syncs entities of one provider. Start, when set, overrides Days.
type Step struct {
	Provider string
	Entities []string
	Days     int
	Start    time.Time
}

// Steps returns the steps of a named schedule.
func Steps(name string, cfg *config.Config) ([]Step, error) {
	sc := cfg.Schedules
	switch name {
	case ScheduleDaily:
		return []Step{
			{Provider: Toggl, Entities: togglDaily, Days: sc.Daily.TogglTimeEntriesDays},
			{Provider: Fitbit, Days: sc.Daily.FitbitDays},
			{Provider: Tanita, Days: sc.Daily.TanitaDays},
			{Provider: Zaim, Days: sc.Daily.ZaimDays},
		}, nil
	case ScheduleWeeklyHistorical:
		return []Step{{Provider: Toggl, Entities: []string{"time_entries_report"}, Days: sc.WeeklyHistoricalDays}}, nil
	case ScheduleFullHistorical:
		return []Step{{Provider: Toggl, Entities: []string{"time_entries_report"}, Days: sc.FullHistoricalDays}}, nil
	case ScheduleZaimMoneyAll:
		start, err := time.Parse(time.DateOnly, cfg.Providers.Zaim.MoneyAllStart)
		if err != nil {
			return nil, fmt.Errorf("zaim money_all_start: %w", err)
		}
		return []Step{{Provider: Zaim, Entities: []string{"money"}, Start: start}}, nil
	default:
		return nil, fmt.Errorf("unknown schedule %q", name)
	}
}

// RunSchedule runs the steps in order. Disabled providers are skipped.
func (s *Syncer) RunSchedule(ctx context.Context, name string, steps []Step) ([]models.EntityResult, error) {
	ctx, _ = logging.WithRun(ctx)
	s.logger.InfoWithContext(ctx, "schedule started", "schedule", name)

	var results []models.EntityResult
	for _, st := range steps {
		if !s.Enabled(st.Provider) {
			s.logger.InfoWithContext(ctx, "provider disabled, skipping", "schedule", name, "provider", st.Provider)
			continue
		}
		w := s.LastDays(st.Days)
		if !st.Start.IsZero() {
			w = s.Since(st.Start)
		}
		res, err := s.SyncProvider(ctx, st.Provider, w, st.Entities...)
		results = append(results, res...)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "schedule aborted", "schedule", name, "provider", st.Provider, "error", err)
			return results, err
		}
	}

	s.logger.InfoWithContext(ctx, "schedule finished", "schedule", name, "entities", len(results))
	return results, nil
}

// LastDays is the window from midnight UTC days ago through tomorrow.
func (s *Syncer) LastDays(days int) fetch.Window {
	today := midnight(s.clock.Now())
	return fetch.Window{Start: today.AddDate(0, 0, -days), End: today.AddDate(0, 0, 2)}
}

// Since is the window from start's date through tomorrow.
func (s *Syncer) Since(start time.Time) fetch.Window {
	today := midnight(s.clock.Now())
	return fetch.Window{Start: midnight(start), End: today.AddDate(0, 0, 2)}
}

// Between covers the dates start through end inclusive.
func Between(start, end time.Time) (fetch.Window, error) {
	w := fetch.Window{Start: midnight(start), End: midnight(end).AddDate(0, 0, 1)}
	if !w.End.After(w.Start) {
		return fetch.Window{}, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return w, nil
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
