package cli

import (
	"fmt"
	"time"

	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/syncer"
	"github.com/spf13/cobra"
)

func scheduleCmd(name, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.finish(ctx)

			steps, err := syncer.Steps(name, a.cfg)
			if err != nil {
				return err
			}
			results, runErr := a.syncer.RunSchedule(ctx, name, steps)
			if err := printResults(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			return runErr
		},
	}
}

var syncFlags struct {
	Days  int
	Start string
	End   string
}

// syncCmd syncs one provider, optionally limited to some entities
var syncCmd = &cobra.Command{
	Use:   "sync <provider> [entity...]",
	Short: "Sync one provider or chosen entities",
	Long: `Sync all entities of one provider, or only the ones named.

Without flags the provider's default lookback is used. --days sets the
lookback; --start and --end (YYYY-MM-DD, inclusive) set an explicit range.

Examples:
  connector sync fitbit
  connector sync fitbit sleep heart_rate --days 30
  connector sync toggl time_entries_report --start 2023-01-01 --end 2023-12-31`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncFlags.Days, "days", 0, "Lookback in days (default: provider default_days)")
	syncCmd.Flags().StringVar(&syncFlags.Start, "start", "", "Range start date, YYYY-MM-DD")
	syncCmd.Flags().StringVar(&syncFlags.End, "end", "", "Range end date, YYYY-MM-DD (default: tomorrow)")

	RootCmd.AddCommand(
		scheduleCmd(syncer.ScheduleDaily, "Toggl masters and entries, Fitbit, Tanita, Zaim",
			"Run the daily sync: Toggl masters and time entries, then all Fitbit, Tanita and Zaim entities."),
		scheduleCmd(syncer.ScheduleWeeklyHistorical, "Toggl detailed report, last 30 days",
			"Re-sync the Toggl detailed report over the weekly historical lookback."),
		scheduleCmd(syncer.ScheduleFullHistorical, "Toggl detailed report, last 365 days",
			"Re-sync the Toggl detailed report over the full historical lookback."),
		scheduleCmd(syncer.ScheduleZaimMoneyAll, "Full Zaim money history",
			"Sync every Zaim money record since providers.zaim.money_all_start."),
		syncCmd,
	)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx, _ := logging.WithRun(cmd.Context())
	defer a.finish(ctx)

	name := args[0]
	w, err := syncWindow(a, name)
	if err != nil {
		return err
	}

	results, runErr := a.syncer.SyncProvider(ctx, name, w, args[1:]...)
	if err := printResults(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	return runErr
}

func syncWindow(a *app, name string) (fetch.Window, error) {
	if syncFlags.Start == "" {
		if syncFlags.End != "" {
			return fetch.Window{}, fmt.Errorf("--end requires --start")
		}
		days := syncFlags.Days
		if days <= 0 {
			days = defaultDays(a, name)
		}
		return a.syncer.LastDays(days), nil
	}
	if syncFlags.Days > 0 {
		return fetch.Window{}, fmt.Errorf("--days and --start are mutually exclusive")
	}

	start, err := time.Parse(time.DateOnly, syncFlags.Start)
	if err != nil {
		return fetch.Window{}, fmt.Errorf("invalid --start: %w", err)
	}
	if syncFlags.End == "" {
		return a.syncer.Since(start), nil
	}
	end, err := time.Parse(time.DateOnly, syncFlags.End)
	if err != nil {
		return fetch.Window{}, fmt.Errorf("invalid --end: %w", err)
	}
	return syncer.Between(start, end)
}

func defaultDays(a *app, name string) int {
	p := a.cfg.Providers
	switch name {
	case syncer.Fitbit:
		return p.Fitbit.DefaultDays
	case syncer.Tanita:
		return p.Tanita.DefaultDays
	case syncer.Zaim:
		return p.Zaim.DefaultDays
	default:
		return p.Toggl.DefaultDays
	}
}
