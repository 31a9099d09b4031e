package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/models"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c", "health", "status"},
	Short:   "Check config, warehouse and credentials",
	Long: `Perform a health check of the connector setup.

This command checks:
- Configuration validity
- Warehouse connectivity
- A credential row for every enabled provider

Example:
  connector check --config config.yaml`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	statusOK      = "OK"
	statusWarning = "WARNING"
	statusFail    = "FAIL"
)

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return outputCheckResults(cmd.OutOrStdout(), []CheckResult{{
			Name:    "Configuration",
			Status:  statusFail,
			Message: err.Error(),
		}})
	}
	defer a.finish(cmd.Context())

	results := []CheckResult{
		{
			Name:    "Configuration",
			Status:  statusOK,
			Message: fmt.Sprintf("Configuration valid (version: %s)", a.cfg.Version),
			Details: fmt.Sprintf("Warehouse: %s", a.cfg.Warehouse.Driver),
		},
		checkWarehouse(cmd, a),
	}
	results = append(results, checkCredentials(cmd, a)...)
	return outputCheckResults(cmd.OutOrStdout(), results)
}

func checkWarehouse(cmd *cobra.Command, a *app) CheckResult {
	result := CheckResult{Name: "Warehouse", Status: statusOK}
	if _, err := a.exec.Exec(cmd.Context(), "SELECT 1"); err != nil {
		result.Status = statusFail
		result.Message = fmt.Sprintf("Warehouse query failed: %v", err)
		return result
	}
	result.Message = fmt.Sprintf("Connected (%s)", a.cfg.Warehouse.Driver)
	return result
}

var providerServices = []struct {
	provider string
	service  string
}{
	{"toggl", models.ServiceToggl},
	{"fitbit", models.ServiceFitbit},
	{"tanita", models.ServiceTanita},
	{"zaim", models.ServiceZaim},
}

func checkCredentials(cmd *cobra.Command, a *app) []CheckResult {
	var results []CheckResult
	for _, ps := range providerServices {
		result := CheckResult{Name: "Credentials " + ps.provider, Status: statusOK}
		if !a.syncer.Enabled(ps.provider) {
			result.Status = statusWarning
			result.Message = "Provider disabled"
			results = append(results, result)
			continue
		}

		// Toggl may run on the configured token alone.
		if ps.service == models.ServiceToggl && a.cfg.Providers.Toggl.APIToken != "" {
			result.Message = "API token from config"
			results = append(results, result)
			continue
		}

		cred, err := a.store.Credential(cmd.Context(), ps.service)
		var missing *apperrors.ErrCredentialsNotFound
		switch {
		case errors.As(err, &missing):
			result.Status = statusFail
			result.Message = fmt.Sprintf("No row for %s in %s", missing.Service, missing.Table)
		case err != nil:
			result.Status = statusFail
			result.Message = err.Error()
		default:
			result.Message = fmt.Sprintf("Found %s", ps.service)
			if cred.ExpiresAt != nil {
				result.Details = "expires " + cred.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
			}
		}
		results = append(results, result)
	}
	return results
}

func outputCheckResults(w io.Writer, results []CheckResult) error {
	failed := false
	for _, r := range results {
		if r.Status == statusFail {
			failed = true
		}
	}

	if globalFlags.JSON {
		if err := printJSON(w, results); err != nil {
			return err
		}
	} else if err := outputCheckResultsTable(w, results, failed); err != nil {
		return err
	}

	if failed {
		return fmt.Errorf("health check failed")
	}
	return nil
}

func outputCheckResultsTable(w io.Writer, results []CheckResult, failed bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE\tDETAILS")

	for _, r := range results {
		statusIcon := "✓"
		if r.Status == statusFail {
			statusIcon = "✗"
		} else if r.Status == statusWarning {
			statusIcon = "!"
		}

		details := r.Details
		if details == "" {
			details = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Name,
			statusIcon+" "+r.Status,
			r.Message,
			details,
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if failed {
		fmt.Fprintln(w, "✗ Some checks failed. Please review the output above.")
	} else {
		fmt.Fprintln(w, "✓ All checks passed!")
	}
	return nil
}
