package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lifedata/connector/internal/credentials"
	"github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/logging"
	"github.com/lifedata/connector/internal/models"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Import or show stored credentials",
}

var credentialsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Upsert credential rows from a JSON file",
	Long: `Upsert credential rows from a JSON file holding one object or an array.

OAuth2 services (fitbit, tanita_health_planet) go to oauth2_credentials,
the rest (zaim, toggl_track) to credentials. Example:

  [{"service_name": "fitbit", "client_id": "...", "client_secret": "...",
    "access_token": "...", "refresh_token": "...",
    "expires_at": "2024-06-01T12:00:00Z"},
   {"service_name": "zaim", "client_id": "...", "client_secret": "...",
    "access_token": "...", "metadata": {"access_token_secret": "..."}}]`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialsImport,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored credentials with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsShow,
}

func init() {
	credentialsCmd.AddCommand(credentialsImportCmd, credentialsShowCmd)
	RootCmd.AddCommand(credentialsCmd)
}

func readCredentials(path string) ([]*models.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}
	data = bytes.TrimSpace(data)

	var creds []*models.Credential
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &creds)
	} else {
		var one models.Credential
		err = json.Unmarshal(data, &one)
		creds = append(creds, &one)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, c := range creds {
		if c == nil || c.ServiceName == "" {
			return nil, fmt.Errorf("entry %d: service_name is required", i)
		}
	}
	return creds, nil
}

func runCredentialsImport(cmd *cobra.Command, args []string) error {
	creds, err := readCredentials(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.finish(ctx)

	repo := credentials.NewRepository(a.exec)
	for _, c := range creds {
		if _, ok := a.store.Profile(c.ServiceName); !ok {
			return fmt.Errorf("unknown service %q", c.ServiceName)
		}
		table := credentials.TableFor(c.ServiceName)
		if err := repo.Import(ctx, table, c); err != nil {
			return err
		}
		a.logger.Audit(logging.NewAuditEvent(logging.CredentialImported, c.ServiceName, "import").
			WithDetail("table", table))
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", c.ServiceName, table)
	}
	return nil
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.finish(ctx)

	creds, err := credentials.NewRepository(a.exec).List(ctx)
	if err != nil {
		return err
	}
	masked := make([]*models.Credential, 0, len(creds))
	for _, c := range creds {
		masked = append(masked, c.Masked())
	}

	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		return printJSON(out, masked)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tCLIENT ID\tACCESS TOKEN\tREFRESH TOKEN\tEXPIRES AT\tUPDATED AT")
	for _, c := range masked {
		expires := "-"
		if c.ExpiresAt != nil {
			expires = c.ExpiresAt.UTC().Format(time.RFC3339)
		}
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ServiceName, dash(c.ClientID), dash(c.AccessToken), dash(c.RefreshToken), expires, updated)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
