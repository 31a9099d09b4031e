package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/lifedata/connector/internal/models"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// printResults writes the entity results that completed, as JSON or a table.
func printResults(w io.Writer, results []models.EntityResult) error {
	if globalFlags.JSON {
		if results == nil {
			results = []models.EntityResult{}
		}
		return printJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENTITY\tTABLE\tFETCHED\tUNIQUE\tUPSERTED\tDURATION")
	total := 0
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Provider, r.Entity, r.Table, r.Fetched, r.Unique, r.Upserted, r.Duration.Round(time.Millisecond))
		total += r.Upserted
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d entities, %d records upserted\n", len(results), total)
	return nil
}
