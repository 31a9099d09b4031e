package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// EntityInfo describes one registered entity job.
type EntityInfo struct {
	Provider string `json:"provider"`
	Entity   string `json:"entity"`
	Table    string `json:"table"`
	Version  string `json:"version"`
	Chunking string `json:"chunking"`
	Enabled  bool   `json:"enabled"`
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List registered entity jobs in run order",
	Args:  cobra.NoArgs,
	RunE:  runEntities,
}

func init() {
	RootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish(cmd.Context())

	var infos []EntityInfo
	for _, p := range a.syncer.Providers() {
		for _, e := range p.Entities() {
			infos = append(infos, EntityInfo{
				Provider: e.Provider,
				Entity:   e.Name,
				Table:    e.Table,
				Version:  e.Version,
				Chunking: e.Chunking(),
				Enabled:  a.syncer.Enabled(p.Name()),
			})
		}
	}

	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		return printJSON(out, infos)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENTITY\tTABLE\tVERSION\tCHUNKING\tENABLED")
	for _, i := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", i.Provider, i.Entity, i.Table, i.Version, i.Chunking, i.Enabled)
	}
	return tw.Flush()
}
