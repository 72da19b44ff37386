package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	consolidate := &cobra.Command{
		Use:   "consolidate",
		Short: "Run one consolidation pass",
		Long:  "Run decay and tier transitions once, the same pass the background heartbeat runs.",
		Run:   runConsolidate,
	}
	RootCmd.AddCommand(consolidate)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show engine occupancy and cache counters",
		Run:   runStats,
	}
	RootCmd.AddCommand(stats)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	report, err := e.Consolidate(cmd.Context())
	if err != nil {
		exitErr("consolidate", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}

func runStats(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	b, _ := json.MarshalIndent(e.Stat(), "", "  ")
	fmt.Println(string(b))
}
