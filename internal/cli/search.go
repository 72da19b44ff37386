package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/embermind/recall/attention"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories across all tiers",
		Long:  "Search memories and rank by attention score. The profile is inferred from the query unless set explicitly.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().StringP("profile", "p", "", "Attention profile: standard, semantic, temporal, importance, access, emotional")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	profile, _ := cmd.Flags().GetString("profile")
	query := strings.Join(args, " ")

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	var results []attention.Result
	if profile == "" {
		results, err = e.Search(cmd.Context(), query, limit)
	} else {
		results, err = e.SearchWithProfile(cmd.Context(), query, limit, attention.Profile(profile))
	}
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
