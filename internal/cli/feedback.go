package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embermind/recall/assoc"
)

func init() {
	feedback := &cobra.Command{
		Use:   "feedback [memory-id] [kind]",
		Short: "Record feedback on a memory",
		Long:  "Record feedback on a memory. Kind: helpful, not_helpful, redundant, outdated, incorrect.",
		Args:  cobra.ExactArgs(2),
		Run:   runFeedback,
	}
	feedback.Flags().String("event", "", "Event id for replay deduplication (generated if empty)")
	RootCmd.AddCommand(feedback)

	related := &cobra.Command{
		Use:   "related [memory-id]",
		Short: "List learned associations of a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRelated,
	}
	related.Flags().IntP("limit", "l", 10, "Max neighbors")
	RootCmd.AddCommand(related)
}

func runFeedback(cmd *cobra.Command, args []string) {
	eventID, _ := cmd.Flags().GetString("event")

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	delta := e.Feedback(eventID, args[0], assoc.Feedback(args[1]))
	fmt.Printf("{\"applied\": %d}\n", delta)
}

func runRelated(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	neighbors := e.Related(args[0], limit)
	if len(neighbors) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(neighbors, "", "  ")
	fmt.Println(string(b))
}
