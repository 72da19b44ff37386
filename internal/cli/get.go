package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	RootCmd.AddCommand(get)

	reinforce := &cobra.Command{
		Use:   "reinforce [id]",
		Short: "Reinforce a memory, resetting its decay clock",
		Args:  cobra.ExactArgs(1),
		Run:   runReinforce,
	}
	RootCmd.AddCommand(reinforce)
}

func runGet(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	item, err := e.Recall(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	b, _ := json.MarshalIndent(item, "", "  ")
	fmt.Println(string(b))
}

func runReinforce(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	if err := e.Reinforce(cmd.Context(), args[0]); err != nil {
		exitErr("reinforce", err)
	}
	fmt.Println("ok")
}
