package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/embermind/recall/window"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble a context window for a session",
		Long:  "Assemble a context window. Reads the session JSON (id, turns, checkpoint, summaries) from --session or stdin and prints the window.",
		Run:   runContext,
	}

	cmd.Flags().StringP("session", "s", "", "Session JSON file (default: stdin)")
	cmd.Flags().IntP("budget", "b", 4096, "Token budget")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	sessionPath, _ := cmd.Flags().GetString("session")
	budget, _ := cmd.Flags().GetInt("budget")

	var data []byte
	var err error
	if sessionPath != "" {
		data, err = os.ReadFile(sessionPath)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read session", err)
	}

	var session window.Session
	if err := json.Unmarshal(data, &session); err != nil {
		exitErr("parse session", err)
	}

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	win, err := e.AssembleContext(cmd.Context(), &session, budget)
	if err != nil {
		exitErr("assemble", err)
	}

	b, _ := json.MarshalIndent(win, "", "  ")
	fmt.Println(string(b))
}
