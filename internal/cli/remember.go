package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/embermind/recall/core"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().IntP("importance", "i", 5, "Importance 1-10")
	cmd.Flags().String("category", "general", "Category: fact, emotion, insight, preference, relationship_moment, event_log, general")
	cmd.Flags().Bool("core", false, "Mark as core: included in every context window")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	importance, _ := cmd.Flags().GetInt("importance")
	category, _ := cmd.Flags().GetString("category")
	isCore, _ := cmd.Flags().GetBool("core")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("remember", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Stop()

	var item *core.MemoryItem
	if isCore {
		item, err = e.RememberCore(cmd.Context(), strings.TrimSpace(content), importance, core.Category(category))
	} else {
		item, err = e.Remember(cmd.Context(), strings.TrimSpace(content), importance, core.Category(category))
	}
	if err != nil {
		exitErr("remember", err)
	}

	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}
