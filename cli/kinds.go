package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberforge/scriptflow"
	"github.com/emberforge/scriptflow/registry"
	"github.com/emberforge/scriptflow/script"
)

// NewKindsCmd creates the "kinds" subcommand, which lists every registered
// node kind grouped by category.
func NewKindsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List registered node kinds by category",
		Args:  cobra.NoArgs,
		RunE:  runKinds,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runKinds(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	reg := registry.Global()
	script.Register(reg)

	categories := []scriptflow.NodeCategory{
		scriptflow.CategoryEvent,
		scriptflow.CategoryCondition,
		scriptflow.CategoryAction,
	}

	if format == "json" {
		grouped := make(map[string][]string, len(categories))
		for _, cat := range categories {
			grouped[string(cat)] = reg.Kinds(cat)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(grouped)
	}

	for _, cat := range categories {
		kinds := reg.Kinds(cat)
		fmt.Fprintf(out, "%s (%d):\n", cat, len(kinds))
		for _, kind := range kinds {
			fmt.Fprintf(out, "  %s\n", kind)
		}
	}
	return nil
}
