package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberforge/scriptflow/loader"
	"github.com/emberforge/scriptflow/registry"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file...>",
		Short: "Lint behavior graph files without executing",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")
	cmd.Flags().Bool("check-kinds", false, "Also flag node kinds with no registered handler")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")
	checkKinds, _ := cmd.Flags().GetBool("check-kinds")
	out := cmd.OutOrStdout()

	var all []loader.Diagnostic

	for _, filePath := range args {
		doc, err := loader.Load(filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return exitError(exitFileNotFound, "file not found: %s", filePath)
			}
			all = append(all, loader.Diagnostic{
				Code:     "SG-000",
				Severity: loader.SeverityError,
				Message:  fmt.Sprintf("failed to parse %s: %v", filePath, err),
			})
			continue
		}

		var diags []loader.Diagnostic
		if checkKinds {
			diags = loader.LintWithRegistry(doc, registry.Global())
		} else {
			diags = loader.Lint(doc)
		}
		all = append(all, diags...)
	}

	printDiagnostics(out, all, format)

	hasErrs := loader.HasErrors(all)
	hasWarns := len(loader.Warnings(all)) > 0

	if hasErrs || (strict && hasWarns) {
		return exitError(exitValidation, "validation failed")
	}

	return nil
}

// printDiagnostics writes diagnostics in the requested format, followed by
// a summary line (for text format).
func printDiagnostics(w io.Writer, diags []loader.Diagnostic, format string) {
	if format == "json" {
		printDiagnosticsJSON(w, diags)
		return
	}
	printDiagnosticsText(w, diags)
}

func printDiagnosticsText(w io.Writer, diags []loader.Diagnostic) {
	for _, d := range diags {
		sev := strings.ToUpper(d.Severity)
		if d.Path != "" {
			fmt.Fprintf(w, "%s [%s]: %s (at %s)\n", sev, d.Code, d.Message, d.Path)
		} else {
			fmt.Fprintf(w, "%s [%s]: %s\n", sev, d.Code, d.Message)
		}
	}

	errs := loader.Errors(diags)
	warns := loader.Warnings(diags)

	switch {
	case len(errs) == 0 && len(warns) == 0:
		fmt.Fprintln(w, "Valid!")
	case len(errs) == 0 && len(warns) > 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", len(warns), pluralize("warning", len(warns)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			len(errs), pluralize("error", len(errs)),
			len(warns), pluralize("warning", len(warns)))
	}
}

func printDiagnosticsJSON(w io.Writer, diags []loader.Diagnostic) {
	// Output an empty array rather than null when there are no diagnostics.
	if diags == nil {
		diags = []loader.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(diags)
}

// pluralize returns the singular or plural form of a word based on count.
func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
