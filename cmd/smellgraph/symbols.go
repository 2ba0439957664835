package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/fqn"
	"github.com/DeusData/smellgraph/internal/lang"
	"github.com/DeusData/smellgraph/internal/parser"
)

// newSymbolsCmd prints what the parser extracts from one file without
// touching the graph. Useful when a finding looks wrong.
func newSymbolsCmd() *cobra.Command {
	var (
		lenient bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "Print the symbols, imports and usages parsed from one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			language, ok := lang.LanguageForExtension(filepath.Ext(path))
			if !ok {
				return fmt.Errorf("unsupported file type: %s", path)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			adapter := &parser.TreeSitter{Strict: !lenient}
			res, err := adapter.Parse(cmd.Context(), path, content, language)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			rel := filepath.ToSlash(filepath.Base(path))
			fmt.Fprintf(out, "%s (%s)\n", path, language)
			for _, s := range res.Symbols {
				fmt.Fprintf(out, "  %-9s %-40s %d-%d params=%d exported=%t\n",
					s.Kind, fqn.Symbol(rel, s.Parent, s.Name), s.StartLine, s.EndLine, s.ParamCount, s.Exported)
			}
			for _, imp := range res.Imports {
				fmt.Fprintf(out, "  import    %s\n", imp)
			}
			for _, u := range res.Usages {
				name := u.Name
				if u.Qualifier != "" {
					name = u.Qualifier + "." + u.Name
				}
				fmt.Fprintf(out, "  %-9s %s:%d\n", u.Kind, name, u.Line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "extract what the grammar recovered from files with syntax errors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parse result as JSON")
	return cmd
}
