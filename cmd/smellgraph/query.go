package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeusData/smellgraph/internal/cypher"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		project string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "query <cypher>",
		Short: "Run a read-only Cypher query and print the rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if project != "" {
				proj, err := s.GetProject(project)
				if err != nil {
					return err
				}
				if proj == nil {
					return fmt.Errorf("project not found: %s", project)
				}
			}
			exec := &cypher.Executor{Store: s, Project: project, MaxRows: limit}
			res, err := exec.Read(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"columns": res.Columns,
				"rows":    res.Rows,
				"total":   len(res.Rows),
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict the query to one project")
	cmd.Flags().IntVar(&limit, "max-rows", cypher.DefaultMaxRows, "maximum rows returned")
	return cmd
}
