package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGraphCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "graph [types...]",
		Short: "Render the dependency graph as Graphviz DOT",
		Long: `Render the entity dependency graph in Graphviz DOT format.

Edges point from an entity to the entity it looks up. Lookups that close a
cycle are drawn dashed.`,
		Example: `  # Print DOT to stdout
  xrmorder graph --schema crm.yaml

  # Write an SVG
  xrmorder graph --schema crm.yaml | dot -Tsvg > crm.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			doc, graph, err := env.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := addTypes(graph, selectTypes(doc, args)); err != nil {
				return err
			}

			writeLog(cmd.ErrOrStderr(), graph)

			if outFile == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), graph.DOT())
				return err
			}
			if err := os.WriteFile(outFile, []byte(graph.DOT()), 0644); err != nil {
				return fmt.Errorf("failed to write DOT file: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write DOT to this file instead of stdout")

	return cmd
}
