package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakexrm/fakexrm/pkg/lifecycle"
	"github.com/fakexrm/fakexrm/pkg/schema"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [types...]",
		Short: "Reprint the order whenever the schema changes",
		Long: `Print the creation and deletion order, then watch the schema document and
print it again after every change. Invalid edits are logged and skipped.`,
		Example: `  # Watch a schema while editing it
  xrmorder watch --schema crm.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			ctx := cmd.Context()

			doc, err := schema.LoadFile(env.cfg.Schema.Path)
			if err != nil {
				return err
			}
			if err := env.printOrder(cmd, doc, args); err != nil {
				return err
			}

			watcher := schema.NewWatcher(env.cfg.Schema.Path,
				schema.WithLogger(env.tel.Logger.Zerolog()),
				schema.WithDebounce(env.cfg.Schema.Debounce),
				schema.WithReloadObserver(env.tel.Metrics.RecordSchemaReload),
			)
			if err := watcher.Start(ctx, func(doc *schema.Document) error {
				fmt.Fprintln(cmd.OutOrStdout())
				return env.printOrder(cmd, doc, args)
			}); err != nil {
				return err
			}
			defer watcher.Stop()

			<-ctx.Done()
			return nil
		},
	}

	return cmd
}

// printOrder orders doc in a new graph and prints the result.
func (e *environment) printOrder(cmd *cobra.Command, doc *schema.Document, args []string) error {
	ctx := cmd.Context()
	graph, err := e.graphFor(ctx, doc)
	if err != nil {
		return err
	}

	plan, err := lifecycle.NewTracker(graph).Plan(ctx, selectTypes(doc, args)...)
	if err != nil {
		return err
	}

	writeLog(cmd.ErrOrStderr(), graph)
	return writeOrder(cmd.OutOrStdout(), plan, graph.DeletionOrder())
}
