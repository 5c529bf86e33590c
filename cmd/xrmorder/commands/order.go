package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakexrm/fakexrm/pkg/lifecycle"
	"github.com/fakexrm/fakexrm/pkg/ordering"
	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

type orderOutput struct {
	Version  uint64            `json:"version"`
	Creation []lifecycle.Step  `json:"creation"`
	Deletion []ordering.TypeID `json:"deletion"`
}

func newOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order [types...]",
		Short: "Print creation and deletion order",
		Long: `Print the creation order and the deletion order for entity types.

Without arguments every type in the schema document is ordered. Type names
that the schema does not declare are ordered as types without lookups.`,
		Example: `  # Order every entity in the schema
  xrmorder order --schema crm.yaml

  # Order a subset, as JSON
  xrmorder order --schema crm.cue --json opportunity contact account`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, span := env.tel.Tracer.StartSpan(cmd.Context(), "xrmorder.order")
			doc, graph, err := env.load(ctx)
			if err != nil {
				telemetry.End(span, err)
				return err
			}

			tracker := lifecycle.NewTracker(graph)
			plan, err := tracker.Plan(ctx, selectTypes(doc, args)...)
			telemetry.End(span, err)
			if err != nil {
				return err
			}

			writeLog(cmd.ErrOrStderr(), graph)
			return writeOrder(cmd.OutOrStdout(), plan, graph.DeletionOrder())
		},
	}

	return cmd
}

// writeOrder prints plan and the deletion order. The deletion order covers
// every registered type, the plan only the requested ones.
func writeOrder(w io.Writer, plan *lifecycle.CreationPlan, deletion []ordering.TypeID) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(orderOutput{
			Version:  plan.Version,
			Creation: plan.Steps,
			Deletion: deletion,
		})
	}

	fmt.Fprintln(w, "Creation order:")
	for i, step := range plan.Steps {
		if len(step.Deferred) > 0 {
			fmt.Fprintf(w, "  %d. %s (deferred: %s)\n", i+1, step.Type, strings.Join(step.Deferred, ", "))
		} else {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step.Type)
		}
	}

	fmt.Fprintln(w, "Deletion order:")
	for i, id := range deletion {
		fmt.Fprintf(w, "  %d. %s\n", i+1, id)
	}
	return nil
}
