package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fakexrm/fakexrm/pkg/ordering"
)

type validateReport struct {
	Types  int                          `json:"types"`
	Cyclic map[ordering.TypeID][]string `json:"cyclic,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema document",
		Long: `Validate a schema document and order every entity it declares.

This command checks:
  - Document syntax and structure
  - Duplicate lookup attributes
  - That every entity can be placed in a creation order

Cyclic lookups are reported. With --strict they fail validation.`,
		Example: `  # Validate a schema
  xrmorder validate --schema crm.yaml

  # Fail on any reference cycle
  xrmorder validate --schema crm.cue --strict`,
		Args: cobra.NoArgs,
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

			if err := addTypes(graph, doc.Types()); err != nil {
				var cycle *ordering.CyclicDependencyError
				if errors.As(err, &cycle) {
					return fmt.Errorf("unresolvable cycle: %s", strings.Join(typeStrings(cycle.Path), " -> "))
				}
				return err
			}
			writeLog(cmd.ErrOrStderr(), graph)

			snap := graph.CreationOrder()
			report := validateReport{Types: snap.Len(), Cyclic: make(map[ordering.TypeID][]string)}
			for _, e := range snap.Entries {
				if len(e.CyclicAttributes) > 0 {
					report.Cyclic[e.Type] = e.CyclicAttributes
				}
			}

			log.Info().
				Str("schema", env.cfg.Schema.Path).
				Int("types", report.Types).
				Int("cyclic_types", len(report.Cyclic)).
				Msg("Schema validated")

			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "Schema OK: %d entity types\n", report.Types)
				for _, e := range snap.Entries {
					if attrs, ok := report.Cyclic[e.Type]; ok {
						fmt.Fprintf(w, "  cyclic: %s [%s]\n", e.Type, strings.Join(attrs, ", "))
					}
				}
			}

			if strict && len(report.Cyclic) > 0 {
				return fmt.Errorf("%d entity types have cyclic lookups", len(report.Cyclic))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any lookup closes a cycle")

	return cmd
}

func typeStrings(ids []ordering.TypeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
