package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakexrm/fakexrm/pkg/config"
	"github.com/fakexrm/fakexrm/pkg/ordering"
	"github.com/fakexrm/fakexrm/pkg/schema"
	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

// environment holds what every command needs: configuration, telemetry, and
// the schema-backed provider.
type environment struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *schema.SQLiteProvider
}

// setupEnvironment loads configuration and telemetry for cmd. The telemetry
// instance is attached to the command context.
func setupEnvironment(cmd *cobra.Command) (_ *environment, err error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	if schemaPath != "" {
		cfg.Schema.Path = schemaPath
	}
	if cfg.Schema.Path == "" {
		return nil, fmt.Errorf("schema path is required (--schema or schema.path)")
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if metricsAddr != "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.ListenAddress = metricsAddr
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	env := &environment{cfg: cfg, tel: tel}
	defer func() {
		if err != nil {
			env.Close()
		}
	}()

	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	ctx := tel.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	if cfg.Store.Enabled {
		store, err := schema.NewSQLiteProvider(schema.SQLiteConfig{
			Path:         cfg.Store.Path,
			QueryTimeout: cfg.Store.QueryTimeout,
		}, schema.WithLogger(tel.Logger.Zerolog()))
		if err != nil {
			return nil, err
		}
		if err := store.Open(ctx); err != nil {
			return nil, err
		}
		env.store = store
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return env, nil
}

// load reads the schema document and returns a fresh graph over it.
func (e *environment) load(ctx context.Context) (*schema.Document, *ordering.Graph, error) {
	doc, err := schema.LoadFile(e.cfg.Schema.Path)
	if err != nil {
		return nil, nil, err
	}
	graph, err := e.graphFor(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, graph, nil
}

// graphFor returns a new graph over doc. With the store enabled the document
// is imported first and the graph reads from the store.
func (e *environment) graphFor(ctx context.Context, doc *schema.Document) (*ordering.Graph, error) {
	var provider ordering.TypeDependencyProvider = doc.Provider()
	if e.store != nil {
		if err := e.store.Import(ctx, doc); err != nil {
			return nil, err
		}
		provider = e.store
	}

	return ordering.NewGraph(provider,
		ordering.WithLogger(e.tel.Logger.NewComponentLogger("ordering").Zerolog()),
		ordering.WithRecorder(e.tel.Metrics),
	), nil
}

func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.tel.Logger.WithError(err).Warn("Failed to close metadata store")
		}
	}
	if err := e.tel.Shutdown(ctx); err != nil {
		e.tel.Logger.WithError(err).Warn("Failed to shut down telemetry")
	}
}

// selectTypes returns args as type ids, or every document type when args is
// empty.
func selectTypes(doc *schema.Document, args []string) []ordering.TypeID {
	if len(args) == 0 {
		return doc.Types()
	}
	ids := make([]ordering.TypeID, len(args))
	for i, a := range args {
		ids[i] = ordering.TypeID(a)
	}
	return ids
}

func addTypes(graph *ordering.Graph, types []ordering.TypeID) error {
	for _, id := range types {
		if err := graph.Add(id); err != nil {
			return fmt.Errorf("failed to add %s: %w", id, err)
		}
	}
	return nil
}

func writeLog(w io.Writer, graph *ordering.Graph) {
	if !showLog {
		return
	}
	for _, line := range graph.Log() {
		fmt.Fprintln(w, line)
	}
}
