package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"github.com/fakexrm/fakexrm/pkg/ordering"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteConfig holds metadata store configuration.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// QueryTimeout bounds each Dependencies lookup.
	QueryTimeout time.Duration
}

// SQLiteProvider serves references from a SQLite metadata store. It
// implements ordering.TypeDependencyProvider.
type SQLiteProvider struct {
	db     *sql.DB
	cfg    SQLiteConfig
	logger zerolog.Logger
}

// NewSQLiteProvider creates a provider. Call Open before use.
func NewSQLiteProvider(cfg SQLiteConfig, opts ...Option) (*SQLiteProvider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 5 * time.Second
	}

	o := newOptions(opts)
	return &SQLiteProvider{
		cfg:    cfg,
		logger: o.logger.With().Str("component", "schema-sqlite").Logger(),
	}, nil
}

// Open opens the database connection.
func (p *SQLiteProvider) Open(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", p.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(p.cfg.MaxOpenConns)
	db.SetMaxIdleConns(p.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	p.db = db
	p.logger.Debug().Str("path", p.cfg.Path).Msg("Metadata store opened")
	return nil
}

// Close closes the database connection.
func (p *SQLiteProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Migrate runs the embedded migrations.
func (p *SQLiteProvider) Migrate(_ context.Context) error {
	if p.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(p.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Import stores every entity of doc, replacing the references of entities
// that already exist. The whole document is written in one transaction.
func (p *SQLiteProvider) Import(ctx context.Context, doc *Document) error {
	if p.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range doc.Names() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (logical_name) VALUES (?) ON CONFLICT(logical_name) DO NOTHING`,
			name,
		); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE entity = ?`, name); err != nil {
			return fmt.Errorf("failed to clear relationships of %s: %w", name, err)
		}

		for i, ref := range doc.Entities[name].References {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO relationships (entity, attribute, target, ordinal) VALUES (?, ?, ?, ?)`,
				name, ref.Attribute, ref.Target, i,
			); err != nil {
				return fmt.Errorf("failed to insert relationship %s.%s: %w", name, ref.Attribute, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	p.logger.Info().Int("entities", len(doc.Entities)).Msg("Schema imported")
	return nil
}

// Dependencies implements ordering.TypeDependencyProvider. Unknown types have
// no dependencies.
func (p *SQLiteProvider) Dependencies(id ordering.TypeID) ([]ordering.Reference, error) {
	if p.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.QueryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT attribute, target FROM relationships WHERE entity = ? ORDER BY ordinal`,
		string(id),
	)
	if err != nil {
		return nil, p.classify(fmt.Errorf("failed to query relationships of %s: %w", id, err))
	}
	defer rows.Close()

	var refs []ordering.Reference
	for rows.Next() {
		var attribute, target string
		if err := rows.Scan(&attribute, &target); err != nil {
			return nil, p.classify(fmt.Errorf("failed to scan relationship: %w", err))
		}
		refs = append(refs, ordering.Reference{
			Target:          ordering.TypeID(target),
			Attribute:       attribute,
			SelfReferencing: target == string(id),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, p.classify(fmt.Errorf("failed to iterate relationships: %w", err))
	}

	return refs, nil
}

// classify marks timeouts and lock contention as transient so callers may
// retry the lookup. Other failures are returned unchanged.
func (p *SQLiteProvider) classify(err error) error {
	if !isTransientDBError(err) {
		return err
	}
	return ordering.NewTransientError("metadata store unavailable", err).
		WithCode(ordering.ErrCodeProviderFailed).
		WithDetail("query_timeout", p.cfg.QueryTimeout.String())
}

func isTransientDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// Types lists every stored entity type, sorted.
func (p *SQLiteProvider) Types(ctx context.Context) ([]ordering.TypeID, error) {
	return p.queryTypes(ctx, `SELECT logical_name FROM entities ORDER BY logical_name`)
}

// Referrers lists the entity types holding a lookup to target, sorted.
func (p *SQLiteProvider) Referrers(ctx context.Context, target ordering.TypeID) ([]ordering.TypeID, error) {
	return p.queryTypes(ctx,
		`SELECT DISTINCT entity FROM relationships WHERE target = ? ORDER BY entity`,
		string(target),
	)
}

func (p *SQLiteProvider) queryTypes(ctx context.Context, query string, args ...any) ([]ordering.TypeID, error) {
	if p.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity types: %w", err)
	}
	defer rows.Close()

	var ids []ordering.TypeID
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan entity type: %w", err)
		}
		ids = append(ids, ordering.TypeID(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity types: %w", err)
	}

	return ids, nil
}
