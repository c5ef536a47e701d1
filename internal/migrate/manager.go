package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Migrations returns the embedded goose migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Manager applies the embedded SQL migrations through goose.
type Manager struct {
	provider *goose.Provider
}

// Option configures Manager.
type Option func(*config)

type config struct {
	fsys    fs.FS
	verbose bool
}

// WithFS replaces the embedded migrations, mostly for tests.
func WithFS(fsys fs.FS) Option {
	return func(c *config) {
		if fsys != nil {
			c.fsys = fsys
		}
	}
}

// WithVerbose makes goose log each applied migration.
func WithVerbose() Option {
	return func(c *config) { c.verbose = true }
}

// NewManager constructs a Manager bound to db.
func NewManager(db *sql.DB, opts ...Option) (*Manager, error) {
	if db == nil {
		return nil, errors.New("migrate: nil db")
	}
	cfg := config{fsys: Migrations()}
	for _, opt := range opts {
		opt(&cfg)
	}
	var popts []goose.ProviderOption
	if cfg.verbose {
		popts = append(popts, goose.WithVerbose(true))
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, cfg.fsys, popts...)
	if err != nil {
		return nil, fmt.Errorf("migrate: new provider: %w", err)
	}
	return &Manager{provider: p}, nil
}

// Up applies all pending migrations and returns the applied file names.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	applied := make([]string, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Path)
	}
	return applied, nil
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) (string, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return "", fmt.Errorf("migrate down: %w", err)
	}
	return res.Source.Path, nil
}

// Status returns one line per known migration: file name and state.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		line := fmt.Sprintf("%s\t%s", s.Source.Path, s.State)
		if s.State == goose.StateApplied {
			line += "\t" + s.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, line)
	}
	return out, nil
}

// Version reports the current schema version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}
