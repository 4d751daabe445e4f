package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	paystack "github.com/goliatone/go-paystack"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	TableWebhookDeliveries = "paystack_webhook_deliveries"
	TableRateLimitState    = "paystack_rate_limit_state"
)

const rootPath = "data/sql/migrations"

// Migration is one versioned schema step. Each step owns a single table.
type Migration struct {
	Version int
	Name    string
	Table   string
}

func (m Migration) UpFile() string {
	return m.Name + ".up.sql"
}

func (m Migration) DownFile() string {
	return m.Name + ".down.sql"
}

var schemaSteps = []Migration{
	{Version: 1, Name: "00001_paystack_webhook_deliveries", Table: TableWebhookDeliveries},
	{Version: 2, Name: "00002_paystack_rate_limit_state", Table: TableRateLimitState},
}

// Schema returns the ordered migration steps shared by every dialect.
func Schema() []Migration {
	out := make([]Migration, len(schemaSteps))
	copy(out, schemaSteps)
	return out
}

// Set is the validated migration tree of one dialect.
type Set struct {
	Dialect    string
	Path       string
	FS         fs.FS
	Migrations []Migration
}

// RegisterFunc receives the validated set, typically to hand its FS to a
// persistence client's RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, set Set) error

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// Load resolves the migration tree for dialect from the embedded files, or
// from source when given. The tree must hold an up and down file for every
// schema step, each up file must create its step's table, and no other up
// files may be present.
func Load(dialect string, source ...fs.FS) (Set, error) {
	root := paystack.GetMigrationsFS()
	if len(source) > 0 && source[0] != nil {
		root = source[0]
	}

	path := rootPath
	switch dialect = strings.TrimSpace(strings.ToLower(dialect)); dialect {
	case DialectPostgres:
	case DialectSQLite:
		path = rootPath + "/sqlite"
	default:
		return Set{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	sub, err := fs.Sub(root, path)
	if err != nil {
		return Set{}, fmt.Errorf("migrations: resolve %s filesystem: %w", dialect, err)
	}
	set := Set{Dialect: dialect, Path: path, FS: sub, Migrations: Schema()}
	if err := set.validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (s Set) validate() error {
	known := make(map[string]struct{}, len(s.Migrations))
	for _, step := range s.Migrations {
		known[step.UpFile()] = struct{}{}

		up, err := fs.ReadFile(s.FS, step.UpFile())
		if err != nil {
			return fmt.Errorf("migrations: %s is missing %s: %w", s.Dialect, step.UpFile(), err)
		}
		if !strings.Contains(strings.ToLower(string(up)), step.Table) {
			return fmt.Errorf("migrations: %s %s does not define table %s", s.Dialect, step.UpFile(), step.Table)
		}
		if _, err := fs.Stat(s.FS, step.DownFile()); err != nil {
			return fmt.Errorf("migrations: %s is missing %s: %w", s.Dialect, step.DownFile(), err)
		}
	}

	matches, err := fs.Glob(s.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", s.Path, err)
	}
	for _, match := range matches {
		if _, ok := known[match]; !ok {
			return fmt.Errorf("migrations: %s has unexpected migration %s", s.Dialect, match)
		}
	}
	return nil
}

// Register loads the set for dialect and passes it to registerFn.
func Register(ctx context.Context, dialect string, registerFn RegisterFunc) (Set, error) {
	if registerFn == nil {
		return Set{}, fmt.Errorf("migrations: register function is required")
	}
	set, err := Load(dialect)
	if err != nil {
		return Set{}, err
	}
	if err := registerFn(ctx, set); err != nil {
		return Set{}, fmt.Errorf("migrations: register %s (%s): %w", set.Dialect, set.Path, err)
	}
	return set, nil
}
