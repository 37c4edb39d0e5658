package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"sync"

	"github.com/angelmondragon/packfinderz-cart/pkg/db"
	"github.com/pressly/goose/v3"
)

// DefaultDir is the source tree create and validate work on. Each driver keeps its own
// subdirectory because the schemas differ in types and constraint syntax.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations
var embedded embed.FS

// goose keeps its dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Dialect returns the goose dialect and migrations subdirectory for a database driver.
func Dialect(driver string) (dialect, subdir string, err error) {
	switch driver {
	case "", db.DriverPostgres:
		return "postgres", db.DriverPostgres, nil
	case db.DriverSQLite:
		return "sqlite3", db.DriverSQLite, nil
	default:
		return "", "", fmt.Errorf("no migrations for database driver %q", driver)
	}
}

// DirFor is the on-disk migrations directory for driver under base.
func DirFor(base, driver string) (string, error) {
	_, subdir, err := Dialect(driver)
	if err != nil {
		return "", err
	}
	return path.Join(base, subdir), nil
}

// Migrator applies the cart_snapshots migrations of one driver to a database.
type Migrator struct {
	db      *sql.DB
	dialect string
	fsys    fs.FS
	dir     string
}

// New builds a Migrator over the migrations compiled into the binary. A non-empty dir
// reads them from that directory on disk instead.
func New(sqlDB *sql.DB, driver, dir string) (*Migrator, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("db is required")
	}
	dialect, subdir, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	m := &Migrator{db: sqlDB, dialect: dialect}
	if dir == "" {
		m.fsys = embedded
		m.dir = path.Join("migrations", subdir)
	} else {
		m.dir = path.Join(dir, subdir)
	}
	return m, nil
}

// ForClient builds a Migrator for a client opened with driver.
func ForClient(client *db.Client, driver string) (*Migrator, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	return New(sqlDB, driver, "")
}

// Dir is the directory the migrations are read from.
func (m *Migrator) Dir() string { return m.dir }

// Run executes a goose command such as up, down or status.
func (m *Migrator) Run(ctx context.Context, command string, args ...string) error {
	return m.with(func() error {
		if err := goose.RunContext(ctx, command, m.db, m.dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

func (m *Migrator) Up(ctx context.Context) error { return m.Run(ctx, "up") }

// Version reports the last applied migration.
func (m *Migrator) Version() (int64, error) {
	var version int64
	err := m.with(func() error {
		v, err := goose.GetDBVersion(m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// MigrateTo moves the schema up or down to target (YYYYMMDDHHMMSS).
func (m *Migrator) MigrateTo(ctx context.Context, target string) error {
	if target == "" {
		return fmt.Errorf("target version is required")
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	return m.with(func() error {
		current, err := goose.GetDBVersion(m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == version:
			return nil
		case current < version:
			if err := goose.UpToContext(ctx, m.db, m.dir, version); err != nil {
				return fmt.Errorf("goose up-to %d: %w", version, err)
			}
		default:
			if err := goose.DownToContext(ctx, m.db, m.dir, version); err != nil {
				return fmt.Errorf("goose down-to %d: %w", version, err)
			}
		}
		return nil
	})
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(m.fsys)
	defer goose.SetBaseFS(nil)
	return fn()
}
