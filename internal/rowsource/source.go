// Package rowsource loads table rows from, and saves them to, a SQL
// database. Each workspace table maps to one SQL table with an id column
// and one text column per writable column id; existing tables with native
// column types load too, matched by column id or name.
package rowsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/logging"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/schema"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// ErrNoDriver is returned when the configuration names no driver.
var ErrNoDriver = errors.New("row source driver not configured")

// Source reads and writes table rows through database/sql.
type Source struct {
	db         *sql.DB
	driver     string
	translator *schema.Translator
	timeout    time.Duration
	logger     *slog.Logger
}

// Open connects to the configured database and pings it.
func Open(cfg registry.InternalRowSourceConfig, reg *registry.Registry) (*Source, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case "":
		return nil, ErrNoDriver
	case DriverMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc.ParseTime = true
		dsn = mc.FormatDSN()
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported row source driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	src := New(db, cfg.Driver, reg, cfg.QueryTimeout)
	ctx, cancel := src.withTimeout(context.Background())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	src.logger.Info("row source connected", "driver", cfg.Driver)
	return src, nil
}

// New wraps an open database. A zero timeout means no per-query deadline.
func New(db *sql.DB, driver string, reg *registry.Registry, timeout time.Duration) *Source {
	return &Source{
		db:         db,
		driver:     driver,
		translator: schema.NewTranslator(reg),
		timeout:    timeout,
		logger:     logging.WithComponent("rowsource").With("driver", driver),
	}
}

// DB returns the underlying database.
func (s *Source) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load appends every row of sqlTable to tbl and returns how many were
// loaded. Cells that do not convert to their column type are skipped and
// logged; the rest of the row is kept.
func (s *Source) Load(ctx context.Context, tbl *table.Table, sqlTable string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quote(sqlTable))
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", sqlTable, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns of %s: %w", sqlTable, err)
	}

	sch := tbl.Schema()
	var loaded []core.Row
	for rows.Next() {
		id, cells, err := s.translator.FromDB(rows, columns, sch)
		if cells == nil { // scan failure
			return 0, err
		}
		if err != nil {
			s.logger.Warn("cells skipped", "table", sqlTable, "row", id, "error", err)
		}
		loaded = append(loaded, core.Row{ID: id, Cells: cells})
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating %s: %w", sqlTable, err)
	}

	if err := tbl.Load(ctx, loaded); err != nil {
		return 0, err
	}
	s.logger.Info("rows loaded", "table", sqlTable, "rows", len(loaded))
	return len(loaded), nil
}

// Save replaces the contents of sqlTable with tbl's stored rows, creating
// the SQL table when it does not exist. It runs in one transaction.
func (s *Source) Save(ctx context.Context, tbl *table.Table, sqlTable string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sch := tbl.Schema()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.translator.CreateTableDDL(sqlTable, sch)); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", sqlTable, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+quote(sqlTable)); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", sqlTable, err)
	}

	rows := tbl.Rows()
	for _, r := range rows {
		query, args, err := s.translator.ToDB(sqlTable, sch, r.ID, r.Cells)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Info("rows saved", "table", sqlTable, "rows", len(rows))
	return len(rows), nil
}

// Tables lists the tables of the connected database.
func (s *Source) Tables(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	if s.driver == DriverMySQL {
		query = "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME"
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func quote(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '`')
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			out = append(out, '`')
		}
		out = append(out, name[i])
	}
	return string(append(out, '`'))
}
