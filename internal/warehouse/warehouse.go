// Package warehouse executes workflow statements against the data warehouse.
//
// The graph never inspects statement results beyond success or failure;
// the warehouse owns schemas, row contents and its own concurrency.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"

	// Registers the "pgx" driver for Postgres-compatible warehouses.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the "snowflake" driver.
	_ "github.com/snowflakedb/gosnowflake"
)

// Supported driver names.
const (
	DriverSnowflake = "snowflake"
	DriverPgx       = "pgx"
)

// Warehouse executes a single SQL statement.
type Warehouse interface {
	Exec(ctx context.Context, statement string) (Result, error)
}

// Result is what the warehouse reported for a statement. RowsAffected is -1
// when the driver cannot tell.
type Result struct {
	RowsAffected int64         `json:"rows_affected"`
	Duration     time.Duration `json:"duration"`
}

// Config selects and tunes the warehouse connection.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// SQL is a Warehouse over database/sql.
type SQL struct {
	db     *sql.DB
	driver string
}

// Open connects to the warehouse and verifies the connection.
func Open(ctx context.Context, cfg Config) (*SQL, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DriverSnowflake
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("warehouse DSN is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s warehouse: %w", driver, err)
	}
	return &SQL{db: db, driver: driver}, nil
}

// New wraps an existing pool.
func New(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver}
}

// Exec implements Warehouse.
func (w *SQL) Exec(ctx context.Context, statement string) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return Result{}, errors.New("empty statement")
	}

	start := time.Now()
	res, err := w.db.ExecContext(ctx, statement)
	if err != nil {
		return Result{}, fmt.Errorf("warehouse statement failed: %w", err)
	}

	out := Result{RowsAffected: -1, Duration: time.Since(start)}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	logger.Debug("Statement executed.", "driver", w.driver, "rows_affected", out.RowsAffected, "duration", out.Duration)
	return out, nil
}

// Close releases the pool.
func (w *SQL) Close() error {
	return w.db.Close()
}
