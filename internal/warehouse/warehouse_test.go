package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDriver is a minimal database/sql driver that records statements.
type recordingDriver struct {
	mu         sync.Mutex
	statements []string
}

func (d *recordingDriver) Open(name string) (driver.Conn, error) {
	return &recordingConn{d: d}, nil
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if strings.Contains(query, "FAIL") {
		return nil, errors.New("SQL compilation error")
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.statements = append(c.d.statements, query)
	return driver.RowsAffected(3), nil
}

var testDriver = &recordingDriver{}

func init() {
	sql.Register("recording", testDriver)
}

func TestExec(t *testing.T) {
	ctx := context.Background()
	w, err := Open(ctx, Config{Driver: "recording", DSN: "test"})
	require.NoError(t, err)
	defer w.Close()

	res, err := w.Exec(ctx, "  COPY INTO news_api.PUBLIC.news_api_data FROM @stage  ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)

	testDriver.mu.Lock()
	assert.Contains(t, testDriver.statements, "COPY INTO news_api.PUBLIC.news_api_data FROM @stage")
	testDriver.mu.Unlock()

	_, err = w.Exec(ctx, "SELECT FAIL")
	assert.ErrorContains(t, err, "warehouse statement failed: SQL compilation error")

	_, err = w.Exec(ctx, "   ")
	assert.ErrorContains(t, err, "empty statement")
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverPgx})
	assert.ErrorContains(t, err, "DSN is required")

	_, err = Open(context.Background(), Config{Driver: "no-such-driver", DSN: "x"})
	assert.ErrorContains(t, err, "open no-such-driver warehouse")
}
