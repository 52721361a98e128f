// Package backends delivers compiled SQL to live engines over
// database/sql. It is a boundary adapter for the CLI: it accepts
// statement text plus parameters and hands back stringly typed rows,
// and it can introspect an existing table into a schema. The core
// packages never import it.
package backends

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// driverName maps an engine name to its database/sql driver.
var driverName = map[string]string{
	"postgres": "pgx",
	"mysql":    "mysql",
	"sqlite":   "sqlite",
}

// MaxRows caps how many rows a query delivers.
const MaxRows = 1000

// Engines lists the supported engine names.
func Engines() []string {
	names := make([]string, 0, len(driverName))
	for name := range driverName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conn is an open connection to one engine.
type Conn struct {
	db     *sql.DB
	engine string
	dsn    string
}

// Open connects to the engine behind dsn and verifies it responds.
func Open(ctx context.Context, engine, dsn string) (*Conn, error) {
	driver, ok := driverName[engine]
	if !ok {
		return nil, fmt.Errorf("no driver for engine %q", engine)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Conn{db: db, engine: engine, dsn: dsn}, nil
}

// Engine returns the engine name the connection was opened with.
func (c *Conn) Engine() string { return c.engine }

// Close releases the connection.
func (c *Conn) Close() error { return c.db.Close() }

// Query runs one statement and delivers its rows as strings, capped at
// MaxRows.
func (c *Conn) Query(ctx context.Context, sqlText string, params []any) (*Result, error) {
	rows, err := c.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= MaxRows {
			result.Truncated = true
			break
		}
		vals := make([]*sql.NullString, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			vals[i] = &sql.NullString{}
			ptrs[i] = vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

// Exec runs one statement without delivering rows, for loading fixtures
// through the REPL.
func (c *Conn) Exec(ctx context.Context, sqlText string, params []any) error {
	if _, err := c.db.ExecContext(ctx, sqlText, params...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// RedactDSN masks the password portion of a connection string for
// display.
func RedactDSN(dsn string) string {
	// URL style (postgres).
	u, err := url.Parse(dsn)
	if err == nil && u.Scheme != "" && u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			// Rebuilt by hand to avoid percent-encoding the mask.
			masked := u.Scheme + "://" + u.User.Username() + ":****@" + u.Host + u.Path
			if u.RawQuery != "" {
				masked += "?" + u.RawQuery
			}
			return masked
		}
		return dsn
	}

	// MySQL style: user:pass@tcp(host)/db.
	if at := strings.Index(dsn, "@"); at > 0 {
		userPass := dsn[:at]
		if colon := strings.Index(userPass, ":"); colon >= 0 {
			return userPass[:colon+1] + "****" + dsn[at:]
		}
	}
	return dsn
}
