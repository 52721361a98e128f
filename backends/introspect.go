package backends

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/goshawk/datatypes"
)

// tableQuery lists user tables per engine.
var tableQuery = map[string]string{
	"postgres": `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' ORDER BY table_name`,
	"mysql": `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() ORDER BY table_name`,
	"sqlite": `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
}

// Tables lists the user tables visible on the connection.
func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, tableQuery[c.engine])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// TableSchema introspects one table into a schema. Column types come
// from information_schema on postgres and mysql and from
// pragma_table_info on sqlite; engine types without a counterpart map
// to string.
func (c *Conn) TableSchema(ctx context.Context, table string) (datatypes.Schema, error) {
	var fields []datatypes.Field
	var err error
	switch c.engine {
	case "sqlite":
		fields, err = c.sqliteColumns(ctx, table)
	default:
		fields, err = c.catalogColumns(ctx, table)
	}
	if err != nil {
		return datatypes.Schema{}, err
	}
	if len(fields) == 0 {
		return datatypes.Schema{}, fmt.Errorf("no such table %q", table)
	}
	schema, err := datatypes.NewSchema(fields...)
	if err != nil {
		return datatypes.Schema{}, fmt.Errorf("table %q: %w", table, err)
	}
	return schema, nil
}

func (c *Conn) catalogColumns(ctx context.Context, table string) ([]datatypes.Field, error) {
	query := `SELECT column_name, data_type, is_nullable,
			COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0)
		FROM information_schema.columns
		WHERE table_name = $1 AND table_schema = 'public'
		ORDER BY ordinal_position`
	if c.engine == "mysql" {
		query = `SELECT column_name, data_type, is_nullable,
				COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0)
			FROM information_schema.columns
			WHERE table_name = ? AND table_schema = DATABASE()
			ORDER BY ordinal_position`
	}
	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var fields []datatypes.Field
	for rows.Next() {
		var name, dataType, nullable string
		var precision, scale int
		if err := rows.Scan(&name, &dataType, &nullable, &precision, &scale); err != nil {
			return nil, fmt.Errorf("introspect %q: %w", table, err)
		}
		dt := catalogType(dataType, precision, scale)
		fields = append(fields, datatypes.Field{
			Name: name,
			Type: dt.WithNullable(strings.EqualFold(nullable, "YES")),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	return fields, nil
}

func (c *Conn) sqliteColumns(ctx context.Context, table string) ([]datatypes.Field, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, type, "notnull" FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var fields []datatypes.Field
	for rows.Next() {
		var name, declared string
		var notNull int
		if err := rows.Scan(&name, &declared, &notNull); err != nil {
			return nil, fmt.Errorf("introspect %q: %w", table, err)
		}
		fields = append(fields, datatypes.Field{
			Name: name,
			Type: sqliteType(declared).WithNullable(notNull == 0),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	return fields, nil
}

// catalogType maps an information_schema data_type to a logical type.
func catalogType(dataType string, precision, scale int) datatypes.DataType {
	switch strings.ToLower(dataType) {
	case "boolean", "bool":
		return datatypes.Boolean
	case "tinyint":
		return datatypes.Int8
	case "smallint", "int2":
		return datatypes.Int16
	case "integer", "int", "int4", "mediumint":
		return datatypes.Int32
	case "bigint", "int8":
		return datatypes.Int64
	case "real", "float4", "float":
		return datatypes.Float32
	case "double precision", "double", "float8":
		return datatypes.Float64
	case "numeric", "decimal":
		return decimalOrFloat(precision, scale)
	case "bytea", "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return datatypes.Binary
	case "date":
		return datatypes.Date
	case "time", "time without time zone", "time with time zone":
		return datatypes.Time
	case "timestamp", "timestamp without time zone", "datetime":
		return datatypes.Timestamp("")
	case "timestamp with time zone", "timestamptz":
		return datatypes.Timestamp("UTC")
	default:
		// varchar, text, uuid, json and anything unrecognized.
		return datatypes.String
	}
}

// sqliteType applies sqlite's affinity rules to a declared column type.
// Date, time and boolean declarations keep their logical kind even
// though sqlite stores them with numeric or text affinity.
func sqliteType(declared string) datatypes.DataType {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case upper == "":
		return datatypes.Binary
	case strings.Contains(upper, "BOOL"):
		return datatypes.Boolean
	case strings.Contains(upper, "DATETIME"), strings.Contains(upper, "TIMESTAMP"):
		return datatypes.Timestamp("")
	case strings.Contains(upper, "DATE"):
		return datatypes.Date
	case strings.Contains(upper, "TIME"):
		return datatypes.Time
	case strings.Contains(upper, "INT"):
		return datatypes.Int64
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"),
		strings.Contains(upper, "TEXT"):
		return datatypes.String
	case strings.Contains(upper, "BLOB"):
		return datatypes.Binary
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"):
		return datatypes.Float64
	default:
		if p, s, ok := declaredArgs(upper); ok {
			return decimalOrFloat(p, s)
		}
		return datatypes.Float64
	}
}

// declaredArgs extracts (precision, scale) from a declaration such as
// DECIMAL(12,2). A single argument means scale zero.
func declaredArgs(declared string) (int, int, bool) {
	open := strings.Index(declared, "(")
	end := strings.Index(declared, ")")
	if open < 0 || end < open {
		return 0, 0, false
	}
	parts := strings.Split(declared[open+1:end], ",")
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	scale := 0
	if len(parts) > 1 {
		scale, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, false
		}
	}
	return precision, scale, true
}

// decimalOrFloat guards the Decimal constructor: engines report
// unconstrained NUMERIC with no precision, which has no fixed-point
// counterpart here.
func decimalOrFloat(precision, scale int) datatypes.DataType {
	if precision > 0 && scale >= 0 && scale <= precision {
		return datatypes.Decimal(precision, scale)
	}
	return datatypes.Float64
}
