package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/mysqldb"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
)

// ErrIntrospection marks a failed catalog or sampling query.
var ErrIntrospection = errors.New("schema introspection failed")

const DefaultSampleRows = 3

const foreignKeysSQL = `SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

// DB is the handle the builder introspects.
type DB interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Builder struct {
	// SampleRows caps rows fetched per table. Zero skips sampling.
	SampleRows int
	Now        func() time.Time
}

func NewBuilder(sampleRows int) *Builder {
	if sampleRows < 0 {
		sampleRows = 0
	}
	return &Builder{SampleRows: sampleRows, Now: time.Now}
}

// Build reads the live schema. Table names are interpolated into DESCRIBE
// and sampling statements unquoted, so they must be plain identifiers.
func (b *Builder) Build(ctx context.Context, db DB) (*Snapshot, error) {
	snapshot, err := b.build(ctx, db)
	observability.ObserveSchemaBuild(err)
	return snapshot, err
}

func (b *Builder) build(ctx context.Context, db DB) (*Snapshot, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database handle is nil", mysqldb.ErrConnection)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", mysqldb.ErrConnection, err)
	}

	database, err := activeDatabase(ctx, db)
	if err != nil {
		return nil, err
	}
	tableNames, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(tableNames))
	for _, name := range tableNames {
		columns, err := describeTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		samples, err := b.sampleTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		foreignKeys, err := foreignKeys(ctx, db, database, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableInfo{
			Name:        name,
			Columns:     columns,
			SampleRows:  samples,
			ForeignKeys: foreignKeys,
		})
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	snapshot, err := NewSnapshot(database, now().UTC(), tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospection, err)
	}
	return snapshot, nil
}

func activeDatabase(ctx context.Context, db DB) (string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DATABASE()")
	if err != nil {
		return "", fmt.Errorf("%w: select database: %w", ErrIntrospection, err)
	}
	_, values, err := query.ScanAll(rows)
	if err != nil {
		return "", fmt.Errorf("%w: select database: %w", ErrIntrospection, err)
	}
	if len(values) == 0 || len(values[0]) == 0 || values[0][0] == nil {
		return "", fmt.Errorf("%w: no database selected", ErrIntrospection)
	}
	return fmt.Sprint(values[0][0]), nil
}

func listTables(ctx context.Context, db DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("%w: show tables: %w", ErrIntrospection, err)
	}
	_, values, err := query.ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: show tables: %w", ErrIntrospection, err)
	}
	names := make([]string, 0, len(values))
	for _, row := range values {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		names = append(names, fmt.Sprint(row[0]))
	}
	return names, nil
}

func describeTable(ctx context.Context, db DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, "DESCRIBE "+table)
	if err != nil {
		return nil, fmt.Errorf("%w: describe %s: %w", ErrIntrospection, table, err)
	}
	columns, values, err := query.ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: describe %s: %w", ErrIntrospection, table, err)
	}

	field, typ, null, key := -1, -1, -1, -1
	for i, column := range columns {
		switch strings.ToLower(column) {
		case "field":
			field = i
		case "type":
			typ = i
		case "null":
			null = i
		case "key":
			key = i
		}
	}
	if field < 0 || typ < 0 || null < 0 || key < 0 {
		return nil, fmt.Errorf("%w: describe %s: unexpected columns %v", ErrIntrospection, table, columns)
	}

	infos := make([]ColumnInfo, 0, len(values))
	for _, row := range values {
		infos = append(infos, ColumnInfo{
			Name:         stringValue(row[field]),
			DeclaredType: stringValue(row[typ]),
			Nullable:     strings.EqualFold(stringValue(row[null]), "YES"),
			IsPrimaryKey: strings.EqualFold(stringValue(row[key]), "PRI"),
		})
	}
	return infos, nil
}

// sampleTable is best-effort only in the sense that an empty table yields no
// rows; any query failure is still an introspection error.
func (b *Builder) sampleTable(ctx context.Context, db DB, table string) ([]map[string]any, error) {
	samples := make([]map[string]any, 0)
	if b.SampleRows <= 0 {
		return samples, nil
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, b.SampleRows))
	if err != nil {
		return nil, fmt.Errorf("%w: sample %s: %w", ErrIntrospection, table, err)
	}
	columns, values, err := query.ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: sample %s: %w", ErrIntrospection, table, err)
	}
	result := query.Result{Columns: columns, Rows: values}
	return append(samples, result.Records()...), nil
}

func foreignKeys(ctx context.Context, db DB, database, table string) ([]ForeignKeyInfo, error) {
	rows, err := db.QueryContext(ctx, foreignKeysSQL, database, table)
	if err != nil {
		return nil, fmt.Errorf("%w: foreign keys %s: %w", ErrIntrospection, table, err)
	}
	_, values, err := query.ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: foreign keys %s: %w", ErrIntrospection, table, err)
	}
	keys := make([]ForeignKeyInfo, 0, len(values))
	for _, row := range values {
		if len(row) < 3 {
			continue
		}
		keys = append(keys, ForeignKeyInfo{
			ColumnName:       stringValue(row[0]),
			ReferencedTable:  stringValue(row[1]),
			ReferencedColumn: stringValue(row[2]),
		})
	}
	return keys, nil
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
