// Package dbsource pulls schema information and literal values from the
// benchmark databases. It is an I/O collaborator around the construction
// core: the core never touches a database itself.
package dbsource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"shaper/internal/util"

	"github.com/pkg/errors"

	// Benchmark databases ship either as SQLite files or PostgreSQL servers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Source is one open benchmark database.
type Source struct {
	db     *sql.DB
	driver string
	schema string
}

// Open connects to a benchmark database. For PostgreSQL the information
// schema is read from the "public" schema.
func Open(driver, dsn string) (*Source, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, errors.Errorf("dbsource: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s source", driver)
	}
	if err := db.Ping(); err != nil {
		util.CloseWithErr(db, "db source")
		return nil, errors.Wrapf(err, "ping %s source", driver)
	}
	return &Source{db: db, driver: driver, schema: "public"}, nil
}

// Close releases the underlying connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// TableInfo describes one table of a benchmark database.
type TableInfo struct {
	Columns     []string     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// ForeignKey is one outgoing reference of a table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
}

// Tables lists the user tables of the database, sorted by name.
func (s *Source) Tables(ctx context.Context) ([]string, error) {
	var rows *sql.Rows
	var err error
	switch s.driver {
	case DriverSQLite:
		rows, err = s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	default:
		rows, err = s.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = $1", s.schema)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer util.CloseWithErr(rows, "table rows")
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

// TableInfo reads columns, primary keys, and foreign keys of one table.
func (s *Source) TableInfo(ctx context.Context, table string) (TableInfo, error) {
	if s.driver == DriverSQLite {
		return s.tableInfoSQLite(ctx, table)
	}
	return s.tableInfoPostgres(ctx, table)
}

func (s *Source) tableInfoSQLite(ctx context.Context, table string) (TableInfo, error) {
	var info TableInfo
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return info, errors.Wrapf(err, "table_info %s", table)
	}
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			util.CloseWithErr(rows, "pragma rows")
			return info, err
		}
		info.Columns = append(info.Columns, name)
		if pk > 0 {
			info.PrimaryKeys = append(info.PrimaryKeys, name)
		}
	}
	util.CloseWithErr(rows, "pragma rows")

	fkRows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return info, errors.Wrapf(err, "foreign_key_list %s", table)
	}
	defer util.CloseWithErr(fkRows, "pragma fk rows")
	for fkRows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return info, err
		}
		info.ForeignKeys = append(info.ForeignKeys, ForeignKey{
			Column:           from,
			ReferencesTable:  refTable,
			ReferencesColumn: to.String,
		})
	}
	return info, fkRows.Err()
}

func (s *Source) tableInfoPostgres(ctx context.Context, table string) (TableInfo, error) {
	var info TableInfo
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, s.schema, table)
	if err != nil {
		return info, errors.Wrapf(err, "columns of %s", table)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			util.CloseWithErr(rows, "column rows")
			return info, err
		}
		info.Columns = append(info.Columns, name)
	}
	util.CloseWithErr(rows, "column rows")

	pkRows, err := s.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, s.schema, table)
	if err != nil {
		return info, errors.Wrapf(err, "primary keys of %s", table)
	}
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			util.CloseWithErr(pkRows, "pk rows")
			return info, err
		}
		info.PrimaryKeys = append(info.PrimaryKeys, name)
	}
	util.CloseWithErr(pkRows, "pk rows")

	fkRows, err := s.db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`, s.schema, table)
	if err != nil {
		return info, errors.Wrapf(err, "foreign keys of %s", table)
	}
	defer util.CloseWithErr(fkRows, "fk rows")
	for fkRows.Next() {
		var fk ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn); err != nil {
			return info, err
		}
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	return info, fkRows.Err()
}

// SampleColumn pulls up to limit distinct non-null values of one column,
// for literal slot filling.
func (s *Source) SampleColumn(ctx context.Context, table, column string, limit int) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %q FROM %q WHERE %q IS NOT NULL LIMIT %d", column, table, column, limit)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "sample %s.%s", table, column)
	}
	defer util.CloseWithErr(rows, "sample rows")
	var values []string
	for rows.Next() {
		var raw sql.RawBytes
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		values = append(values, string(raw))
	}
	return values, rows.Err()
}

// BuildSchemaCache collects the full table layout of the database into one
// document, keyed by table name.
func BuildSchemaCache(ctx context.Context, s *Source) (map[string]TableInfo, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	cache := make(map[string]TableInfo, len(tables))
	for _, table := range tables {
		info, err := s.TableInfo(ctx, table)
		if err != nil {
			return nil, err
		}
		cache[table] = info
	}
	return cache, nil
}
