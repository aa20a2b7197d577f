package query

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/marcboeker/go-duckdb/v2"
)

func TestExecuteReturnsColumnsForZeroRows(t *testing.T) {
	db := openDuckDB(t)
	if _, err := db.Exec(`CREATE TABLE students (id INTEGER, marks INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO students VALUES (1, 40), (2, 90)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := NewExecutor(db).Execute(context.Background(), "SELECT id, marks FROM students WHERE marks > 100")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "id" || result.Columns[1] != "marks" {
		t.Fatalf("columns = %#v", result.Columns)
	}
	if result.Rows == nil {
		t.Fatal("expected non-nil empty rows")
	}
	if result.RowCount() != 0 || result.ColumnCount() != 2 {
		t.Fatalf("counts = %d rows, %d columns", result.RowCount(), result.ColumnCount())
	}
	if records := result.Records(); records == nil || len(records) != 0 {
		t.Fatalf("records = %#v", records)
	}
}

func TestExecuteRunsStatementVerbatim(t *testing.T) {
	db := openDuckDB(t)
	if _, err := db.Exec(`CREATE TABLE students (id INTEGER, name VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO students VALUES (1, 'ana'), (2, NULL)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := NewExecutor(db).Execute(context.Background(), "SELECT id, name FROM students ORDER BY id;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount() != 2 {
		t.Fatalf("rows = %d", result.RowCount())
	}
	if result.Rows[0][1] != "ana" {
		t.Fatalf("first name = %#v", result.Rows[0][1])
	}
	if result.Rows[1][1] != nil {
		t.Fatalf("second name = %#v, want nil", result.Rows[1][1])
	}
	records := result.Records()
	if records[0]["name"] != "ana" || records[0]["id"] != int32(1) {
		t.Fatalf("records[0] = %#v", records[0])
	}
}

func TestExecuteWrapsDriverError(t *testing.T) {
	db, mock := newSQLMock(t)
	driverErr := errors.New("Table 'school.nope' doesn't exist")
	mock.ExpectQuery(`SELECT \* FROM nope`).WillReturnError(driverErr)

	_, err := NewExecutor(db).Execute(context.Background(), "SELECT * FROM nope")
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Execute() error = %v, want ErrExecution", err)
	}
	if !errors.Is(err, driverErr) {
		t.Fatalf("Execute() error = %v, want driver error in chain", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsRowIterationError(t *testing.T) {
	db, mock := newSQLMock(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).RowError(0, errors.New("connection reset"))
	mock.ExpectQuery(`SELECT id FROM t`).WillReturnRows(rows)

	_, err := NewExecutor(db).Execute(context.Background(), "SELECT id FROM t")
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Execute() error = %v, want ErrExecution", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteNormalizesBytes(t *testing.T) {
	db, mock := newSQLMock(t)
	rows := sqlmock.NewRows([]string{"name", "score"}).AddRow([]byte("ana"), []byte("12.50"))
	mock.ExpectQuery(`SELECT name, score FROM t`).WillReturnRows(rows)

	result, err := NewExecutor(db).Execute(context.Background(), "SELECT name, score FROM t")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != "ana" || result.Rows[0][1] != "12.50" {
		t.Fatalf("row = %#v", result.Rows[0])
	}
	assertSQLMock(t, mock)
}

func TestExecuteRequiresSQL(t *testing.T) {
	db, mock := newSQLMock(t)
	_, err := NewExecutor(db).Execute(context.Background(), "   ")
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Execute() error = %v, want ErrExecution", err)
	}
	assertSQLMock(t, mock)
}

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
