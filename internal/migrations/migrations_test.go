package migrations

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
		"sql/README.md":           {Data: []byte("ignored")},
	}

	items, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 || items[0].Name != "one" {
		t.Fatalf("unexpected migration order: %+v", items)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys)
	if err == nil || !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("loadMigrations() error = %v", err)
	}
}

func TestEmbeddedMigrationsCreateAuditTables(t *testing.T) {
	items, err := loadMigrations(embeddedFS)
	if err != nil {
		t.Fatalf("loadMigrations(embedded) error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("embedded migrations = %d", len(items))
	}
	required := map[int64][]string{
		1: {"CREATE TABLE query_audit", "generated_sql", "idx_query_audit_session_created"},
		2: {"CREATE TABLE export_audit", "object_key"},
	}
	for _, item := range items {
		for _, snippet := range required[item.Version] {
			if !strings.Contains(item.UpSQL, snippet) {
				t.Fatalf("migration %d missing %q", item.Version, snippet)
			}
		}
	}
}

func TestUpAppliesOnlyPendingMigrations(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := &Runner{fsys: twoMigrations()}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS askdb_schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM askdb_schema_migrations ORDER BY version ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE two`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO askdb_schema_migrations`).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d", applied)
	}
	assertSQLMock(t, mock)
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := &Runner{fsys: twoMigrations()}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS askdb_schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM askdb_schema_migrations`).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE one`).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := runner.Up(context.Background(), db, 0)
	if err == nil || applied != 0 {
		t.Fatalf("Up() = %d, %v", applied, err)
	}
	assertSQLMock(t, mock)
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := &Runner{fsys: twoMigrations()}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS askdb_schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM askdb_schema_migrations ORDER BY version DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE two`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM askdb_schema_migrations`).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rolledBack, err := runner.Down(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("rolledBack = %d", rolledBack)
	}
	assertSQLMock(t, mock)
}

func TestStatusReportsAppliedVersions(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := &Runner{fsys: twoMigrations()}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS askdb_schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM askdb_schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))

	statuses, err := runner.Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(statuses) != 2 || !statuses[0].Applied || statuses[1].Applied || statuses[1].Name != "two" {
		t.Fatalf("statuses = %+v", statuses)
	}
	assertSQLMock(t, mock)
}

func twoMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/000001_one.up.sql":   {Data: []byte("CREATE TABLE one (id INT);")},
		"sql/000001_one.down.sql": {Data: []byte("DROP TABLE one;")},
		"sql/000002_two.up.sql":   {Data: []byte("CREATE TABLE two (id INT);")},
		"sql/000002_two.down.sql": {Data: []byte("DROP TABLE two;")},
	}
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
