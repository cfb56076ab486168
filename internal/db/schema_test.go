package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureSchemaCreatesOnlyMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	for _, tbl := range schema {
		q := mock.ExpectQuery(`information_schema\.tables`).WithArgs(tbl.name)
		if tbl.name == "users" {
			q.WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))
			continue
		}
		q.WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + tbl.name).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHasTableTreatsErrorsAsAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`information_schema\.tables`).WithArgs("trips").WillReturnError(context.DeadlineExceeded)
	if HasTable(context.Background(), db, "trips") {
		t.Fatalf("expected lookup error to report absent")
	}
}
