package db_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/envmanager/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitPostgres_UnreachableServer(t *testing.T) {
	_, err := db.InitPostgres("host=127.0.0.1 port=1 sslmode=disable connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

func TestMigrate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS environments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = db.Migrate(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema")
}
