package repository

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shilkatype/server/internal/config"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the test database named by TEST_DB_NAME. The tests
// only run when SHILKA_TEST_POSTGRES is set.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("SHILKA_TEST_POSTGRES") == "" {
		t.Skip("SHILKA_TEST_POSTGRES not set")
	}

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.DBName = cfg.Database.TestDBName

	db, err := config.SetupDatabase(cfg)
	require.NoError(t, err, "Failed to set up test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRepository(t *testing.T) {
	db := openTestDB(t)

	runRepositoryContract(t, func(t *testing.T) Repository {
		_, err := db.Exec("TRUNCATE coin_transactions, typing_sessions, users RESTART IDENTITY CASCADE")
		require.NoError(t, err)
		return NewPostgresRepository(db)
	})
}
