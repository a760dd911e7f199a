package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/invoicedesk/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_init.up.sql"])
	assert.True(t, names["000001_init.down.sql"])
	assert.True(t, names["000002_auth.up.sql"])
	assert.True(t, names["000002_auth.down.sql"])
	assert.True(t, names["000003_audit_logs.up.sql"])
	assert.True(t, names["000003_audit_logs.down.sql"])
}

func TestRunCreatesTablesOnSQLite(t *testing.T) {
	conn := dbtest.New(t)

	require.NoError(t, Run(conn))

	for _, table := range []string{"customers", "invoices", "users", "sessions", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRunRequiresHandle(t *testing.T) {
	assert.Error(t, Run(nil))
}
