package schema_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/dialect/sql/schema"
	"github.com/crudox/crudox/internal/schematest"
)

func TestDumpSQLite(t *testing.T) {
	stmts, err := schema.Dump(dialect.SQLite, schematest.Registry())
	require.NoError(t, err)

	byTable := map[string]string{}
	var order []string
	for _, stmt := range stmts {
		name := strings.SplitN(stmt, "`", 3)[1]
		byTable[name] = stmt
		order = append(order, name)
	}

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `users` (`uid` INTEGER PRIMARY KEY AUTOINCREMENT, `name` VARCHAR(255) NOT NULL, `age` INTEGER, `active` BOOLEAN NOT NULL, `country` VARCHAR(255))",
		byTable["users"])
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `pets` (`id` INTEGER PRIMARY KEY AUTOINCREMENT, `name` VARCHAR(255) NOT NULL, `age` INTEGER, `owner_id` INTEGER NOT NULL, FOREIGN KEY (`owner_id`) REFERENCES `users` (`uid`))",
		byTable["pets"])
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `user_groups` (`user_id` INTEGER NOT NULL, `group_id` INTEGER NOT NULL, PRIMARY KEY (`user_id`, `group_id`), FOREIGN KEY (`user_id`) REFERENCES `users` (`uid`), FOREIGN KEY (`group_id`) REFERENCES `groups` (`gid`))",
		byTable["user_groups"])

	// Soft delete and time mixins surface as plain columns.
	assert.Contains(t, byTable["orders"], "`deleted_at` TIMESTAMP")
	assert.Contains(t, byTable["orders"], "`amount` DECIMAL(24, 2) NOT NULL")
	assert.Contains(t, byTable["orders"], "`status` VARCHAR(255) NOT NULL")

	// Referenced tables come before their referrers.
	index := func(name string) int {
		for i, n := range order {
			if n == name {
				return i
			}
		}
		return -1
	}
	assert.Less(t, index("users"), index("pets"))
	assert.Less(t, index("users"), index("orders"))
	assert.Less(t, index("orders"), index("order_items"))
}

func TestDumpPostgres(t *testing.T) {
	stmts, err := schema.Dump(dialect.Postgres, schematest.Registry())
	require.NoError(t, err)
	all := strings.Join(stmts, "\n")
	assert.Contains(t, all, `"uid" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, all, `"name" VARCHAR(255) NOT NULL`)
	assert.NotContains(t, all, "AUTOINCREMENT")
	assert.NotContains(t, all, "`")
}

func TestDumpWithoutForeignKeys(t *testing.T) {
	stmts, err := schema.Dump(dialect.SQLite, schematest.Registry(), schema.WithForeignKeys(false))
	require.NoError(t, err)
	for _, stmt := range stmts {
		assert.NotContains(t, stmt, "FOREIGN KEY")
	}
}

func TestCreateSQLite(t *testing.T) {
	drv, err := sql.Open(dialect.SQLite, "file:schemacreate?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })

	ctx := context.Background()
	reg := schematest.Registry()
	require.NoError(t, schema.Create(ctx, drv, reg))
	// A second run is a no-op.
	require.NoError(t, schema.Create(ctx, drv, reg))

	require.NoError(t, drv.Exec(ctx,
		"INSERT INTO `users` (`name`, `active`) VALUES (?, ?)", []any{"Ariel", true}, nil))
	require.NoError(t, drv.Exec(ctx,
		"INSERT INTO `pets` (`name`, `owner_id`) VALUES (?, ?)", []any{"Luna", 1}, nil))
}
