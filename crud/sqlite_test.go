package crud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/internal/schematest"
	"github.com/crudox/crudox/querylanguage"
)

var testSchema = []string{
	`CREATE TABLE users (
		uid INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER,
		active INTEGER NOT NULL,
		country TEXT
	)`,
	`CREATE TABLE pets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER,
		owner_id INTEGER NOT NULL REFERENCES users (uid)
	)`,
	`CREATE TABLE groups (
		gid INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE user_groups (
		user_id INTEGER NOT NULL REFERENCES users (uid),
		group_id INTEGER NOT NULL REFERENCES groups (gid),
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users (uid)
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		order_id INTEGER NOT NULL REFERENCES orders (id)
	)`,
}

func openSQLite(t *testing.T) dialect.Driver {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	drv, err := sql.Open(dialect.SQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	// In-memory databases disappear with their last connection.
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	ctx := context.Background()
	for _, stmt := range testSchema {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil))
	}
	return drv
}

func quietService(t *testing.T, drv dialect.Driver, entity string) *Service {
	t.Helper()
	return NewService(schematest.Entity(entity), drv, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// seedUsers inserts three users: Ariel with three pets and the admins group,
// Noa with one pet, Lior with none.
func seedUsers(t *testing.T, drv dialect.Driver) (users, pets *Service) {
	t.Helper()
	ctx := context.Background()
	users = quietService(t, drv, "User")
	pets = quietService(t, drv, "Pet")

	ariel, err := users.Create(ctx, Record{"name": "Ariel", "age": 30, "country": "NL"})
	require.NoError(t, err)
	noa, err := users.Create(ctx, Record{"name": "Noa", "age": 25, "active": false, "country": "NL"})
	require.NoError(t, err)
	_, err = users.Create(ctx, Record{"name": "Lior", "country": "IL"})
	require.NoError(t, err)

	for _, name := range []string{"Rex", "Odie", "Milo"} {
		_, err = pets.Create(ctx, Record{"name": name, "owner": ariel["id"]})
		require.NoError(t, err)
	}
	_, err = pets.Create(ctx, Record{"name": "Loki", "owner": noa["id"]})
	require.NoError(t, err)

	require.NoError(t, drv.Exec(ctx, "INSERT INTO groups (name) VALUES ('admins')", []any{}, nil))
	require.NoError(t, drv.Exec(ctx, "INSERT INTO user_groups (user_id, group_id) VALUES (?, ?)",
		[]any{ariel["id"], int64(1)}, nil))
	return users, pets
}

func userSchema(t *testing.T) *querylanguage.Schema {
	t.Helper()
	sc, err := querylanguage.NewSchemaWith(schematest.Entity("User"),
		querylanguage.Include{"pets": true, "groups": true}, nil, nil)
	require.NoError(t, err)
	return sc
}

func TestIntegration_RelationFilterNoDuplication(t *testing.T) {
	drv := openSQLite(t)
	users, _ := seedUsers(t, drv)
	ctx := context.Background()
	sc := userSchema(t)

	// Ariel owns three pets whose names contain "o"; the EXISTS strategy
	// must still return her once.
	q, err := sc.DecodeQueryJSON([]byte(`{"where": {"pets": {"name": {"contains": "o"}}}, "orderBy": [{"field": "name"}]}`))
	require.NoError(t, err)
	recs, err := users.FindAll(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ariel", recs[0]["name"])
	assert.Equal(t, "Noa", recs[1]["name"])
}

func TestIntegration_FilterComposition(t *testing.T) {
	drv := openSQLite(t)
	users, _ := seedUsers(t, drv)
	ctx := context.Background()
	sc := userSchema(t)

	for _, tt := range []struct {
		name  string
		where string
		want  []string
	}{
		{
			name:  "field and relation",
			where: `{"active": true, "pets": {"name": {"startsWith": "R"}}}`,
			want:  []string{"Ariel"},
		},
		{
			name:  "or branches",
			where: `{"_or": [{"country": "IL"}, {"age": {"gte": 30}}]}`,
			want:  []string{"Ariel", "Lior"},
		},
		{
			name:  "many to many",
			where: `{"groups": {"name": "admins"}}`,
			want:  []string{"Ariel"},
		},
		{
			name:  "nested and with isNull",
			where: `{"_and": [{"active": true}, {"country": {"in": ["IL", "NL"]}}], "age": {"isNull": true}}`,
			want:  []string{"Lior"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			q, err := sc.DecodeQueryJSON([]byte(`{"where": ` + tt.where + `, "orderBy": [{"field": "name"}]}`))
			require.NoError(t, err)
			recs, err := users.FindAll(ctx, q)
			require.NoError(t, err)
			names := make([]string, len(recs))
			for i, r := range recs {
				names[i] = r["name"].(string)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestIntegration_Paginate(t *testing.T) {
	drv := openSQLite(t)
	users, _ := seedUsers(t, drv)
	ctx := context.Background()
	sc := userSchema(t)

	q, err := sc.DecodeQueryJSON([]byte(`{"orderBy": [{"field": "name"}], "pagination": {"page": 1, "limit": 2}}`))
	require.NoError(t, err)
	recs, info, err := users.Paginate(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, info.Total)
	assert.Equal(t, 2, info.PageCount)
	assert.True(t, info.HasNextPage)
	assert.False(t, info.HasPreviousPage)
	assert.Equal(t, "Ariel", recs[0]["name"])

	q, err = sc.DecodeQueryJSON([]byte(`{"orderBy": [{"field": "name"}], "pagination": {"page": 2, "limit": 2}}`))
	require.NoError(t, err)
	recs, info, err = users.Paginate(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Noa", recs[0]["name"])
	assert.False(t, info.HasNextPage)
	assert.True(t, info.HasPreviousPage)
}

func seedOrders(t *testing.T, drv dialect.Driver) *SoftDeleteService {
	t.Helper()
	ctx := context.Background()
	users := quietService(t, drv, "User")
	u, err := users.Create(ctx, Record{"name": "Ariel"})
	require.NoError(t, err)
	orders, err := NewSoftDeleteService(schematest.Entity("Order"), drv,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	for _, o := range []Record{
		{"status": "paid", "amount": "100.00", "quantity": 1, "user": u["id"]},
		{"status": "paid", "amount": "200.00", "quantity": 2, "user": u["id"]},
		{"status": "paid", "amount": "300.00", "quantity": 3, "user": u["id"]},
		{"status": "pending", "amount": "50.00", "user": u["id"]},
	} {
		_, err := orders.Create(ctx, o)
		require.NoError(t, err)
	}
	return orders
}

func TestIntegration_GroupedList(t *testing.T) {
	drv := openSQLite(t)
	orders := seedOrders(t, drv)
	ctx := context.Background()

	sc, err := querylanguage.NewSchema(schematest.Entity("Order"))
	require.NoError(t, err)
	q, err := sc.DecodeQueryJSON([]byte(`{
		"groupBy": {
			"fields": {"status": true},
			"aggregates": [
				{"field": "quantity", "fn": "count", "alias": "orderCount"},
				{"field": "amount", "fn": "sum", "alias": "totalAmount"},
				{"field": "amount", "fn": "avg", "alias": "avgAmount"},
				{"field": "amount", "fn": "min", "alias": "minAmount"},
				{"field": "amount", "fn": "max", "alias": "maxAmount"}
			]
		},
		"orderBy": [{"field": "status", "direction": "desc"}]
	}`))
	require.NoError(t, err)

	recs, info, err := orders.GroupedList(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, info.Total)

	pending, paid := recs[0], recs[1]
	assert.Equal(t, "pending", pending["status"])
	assert.Equal(t, int64(1), pending["orderCount"])

	assert.Equal(t, "paid", paid["status"])
	assert.Equal(t, int64(3), paid["orderCount"])
	assert.True(t, paid["totalAmount"].(decimal.Decimal).Equal(decimal.NewFromInt(600)))
	assert.True(t, paid["avgAmount"].(decimal.Decimal).Equal(decimal.NewFromInt(200)))
	assert.True(t, paid["minAmount"].(decimal.Decimal).Equal(decimal.NewFromInt(100)))
	assert.True(t, paid["maxAmount"].(decimal.Decimal).Equal(decimal.NewFromInt(300)))
}

func TestIntegration_GroupedOrderByNonKey(t *testing.T) {
	drv := openSQLite(t)
	orders := seedOrders(t, drv)
	ctx := context.Background()

	sc, err := querylanguage.NewSchema(schematest.Entity("Order"))
	require.NoError(t, err)
	q, err := sc.DecodeQueryJSON([]byte(`{
		"groupBy": {"fields": {"status": true}},
		"orderBy": [{"field": "amount"}]
	}`))
	require.NoError(t, err)

	_, _, err = orders.GroupedList(ctx, q)
	require.Error(t, err)
	assert.True(t, crudox.IsValidationError(err))
	assert.Contains(t, err.Error(), `order by "amount" is not a grouping key`)
}

func TestIntegration_GroupedPagination(t *testing.T) {
	drv := openSQLite(t)
	orders := seedOrders(t, drv)
	ctx := context.Background()

	sc, err := querylanguage.NewSchema(schematest.Entity("Order"))
	require.NoError(t, err)
	q, err := sc.DecodeQueryJSON([]byte(`{
		"groupBy": {"fields": {"status": true}},
		"orderBy": [{"field": "status"}],
		"pagination": {"page": 1, "limit": 1}
	}`))
	require.NoError(t, err)

	recs, info, err := orders.GroupedList(ctx, q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "paid", recs[0]["status"])
	// Total counts distinct groups, not the four underlying rows.
	assert.Equal(t, 2, info.Total)
	assert.True(t, info.HasNextPage)
}

func TestIntegration_SoftDeleteLifecycle(t *testing.T) {
	drv := openSQLite(t)
	orders := seedOrders(t, drv)
	ctx := context.Background()

	all, err := orders.FindAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	id := all[0]["id"]

	removed, err := orders.Remove(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, removed["deletedAt"])

	visible, err := orders.FindAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, visible, 3)

	withDeleted, err := orders.FindAll(SkipSoftDelete(ctx), nil)
	require.NoError(t, err)
	assert.Len(t, withDeleted, 4)

	recovered, err := orders.Recover(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, recovered["deletedAt"])
	visible, err = orders.FindAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, visible, 4)

	_, err = orders.HardRemove(ctx, id)
	require.NoError(t, err)
	withDeleted, err = orders.FindAll(SkipSoftDelete(ctx), nil)
	require.NoError(t, err)
	assert.Len(t, withDeleted, 3)
}

func TestIntegration_BulkOps(t *testing.T) {
	drv := openSQLite(t)
	users, _ := seedUsers(t, drv)
	ctx := context.Background()

	n, err := users.BulkUpdate(ctx, querylanguage.Pred("country", querylanguage.OpEQ, "NL"), Record{"country": "BE"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := users.FindAll(ctx, &querylanguage.Query{
		Where: querylanguage.Pred("country", querylanguage.OpEQ, "BE"),
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	created, err := users.BulkInsert(ctx, []Record{
		{"name": "Tomer"}, {"name": "Dana"},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	n, err = users.BulkRemove(ctx, querylanguage.Pred("name", querylanguage.OpIn, []any{"Tomer", "Dana"}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIntegration_TransactionAtomicity(t *testing.T) {
	drv := openSQLite(t)
	users, _ := seedUsers(t, drv)
	ctx := context.Background()
	boom := errors.New("boom")

	err := users.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := users.Create(ctx, Record{"name": "Ghost"}); err != nil {
			return err
		}
		recs, err := users.FindAll(ctx, &querylanguage.Query{
			Where: querylanguage.Pred("name", querylanguage.OpEQ, "Ghost"),
		})
		if err != nil {
			return err
		}
		require.Len(t, recs, 1, "uncommitted write visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	recs, err := users.FindAll(ctx, &querylanguage.Query{
		Where: querylanguage.Pred("name", querylanguage.OpEQ, "Ghost"),
	})
	require.NoError(t, err)
	assert.Empty(t, recs, "rolled back write leaked out of the transaction")
}
