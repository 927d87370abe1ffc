package dataloader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/crudox/crudox/contrib/dataloader"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/dialect/sql/schema"
	"github.com/crudox/crudox/internal/schematest"
)

type post struct {
	ID     int64
	UserID int64
}

func TestOrderByKeys(t *testing.T) {
	posts := []post{{ID: 3}, {ID: 1}}
	ordered, errs := dataloader.OrderByKeys([]int64{1, 2, 3}, posts, func(p post) int64 { return p.ID })
	assert.Equal(t, []post{{ID: 1}, {}, {ID: 3}}, ordered)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], dataloader.ErrNotFound)
	assert.NoError(t, errs[2])
}

func TestOrderByKeysNoError(t *testing.T) {
	ordered := dataloader.OrderByKeysNoError([]int64{2, 1}, []post{{ID: 1}}, func(p post) int64 { return p.ID })
	assert.Equal(t, []post{{}, {ID: 1}}, ordered)
}

func TestGroupByKey(t *testing.T) {
	posts := []post{{ID: 1, UserID: 10}, {ID: 2, UserID: 20}, {ID: 3, UserID: 10}}
	grouped := dataloader.GroupByKey(posts, func(p post) int64 { return p.UserID })
	require.Len(t, grouped, 2)
	assert.Equal(t, []post{{ID: 1, UserID: 10}, {ID: 3, UserID: 10}}, grouped[10])

	ordered := dataloader.OrderGroupsByKeys([]int64{20, 30, 10}, grouped)
	assert.Len(t, ordered[0], 1)
	assert.Nil(t, ordered[1])
	assert.Len(t, ordered[2], 2)
}

type loaders struct {
	Users dataloader.BatchFunc[int64, crud.Record]
}

func TestWithLoaders(t *testing.T) {
	ctx := dataloader.WithLoaders(context.Background(), &loaders{})
	assert.NotNil(t, dataloader.For[*loaders](ctx))
	assert.Nil(t, dataloader.For[*loaders](context.Background()))
}

func TestByID(t *testing.T) {
	drv, err := sql.Open(dialect.SQLite, "file:dataloaderbyid?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })

	ctx := context.Background()
	reg := schematest.Registry()
	require.NoError(t, schema.Create(ctx, drv, reg))
	ent, err := reg.Lookup("User")
	require.NoError(t, err)
	svc := crud.NewService(ent, drv)

	var ids []int64
	for _, name := range []string{"Ariel", "Noa", "Lior"} {
		rec, err := svc.Create(ctx, crud.Record{"name": name})
		require.NoError(t, err)
		ids = append(ids, rec["id"].(int64))
	}

	batch := dataloader.ByID[int64](svc)
	records, errs := batch(ctx, []int64{ids[2], 999, ids[0]})
	require.Len(t, records, 3)
	assert.Equal(t, "Lior", records[0]["name"])
	assert.ErrorIs(t, errs[1], dataloader.ErrNotFound)
	assert.Equal(t, "Ariel", records[2]["name"])
}
