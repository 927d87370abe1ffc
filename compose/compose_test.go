package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/internal/schematest"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
)

// stubService records which Servicer methods were called.
type stubService struct {
	ent   *metadata.Entity
	calls []string
}

func newStub(entity string) *stubService {
	return &stubService{ent: schematest.Entity(entity)}
}

func (s *stubService) record(name string) { s.calls = append(s.calls, name) }

func (s *stubService) Entity() *metadata.Entity { return s.ent }

func (s *stubService) FindAll(context.Context, *querylanguage.Query) ([]crud.Record, error) {
	s.record("FindAll")
	return []crud.Record{{"name": "Ariel"}}, nil
}

func (s *stubService) FindOne(_ context.Context, id any, _ bool) (crud.Record, error) {
	s.record("FindOne")
	return crud.Record{"id": id}, nil
}

func (s *stubService) FindOneBy(context.Context, *querylanguage.Filter, bool) (crud.Record, error) {
	s.record("FindOneBy")
	return nil, nil
}

func (s *stubService) Paginate(context.Context, *querylanguage.Query) ([]crud.Record, querylanguage.PageInfo, error) {
	s.record("Paginate")
	return nil, querylanguage.PageInfo{Total: 42}, nil
}

func (s *stubService) GroupedList(context.Context, *querylanguage.Query) ([]crud.Record, querylanguage.PageInfo, error) {
	s.record("GroupedList")
	return nil, querylanguage.PageInfo{}, nil
}

func (s *stubService) Create(_ context.Context, input crud.Record) (crud.Record, error) {
	s.record("Create")
	return input, nil
}

func (s *stubService) Update(_ context.Context, _ any, input crud.Record) (crud.Record, error) {
	s.record("Update")
	return input, nil
}

func (s *stubService) Remove(_ context.Context, id any) (crud.Record, error) {
	s.record("Remove")
	return crud.Record{"id": id}, nil
}

func (s *stubService) BulkInsert(_ context.Context, inputs []crud.Record) ([]crud.Record, error) {
	s.record("BulkInsert")
	return inputs, nil
}

func (s *stubService) BulkUpdate(context.Context, *querylanguage.Filter, crud.Record) (int, error) {
	s.record("BulkUpdate")
	return 0, nil
}

func (s *stubService) BulkRemove(context.Context, *querylanguage.Filter) (int, error) {
	s.record("BulkRemove")
	return 0, nil
}

func (s *stubService) RunInTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (s *stubService) Audit(context.Context, string, any, crud.Record, crud.Record) {}

// stubSoftService adds the soft-delete capability.
type stubSoftService struct{ *stubService }

func (s *stubSoftService) SoftRemove(_ context.Context, id any) (crud.Record, error) {
	s.record("SoftRemove")
	return crud.Record{"id": id}, nil
}

func (s *stubSoftService) Recover(_ context.Context, id any) (crud.Record, error) {
	s.record("Recover")
	return crud.Record{"id": id}, nil
}

func (s *stubSoftService) HardRemove(_ context.Context, id any) (crud.Record, error) {
	s.record("HardRemove")
	return crud.Record{"id": id}, nil
}

func (s *stubSoftService) BulkRecover(context.Context, *querylanguage.Filter) (int, error) {
	s.record("BulkRecover")
	return 0, nil
}

func (s *stubSoftService) BulkDelete(context.Context, *querylanguage.Filter) (int, error) {
	s.record("BulkDelete")
	return 0, nil
}

var (
	_ crud.Servicer      = (*stubService)(nil)
	_ crud.SoftDeletable = (*stubSoftService)(nil)
)

func TestNewResource_Defaults(t *testing.T) {
	r, err := NewResource(Descriptor{Service: newStub("User")})
	require.NoError(t, err)

	for _, op := range []Operation{OpList, OpGet, OpPaginate, OpGroupedList, OpCreate, OpUpdate} {
		assert.True(t, r.Enabled(op), "operation %s should be on by default", op)
	}
	for _, op := range []Operation{OpRemove, OpSoftRemove, OpRecover, OpHardRemove} {
		assert.False(t, r.Enabled(op), "operation %s must be opt-in", op)
		_, ok := r.Handler(op)
		assert.False(t, ok)
	}
}

func TestNewResource_OptInAndDisable(t *testing.T) {
	r, err := NewResource(Descriptor{
		Service: newStub("User"),
		Operations: map[Operation]OpConfig{
			OpRemove: {Enable: true},
			OpList:   {Disable: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, r.Enabled(OpRemove))
	assert.False(t, r.Enabled(OpList))
	assert.Equal(t, []Operation{OpCreate, OpGet, OpGroupedList, OpPaginate, OpRemove, OpUpdate}, r.Operations())
}

func TestNewResource_ConfigErrors(t *testing.T) {
	_, err := NewResource(Descriptor{})
	assert.True(t, crudox.IsConfigError(err))

	_, err = NewResource(Descriptor{
		Service:    newStub("User"),
		Operations: map[Operation]OpConfig{Operation("explode"): {Enable: true}},
	})
	assert.True(t, crudox.IsConfigError(err))

	_, err = NewResource(Descriptor{
		Service:    newStub("User"),
		Operations: map[Operation]OpConfig{OpList: {Enable: true, Disable: true}},
	})
	assert.True(t, crudox.IsConfigError(err))
}

func TestNewResource_SoftDeleteCapability(t *testing.T) {
	// A plain service cannot enable soft-delete operations.
	for _, op := range []Operation{OpSoftRemove, OpRecover, OpHardRemove} {
		_, err := NewResource(Descriptor{
			Service:    newStub("Order"),
			Operations: map[Operation]OpConfig{op: {Enable: true}},
		})
		require.Error(t, err, "operation %s", op)
		assert.True(t, crudox.IsConfigError(err))
		assert.Contains(t, err.Error(), string(op))
	}

	soft := &stubSoftService{newStub("Order")}
	r, err := NewResource(Descriptor{
		Service: soft,
		Operations: map[Operation]OpConfig{
			OpSoftRemove: {Enable: true},
			OpRecover:    {Enable: true},
			OpHardRemove: {Enable: true},
		},
	})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), OpSoftRemove, Request{ID: 1})
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), OpRecover, Request{ID: 1})
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), OpHardRemove, Request{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"SoftRemove", "Recover", "HardRemove"}, soft.calls)
}

func TestResource_Invoke(t *testing.T) {
	stub := newStub("User")
	r, err := NewResource(Descriptor{Service: stub})
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Invoke(ctx, OpList, Request{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	res, err = r.Invoke(ctx, OpGet, Request{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Record["id"])

	res, err = r.Invoke(ctx, OpPaginate, Request{})
	require.NoError(t, err)
	require.NotNil(t, res.PageInfo)
	assert.Equal(t, 42, res.PageInfo.Total)

	_, err = r.Invoke(ctx, OpRemove, Request{ID: 7})
	assert.True(t, crudox.IsUnsupportedOperation(err))

	assert.Equal(t, []string{"FindAll", "FindOne", "Paginate"}, stub.calls)
}

func TestResource_Wrappers(t *testing.T) {
	var order []string
	wrap := func(tag string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, req Request) (*Result, error) {
				order = append(order, tag)
				return next(ctx, req)
			}
		}
	}
	r, err := NewResource(Descriptor{
		Service:  newStub("User"),
		Wrappers: []Middleware{wrap("resource")},
		Operations: map[Operation]OpConfig{
			OpList: {Wrappers: []Middleware{wrap("inner"), wrap("innermost")}},
		},
	})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), OpList, Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"resource", "inner", "innermost"}, order)
}

func TestResource_Info(t *testing.T) {
	r, err := NewResource(Descriptor{
		Service: newStub("User"),
		Operations: map[Operation]OpConfig{
			OpList: {Name: "allUsers", Description: "every registered user"},
		},
	})
	require.NoError(t, err)

	info, ok := r.Info(OpList)
	require.True(t, ok)
	assert.Equal(t, "allUsers", info.Name)
	assert.Equal(t, "every registered user", info.Description)

	info, ok = r.Info(OpGet)
	require.True(t, ok)
	assert.Equal(t, "get", info.Name)

	_, ok = r.Info(OpHardRemove)
	assert.False(t, ok)
}
