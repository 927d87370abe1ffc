package querylanguage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/internal/schematest"
	"github.com/crudox/crudox/querylanguage"
)

func userSchema(t *testing.T) *querylanguage.Schema {
	t.Helper()
	s, err := querylanguage.NewSchemaWith(
		schematest.Entity("User"),
		querylanguage.Include{"pets": true, "orders": true},
		nil, nil,
	)
	require.NoError(t, err)
	return s
}

func TestDecodeShorthand(t *testing.T) {
	s := userSchema(t)
	f, err := s.Where.DecodeJSON([]byte(`{"name": "a8m"}`))
	require.NoError(t, err)
	require.Len(t, f.Predicates, 1)
	assert.Equal(t, "name", f.Predicates[0].Field)
	assert.Equal(t, querylanguage.OpEQ, f.Predicates[0].Op)
	assert.Equal(t, "a8m", f.Predicates[0].Value)
}

func TestDecodeOperatorBag(t *testing.T) {
	s := userSchema(t)
	f, err := s.Where.DecodeJSON([]byte(`{"age": {"gte": 18, "lt": 65}, "name": {"contains": "a"}}`))
	require.NoError(t, err)
	require.Len(t, f.Predicates, 3)
	// Keys decode in sorted order: age.gte, age.lt, name.contains.
	assert.Equal(t, querylanguage.OpGTE, f.Predicates[0].Op)
	assert.Equal(t, querylanguage.OpLT, f.Predicates[1].Op)
	assert.Equal(t, querylanguage.OpContains, f.Predicates[2].Op)
}

func TestDecodeComposition(t *testing.T) {
	s := userSchema(t)
	f, err := s.Where.DecodeJSON([]byte(`{
		"_or": [{"name": "a8m"}, {"age": {"gte": 30}}],
		"active": true
	}`))
	require.NoError(t, err)
	require.Len(t, f.Or, 2)
	require.Len(t, f.Predicates, 1)
	assert.Equal(t, "active", f.Predicates[0].Field)
}

func TestDecodeRelation(t *testing.T) {
	s := userSchema(t)
	f, err := s.Where.DecodeJSON([]byte(`{"pets": {"name": {"startsWith": "re"}}}`))
	require.NoError(t, err)
	require.Len(t, f.Relations, 1)
	assert.Equal(t, "pets", f.Relations[0].Relation)
	require.Len(t, f.Relations[0].Filter.Predicates, 1)
	assert.Equal(t, querylanguage.OpStartsWith, f.Relations[0].Filter.Predicates[0].Op)
}

func TestDecodeErrors(t *testing.T) {
	s := userSchema(t)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unknown field", `{"nope": 1}`, "unknown filterable field"},
		{"wrong operator", `{"active": {"contains": "x"}}`, `operator "contains" is not allowed on a bool field`},
		{"isNull non-bool", `{"country": {"isNull": "yes"}}`, "isNull expects a boolean"},
		{"in non-array", `{"age": {"in": 5}}`, "in expects an array"},
		{"between arity", `{"age": {"between": [1]}}`, "between expects an array of two bounds"},
		{"and non-array", `{"_and": {"name": "x"}}`, "expected an array of filter objects"},
		{"relation non-object", `{"pets": "rex"}`, "relation filter must be an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Where.DecodeJSON([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, crudox.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeOrder(t *testing.T) {
	order, err := querylanguage.NewOrderShape(
		schematest.Entity("Order"),
		querylanguage.Include{"user": true},
	)
	require.NoError(t, err)

	terms, err := order.DecodeOrder([]querylanguage.OrderInput{
		{Field: "amount", Direction: querylanguage.Desc},
		{Field: "user.name"},
	})
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, querylanguage.Desc, terms[0].Direction)
	assert.Equal(t, querylanguage.Asc, terms[1].Direction)
	assert.Equal(t, []string{"user", "name"}, terms[1].Path)

	_, err = order.DecodeOrder([]querylanguage.OrderInput{{Field: "amount", Direction: "sideways"}})
	assert.True(t, crudox.IsValidationError(err))

	_, err = order.DecodeOrder([]querylanguage.OrderInput{{Field: "items.price"}})
	require.Error(t, err)
	assert.True(t, crudox.IsValidationError(err))
	assert.Contains(t, err.Error(), "cannot order through one-to-many relation")
}

func TestDecodeGroup(t *testing.T) {
	group, err := querylanguage.NewGroupShape(
		schematest.Entity("Order"),
		querylanguage.Include{"user": true},
	)
	require.NoError(t, err)

	spec, err := group.DecodeGroup(querylanguage.GroupInput{
		Fields: map[string]any{
			"status": true,
			"user":   map[string]any{"country": true},
		},
		Aggregates: []querylanguage.AggregateInput{
			{Field: "amount", Func: querylanguage.AggSum, Alias: "totalAmount"},
			{Field: "quantity", Func: querylanguage.AggCount},
		},
	})
	require.NoError(t, err)
	require.Len(t, spec.Keys, 2)
	assert.Equal(t, "status", spec.Keys[0].Name())
	assert.Equal(t, "user.country", spec.Keys[1].Name())
	require.Len(t, spec.Aggregates, 2)
	assert.Equal(t, "totalAmount", spec.Aggregates[0].Alias)
	assert.Equal(t, "count_quantity", spec.Aggregates[1].Alias)
}

func TestDecodeGroupErrors(t *testing.T) {
	group, err := querylanguage.NewGroupShape(schematest.Entity("Order"), nil)
	require.NoError(t, err)

	_, err = group.DecodeGroup(querylanguage.GroupInput{Fields: map[string]any{}})
	assert.Contains(t, err.Error(), "no grouping fields selected")

	_, err = group.DecodeGroup(querylanguage.GroupInput{
		Fields: map[string]any{"status": true},
		Aggregates: []querylanguage.AggregateInput{
			{Field: "status", Func: querylanguage.AggSum},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum requires a numeric field")

	_, err = group.DecodeGroup(querylanguage.GroupInput{
		Fields: map[string]any{"status": true},
		Aggregates: []querylanguage.AggregateInput{
			{Field: "amount", Func: querylanguage.AggSum, Alias: "x"},
			{Field: "quantity", Func: querylanguage.AggAvg, Alias: "x"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate aggregate alias")
}

func TestDecodeQueryEnvelope(t *testing.T) {
	s := userSchema(t)
	q, err := s.DecodeQueryJSON([]byte(`{
		"where": {"active": true},
		"orderBy": [{"field": "name", "direction": "desc"}],
		"pagination": {"page": 2, "limit": 10}
	}`))
	require.NoError(t, err)
	require.Len(t, q.Where.Predicates, 1)
	require.Len(t, q.Order, 1)
	assert.Equal(t, 2, q.Page.Page)
	assert.Equal(t, 10, q.Page.Limit)

	_, err = s.DecodeQueryJSON([]byte(`{"filter": {}}`))
	require.Error(t, err)
	assert.True(t, crudox.IsValidationError(err))
}

func TestPagination(t *testing.T) {
	p := querylanguage.Pagination{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, querylanguage.DefaultLimit, p.Limit)

	p = querylanguage.Pagination{Page: 3, Limit: 1000}.Normalize()
	assert.Equal(t, querylanguage.MaxLimit, p.Limit)
	assert.Equal(t, 200, p.Offset())

	info := querylanguage.NewPageInfo(querylanguage.Pagination{Page: 1, Limit: 1}.Normalize(), 1, 2)
	assert.Equal(t, 2, info.PageCount)
	assert.True(t, info.HasNextPage)
	assert.False(t, info.HasPreviousPage)

	info = querylanguage.NewPageInfo(querylanguage.Pagination{Page: 2, Limit: 1}.Normalize(), 1, 2)
	assert.False(t, info.HasNextPage)
	assert.True(t, info.HasPreviousPage)
}
