package graphql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/compose"
	"github.com/crudox/crudox/contrib/graphql"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/internal/schematest"
	"github.com/crudox/crudox/querylanguage"
)

func testResources(t *testing.T) []*compose.Resource {
	t.Helper()
	reg := schematest.Registry()
	userEnt, err := reg.Lookup("User")
	require.NoError(t, err)
	orderEnt, err := reg.Lookup("Order")
	require.NoError(t, err)

	orderSchema, err := querylanguage.NewSchemaWith(orderEnt,
		querylanguage.Include{"user": true}, nil, nil)
	require.NoError(t, err)
	userSchema, err := querylanguage.NewSchemaWith(userEnt,
		querylanguage.Include{"pets": true, "orders": orderSchema.Where}, nil, nil)
	require.NoError(t, err)
	users := compose.MustResource(compose.Descriptor{
		Service: crud.NewService(userEnt, nil),
		Schema:  userSchema,
	})
	orderSvc, err := crud.NewSoftDeleteService(orderEnt, nil)
	require.NoError(t, err)
	orders := compose.MustResource(compose.Descriptor{
		Service: orderSvc,
		Schema:  orderSchema,
		Operations: map[compose.Operation]compose.OpConfig{
			compose.OpCreate:     {Name: "placeOrder"},
			compose.OpSoftRemove: {Enable: true},
			compose.OpRecover:    {Enable: true},
			compose.OpHardRemove: {Enable: true},
		},
	})

	return []*compose.Resource{users, orders}
}

func TestSDL(t *testing.T) {
	gen := graphql.NewGenerator(testResources(t)...)
	sdl, err := gen.SDL()
	require.NoError(t, err)

	assert.Contains(t, sdl, "type User {")
	assert.Contains(t, sdl, "type UserPage {")
	assert.Contains(t, sdl, "input UserWhereInput {")
	assert.Contains(t, sdl, "_and: [UserWhereInput!]")
	assert.Contains(t, sdl, "pets: PetWhereInput")
	assert.Contains(t, sdl, "input PetWhereInput {")
	assert.Contains(t, sdl, "user: UserWhereInput")

	assert.Contains(t, sdl, "enum OrderStatus {")
	assert.Contains(t, sdl, "cancelled")
	assert.Contains(t, sdl, "status: OrderStatusFilter")
	assert.Contains(t, sdl, "input OrderStatusFilter {")
	assert.Contains(t, sdl, "amount: DecimalFilter")

	assert.Contains(t, sdl, "input StringFilter {")
	assert.Contains(t, sdl, "containsFold: String")
	assert.Contains(t, sdl, "between: [Decimal!]")
	assert.Contains(t, sdl, "isNull: Boolean")
}

func TestSDLOperations(t *testing.T) {
	gen := graphql.NewGenerator(testResources(t)...)
	sdl, err := gen.SDL()
	require.NoError(t, err)

	assert.Contains(t, sdl, "users(where: UserWhereInput, orderBy: [OrderInput!]): [User!]!")
	assert.Contains(t, sdl, "user(id: ID!): User")
	assert.Contains(t, sdl, "usersPage(where: UserWhereInput, orderBy: [OrderInput!], pagination: PaginationInput): UserPage!")
	assert.Contains(t, sdl, "ordersGrouped(where: OrderWhereInput, groupBy: GroupByInput!, orderBy: [OrderInput!], pagination: PaginationInput): [Map!]!")

	// The create operation was renamed on the resource.
	assert.Contains(t, sdl, "placeOrder(input: Map!): Order!")
	assert.NotContains(t, sdl, "createOrder")
	assert.Contains(t, sdl, "createUser(input: Map!): User!")

	assert.Contains(t, sdl, "softRemoveOrder(id: ID!): Order!")
	assert.Contains(t, sdl, "recoverOrder(id: ID!): Order!")
	assert.Contains(t, sdl, "hardRemoveOrder(id: ID!): Order!")
	assert.NotContains(t, sdl, "softRemoveUser")
}

func TestSchemaValidates(t *testing.T) {
	gen := graphql.NewGenerator(testResources(t)...)
	schema, err := gen.Schema()
	require.NoError(t, err)

	require.NotNil(t, schema.Query)
	require.NotNil(t, schema.Mutation)
	assert.NotNil(t, schema.Types["UserWhereInput"])
	assert.NotNil(t, schema.Types["OrderStatus"])
	assert.NotNil(t, schema.Types["PageInfo"])

	var names []string
	for _, f := range schema.Mutation.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "placeOrder")
	assert.Contains(t, names, "updateUser")
}

func TestEmptyGenerator(t *testing.T) {
	_, err := graphql.NewGenerator().SDL()
	require.Error(t, err)
	assert.True(t, crudox.IsConfigError(err))
}
