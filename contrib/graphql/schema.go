// Package graphql renders a GraphQL SDL surface for composed resources. The
// generated document carries one object type, where input, and page type per
// entity, shared filter inputs per scalar type, and query and mutation fields
// per enabled operation. The document is validated with gqlparser before it
// is handed out, so a malformed shape surfaces at wiring time.
package graphql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/compose"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
	"github.com/crudox/crudox/schema/field"
)

// Generator renders the SDL for a set of resources.
type Generator struct {
	resources []*compose.Resource
}

// NewGenerator returns a generator over the resources.
func NewGenerator(resources ...*compose.Resource) *Generator {
	return &Generator{resources: resources}
}

// Schema renders the SDL and parses it back, returning the validated
// schema document.
func (g *Generator) Schema() (*ast.Schema, error) {
	sdl, err := g.SDL()
	if err != nil {
		return nil, err
	}
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "crudox.graphql", Input: sdl})
	if err != nil {
		return nil, crudox.NewConfigError("generated schema does not validate: %s", err)
	}
	return schema, nil
}

const preamble = `scalar Time
scalar Decimal
scalar Map

enum OrderDirection {
  asc
  desc
}

enum AggregateFn {
  count
  sum
  avg
  min
  max
}

input OrderInput {
  field: String!
  direction: OrderDirection
}

input AggregateInput {
  field: String!
  fn: AggregateFn!
  alias: String
}

input GroupByInput {
  fields: Map!
  aggregates: [AggregateInput!]
}

input PaginationInput {
  page: Int
  limit: Int
}

type PageInfo {
  page: Int!
  limit: Int!
  count: Int!
  total: Int!
  pageCount: Int!
  hasNextPage: Boolean!
  hasPreviousPage: Boolean!
}

`

// SDL renders the SDL document.
func (g *Generator) SDL() (string, error) {
	if len(g.resources) == 0 {
		return "", crudox.NewConfigError("schema generation requires at least one resource")
	}
	var b strings.Builder
	b.WriteString(preamble)

	seen := map[string]bool{}
	scalars := map[field.Type]bool{}
	for _, res := range g.resources {
		if err := g.entitySDL(&b, res, seen, scalars); err != nil {
			return "", err
		}
	}
	g.scalarFilters(&b, scalars)

	var queries, mutations []string
	for _, res := range g.resources {
		q, m := operationFields(res)
		queries = append(queries, q...)
		mutations = append(mutations, m...)
	}
	b.WriteString("type Query {\n")
	for _, q := range queries {
		b.WriteString("  " + q + "\n")
	}
	b.WriteString("}\n")
	if len(mutations) > 0 {
		b.WriteString("\ntype Mutation {\n")
		for _, m := range mutations {
			b.WriteString("  " + m + "\n")
		}
		b.WriteString("}\n")
	}
	return b.String(), nil
}

// entitySDL renders one resource: the entity's enum types, object type,
// page type, and the where inputs of every entity reachable through its
// filter shape.
func (g *Generator) entitySDL(b *strings.Builder, res *compose.Resource, seen map[string]bool, scalars map[field.Type]bool) error {
	ent := res.Service().Entity()
	if !seen[ent.Name] {
		seen[ent.Name] = true

		for _, f := range ent.Fields() {
			if f.Type == field.TypeEnum && !seen[enumTypeName(ent, f)] {
				seen[enumTypeName(ent, f)] = true
				enumSDL(b, ent, f)
			}
		}

		fmt.Fprintf(b, "type %s {\n", ent.Name)
		for _, f := range ent.Fields() {
			if f.Sensitive {
				continue
			}
			typ := gqlType(ent, f)
			if !f.Nillable && !f.Optional {
				typ += "!"
			}
			fmt.Fprintf(b, "  %s: %s\n", f.Name, typ)
		}
		b.WriteString("}\n\n")

		fmt.Fprintf(b, "type %sPage {\n  data: [%s!]!\n  pageInfo: PageInfo!\n}\n\n", ent.Name, ent.Name)
	}
	return g.whereInput(b, res.Schema().Where, seen, scalars)
}

// whereInput renders one entity's where input and recurses into the
// relation shapes it references. Related entities that have no resource of
// their own still get their enum types emitted here, the filter fields
// reference them.
func (g *Generator) whereInput(b *strings.Builder, shape *querylanguage.WhereShape, seen map[string]bool, scalars map[field.Type]bool) error {
	ent := shape.Entity
	name := ent.Name + "WhereInput"
	if seen[name] {
		return nil
	}
	seen[name] = true

	var body strings.Builder
	fmt.Fprintf(&body, "input %s {\n", name)
	fmt.Fprintf(&body, "  _and: [%s!]\n", name)
	fmt.Fprintf(&body, "  _or: [%s!]\n", name)
	for _, fname := range shape.Fields() {
		fs, _ := shape.Field(fname)
		f := fs.Field
		fmt.Fprintf(&body, "  %s: %s\n", fname, filterTypeName(ent, f))
		if f.Type == field.TypeEnum {
			if !seen[enumTypeName(ent, f)] {
				seen[enumTypeName(ent, f)] = true
				enumSDL(b, ent, f)
			}
			if !seen[enumTypeName(ent, f)+"Filter"] {
				seen[enumTypeName(ent, f)+"Filter"] = true
				enumFilterSDL(b, ent, f)
			}
		} else {
			scalars[f.Type] = true
		}
	}
	var nested []*querylanguage.WhereShape
	for _, rname := range shape.Relations() {
		rel, _ := shape.Relation(rname)
		fmt.Fprintf(&body, "  %s: %sWhereInput\n", rname, rel.Entity.Name)
		nested = append(nested, rel)
	}
	body.WriteString("}\n\n")
	b.WriteString(body.String())

	for _, rel := range nested {
		if err := g.whereInput(b, rel, seen, scalars); err != nil {
			return err
		}
	}
	return nil
}

func enumSDL(b *strings.Builder, ent *metadata.Entity, f *metadata.Field) {
	fmt.Fprintf(b, "enum %s {\n", enumTypeName(ent, f))
	for _, v := range f.Enums {
		fmt.Fprintf(b, "  %s\n", v)
	}
	b.WriteString("}\n\n")
}

// enumFilterSDL renders the filter input of one enum field. Enum values are
// only equality comparable, so the input carries the membership operators
// plus the null test.
func enumFilterSDL(b *strings.Builder, ent *metadata.Entity, f *metadata.Field) {
	name := enumTypeName(ent, f)
	fmt.Fprintf(b, "input %sFilter {\n  eq: %s\n  neq: %s\n  in: [%s!]\n  notIn: [%s!]\n  isNull: Boolean\n}\n\n",
		name, name, name, name, name)
}

// scalarFilters renders the shared per-scalar-type filter inputs. The
// operator set of each input is the same table the decoder enforces.
func (g *Generator) scalarFilters(b *strings.Builder, used map[field.Type]bool) {
	types := make([]field.Type, 0, len(used))
	for t := range used {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		scalar := scalarName(t)
		fmt.Fprintf(b, "input %s {\n", filterName(t))
		for _, op := range querylanguage.OpsFor(t) {
			fmt.Fprintf(b, "  %s: %s\n", op, opArgType(op, scalar))
		}
		b.WriteString("}\n\n")
	}
}

// operationFields returns the query and mutation field definitions of one
// resource's enabled operations.
func operationFields(res *compose.Resource) (queries, mutations []string) {
	ent := res.Service().Entity()
	single := inflect.CamelizeDownFirst(ent.Name)
	plural := inflect.CamelizeDownFirst(inflect.Pluralize(ent.Name))
	where := ent.Name + "WhereInput"

	fieldName := func(op compose.Operation, def string) string {
		if info, ok := res.Info(op); ok && info.Name != string(op) {
			return info.Name
		}
		return def
	}
	if res.Enabled(compose.OpList) {
		queries = append(queries, fmt.Sprintf("%s(where: %s, orderBy: [OrderInput!]): [%s!]!",
			fieldName(compose.OpList, plural), where, ent.Name))
	}
	if res.Enabled(compose.OpGet) {
		queries = append(queries, fmt.Sprintf("%s(id: ID!): %s",
			fieldName(compose.OpGet, single), ent.Name))
	}
	if res.Enabled(compose.OpPaginate) {
		queries = append(queries, fmt.Sprintf("%s(where: %s, orderBy: [OrderInput!], pagination: PaginationInput): %sPage!",
			fieldName(compose.OpPaginate, plural+"Page"), where, ent.Name))
	}
	if res.Enabled(compose.OpGroupedList) {
		queries = append(queries, fmt.Sprintf("%s(where: %s, groupBy: GroupByInput!, orderBy: [OrderInput!], pagination: PaginationInput): [Map!]!",
			fieldName(compose.OpGroupedList, plural+"Grouped"), where))
	}
	if res.Enabled(compose.OpCreate) {
		mutations = append(mutations, fmt.Sprintf("%s(input: Map!): %s!",
			fieldName(compose.OpCreate, "create"+ent.Name), ent.Name))
	}
	if res.Enabled(compose.OpUpdate) {
		mutations = append(mutations, fmt.Sprintf("%s(id: ID!, input: Map!): %s!",
			fieldName(compose.OpUpdate, "update"+ent.Name), ent.Name))
	}
	for _, op := range []compose.Operation{
		compose.OpRemove, compose.OpSoftRemove, compose.OpRecover, compose.OpHardRemove,
	} {
		if res.Enabled(op) {
			mutations = append(mutations, fmt.Sprintf("%s(id: ID!): %s!",
				fieldName(op, string(op)+ent.Name), ent.Name))
		}
	}
	return queries, mutations
}

func enumTypeName(ent *metadata.Entity, f *metadata.Field) string {
	return ent.Name + inflect.Camelize(f.Name)
}

func filterTypeName(ent *metadata.Entity, f *metadata.Field) string {
	if f.Type == field.TypeEnum {
		return enumTypeName(ent, f) + "Filter"
	}
	return filterName(f.Type)
}

func filterName(t field.Type) string {
	return scalarName(t) + "Filter"
}

func scalarName(t field.Type) string {
	switch t {
	case field.TypeBool:
		return "Boolean"
	case field.TypeInt, field.TypeInt64:
		return "Int"
	case field.TypeFloat64:
		return "Float"
	case field.TypeDecimal:
		return "Decimal"
	case field.TypeTime:
		return "Time"
	case field.TypeUUID:
		return "ID"
	default:
		return "String"
	}
}

func gqlType(ent *metadata.Entity, f *metadata.Field) string {
	if f.Type == field.TypeEnum {
		return enumTypeName(ent, f)
	}
	return scalarName(f.Type)
}

// opArgType maps an operator to its argument type in the SDL.
func opArgType(op querylanguage.Op, scalar string) string {
	switch op {
	case querylanguage.OpIn, querylanguage.OpNotIn, querylanguage.OpBetween:
		return "[" + scalar + "!]"
	case querylanguage.OpIsNull:
		return "Boolean"
	case querylanguage.OpContains, querylanguage.OpContainsFold,
		querylanguage.OpStartsWith, querylanguage.OpEndsWith:
		return "String"
	default:
		return scalar
	}
}
