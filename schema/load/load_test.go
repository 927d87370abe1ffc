package load_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/load"
	"github.com/crudox/crudox/schema/relation"
)

const blogSchema = `
entities:
  - name: Author
    fields:
      - name: id
        type: int64
        primaryKey: true
      - name: name
        type: string
  - name: Article
    table: posts
    fields:
      - name: id
        type: int64
        primaryKey: true
      - name: title
        type: string
        unique: true
      - name: status
        type: enum
        values: [draft, published]
        default: draft
      - name: rating
        type: decimal
        precision: 2
        optional: true
    relations:
      - name: author
        kind: toOne
        target: Author
        required: true
`

func TestRead(t *testing.T) {
	defs, err := load.Read(strings.NewReader(blogSchema))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	reg := metadata.NewRegistry()
	require.NoError(t, reg.Register(defs...))
	require.NoError(t, reg.Freeze())

	article, err := reg.Lookup("Article")
	require.NoError(t, err)
	assert.Equal(t, "posts", article.Table)

	status, ok := article.Field("status")
	require.True(t, ok)
	assert.Equal(t, field.TypeEnum, status.Type)
	assert.Equal(t, []string{"draft", "published"}, status.Enums)
	assert.Equal(t, "draft", status.Default)

	rating, ok := article.Field("rating")
	require.True(t, ok)
	assert.Equal(t, int32(2), rating.Precision)

	author, ok := article.Relation("author")
	require.True(t, ok)
	assert.Equal(t, relation.M2O, author.Kind)
	assert.Equal(t, "author_id", author.FKColumn)
	assert.True(t, author.Required)
}

func TestReadErrors(t *testing.T) {
	_, err := load.Read(strings.NewReader(`
entities:
  - name: Thing
    fields:
      - name: data
        type: blob
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "blob"`)

	_, err = load.Read(strings.NewReader(`
entities:
  - name: Thing
    relations:
      - name: other
        kind: sideways
        target: Other
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "sideways"`)

	_, err = load.Read(strings.NewReader(`
entities:
  - name: Thing
    bogus: true
`))
	require.Error(t, err, "unknown document keys are rejected")
}
