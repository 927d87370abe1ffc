package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox/schema/field"
)

func TestString(t *testing.T) {
	fd := field.String("name").Unique().Comment("display name").Descriptor()
	assert.Equal(t, "name", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.True(t, fd.Unique)
	assert.Equal(t, "display name", fd.Comment)
	assert.NoError(t, fd.Validate())

	fd = field.Text("bio").Optional().Nillable().Descriptor()
	assert.Equal(t, field.TypeText, fd.Type)
	assert.True(t, fd.Optional)
	assert.True(t, fd.Nillable)
}

func TestInt(t *testing.T) {
	fd := field.Int("age").Optional().Default(18).Descriptor()
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.Equal(t, int64(18), fd.Default)

	fd = field.Int64("uid").PrimaryKey().Immutable().Descriptor()
	assert.True(t, fd.PrimaryKey)
	assert.True(t, fd.Immutable)
	assert.Equal(t, field.TypeInt64, fd.Type)
}

func TestDecimal(t *testing.T) {
	fd := field.Decimal("price", 2).Optional().Descriptor()
	assert.Equal(t, field.TypeDecimal, fd.Type)
	assert.Equal(t, int32(2), fd.Precision)
	assert.True(t, fd.Type.Numeric())
}

func TestEnum(t *testing.T) {
	fd := field.Enum("status").Values("draft", "published").Default("draft").Descriptor()
	require.NoError(t, fd.Validate())
	assert.Equal(t, []string{"draft", "published"}, fd.Enums)

	fd = field.Enum("status").Descriptor()
	assert.Error(t, fd.Validate())

	fd = field.Enum("status").Values("a").Default("b").Descriptor()
	assert.Error(t, fd.Validate())
}

func TestStorageKey(t *testing.T) {
	fd := field.UUID("externalId").StorageKey("external_uuid").Descriptor()
	assert.Equal(t, "external_uuid", fd.Column)
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, field.TypeString.Textual())
	assert.True(t, field.TypeText.Textual())
	assert.False(t, field.TypeInt.Textual())

	assert.True(t, field.TypeInt.Numeric())
	assert.True(t, field.TypeFloat64.Numeric())
	assert.True(t, field.TypeDecimal.Numeric())
	assert.False(t, field.TypeBool.Numeric())

	assert.True(t, field.TypeTime.Comparable())
	assert.False(t, field.TypeBool.Comparable())

	typ, ok := field.TypeByName("uuid")
	assert.True(t, ok)
	assert.Equal(t, field.TypeUUID, typ)
	_, ok = field.TypeByName("blob")
	assert.False(t, ok)
}
