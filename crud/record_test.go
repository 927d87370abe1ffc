package crud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/schema/field"
)

func TestTimeValueRoundTrip(t *testing.T) {
	f := &metadata.Field{Name: "createdAt", Type: field.TypeTime}
	now := time.Date(2026, 8, 30, 12, 34, 56, 789000000, time.FixedZone("IST", 3*3600))

	ev, err := encodeValue(f, now)
	require.NoError(t, err)
	stored, ok := ev.(string)
	require.True(t, ok, "time values are bound as text")

	// Stored text must decode back to the same instant, matching what a
	// text-typed driver such as sqlite hands back on read.
	back, err := decodeValue(f, stored)
	require.NoError(t, err)
	require.IsType(t, time.Time{}, back)
	assert.True(t, now.Equal(back.(time.Time)))

	// String input on create follows the same path.
	ev, err = encodeValue(f, "2026-08-30T09:34:56.789Z")
	require.NoError(t, err)
	back, err = decodeValue(f, ev)
	require.NoError(t, err)
	assert.True(t, now.Equal(back.(time.Time)))
}

func TestDefaultNowEncodes(t *testing.T) {
	f := &metadata.Field{Name: "updatedAt", Type: field.TypeTime, Default: "now"}
	v, ok := defaultValue(f)
	require.True(t, ok)

	ev, err := encodeValue(f, v)
	require.NoError(t, err)
	_, isString := ev.(string)
	assert.True(t, isString)

	back, err := decodeValue(f, ev)
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, back)
}
