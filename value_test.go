package strata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCloneIsIndependent(t *testing.T) {
	inner := map[string]Value{"x": IntValue(1)}
	original := MapValue(map[string]Value{
		"nested": MapValue(inner),
		"list":   ArrayValue(StringValue("a"), StringValue("b")),
		"blob":   BytesValue([]byte{1, 2, 3}),
	})

	clone := original.Clone()
	require.True(t, clone.Equal(original))

	// Mutating the original must not show through the clone.
	obj, _ := original.Map()
	obj["added"] = BoolValue(true)
	nested, _ := obj["nested"].Map()
	nested["x"] = IntValue(99)
	blob, _ := obj["blob"].Bytes()
	blob[0] = 42

	assert.False(t, clone.Equal(original))
	cObj, _ := clone.Map()
	_, added := cObj["added"]
	assert.False(t, added)
	cBlob, _ := cObj["blob"].Bytes()
	assert.Equal(t, byte(1), cBlob[0])
}

func TestValueEqualDistinguishesKinds(t *testing.T) {
	assert.False(t, IntValue(1).Equal(UintValue(1)))
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
	assert.False(t, StringValue("1").Equal(IntValue(1)))
	assert.True(t, NullValue().Equal(Value{}))
	assert.True(t, ArrayValue(IntValue(1)).Equal(ArrayValue(IntValue(1))))
	assert.False(t, ArrayValue(IntValue(1)).Equal(ArrayValue(IntValue(1), IntValue(2))))
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{
		"port":    int64(8080),
		"ratio":   0.5,
		"name":    "db",
		"flags":   []any{true, false},
		"created": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	obj, ok := v.Map()
	require.True(t, ok)
	port, _ := obj["port"].Int()
	assert.Equal(t, int64(8080), port)
	ratio, _ := obj["ratio"].Float()
	assert.Equal(t, 0.5, ratio)
	created, _ := obj["created"].Str()
	assert.Equal(t, "2024-03-01T00:00:00Z", created)
	flags, ok := obj["flags"].Array()
	require.True(t, ok)
	assert.Len(t, flags, 2)
}

func TestFromInterfaceJSONNumbers(t *testing.T) {
	i, err := FromInterface(json.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, KindInt, i.Kind())

	f, err := FromInterface(json.Number("4.5"))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, f.Kind())

	_, err = FromInterface(json.Number("not-a-number"))
	assert.Error(t, err)
}

func TestFromInterfaceRejectsUnknownTypes(t *testing.T) {
	type opaque struct{}
	_, err := FromInterface(opaque{})
	assert.Error(t, err)

	_, err = FromInterface(map[any]any{1: "x"})
	assert.Error(t, err)
}

func TestValueInterfaceRoundTrip(t *testing.T) {
	v := MapValue(map[string]Value{
		"a": ArrayValue(IntValue(1), StringValue("two")),
		"b": BoolValue(true),
	})
	back, err := FromInterface(v.Interface())
	require.NoError(t, err)
	assert.True(t, v.Equal(back))
}

func TestValueStringHidesBytes(t *testing.T) {
	// Decrypted secrets are byte values; their rendering must not leak
	// content into logs.
	v := BytesValue([]byte("hunter2"))
	assert.Equal(t, "bytes(7)", v.String())
}
