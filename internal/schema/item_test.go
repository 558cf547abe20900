package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeItem_OmitsUnsetID(t *testing.T) {
	body, err := EncodeItem(Item{Content: "call mom"})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"call mom"}`, string(body))
}

func TestEncodeItem_KeepsHTMLCharacters(t *testing.T) {
	body, err := EncodeItem(Item{Content: "a < b & c"})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"a < b & c"}`, string(body))
}

func TestDecodeItem_Malformed(t *testing.T) {
	_, err := DecodeItem([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestSnapshot_EncodeNilAsEmptyArray(t *testing.T) {
	body, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}

func TestSnapshot_PreservesOrder(t *testing.T) {
	in := []Item{{ID: 1, Content: "buy milk"}, {ID: 2, Content: "call mom"}}
	body, err := EncodeSnapshot(in)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"content":"buy milk"},{"id":2,"content":"call mom"}]`, string(body))

	out, err := DecodeSnapshot(body)
	require.NoError(t, err)
	assert.Equal(t, Snapshot(in), out)
}

func TestDecodeSnapshot_EmptyAndNull(t *testing.T) {
	for _, body := range []string{"", "  ", "null"} {
		snap, err := DecodeSnapshot([]byte(body))
		require.NoError(t, err, "body %q", body)
		assert.NotNil(t, snap)
		assert.Empty(t, snap)
	}
}

func TestDecodeSnapshot_RejectsObject(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"id":1}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestItem_Stored(t *testing.T) {
	assert.False(t, Item{Content: "new"}.Stored())
	assert.True(t, Item{ID: 3, Content: "kept"}.Stored())
}
