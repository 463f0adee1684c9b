package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	f := NewFields(F("zeta", Int(1)), F("alpha", Int(2)), F("mid", Int(3)))
	got, err := MarshalCanonical(f)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(Text("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonical_NFCNormalizes(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	got, err := MarshalCanonical(Text("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(got))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical(Text("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by "u2028" text must stay escaped.
	got, err = MarshalCanonical(Text(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonical_DecimalAsString(t *testing.T) {
	got, err := MarshalCanonical(NewFields(F("deposit", MustDecimal("12000.50"))))
	require.NoError(t, err)
	assert.Equal(t, `{"deposit":"12000.5"}`, string(got))
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestMarshalCanonical_NestedCollections(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"ids":  []any{int64(3), int64(1)},
		"kind": "shop",
		"ok":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ids":[3,1],"kind":"shop","ok":true}`, string(got))
}

func TestContentHash_StableAndDomainSeparated(t *testing.T) {
	v := map[string]any{"kind": "shop", "deleted": []any{int64(50)}}

	h1, err := ContentHash(DomainSaveBatch, v)
	require.NoError(t, err)
	h2, err := ContentHash(DomainSaveBatch, v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := ContentHash(DomainStatusChange, v)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
