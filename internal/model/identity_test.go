package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_TaggedBySign(t *testing.T) {
	tmp, err := Temp(-4)
	require.NoError(t, err)
	assert.True(t, tmp.IsTemp())
	assert.False(t, tmp.IsPersisted())
	assert.Equal(t, TempID(-4), tmp.TempID())
	assert.Equal(t, "temp:-4", tmp.String())

	p, err := Persisted(101)
	require.NoError(t, err)
	assert.True(t, p.IsPersisted())
	assert.False(t, p.IsTemp())
	assert.Equal(t, PersistedID(101), p.PersistedID())
	assert.Equal(t, "id:101", p.String())
}

func TestIdentity_RejectsWrongSign(t *testing.T) {
	_, err := Temp(3)
	assert.Error(t, err)

	_, err = Temp(0)
	assert.Error(t, err)

	_, err = Persisted(-1)
	assert.Error(t, err)

	_, err = IdentityOf(0)
	assert.Error(t, err)
}

func TestIdentity_ZeroValueIsInvalid(t *testing.T) {
	var id Identity
	assert.True(t, id.IsZero())
	assert.False(t, id.IsTemp())
	assert.False(t, id.IsPersisted())
	assert.Equal(t, "invalid", id.String())
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want Identity
	}{
		{"temp:-3", MustTemp(-3)},
		{"id:101", MustPersisted(101)},
		{"-7", MustTemp(-7)},
		{"55", MustPersisted(55)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIdentity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"abc", "0", "temp:5", "temp:0", "id:-3", "id:0"} {
		_, err := ParseIdentity(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("shop")
	require.NoError(t, err)
	assert.Equal(t, KindShop, k)

	_, err = ParseKind("")
	assert.Error(t, err)
	_, err = ParseKind("Shop/1")
	assert.Error(t, err)
}
