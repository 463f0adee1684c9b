package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyleFor(t *testing.T) {
	tests := []struct {
		name   string
		state  VisualState
		status Status
		want   Style
	}{
		{"clean normal", Clean, StatusNormal, Style{Background: "#ffffff", Foreground: defaultForeground}},
		{"clean fresh", Clean, StatusFresh, Style{Background: "#e7f1ff", Foreground: defaultForeground}},
		{"clean readvertised", Clean, StatusReadvertised, Style{Background: "#f3e8ff", Foreground: defaultForeground}},
		{"edit hides status", PendingEdit, StatusFresh, Style{Background: "#fff3cd", Foreground: defaultForeground}},
		{"delete strikes", PendingDelete, StatusReadvertised, Style{Background: "#f8d7da", Foreground: "#6c757d", Strike: true}},
		{"new", VisualNew, StatusNormal, Style{Background: "#d1e7dd", Foreground: defaultForeground}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StyleFor(tt.state, tt.status))
		})
	}
}

func TestCellStyle(t *testing.T) {
	r := Record{Status: StatusFresh, PendingCells: map[string]struct{}{"memo": {}}}
	assert.Equal(t, StyleFor(PendingEdit, StatusFresh), CellStyle(r, "memo"))
	assert.Equal(t, StyleFor(Clean, StatusFresh), CellStyle(r, "floor"))

	r.Visual = PendingDelete
	assert.True(t, CellStyle(r, "memo").Strike)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusNormal, StatusFresh, StatusReadvertised} {
		got, err := ParseStatus(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseStatus("")
	assert.NoError(t, err)
	assert.Equal(t, StatusNormal, got)

	_, err = ParseStatus("sold")
	assert.Error(t, err)
}
