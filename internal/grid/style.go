package grid

// Style is how a row is drawn.
type Style struct {
	Background string
	Foreground string
	Strike     bool
}

const defaultForeground = "#212529"

var statusBackgrounds = map[Status]string{
	StatusNormal:       "#ffffff",
	StatusFresh:        "#e7f1ff",
	StatusReadvertised: "#f3e8ff",
}

// StyleFor maps a row's visual state and underlying status to a style.
// Pending overlays win; a clean row shows its status color.
func StyleFor(state VisualState, status Status) Style {
	switch state {
	case PendingDelete:
		return Style{Background: "#f8d7da", Foreground: "#6c757d", Strike: true}
	case PendingEdit:
		return Style{Background: "#fff3cd", Foreground: defaultForeground}
	case VisualNew:
		return Style{Background: "#d1e7dd", Foreground: defaultForeground}
	}
	bg, ok := statusBackgrounds[status]
	if !ok {
		bg = statusBackgrounds[StatusNormal]
	}
	return Style{Background: bg, Foreground: defaultForeground}
}

// CellStyle is the style of one cell: a pending cell on an otherwise styled
// row is highlighted on its own.
func CellStyle(r Record, key string) Style {
	if _, pending := r.PendingCells[key]; pending && r.Visual != PendingDelete {
		return StyleFor(PendingEdit, r.Status)
	}
	return StyleFor(r.Visual, r.Status)
}
