package ui

// DetermineLayoutMode picks the wide layout (ladder plus stats side panel),
// the medium one (single panel) or the resize prompt.
func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < 50 || rows < 16 {
		return LayoutTooSmall
	}
	if cols >= 96 && rows >= 20 {
		return LayoutWide
	}
	return LayoutMedium
}
