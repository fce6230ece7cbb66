//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// recorderTheme is fyne's dark variant with the waveform red as the accent,
// so the Record button and slider handles match the plot.
type recorderTheme struct {
	fyne.Theme
}

func newRecorderTheme() fyne.Theme {
	return recorderTheme{Theme: theme.DefaultTheme()}
}

func (t recorderTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{18, 18, 18, 255}
	case theme.ColorNameForeground:
		return color.RGBA{200, 200, 200, 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return colorWaveBar
	case theme.ColorNameSeparator:
		return colorWaveAxis
	}
	return t.Theme.Color(name, theme.VariantDark)
}

func (t recorderTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameText {
		return 15
	}
	return t.Theme.Size(name)
}
