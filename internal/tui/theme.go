package tui

import (
	"github.com/gdamore/tcell/v2"
)

// dirsave color palette
var (
	// Primary accent color
	AccentBlue = tcell.NewRGBColor(56, 132, 222) // #3884DE

	// Neutral colors
	Dark  = tcell.NewRGBColor(40, 40, 40)    // #282828
	Gray  = tcell.NewRGBColor(128, 128, 128) // #808080
	Light = tcell.NewRGBColor(200, 200, 200) // #C8C8C8

	// Status colors
	SuccessGreen  = tcell.NewRGBColor(34, 197, 94)  // #22C55E
	ErrorRed      = tcell.NewRGBColor(239, 68, 68)  // #EF4444
	WarningYellow = tcell.NewRGBColor(234, 179, 8)  // #EAB308
	InfoBlue      = tcell.NewRGBColor(59, 130, 246) // #3B82F6

	// Additional UI colors
	White     = tcell.ColorWhite
	Black     = tcell.ColorBlack
	LightGray = tcell.ColorLightGray
	DarkGray  = tcell.ColorDarkGray
)

// Symbols and icons
const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "ℹ"
	SymbolSelected = "▸"
	SymbolArrow    = "→"
	SymbolBullet   = "•"
)

// StatusColor returns the appropriate color for a session status
func StatusColor(status string) tcell.Color {
	switch status {
	case "success":
		return SuccessGreen
	case "failed", "connection_error":
		return ErrorRed
	case "skipped":
		return WarningYellow
	case "running":
		return InfoBlue
	default:
		return LightGray
	}
}

// StatusSymbol returns the appropriate symbol for a session status
func StatusSymbol(status string) string {
	switch status {
	case "success":
		return SymbolSuccess
	case "failed", "connection_error":
		return SymbolError
	case "skipped":
		return SymbolWarning
	case "running":
		return SymbolInfo
	default:
		return SymbolBullet
	}
}
