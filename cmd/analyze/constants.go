package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	entryViewport = 12 // rows shown before the first WindowSizeMsg arrives
	headerLines   = 3
	footerLines   = 3
	nameMaxWidth  = 60
	pathMaxWidth  = 60
	tickInterval  = 100 * time.Millisecond
	pageDivisor   = 4 // page moves cover a quarter of the terminal height
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧"}

var (
	colorPurple = lipgloss.Color("5")
	colorGray   = lipgloss.Color("8")
	colorRed    = lipgloss.Color("1")
	colorYellow = lipgloss.Color("3")
	colorGreen  = lipgloss.Color("2")
	colorCyan   = lipgloss.Color("6")
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	pathStyle     = lipgloss.NewStyle().Foreground(colorGray)
	selectedStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	dirStyle      = lipgloss.NewStyle().Foreground(colorCyan)
	countStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	bytesStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle     = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(colorGray)
)
