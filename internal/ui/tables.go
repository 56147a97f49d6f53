package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pairlink/pairlink/internal/execute"
)

// LanguagesView renders the supported language table as a string
func LanguagesView() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	t.AppendHeader(table.Row{"#", "Language", "Version"})

	for i, lang := range execute.Supported() {
		t.AppendRow(table.Row{i + 1, lang.Name, lang.Version})
	}

	return t.Render()
}

// RenderLanguages outputs the language table directly to stdout
func RenderLanguages() {
	fmt.Println(LanguagesView())
}

type RoomInfo struct {
	RoomID string
}

func NewRoomInfo(roomID string) *RoomInfo {
	return &RoomInfo{RoomID: roomID}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n\nShare this ID with your peer:\n  pairlink join %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		r.RoomID,
	)

	return boxStyle.Render(content)
}
