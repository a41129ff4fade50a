package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestShouldUseColor_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	assert.False(t, ShouldUseColor())
}

func TestTable_Aligns(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := Table([]string{"KIND", "SYNCED"}, [][]string{
		{"transaction", "2024-01-01"},
		{"note", RenderWarn("never")},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "transaction  2024-01-01", lines[1])
	assert.Equal(t, "note         never", lines[2])
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1 record", Count(1, "record"))
	assert.Equal(t, "3 records", Count(3, "record"))
	assert.Equal(t, "0 records", Count(0, "record"))
}
