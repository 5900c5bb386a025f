package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/whisp/internal/visual"
)

// Bar heights are computed in "pixels" the way the web waveform does
// (amplitude * scale, clamped to 2..32) and then mapped onto terminal rows.
const (
	barMinPx = 2
	barMaxPx = 32
)

var barGlyphs = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// barHeights converts levels into heights in eighths of a row. A NoSignal
// sample yields -1.
func barHeights(levels []float64, scale float64, rows int) []int {
	out := make([]int, len(levels))
	for i, v := range levels {
		if v < 0 {
			out[i] = -1
			continue
		}
		px := math.Min(math.Max(v*scale, barMinPx), barMaxPx)
		out[i] = int(math.Round(px / barMaxPx * float64(rows*8)))
	}
	return out
}

// RenderWaveform draws one column per level, newest on the right. Missing
// history renders as a faint baseline; paused renders everything dim.
func RenderWaveform(levels []float64, scale float64, rows int, paused bool) string {
	if rows < 1 {
		rows = 1
	}
	heights := barHeights(levels, scale, rows)

	live := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentMain))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText))
	empty := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorNoSignal))

	lines := make([]string, rows)
	for r := 0; r < rows; r++ {
		// rows are drawn top-down; level counts bottom-up
		floor := (rows - 1 - r) * 8
		var b strings.Builder
		for _, h := range heights {
			style := live
			if paused {
				style = dim
			}
			if h < 0 {
				style = empty
				h = 1
				if r != rows-1 {
					h = 0
				}
			}
			fill := h - floor
			var glyph rune
			switch {
			case fill >= 8:
				glyph = barGlyphs[8]
			case fill <= 0:
				glyph = barGlyphs[0]
			default:
				glyph = barGlyphs[fill]
			}
			b.WriteString(style.Render(string(glyph)))
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

// padLevels left-fills history so the waveform keeps a fixed width from
// the first frame.
func padLevels(levels []float64, width int) []float64 {
	if len(levels) >= width {
		return levels[len(levels)-width:]
	}
	out := make([]float64, width)
	pad := width - len(levels)
	for i := 0; i < pad; i++ {
		out[i] = visual.NoSignal
	}
	copy(out[pad:], levels)
	return out
}
