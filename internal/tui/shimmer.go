package tui

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer sweeps a highlight across status text ("Saving", "Transcribing")
// while a long operation runs.
type Shimmer struct {
	center    float64
	width     float64 // highlight width as a share of the text
	step      time.Duration
	cycle     time.Duration
	truecolor bool
	active    bool
}

// shimmerTickMsg advances every running shimmer by one step.
type shimmerTickMsg struct{}

// NewShimmer returns a stopped shimmer.
func NewShimmer() *Shimmer {
	return &Shimmer{
		width:     0.25,
		step:      100 * time.Millisecond,
		cycle:     1800 * time.Millisecond,
		truecolor: os.Getenv("COLORTERM") == "truecolor",
	}
}

// Start resets the sweep and returns the first tick.
func (s *Shimmer) Start() tea.Cmd {
	s.active = true
	s.center = 0
	return s.tick()
}

func (s *Shimmer) Stop() { s.active = false }

func (s *Shimmer) Active() bool { return s.active }

// Advance moves the highlight for text of length n and schedules the next
// tick while active.
func (s *Shimmer) Advance(n int) tea.Cmd {
	if !s.active {
		return nil
	}
	if n > 0 {
		steps := float64(s.cycle) / float64(s.step)
		span := float64(n) * (1 + 2*s.width)
		s.center += span / steps
		if s.center > float64(n)*(1+s.width) {
			s.center = -float64(n) * s.width
		}
	}
	return s.tick()
}

func (s *Shimmer) tick() tea.Cmd {
	return tea.Tick(s.step, func(time.Time) tea.Msg { return shimmerTickMsg{} })
}

// Render colors text around the current highlight position.
func (s *Shimmer) Render(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	if !s.active {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright)).Render(text)
	}

	sigma := math.Max(1, s.width*float64(len(runes))/2)
	var b strings.Builder
	for i, r := range runes {
		dx := float64(i) - s.center
		w := math.Exp(-(dx * dx) / (2 * sigma * sigma))
		if s.truecolor {
			// blend #B1B8C7 toward #EAE6FF
			red := int(177 + (234-177)*w)
			green := int(184 + (230-184)*w)
			blue := int(199 + (255-199)*w)
			fmt.Fprintf(&b, "\033[38;2;%d;%d;%dm%c", red, green, blue, r)
			continue
		}
		code := 250
		if w > 0.5 {
			code = 147
		}
		fmt.Fprintf(&b, "\033[38;5;%dm%c", code, r)
	}
	b.WriteString("\033[0m")
	return b.String()
}
