package viz

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// TraceBuffer keeps the most recent planned site paths, oldest first.
type TraceBuffer struct {
	max   int
	paths [][]dynamo.Vec3
	color lipgloss.Color
}

func NewTraceBuffer(max int, rgba [4]float64) *TraceBuffer {
	if max < 0 {
		max = 0
	}
	return &TraceBuffer{max: max, color: TraceColor(rgba)}
}

// Push appends a path, evicting the oldest entries beyond the cap.
func (b *TraceBuffer) Push(path []dynamo.Vec3) {
	if b.max == 0 || len(path) == 0 {
		return
	}
	b.paths = append(b.paths, path)
	if over := len(b.paths) - b.max; over > 0 {
		b.paths = append(b.paths[:0], b.paths[over:]...)
	}
}

func (b *TraceBuffer) Paths() [][]dynamo.Vec3 { return b.paths }
func (b *TraceBuffer) Len() int               { return len(b.paths) }
func (b *TraceBuffer) Cap() int               { return b.max }
func (b *TraceBuffer) Color() lipgloss.Color  { return b.color }
func (b *TraceBuffer) Clear()                 { b.paths = b.paths[:0] }

// TraceColor converts an RGBA colour in [0, 1] to a terminal colour, blending
// the alpha channel against a black background.
func TraceColor(rgba [4]float64) lipgloss.Color {
	a := clamp01(rgba[3])
	channel := func(v float64) int {
		return int(math.Round(clamp01(v) * a * 255))
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", channel(rgba[0]), channel(rgba[1]), channel(rgba[2])))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
