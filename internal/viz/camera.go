package viz

import (
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Camera maps the x-z plane of the world onto canvas pixels, centred on the
// first site. A fixed camera keeps the framing chosen on the first frame; a
// tracking camera follows the first site horizontally.
type Camera struct {
	Fixed   bool
	CenterX float64
	CenterZ float64
	Scale   float64 // pixels per metre

	framed bool
}

const framePadding = 1.2

// Frame fits the site chain into a w x h pixel canvas. The chain can swing
// through any angle, so the framed radius is its total length.
func (c *Camera) Frame(points []dynamo.Vec3, w, h int) {
	if len(points) == 0 {
		return
	}
	if c.framed {
		if !c.Fixed {
			c.CenterX = points[0][0]
		}
		return
	}

	reach := 0.0
	for i := 1; i < len(points); i++ {
		reach += math.Hypot(points[i][0]-points[i-1][0], points[i][2]-points[i-1][2])
	}
	if reach < 0.5 {
		reach = 0.5
	}
	c.CenterX, c.CenterZ = points[0][0], points[0][2]
	c.Scale = math.Min(float64(w), float64(h)) / (2 * framePadding * reach)
	c.framed = true
}

// Project returns the pixel for a world point. Screen y grows downward.
func (c *Camera) Project(p dynamo.Vec3, w, h int) (int, int) {
	x := float64(w)/2 + (p[0]-c.CenterX)*c.Scale
	y := float64(h)/2 - (p[2]-c.CenterZ)*c.Scale
	return int(math.Round(x)), int(math.Round(y))
}

// Reset forgets the framing so the next frame chooses it again.
func (c *Camera) Reset() { c.framed = false }
