// Package export renders stored runs into shareable files.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/samplempc/internal/dynamo"
)

// Point is a position in the x-z plane of the world.
type Point struct{ X, Z float64 }

// DefaultColors cycles across paths.
var DefaultColors = []string{"#00ff88", "#00ccff", "#ff00ff", "#ffcc00", "#ff4444"}

// SitePaths replays states through the model's site table and returns one
// path per site.
func SitePaths(model *dynamo.Model, states [][]float64, sites []string) ([][]Point, error) {
	paths := make([][]Point, len(sites))
	for i, name := range sites {
		if !model.HasSite(name) {
			return nil, fmt.Errorf("%w: %q on %s", dynamo.ErrUnknownSite, name, model.Name())
		}
		paths[i] = make([]Point, 0, len(states))
		for _, x := range states {
			if len(x) != model.StateDim() {
				return nil, fmt.Errorf("%w: state has %d entries, %s needs %d", dynamo.ErrDimensionMismatch, len(x), model.Name(), model.StateDim())
			}
			p, err := model.SitePos(name, x)
			if err != nil {
				return nil, err
			}
			paths[i] = append(paths[i], Point{p[0], p[2]})
		}
	}
	return paths, nil
}

// PathSVG writes the paths as polylines on a dark background, fitted to
// width x height with 10% padding and equal scale on both axes.
func PathSVG(w io.Writer, paths [][]Point, width, height int, colors []string) error {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minZ, maxZ = math.Min(minZ, p.Z), math.Max(maxZ, p.Z)
		}
	}
	if math.IsInf(minX, 1) {
		return fmt.Errorf("no points to draw")
	}

	span := math.Max(maxX-minX, maxZ-minZ)
	if span == 0 {
		span = 1
	}
	span *= 1.2
	scale := math.Min(float64(width), float64(height)) / span
	cx, cz := (minX+maxX)/2, (minZ+maxZ)/2
	project := func(p Point) (float64, float64) {
		return float64(width)/2 + (p.X-cx)*scale, float64(height)/2 - (p.Z-cz)*scale
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, path := range paths {
		if len(path) == 0 {
			continue
		}
		fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, colors[i%len(colors)])
		for j, p := range path {
			x, y := project(p)
			if j == 0 {
				fmt.Fprintf(bw, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
			}
		}
		bw.WriteString("\"/>\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}
