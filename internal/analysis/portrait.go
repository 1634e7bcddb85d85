package analysis

import (
	"errors"
	"strings"
)

// Point is one sample of a portrait.
type Point struct{ X, Y float64 }

// Portrait pairs two series sampled at the same times.
type Portrait struct {
	XLabel, YLabel string
	Points         []Point
}

func NewPortrait(xLabel string, xs []float64, yLabel string, ys []float64) (*Portrait, error) {
	if len(xs) != len(ys) {
		return nil, errors.New("analysis: portrait series differ in length")
	}
	p := &Portrait{XLabel: xLabel, YLabel: yLabel, Points: make([]Point, len(xs))}
	for i := range xs {
		p.Points[i] = Point{X: xs[i], Y: ys[i]}
	}
	return p, nil
}

// Bounds returns the extent of the points.
func (p *Portrait) Bounds() (minX, maxX, minY, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = p.Points[0].X, p.Points[0].X
	minY, maxY = p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX = min(minX, pt.X)
		maxX = max(maxX, pt.X)
		minY = min(minY, pt.Y)
		maxY = max(maxY, pt.Y)
	}
	return minX, maxX, minY, maxY
}

// ASCII renders the portrait on a width x height canvas. The first sample is
// drawn as 'o' and the last as '*'.
func (p *Portrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX, minY, maxY := p.Bounds()
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	plot := func(pt Point, mark rune) {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = mark
		}
	}
	for _, pt := range p.Points {
		plot(pt, '•')
	}
	plot(p.Points[0], 'o')
	plot(p.Points[len(p.Points)-1], '*')

	var sb strings.Builder
	sb.WriteString(p.YLabel)
	sb.WriteRune('\n')
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	sb.WriteString(strings.Repeat(" ", max(0, width-len(p.XLabel))))
	sb.WriteString(p.XLabel)
	sb.WriteRune('\n')
	return sb.String()
}
