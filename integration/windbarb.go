package integration

import (
	"fmt"
	"math"
	"strings"
)

const (
	barbWidth     = 40
	barbHeight    = 80
	barbSpace     = 10
	barbFull      = 14
	barbTopMargin = 20
)

// Barb is the composition of a wind barb: pennants of 50 kn, full barbs of
// 10 kn and an optional half barb of 5 kn. Offset is set for light winds,
// whose single half barb sits slightly below the end of the shaft.
type Barb struct {
	Pennants int  `json:"pennants"`
	Full     int  `json:"full"`
	Half     bool `json:"half"`
	Offset   bool `json:"offset"`
}

// ComposeBarb splits a wind speed in knots into barb elements. Speeds are
// rounded to the nearest symbol: 48 kn draws a pennant, 8 kn a full barb and
// 3 kn a half barb.
func ComposeBarb(knots float64) Barb {
	var b Barb
	remaining := knots
	if remaining >= 3 && remaining < 8 {
		b.Offset = true
	}
	for remaining >= 48 {
		b.Pennants++
		remaining -= 50
	}
	for remaining >= 8 {
		b.Full++
		remaining -= 10
	}
	if remaining >= 3 {
		b.Half = true
	}
	return b
}

// WindBarbSVG renders the barb for a wind of knots blowing from directionDeg.
// The shaft points up for a northerly wind and turns about its base, which
// sits at the centre of a square canvas so every direction stays in view. A
// calm draws an empty canvas.
func WindBarbSVG(knots, directionDeg float64) string {
	size := 2 * barbHeight
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" stroke="black" fill="black">`, size, size)
	if !(knots > 0) || math.IsInf(knots, 0) {
		sb.WriteString(`</svg>`)
		return sb.String()
	}

	b := ComposeBarb(knots)
	cx := barbWidth / 2

	var parts []string
	parts = append(parts, fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d"/>`, cx, barbTopMargin, cx, barbHeight))

	y := barbTopMargin
	if b.Offset {
		y += barbSpace / 2
	}
	for i := 0; i < b.Pennants; i++ {
		parts = append(parts, fmt.Sprintf(`<path d="M%d %d v %d h %dz"/>`, cx, y, -barbFull, barbFull))
		y += barbSpace
	}
	for i := 0; i < b.Full; i++ {
		parts = append(parts, barbLine(cx, y, barbFull))
		y += barbSpace
	}
	if b.Half {
		parts = append(parts, barbLine(cx, y, barbFull/2))
	}

	fmt.Fprintf(&sb, `<g transform="translate(%d 0) rotate(%.1f %d %d)">`,
		barbHeight-cx, normalizeDeg(directionDeg), cx, barbHeight)
	sb.WriteString(strings.Join(parts, ""))
	sb.WriteString(`</g></svg>`)
	return sb.String()
}

func barbLine(x, y, length int) string {
	return fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d"/>`, x, y, x+length, y-length)
}
