package extract

import (
	"math/rand/v2"
	"sync/atomic"
)

// Palette holds the avatar colors handed out to candidates
var Palette = []string{
	"#FF5733",
	"#33FF57",
	"#3357FF",
	"#F333FF",
	"#33FFF5",
	"#FF33A8",
	"#A833FF",
	"#33FFBD",
}

// ColorSource picks a display color for a candidate. The color carries no
// meaning beyond presentation.
type ColorSource interface {
	Color() string
}

// RandomPalette picks a random Palette entry on every call
type RandomPalette struct{}

// Color implements ColorSource
func (RandomPalette) Color() string {
	return Palette[rand.IntN(len(Palette))]
}

// CyclingPalette walks Palette in order, wrapping around. Safe for concurrent use.
type CyclingPalette struct {
	next atomic.Uint64
}

// Color implements ColorSource
func (c *CyclingPalette) Color() string {
	i := c.next.Add(1) - 1
	return Palette[i%uint64(len(Palette))]
}
