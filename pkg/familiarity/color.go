package familiarity

import (
	"fmt"
	"math"
)

const (
	// CountCap is the lookup count at which a word is considered as familiar as
	// it gets; counts above it share the same hue.
	CountCap = 30
	// MaxHue is the hue used at CountCap. Zero (red) marks the least familiar words.
	MaxHue = 300

	NeutralColor = "#FFFFFF"
)

// Color is the underline color of an annotation span.
type Color struct {
	Hue     int
	Neutral bool
}

// Neutral is the no-highlight color.
var Neutral = Color{Neutral: true}

// String renders the color as a CSS value.
func (c Color) String() string {
	if c.Neutral {
		return NeutralColor
	}
	return fmt.Sprintf("hsl(%d, 100%%, 40%%)", c.Hue)
}

// ColorFor maps a record onto its highlight color. A nil record is treated as
// an unseen word.
func ColorFor(r *WordRecord) Color {
	if r == nil || r.Acquainted || r.Class == ClassFunctional || r.LookupCount <= 0 {
		return Neutral
	}
	n := min(r.LookupCount, CountCap)
	hue := int(math.Round(float64(MaxHue) * float64(n) / float64(CountCap)))
	return Color{Hue: hue}
}
