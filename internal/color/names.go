package color

import (
	"errors"
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// ErrUnknownColorName is returned (non-fatally) when a named color cannot be resolved.
var ErrUnknownColorName = errors.New("unknown color name")

// NameToHS resolves a CSS color name to hue in degrees and saturation in percent.
// Case, spaces and underscores are ignored.
func NameToHS(name string) (hueDeg, satPct float64, err error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name))
	rgba, ok := colornames.Map[key]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownColorName, name)
	}

	c := colorful.Color{
		R: float64(rgba.R) / 255,
		G: float64(rgba.G) / 255,
		B: float64(rgba.B) / 255,
	}
	h, s, _ := c.Hsv()
	return h, s * 100, nil
}
