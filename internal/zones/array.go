package zones

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/ceilingd/internal/color"
)

// MaxSegmentZones is the most zones a single device write can carry.
const MaxSegmentZones = 64

// ErrInvalidLength is matched by InvalidLengthError.
var ErrInvalidLength = errors.New("invalid zone array length")

// InvalidLengthError reports a zone array that does not fit the fixture.
type InvalidLengthError struct {
	Expected int
	Got      int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("expected %d colors, got %d", e.Expected, e.Got)
}

func (e *InvalidLengthError) Is(target error) bool {
	return target == ErrInvalidLength
}

// Array holds one color per zone, downlight zones first.
type Array []color.HSBK

// Build returns total-1 copies of down followed by up.
func Build(down, up color.HSBK, total int) Array {
	if total < 1 {
		return Array{}
	}
	a := make(Array, total)
	for i := 0; i < total-1; i++ {
		a[i] = down
	}
	a[total-1] = up
	return a
}

// Validate checks the array length against the fixture's zone count.
func (a Array) Validate(total int) error {
	if len(a) != total {
		return &InvalidLengthError{Expected: total, Got: len(a)}
	}
	return nil
}

// Split reads the downlight and uplight colors back out of an array.
//
// The downlight takes hue, saturation and kelvin from zone 0 and the highest
// brightness over all downlight zones, since the zones may not have finished
// transitioning together.
func Split(a Array) (down, up color.HSBK, err error) {
	if len(a) < 2 {
		return down, up, &InvalidLengthError{Expected: 2, Got: len(a)}
	}

	up = a[len(a)-1]
	down = a[0]
	down.Brightness = DownlightBrightness(a)
	return down, up, nil
}

// DownlightBrightness returns the max brightness of all zones but the last.
func DownlightBrightness(a Array) uint16 {
	var highest uint16
	for _, c := range a[:len(a)-1] {
		if c.Brightness > highest {
			highest = c.Brightness
		}
	}
	return highest
}

// Segment is a run of zones written to one rectangle of the tile.
type Segment struct {
	X      uint8
	Y      uint8
	Width  uint8
	Colors []color.HSBK
}

// Segments cuts the array into device-sized writes. A 16-wide 128-zone tile
// takes two writes at rows 0 and 4.
func Segments(a Array, width uint8) []Segment {
	if width == 0 {
		width = defaultTileWidth
	}

	var out []Segment
	for start := 0; start < len(a); start += MaxSegmentZones {
		end := start + MaxSegmentZones
		if end > len(a) {
			end = len(a)
		}
		out = append(out, Segment{
			X:      0,
			Y:      uint8(start / int(width)),
			Width:  width,
			Colors: a[start:end],
		})
	}
	return out
}
