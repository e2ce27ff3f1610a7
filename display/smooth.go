package display

import (
	"math"

	"github.com/HonakerM/ebike/units"
)

// Number of display frames averaged for the displayed speed.
const windowSize = 3

// speedWindow is a moving average over the last windowSize values passed to
// Average. The hub feeds it once per frame, so a wheel reading that has not
// changed between frames is counted again. A stopped wheel resets it so the
// display drops to zero at once.
type speedWindow struct {
	data  [windowSize]uint16
	head  uint8
	count uint8
	sum   uint32
}

func (w *speedWindow) Reset() {
	*w = speedWindow{}
}

func (w *speedWindow) Average(ws units.WheelSpeed) units.WheelSpeed {
	if ws == 0 {
		w.Reset()
		return 0
	}

	var oldest uint16
	if w.count >= windowSize {
		oldest = w.data[w.head]
	} else {
		w.count++
	}

	w.data[w.head] = uint16(ws)
	w.sum = w.sum - uint32(oldest) + uint32(ws)
	w.head = (w.head + 1) % windowSize

	return units.WheelSpeed(math.Round(float64(w.sum) / float64(w.count)))
}
