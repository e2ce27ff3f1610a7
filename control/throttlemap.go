package control

import (
	"math"

	"github.com/HonakerM/ebike/units"
)

// ThrottleMapMode selects the response curve applied to a throttle request.
type ThrottleMapMode uint8

const (
	ThrottleMapLevel0 ThrottleMapMode = iota // sqrt, sharp low-end response
	ThrottleMapLevel1                        // linear
	ThrottleMapLevel2                        // square, soft low-end response
)

// ThrottleMapModeFromByte decodes a wire tag. Unknown tags map to Level0.
func ThrottleMapModeFromByte(b uint8) ThrottleMapMode {
	switch ThrottleMapMode(b) {
	case ThrottleMapLevel1:
		return ThrottleMapLevel1
	case ThrottleMapLevel2:
		return ThrottleMapLevel2
	default:
		return ThrottleMapLevel0
	}
}

func (m ThrottleMapMode) Byte() uint8 {
	return uint8(m)
}

func (m ThrottleMapMode) String() string {
	switch m {
	case ThrottleMapLevel0:
		return "level0"
	case ThrottleMapLevel1:
		return "level1"
	case ThrottleMapLevel2:
		return "level2"
	default:
		return "unknown"
	}
}

// ThrottleMap shapes a requested throttle. It holds no state besides the mode.
type ThrottleMap struct {
	mode ThrottleMapMode
}

func NewThrottleMap(mode ThrottleMapMode) *ThrottleMap {
	return &ThrottleMap{mode: mode}
}

func (t *ThrottleMap) Mode() ThrottleMapMode {
	return t.mode
}

func (t *ThrottleMap) SetMode(mode ThrottleMapMode) {
	t.mode = mode
}

func (t *ThrottleMap) Apply(req units.Percentage) units.Percentage {
	x := req.Fractional()
	switch t.mode {
	case ThrottleMapLevel0:
		return units.FromFractional(float32(math.Sqrt(float64(x))))
	case ThrottleMapLevel2:
		return units.FromFractional(x * x)
	default:
		return req
	}
}
