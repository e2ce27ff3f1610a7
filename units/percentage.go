package units

import (
	"fmt"
	"math"
)

// Percentage is a ratio in [0, 1] backed by a float32.
//
// Constructors clamp. Arithmetic does not, so a result that must stay a valid
// ratio has to go through Clamp. Byte and Int clamp before converting.
type Percentage struct {
	raw float32
}

func clamp(v float32) float32 {
	if v < 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromFractional builds a Percentage from a ratio, clamped to [0, 1].
func FromFractional(v float32) Percentage {
	return Percentage{raw: clamp(v)}
}

// Unclamped wraps v as is. Use it for corrections that are added to a
// ratio and clamped later.
func Unclamped(v float32) Percentage {
	return Percentage{raw: v}
}

// FromByte maps 0-255 onto [0, 1].
func FromByte(b uint8) Percentage {
	return Percentage{raw: float32(b) / math.MaxUint8}
}

// FromInt builds a Percentage from a whole percent value (45 -> 0.45).
func FromInt(v uint8) Percentage {
	return Percentage{raw: clamp(float32(v) / 100)}
}

func Full() Percentage { return Percentage{raw: 1} }

func Zero() Percentage { return Percentage{} }

func (p Percentage) Fractional() float32 {
	return p.raw
}

// Byte truncates to the 0-255 wire representation.
func (p Percentage) Byte() uint8 {
	return uint8(clamp(p.raw) * math.MaxUint8)
}

// Int rounds to a whole percent.
func (p Percentage) Int() uint8 {
	return uint8(math.Round(float64(clamp(p.raw) * 100)))
}

func (p Percentage) Clamp() Percentage {
	return Percentage{raw: clamp(p.raw)}
}

func (p Percentage) IsZero() bool {
	return p.raw == 0
}

func (p Percentage) Equal(o Percentage) bool {
	return p.raw == o.raw
}

func (p Percentage) Add(o Percentage) Percentage {
	return Percentage{raw: p.raw + o.raw}
}

func (p Percentage) Sub(o Percentage) Percentage {
	return Percentage{raw: p.raw - o.raw}
}

func (p Percentage) Mul(o Percentage) Percentage {
	return Percentage{raw: p.raw * o.raw}
}

func (p Percentage) Div(o Percentage) Percentage {
	return Percentage{raw: p.raw / o.raw}
}

func (p Percentage) String() string {
	return fmt.Sprintf("%.1f%%", p.raw*100)
}
