package units

import (
	"encoding/binary"
	"math"
)

// WheelSpeed is a wheel's rotation rate in RPM.
type WheelSpeed uint16

const inchesPerMile = 63360

func WheelSpeedFromBytes(b [2]byte) WheelSpeed {
	return WheelSpeed(binary.LittleEndian.Uint16(b[:]))
}

// Bytes returns the little-endian wire form.
func (w WheelSpeed) Bytes() [2]byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(w))
	return b
}

func (w WheelSpeed) RPM() float32 {
	return float32(w)
}

// GroundSpeed is a linear speed derived from a wheel speed.
type GroundSpeed struct {
	mph float32
}

// GroundSpeedFromWheel converts RPM to miles per hour for a wheel of the given
// diameter in inches.
func GroundSpeedFromWheel(ws WheelSpeed, wheelDiameterInch float32) GroundSpeed {
	circumference := math.Pi * float64(wheelDiameterInch) / inchesPerMile
	revsPerHour := float64(ws) * 60
	return GroundSpeed{mph: float32(revsPerHour * circumference)}
}

func (g GroundSpeed) MPH() float32 {
	return g.mph
}

func (g GroundSpeed) KPH() float32 {
	return g.mph * 1.609344
}
