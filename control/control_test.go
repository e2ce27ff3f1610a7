package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HonakerM/ebike/units"
)

func TestThrottleMapCurves(t *testing.T) {
	linear := NewThrottleMap(ThrottleMapLevel1)
	sharp := NewThrottleMap(ThrottleMapLevel0)
	soft := NewThrottleMap(ThrottleMapLevel2)

	for _, v := range []float32{0.01, 0.1, 0.25, 0.5, 0.75, 0.99} {
		p := units.FromFractional(v)
		assert.Equal(t, p, linear.Apply(p))
		assert.GreaterOrEqual(t, sharp.Apply(p).Fractional(), v)
		assert.LessOrEqual(t, soft.Apply(p).Fractional(), v)
	}

	assert.InDelta(t, 0.5, sharp.Apply(units.FromFractional(0.25)).Fractional(), 1e-6)
	assert.InDelta(t, 0.25, soft.Apply(units.FromFractional(0.5)).Fractional(), 1e-6)
	assert.Equal(t, units.Full(), soft.Apply(units.Full()))
	assert.Equal(t, units.Zero(), sharp.Apply(units.Zero()))
}

func TestThrottleMapSetMode(t *testing.T) {
	m := NewThrottleMap(ThrottleMapLevel2)
	m.SetMode(ThrottleMapLevel1)
	assert.Equal(t, ThrottleMapLevel1, m.Mode())
	assert.Equal(t, units.FromFractional(0.3), m.Apply(units.FromFractional(0.3)))
}

func TestModeTags(t *testing.T) {
	tests := []struct {
		tag      uint8
		throttle ThrottleMapMode
		traction TractionControlMode
	}{
		{0, ThrottleMapLevel0, TractionControlLevel0},
		{1, ThrottleMapLevel1, TractionControlLevel1},
		{2, ThrottleMapLevel2, TractionControlLevel0},
		{0xFF, ThrottleMapLevel0, TractionControlLevel0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.throttle, ThrottleMapModeFromByte(tt.tag), "tag %d", tt.tag)
		assert.Equal(t, tt.traction, TractionControlModeFromByte(tt.tag), "tag %d", tt.tag)
	}
	assert.Equal(t, "000", TractionControlLevel0.ShortString())
	assert.Equal(t, "001", TractionControlLevel1.ShortString())
}

func TestPIDProportional(t *testing.T) {
	p := NewPID(0.5, 0, 0, 0.1)
	assert.InDelta(t, 0.05, p.Update(0.2, 0), 1e-6)
	assert.InDelta(t, -0.05, p.Update(0.0, 10), 1e-6)
}

func TestPIDIntegralAndDerivative(t *testing.T) {
	p := NewPID(0, 1, 0, 0)
	p.Update(0.5, 2)
	assert.InDelta(t, 1.0, p.Integral(), 1e-6)
	p.Update(0.5, 0) // floored to 1ms
	assert.InDelta(t, 1.5, p.Integral(), 1e-6)

	d := NewPID(0, 0, 1, 0)
	assert.InDelta(t, 0.5, d.Update(0.5, 1), 1e-6)
	assert.InDelta(t, -0.1, d.Update(0.3, 2), 1e-6)

	p.Reset()
	assert.Equal(t, float32(0), p.Integral())
}

func TestTractionControlPassesThroughWhenUnderTarget(t *testing.T) {
	tc := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	req := units.FromFractional(0.6)
	assert.Equal(t, req, tc.Run(units.Micros(1000), units.FromFractional(0.05), req))
	assert.Equal(t, req, tc.Run(units.Micros(2000), units.FromFractional(0.1), req))
}

func TestTractionControlCorrectsAboveTarget(t *testing.T) {
	tc := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	out := tc.Run(units.Micros(0), units.FromFractional(0.2), units.Full())
	assert.InDelta(t, 1.05, out.Fractional(), 1e-5)

	tc.SetMode(TractionControlLevel0)
	out = tc.Run(units.Micros(100000), units.FromFractional(0.2), units.FromFractional(0.5))
	assert.InDelta(t, 0.51, out.Fractional(), 1e-5)
}

func TestTractionControlAddsFullCorrection(t *testing.T) {
	tc := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	tc.pid.SetGains(20, 0, 0)

	// 20 * (0.2 - 0.1) is well above a whole ratio and is added as is.
	out := tc.Run(units.Micros(0), units.FromFractional(0.2), units.FromFractional(0.5))
	assert.InDelta(t, 2.5, out.Fractional(), 1e-5)
	assert.Equal(t, uint8(255), out.Byte())
}

func TestTractionControlResetMakesItFresh(t *testing.T) {
	fresh := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	used := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	used.pid.SetGains(0.5, 0.2, 0.3)
	fresh.pid.SetGains(0.5, 0.2, 0.3)

	used.Run(units.Micros(0), units.FromFractional(0.4), units.FromFractional(0.5))
	used.Run(units.Micros(50000), units.FromFractional(0.3), units.FromFractional(0.5))
	used.Reset()

	slip, req := units.FromFractional(0.25), units.FromFractional(0.5)
	assert.Equal(t, fresh.Run(units.Micros(90000), slip, req), used.Run(units.Micros(90000), slip, req))
}

func TestTractionControlDesiredSlip(t *testing.T) {
	tc := NewTractionControl(TractionControlLevel1, units.FromFractional(0.1))
	tc.SetDesiredSlip(units.FromFractional(0.3))
	assert.Equal(t, units.FromFractional(0.3), tc.DesiredSlip())
	req := units.FromFractional(0.5)
	assert.Equal(t, req, tc.Run(units.Micros(0), units.FromFractional(0.2), req))
}
