package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/units"
)

func speed(rpm uint16) *units.WheelSpeed {
	ws := units.WheelSpeed(rpm)
	return &ws
}

func TestZeroRequestReturnsZero(t *testing.T) {
	s := New(config.DefaultEngine())
	resp := s.Run(Request{
		RearSpeed:  speed(1000),
		FrontSpeed: speed(500),
		Throttle:   units.Zero(),
		Timestamp:  units.Micros(1000),
	})
	assert.Equal(t, units.Zero(), resp.Throttle)
}

func TestNoSamplesUsesThrottleMap(t *testing.T) {
	s := New(config.DefaultEngine())
	resp := s.Run(Request{Throttle: units.FromFractional(0.5)})
	assert.Equal(t, control.NewThrottleMap(control.ThrottleMapLevel2).Apply(units.FromFractional(0.5)), resp.Throttle)

	resp = s.Run(Request{RearSpeed: speed(1000), Throttle: units.FromFractional(0.5)})
	assert.InDelta(t, 0.25, resp.Throttle.Fractional(), 1e-6)
}

func TestFrontFasterSkipsTractionControl(t *testing.T) {
	s := New(config.DefaultEngine())
	resp := s.Run(Request{RearSpeed: speed(800), FrontSpeed: speed(1000), Throttle: units.Full()})
	assert.Equal(t, units.Full(), resp.Throttle)
}

func TestSlipAboveTargetCorrects(t *testing.T) {
	s := New(config.DefaultEngine())
	mapped := control.NewThrottleMap(control.ThrottleMapLevel2).Apply(units.Full())

	resp := s.Run(Request{
		RearSpeed:  speed(1000),
		FrontSpeed: speed(800),
		Throttle:   units.Full(),
		Timestamp:  units.Micros(0),
	})
	assert.NotEqual(t, mapped, resp.Throttle)
	assert.InDelta(t, 1.05, resp.Throttle.Fractional(), 1e-5)
}

func TestZeroRequestClearsTractionState(t *testing.T) {
	cfg := config.DefaultEngine()
	fresh := New(cfg)
	used := New(cfg)

	req := Request{RearSpeed: speed(1000), FrontSpeed: speed(700), Throttle: units.FromFractional(0.8)}
	for i := uint64(0); i < 5; i++ {
		req.Timestamp = units.Micros(i * 100000)
		used.Run(req)
	}
	used.Run(Request{Throttle: units.Zero(), Timestamp: units.Micros(600000)})

	req.Timestamp = units.Micros(700000)
	assert.Equal(t, fresh.Run(req), used.Run(req))
}

func TestUpdateSwitchesModes(t *testing.T) {
	s := New(config.DefaultEngine())
	s.Update(config.EngineConfig{
		ThrottleMapMode:     control.ThrottleMapLevel1,
		TractionControlMode: control.TractionControlLevel0,
		DesiredSlip:         units.FromFractional(0.5),
	})

	resp := s.Run(Request{RearSpeed: speed(1000), FrontSpeed: speed(800), Throttle: units.FromFractional(0.4)})
	assert.Equal(t, units.FromFractional(0.4), resp.Throttle)
}

func TestSlip(t *testing.T) {
	slip, ok := Slip(speed(1000), speed(800))
	require.True(t, ok)
	assert.InDelta(t, 0.2, slip.Fractional(), 1e-6)

	_, ok = Slip(speed(800), speed(800))
	assert.False(t, ok)
	_, ok = Slip(nil, speed(800))
	assert.False(t, ok)
	_, ok = Slip(speed(800), nil)
	assert.False(t, ok)
}
