package engine

import (
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/units"
)

// Request is the input of one engine tick. Wheel speeds are nil until a
// sample for that wheel has been received.
type Request struct {
	RearSpeed  *units.WheelSpeed
	FrontSpeed *units.WheelSpeed
	Throttle   units.Percentage
	Timestamp  units.Timestamp
}

type Response struct {
	Throttle units.Percentage
}

// Subsystem shapes the throttle request and corrects it for rear wheel slip.
type Subsystem struct {
	throttleMap *control.ThrottleMap
	traction    *control.TractionControl
}

func New(cfg config.EngineConfig) *Subsystem {
	return &Subsystem{
		throttleMap: control.NewThrottleMap(cfg.ThrottleMapMode),
		traction:    control.NewTractionControl(cfg.TractionControlMode, cfg.DesiredSlip),
	}
}

// Update switches both algorithms to cfg and resets.
func (s *Subsystem) Update(cfg config.EngineConfig) {
	s.throttleMap.SetMode(cfg.ThrottleMapMode)
	s.traction.SetMode(cfg.TractionControlMode)
	s.traction.SetDesiredSlip(cfg.DesiredSlip)
	s.Reset()
}

func (s *Subsystem) Reset() {
	s.traction.Reset()
}

// Run computes the throttle for one tick. A zero request ends the current
// acceleration: traction control is reset and the response is zero.
func (s *Subsystem) Run(req Request) Response {
	if req.Throttle.IsZero() {
		s.Reset()
		return Response{Throttle: units.Zero()}
	}

	throttle := s.throttleMap.Apply(req.Throttle)

	if slip, ok := Slip(req.RearSpeed, req.FrontSpeed); ok {
		throttle = s.traction.Run(req.Timestamp, slip, throttle)
	}

	return Response{Throttle: throttle}
}

// Slip returns (rear-front)/rear when both samples are present and the rear
// wheel is turning faster.
func Slip(rear, front *units.WheelSpeed) (units.Percentage, bool) {
	if rear == nil || front == nil || *rear <= *front {
		return units.Zero(), false
	}
	r, f := rear.RPM(), front.RPM()
	return units.FromFractional((r - f) / r), true
}
