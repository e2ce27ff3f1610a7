package controller

import (
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/engine"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// McuState is the MCU's view of the vehicle. Wheel speeds are nil until the
// first TireStatus for that wheel arrives.
type McuState struct {
	Throttle    units.Percentage
	ThrottleReq units.Percentage
	BrakeReq    units.Percentage
	RearSpeed   *units.WheelSpeed
	FrontSpeed  *units.WheelSpeed
}

// McuController owns the MCU config, state and engine subsystem.
// It is not safe for concurrent use; the runner serialises access.
type McuController struct {
	config config.Config
	state  McuState
	engine *engine.Subsystem
}

func NewMcu(cfg config.Config) *McuController {
	return &McuController{
		config: cfg,
		engine: engine.New(cfg.Engine),
	}
}

// ProcessMessage records wheel speeds and control requests. Other messages
// are ignored.
func (c *McuController) ProcessMessage(msg messages.Message) {
	switch m := msg.(type) {
	case messages.TireStatus:
		ws := m.Speed
		if m.Wheel == messages.Front {
			c.state.FrontSpeed = &ws
		} else {
			c.state.RearSpeed = &ws
		}
	case messages.ControlReq:
		c.state.ThrottleReq = m.Throttle
		c.state.BrakeReq = m.Brake
	}
}

func (c *McuController) RunEngineSubsystem(now units.Timestamp) {
	resp := c.engine.Run(engine.Request{
		RearSpeed:  c.state.RearSpeed,
		FrontSpeed: c.state.FrontSpeed,
		Throttle:   c.state.ThrottleReq,
		Timestamp:  now,
	})
	c.state.Throttle = resp.Throttle
}

func (c *McuController) BroadcastEcu() messages.Ecu {
	return messages.Ecu{Throttle: c.state.Throttle}
}

// UpdateConfig replaces the whole config and pushes the engine section into
// the engine subsystem, which resets it.
func (c *McuController) UpdateConfig(cfg config.Config) {
	c.config = cfg
	c.engine.Update(cfg.Engine)
}

func (c *McuController) Config() config.Config {
	return c.config
}

// State returns a copy of the current state.
func (c *McuController) State() McuState {
	s := c.state
	if s.RearSpeed != nil {
		ws := *s.RearSpeed
		s.RearSpeed = &ws
	}
	if s.FrontSpeed != nil {
		ws := *s.FrontSpeed
		s.FrontSpeed = &ws
	}
	return s
}
