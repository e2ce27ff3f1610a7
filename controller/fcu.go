package controller

import (
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/configupdate"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// FcuState is what the operator display shows.
type FcuState struct {
	ThrottleReq units.Percentage
	BrakeReq    units.Percentage
	Update      configupdate.State
	FrontSpeed  *units.WheelSpeed
}

// FcuController owns the FCU config, state and config updater.
// It is not safe for concurrent use; the runner serialises access.
type FcuController struct {
	config  config.Config
	state   FcuState
	updater *configupdate.Updater
}

func NewFcu(cfg config.Config) *FcuController {
	return &FcuController{
		config:  cfg,
		state:   FcuState{Update: configupdate.DefaultState()},
		updater: configupdate.NewUpdater(),
	}
}

// ProcessMessage applies Update messages to the config. Other messages are
// ignored.
func (c *FcuController) ProcessMessage(msg messages.Message) {
	if u, ok := msg.(messages.Update); ok {
		u.Apply(&c.config)
	}
}

// RunConfigUpdate stores the cursor and returns an Update only when it
// differs from the stored one.
func (c *FcuController) RunConfigUpdate(st configupdate.State) (messages.Update, bool) {
	if st.Equal(c.state.Update) {
		return messages.Update{}, false
	}
	c.state.Update = st
	return c.updater.Run(st), true
}

func (c *FcuController) BroadcastCtl(throttle, brake units.Percentage) messages.ControlReq {
	c.state.ThrottleReq = throttle
	c.state.BrakeReq = brake
	return messages.ControlReq{Throttle: throttle, Brake: brake}
}

// BroadcastWheel records the front wheel speed measured at the FCU.
func (c *FcuController) BroadcastWheel(ws units.WheelSpeed) messages.TireStatus {
	c.state.FrontSpeed = &ws
	return messages.TireStatus{Wheel: messages.Front, Speed: ws}
}

// UpdateUserDisplay returns a snapshot for the display.
func (c *FcuController) UpdateUserDisplay() FcuState {
	s := c.state
	if s.FrontSpeed != nil {
		ws := *s.FrontSpeed
		s.FrontSpeed = &ws
	}
	return s
}

func (c *FcuController) Config() config.Config {
	return c.config
}
