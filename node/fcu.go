package node

import (
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/configupdate"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// Inputs is one sample of the operator controls.
type Inputs struct {
	Throttle   units.Percentage
	Brake      units.Percentage
	Selector   units.Percentage
	Value      units.Percentage
	FrontSpeed *units.WheelSpeed
}

// FcuInputs supplies the operator controls. Read must not block.
type FcuInputs interface {
	Read() Inputs
}

// Display presents FCU snapshots to the operator. Show is called with the
// runner lock held and must not block.
type Display interface {
	Show(snap Snapshot)
}

// Snapshot is the display view of the FCU.
type Snapshot struct {
	State  controller.FcuState
	Config config.Config
	Ground units.GroundSpeed
}

// Fcu binds a FcuController to the runner loops.
type Fcu struct {
	Ctl     *controller.FcuController
	Inputs  FcuInputs
	Display Display
}

func NewFcu(ctl *controller.FcuController, inputs FcuInputs) *Fcu {
	return &Fcu{Ctl: ctl, Inputs: inputs}
}

func (n *Fcu) ProcessMessage(msg messages.Message) {
	n.Ctl.ProcessMessage(msg)
}

// Broadcast sends the control request and, when the front wheel sensor has a
// sample, the front wheel speed.
func (n *Fcu) Broadcast(units.Timestamp) ([]messages.Message, units.Duration) {
	in := n.Inputs.Read()
	out := []messages.Message{n.Ctl.BroadcastCtl(in.Throttle, in.Brake)}
	if in.FrontSpeed != nil {
		out = append(out, n.Ctl.BroadcastWheel(*in.FrontSpeed))
	}
	return out, n.Ctl.Config().Fcu.ControlPoll
}

// Tick runs the config tuning cursor and refreshes the display.
func (n *Fcu) Tick(units.Timestamp) ([]messages.Message, units.Duration) {
	in := n.Inputs.Read()
	var out []messages.Message
	if u, ok := n.Ctl.RunConfigUpdate(configupdate.NewState(in.Selector, in.Value)); ok {
		out = append(out, u)
	}
	if n.Display != nil {
		n.Display.Show(n.snapshot())
	}
	return out, n.Ctl.Config().Fcu.UpdatePoll
}

func (n *Fcu) snapshot() Snapshot {
	cfg := n.Ctl.Config()
	snap := Snapshot{State: n.Ctl.UpdateUserDisplay(), Config: cfg}
	if snap.State.FrontSpeed != nil {
		snap.Ground = units.GroundSpeedFromWheel(*snap.State.FrontSpeed, cfg.Fcu.WheelDiameterInch)
	}
	return snap
}
