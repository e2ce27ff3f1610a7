package node

import (
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// McuObserver receives MCU state changes. Calls are made with the runner lock
// held, so implementations must hand off any slow work.
type McuObserver interface {
	McuState(state controller.McuState, cfg config.Config)
	ConfigUpdated(u messages.Update, cfg config.Config)
}

// Mcu binds a McuController to the runner loops.
type Mcu struct {
	Ctl *controller.McuController

	// AcceptUpdates routes Update messages from the FCU into the engine
	// config. The controller itself ignores them.
	AcceptUpdates bool

	Observer McuObserver
}

func NewMcu(ctl *controller.McuController) *Mcu {
	return &Mcu{Ctl: ctl, AcceptUpdates: true}
}

func (n *Mcu) ProcessMessage(msg messages.Message) {
	n.Ctl.ProcessMessage(msg)

	u, ok := msg.(messages.Update)
	if !ok || !n.AcceptUpdates {
		return
	}
	cfg := n.Ctl.Config()
	u.Apply(&cfg)
	n.Ctl.UpdateConfig(cfg)
	if n.Observer != nil {
		n.Observer.ConfigUpdated(u, cfg)
	}
}

func (n *Mcu) Broadcast(units.Timestamp) ([]messages.Message, units.Duration) {
	return []messages.Message{n.Ctl.BroadcastEcu()}, n.Ctl.Config().Mcu.EcuPoll
}

func (n *Mcu) Tick(now units.Timestamp) ([]messages.Message, units.Duration) {
	n.Ctl.RunEngineSubsystem(now)
	if n.Observer != nil {
		n.Observer.McuState(n.Ctl.State(), n.Ctl.Config())
	}
	return nil, n.Ctl.Config().Mcu.EnginePoll
}
