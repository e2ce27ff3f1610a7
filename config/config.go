package config

import (
	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/units"
)

// EngineConfig holds the tunables of the engine subsystem. These are the
// fields an Update message can change at runtime.
type EngineConfig struct {
	ThrottleMapMode     control.ThrottleMapMode
	TractionControlMode control.TractionControlMode
	DesiredSlip         units.Percentage
}

type McuConfig struct {
	EnginePoll units.Duration
	EcuPoll    units.Duration
}

type FcuConfig struct {
	ControlPoll       units.Duration
	UpdatePoll        units.Duration
	WheelDiameterInch float32
}

type Config struct {
	Mcu    McuConfig
	Engine EngineConfig
	Fcu    FcuConfig
}

func DefaultEngine() EngineConfig {
	return EngineConfig{
		ThrottleMapMode:     control.ThrottleMapLevel2,
		TractionControlMode: control.TractionControlLevel1,
		DesiredSlip:         units.FromFractional(0.1),
	}
}

func DefaultMcu() McuConfig {
	return McuConfig{
		EnginePoll: units.Millis(100),
		EcuPoll:    units.Millis(500),
	}
}

func DefaultFcu() FcuConfig {
	return FcuConfig{
		ControlPoll:       units.Millis(50),
		UpdatePoll:        units.Millis(100),
		WheelDiameterInch: 26,
	}
}

func Default() Config {
	return Config{
		Mcu:    DefaultMcu(),
		Engine: DefaultEngine(),
		Fcu:    DefaultFcu(),
	}
}
