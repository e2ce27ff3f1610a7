package main

import (
	"fmt"
	"strconv"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/node"
	"github.com/HonakerM/ebike/units"
)

// Redis keys
const (
	redisMcuKey       = "mcu"
	redisFcuKey       = "fcu"
	redisFcuInputsKey = "fcu-inputs"
)

const rpmNone = "none"

// McuStatus is the MCU state as written to the "mcu" hash. Percentages are
// whole percent.
type McuStatus struct {
	Throttle        uint8
	ThrottleReq     uint8
	BrakeReq        uint8
	RearRPM         string
	FrontRPM        string
	ThrottleMap     string
	TractionControl string
	DesiredSlip     uint8
}

func NewMcuStatus(state controller.McuState, cfg config.Config) McuStatus {
	return McuStatus{
		Throttle:        state.Throttle.Int(),
		ThrottleReq:     state.ThrottleReq.Int(),
		BrakeReq:        state.BrakeReq.Int(),
		RearRPM:         rpmField(state.RearSpeed),
		FrontRPM:        rpmField(state.FrontSpeed),
		ThrottleMap:     cfg.Engine.ThrottleMapMode.String(),
		TractionControl: cfg.Engine.TractionControlMode.String(),
		DesiredSlip:     cfg.Engine.DesiredSlip.Int(),
	}
}

func (s McuStatus) Fields() map[string]interface{} {
	return map[string]interface{}{
		"throttle":         s.Throttle,
		"throttle-req":     s.ThrottleReq,
		"brake-req":        s.BrakeReq,
		"rear-rpm":         s.RearRPM,
		"front-rpm":        s.FrontRPM,
		"throttle-map":     s.ThrottleMap,
		"traction-control": s.TractionControl,
		"desired-slip":     s.DesiredSlip,
	}
}

// FcuStatus is the FCU display state as written to the "fcu" hash.
type FcuStatus struct {
	ThrottleReq     uint8
	BrakeReq        uint8
	Cursor          string
	FrontRPM        string
	Speed           string // mph, one decimal
	ThrottleMap     string
	TractionControl string
	DesiredSlip     uint8
}

func NewFcuStatus(snap node.Snapshot) FcuStatus {
	return FcuStatus{
		ThrottleReq:     snap.State.ThrottleReq.Int(),
		BrakeReq:        snap.State.BrakeReq.Int(),
		Cursor:          snap.State.Update.String(),
		FrontRPM:        rpmField(snap.State.FrontSpeed),
		Speed:           fmt.Sprintf("%.1f", snap.Ground.MPH()),
		ThrottleMap:     snap.Config.Engine.ThrottleMapMode.String(),
		TractionControl: snap.Config.Engine.TractionControlMode.String(),
		DesiredSlip:     snap.Config.Engine.DesiredSlip.Int(),
	}
}

func (s FcuStatus) Fields() map[string]interface{} {
	return map[string]interface{}{
		"throttle-req":     s.ThrottleReq,
		"brake-req":        s.BrakeReq,
		"cursor":           s.Cursor,
		"front-rpm":        s.FrontRPM,
		"speed":            s.Speed,
		"throttle-map":     s.ThrottleMap,
		"traction-control": s.TractionControl,
		"desired-slip":     s.DesiredSlip,
	}
}

func rpmField(ws *units.WheelSpeed) string {
	if ws == nil {
		return rpmNone
	}
	return strconv.FormatUint(uint64(*ws), 10)
}

// ParseInputs reads the "fcu-inputs" hash. Levers are whole percent 0-100;
// missing or malformed fields read as zero, and a missing front-rpm means
// there is no wheel sample.
func ParseInputs(fields map[string]string) node.Inputs {
	pct := func(key string) units.Percentage {
		v, err := strconv.ParseFloat(fields[key], 32)
		if err != nil {
			return units.Zero()
		}
		return units.FromFractional(float32(v / 100))
	}

	in := node.Inputs{
		Throttle: pct("throttle"),
		Brake:    pct("brake"),
		Selector: pct("selector"),
		Value:    pct("value"),
	}
	if rpm, err := strconv.ParseUint(fields["front-rpm"], 10, 16); err == nil {
		ws := units.WheelSpeed(rpm)
		in.FrontSpeed = &ws
	}
	return in
}
