package control

import "github.com/HonakerM/ebike/units"

// TractionControlMode selects the PID gains used by TractionControl.
type TractionControlMode uint8

const (
	TractionControlLevel0 TractionControlMode = iota
	TractionControlLevel1
)

type tractionGains struct {
	kp, ki, kd float32
	scale      float32
}

var tractionModes = map[TractionControlMode]tractionGains{
	TractionControlLevel0: {kp: 0.1, scale: 1.0},
	TractionControlLevel1: {kp: 0.5, scale: 1.0},
}

// TractionControlModeFromByte decodes a wire tag. Unknown tags map to Level0.
func TractionControlModeFromByte(b uint8) TractionControlMode {
	if TractionControlMode(b) == TractionControlLevel1 {
		return TractionControlLevel1
	}
	return TractionControlLevel0
}

func (m TractionControlMode) Byte() uint8 {
	return uint8(m)
}

func (m TractionControlMode) gains() tractionGains {
	if g, ok := tractionModes[m]; ok {
		return g
	}
	return tractionModes[TractionControlLevel0]
}

// ShortString is the three character form shown on the operator display.
func (m TractionControlMode) ShortString() string {
	switch m {
	case TractionControlLevel1:
		return "001"
	default:
		return "000"
	}
}

func (m TractionControlMode) String() string {
	switch m {
	case TractionControlLevel0:
		return "level0"
	case TractionControlLevel1:
		return "level1"
	default:
		return "unknown"
	}
}

// TractionControl corrects a throttle request from measured wheel slip.
type TractionControl struct {
	mode  TractionControlMode
	pid   *PID
	scale float32

	prev    units.Timestamp
	hasPrev bool
}

func NewTractionControl(mode TractionControlMode, desiredSlip units.Percentage) *TractionControl {
	g := mode.gains()
	return &TractionControl{
		mode:  mode,
		pid:   NewPID(g.kp, g.ki, g.kd, desiredSlip.Fractional()),
		scale: g.scale,
	}
}

func (tc *TractionControl) Mode() TractionControlMode {
	return tc.mode
}

// SetMode swaps the gains without touching the accumulated PID state.
func (tc *TractionControl) SetMode(mode TractionControlMode) {
	g := mode.gains()
	tc.mode = mode
	tc.scale = g.scale
	tc.pid.SetGains(g.kp, g.ki, g.kd)
}

func (tc *TractionControl) SetDesiredSlip(slip units.Percentage) {
	tc.pid.SetTarget(slip.Fractional())
}

func (tc *TractionControl) DesiredSlip() units.Percentage {
	return units.FromFractional(tc.pid.Target)
}

// Reset drops the elapsed time anchor and the PID history. Call it when the
// throttle request returns to zero.
func (tc *TractionControl) Reset() {
	tc.hasPrev = false
	tc.prev = 0
	tc.pid.Reset()
}

// Run returns the corrected throttle for one control step. A non-positive
// controller output passes the request through unchanged.
func (tc *TractionControl) Run(now units.Timestamp, slip, req units.Percentage) units.Percentage {
	var elapsed units.Duration
	if tc.hasPrev {
		elapsed = now.Sub(tc.prev)
	}
	tc.prev, tc.hasPrev = now, true

	out := tc.pid.Update(slip.Fractional(), elapsed)
	if out <= 0 {
		return req
	}
	return req.Add(units.Unclamped(out * tc.scale))
}
