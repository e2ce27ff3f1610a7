package configupdate

import (
	"fmt"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// Selector and value thresholds for the two operator inputs.
const (
	fieldSlipMax     = 0.33
	fieldTractionMax = 0.66

	tractionLevel0Max = 0.5

	throttleLevel0Max = 0.33
	throttleLevel1Max = 0.66
)

// Value is the resolved setting for one field. Only the member matching
// Field is meaningful.
type Value struct {
	Field        messages.UpdateField
	Slip         units.Percentage
	TractionMode control.TractionControlMode
	ThrottleMode control.ThrottleMapMode
}

// Bytes is the Update payload: the encoded value in byte 0.
func (v Value) Bytes() [7]byte {
	var b [7]byte
	switch v.Field {
	case messages.FieldDesiredSlip:
		b[0] = v.Slip.Byte()
	case messages.FieldTractionControlMode:
		b[0] = v.TractionMode.Byte()
	case messages.FieldThrottleMapMode:
		b[0] = v.ThrottleMode.Byte()
	}
	return b
}

func (v Value) String() string {
	switch v.Field {
	case messages.FieldDesiredSlip:
		return fmt.Sprintf("%d%%", v.Slip.Int())
	case messages.FieldTractionControlMode:
		return v.TractionMode.ShortString()
	default:
		return v.ThrottleMode.String()
	}
}

// State is the config tuning cursor: which field the operator has selected
// and the value it would be set to.
type State struct {
	Field messages.UpdateField
	Value Value
}

// NewState resolves the selector and value inputs into a cursor.
func NewState(selector, value units.Percentage) State {
	var field messages.UpdateField
	switch sel := selector.Fractional(); {
	case sel <= fieldSlipMax:
		field = messages.FieldDesiredSlip
	case sel <= fieldTractionMax:
		field = messages.FieldTractionControlMode
	default:
		field = messages.FieldThrottleMapMode
	}

	v := Value{Field: field}
	frac := value.Fractional()
	switch field {
	case messages.FieldDesiredSlip:
		// whole percent truncated to tens of percent, 45% -> 4%
		v.Slip = units.FromInt(value.Int() / 10)
	case messages.FieldTractionControlMode:
		if frac <= tractionLevel0Max {
			v.TractionMode = control.TractionControlLevel0
		} else {
			v.TractionMode = control.TractionControlLevel1
		}
	case messages.FieldThrottleMapMode:
		switch {
		case frac <= throttleLevel0Max:
			v.ThrottleMode = control.ThrottleMapLevel0
		case frac <= throttleLevel1Max:
			v.ThrottleMode = control.ThrottleMapLevel1
		default:
			v.ThrottleMode = control.ThrottleMapLevel2
		}
	}
	return State{Field: field, Value: v}
}

// DefaultState points at the desired slip field holding its default value.
func DefaultState() State {
	return State{
		Field: messages.FieldDesiredSlip,
		Value: Value{
			Field: messages.FieldDesiredSlip,
			Slip:  config.DefaultEngine().DesiredSlip,
		},
	}
}

func (s State) Equal(o State) bool {
	return s == o
}

func (s State) String() string {
	return fmt.Sprintf("%s %s", s.Field, s.Value)
}

// Updater turns a cursor into the Update message that applies it.
type Updater struct{}

func NewUpdater() *Updater {
	return &Updater{}
}

func (u *Updater) Run(s State) messages.Update {
	return messages.Update{Field: s.Field, Data: s.Value.Bytes()}
}
