package messages

import (
	"fmt"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/units"
)

// Frame identifiers, one per message type.
const (
	EcuID        uint32 = 0x01
	ControlReqID uint32 = 0x02
	TireStatusID uint32 = 0x03
	UpdateID     uint32 = 0x04
)

// PayloadSize is the encoded size of every message.
const PayloadSize = 8

// Message is one of Ecu, ControlReq, TireStatus or Update.
type Message interface {
	ID() uint32
	Encode() [PayloadSize]byte
	message()
}

// Ecu carries the throttle the MCU is driving the motor with.
type Ecu struct {
	Throttle units.Percentage
}

// ControlReq carries the operator's throttle and brake request.
type ControlReq struct {
	Throttle units.Percentage
	Brake    units.Percentage
}

type Wheel uint8

const (
	Rear Wheel = iota
	Front
)

func WheelFromByte(b uint8) Wheel {
	if Wheel(b) == Front {
		return Front
	}
	return Rear
}

func (w Wheel) String() string {
	if w == Front {
		return "front"
	}
	return "rear"
}

// TireStatus reports one wheel's speed.
type TireStatus struct {
	Wheel Wheel
	Speed units.WheelSpeed
}

// UpdateField names the config value an Update changes.
type UpdateField uint8

const (
	FieldThrottleMapMode UpdateField = iota
	FieldTractionControlMode
	FieldDesiredSlip
)

// UpdateFieldFromByte decodes a field tag. Unknown tags fall back to
// FieldThrottleMapMode instead of failing the decode.
func UpdateFieldFromByte(b uint8) UpdateField {
	switch UpdateField(b) {
	case FieldTractionControlMode:
		return FieldTractionControlMode
	case FieldDesiredSlip:
		return FieldDesiredSlip
	default:
		return FieldThrottleMapMode
	}
}

func (f UpdateField) String() string {
	switch f {
	case FieldThrottleMapMode:
		return "TMM"
	case FieldTractionControlMode:
		return "TCM"
	case FieldDesiredSlip:
		return "DSL"
	default:
		return fmt.Sprintf("field(%d)", uint8(f))
	}
}

// Update changes one engine config field. Data[0] holds the encoded value.
type Update struct {
	Field UpdateField
	Data  [7]byte
}

// Apply writes the update into cfg. Applying the same update twice is the
// same as applying it once.
func (u Update) Apply(cfg *config.Config) {
	switch u.Field {
	case FieldThrottleMapMode:
		cfg.Engine.ThrottleMapMode = control.ThrottleMapModeFromByte(u.Data[0])
	case FieldTractionControlMode:
		cfg.Engine.TractionControlMode = control.TractionControlModeFromByte(u.Data[0])
	case FieldDesiredSlip:
		cfg.Engine.DesiredSlip = units.FromByte(u.Data[0])
	}
}

func (Ecu) ID() uint32        { return EcuID }
func (ControlReq) ID() uint32 { return ControlReqID }
func (TireStatus) ID() uint32 { return TireStatusID }
func (Update) ID() uint32     { return UpdateID }

func (Ecu) message()        {}
func (ControlReq) message() {}
func (TireStatus) message() {}
func (Update) message()     {}

func (m Ecu) Encode() [PayloadSize]byte {
	return [PayloadSize]byte{m.Throttle.Byte()}
}

func (m ControlReq) Encode() [PayloadSize]byte {
	return [PayloadSize]byte{m.Throttle.Byte(), m.Brake.Byte()}
}

func (m TireStatus) Encode() [PayloadSize]byte {
	speed := m.Speed.Bytes()
	return [PayloadSize]byte{uint8(m.Wheel), speed[0], speed[1]}
}

func (m Update) Encode() [PayloadSize]byte {
	var b [PayloadSize]byte
	b[0] = uint8(m.Field)
	copy(b[1:], m.Data[:])
	return b
}

func (m Ecu) String() string {
	return fmt.Sprintf("Ecu{throttle=%s}", m.Throttle)
}

func (m ControlReq) String() string {
	return fmt.Sprintf("ControlReq{throttle=%s brake=%s}", m.Throttle, m.Brake)
}

func (m TireStatus) String() string {
	return fmt.Sprintf("TireStatus{%s %drpm}", m.Wheel, m.Speed)
}

func (m Update) String() string {
	return fmt.Sprintf("Update{%s %#02x}", m.Field, m.Data[0])
}
