package messages

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/brutella/can"
	"github.com/pkg/errors"

	"github.com/HonakerM/ebike/units"
)

var ErrBadLine = errors.New("malformed message line")

// Decode turns a frame payload into a message. Unknown ids return false.
// Short payloads are zero extended.
func Decode(id uint32, data []byte) (Message, bool) {
	var b [PayloadSize]byte
	copy(b[:], data)

	switch id {
	case EcuID:
		return Ecu{Throttle: units.FromByte(b[0])}, true
	case ControlReqID:
		return ControlReq{
			Throttle: units.FromByte(b[0]),
			Brake:    units.FromByte(b[1]),
		}, true
	case TireStatusID:
		return TireStatus{
			Wheel: WheelFromByte(b[0]),
			Speed: units.WheelSpeedFromBytes([2]byte{b[1], b[2]}),
		}, true
	case UpdateID:
		u := Update{Field: UpdateFieldFromByte(b[0])}
		copy(u.Data[:], b[1:])
		return u, true
	}
	return nil, false
}

func Encode(m Message) [PayloadSize]byte {
	return m.Encode()
}

// Frame packs a message into a CAN frame.
func Frame(m Message) can.Frame {
	return can.Frame{
		ID:     m.ID(),
		Length: PayloadSize,
		Data:   m.Encode(),
	}
}

// FromFrame decodes a CAN frame. Only the first Length bytes are used.
func FromFrame(frame can.Frame) (Message, bool) {
	n := int(frame.Length)
	if n > PayloadSize {
		n = PayloadSize
	}
	return Decode(frame.ID, frame.Data[:n])
}

// FormatLine renders a message as "<id>:<base64 payload>".
func FormatLine(m Message) string {
	return FormatFrameLine(Frame(m))
}

// FormatFrameLine renders the first Length bytes of a raw frame in the
// FormatLine form.
func FormatFrameLine(frame can.Frame) string {
	n := int(frame.Length)
	if n > PayloadSize {
		n = PayloadSize
	}
	return strconv.FormatUint(uint64(frame.ID), 10) + ":" + base64.StdEncoding.EncodeToString(frame.Data[:n])
}

// ParseLine reads the FormatLine form back into a frame. The id may be
// decimal or 0x prefixed hex.
func ParseLine(line string) (can.Frame, error) {
	idStr, payload, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return can.Frame{}, errors.Wrapf(ErrBadLine, "%q", line)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(idStr), 0, 32)
	if err != nil {
		return can.Frame{}, errors.Wrapf(ErrBadLine, "id %q", idStr)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return can.Frame{}, errors.Wrapf(ErrBadLine, "payload %q", payload)
	}
	if len(data) > PayloadSize {
		return can.Frame{}, errors.Wrapf(ErrBadLine, "payload is %d bytes", len(data))
	}

	frame := can.Frame{ID: uint32(id), Length: uint8(len(data))}
	copy(frame.Data[:], data)
	return frame, nil
}
