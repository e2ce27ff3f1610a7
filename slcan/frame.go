// Package slcan carries CAN frames over a serial line using the ASCII
// SLCAN protocol understood by USB-CAN adapters.
package slcan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brutella/can"
	"github.com/pkg/errors"
)

const (
	maxStandardID = 0x7FF
	maxExtendedID = 0x1FFFFFFF
)

var ErrBadFrame = errors.New("malformed slcan frame")

// EncodeFrame renders a data frame as a t (11 bit id) or T (29 bit id)
// command terminated by a carriage return.
func EncodeFrame(frame can.Frame) string {
	var sb strings.Builder
	if frame.ID > maxStandardID {
		sb.WriteByte('T')
		sb.WriteString(fmt.Sprintf("%08X", frame.ID&maxExtendedID))
	} else {
		sb.WriteByte('t')
		sb.WriteString(fmt.Sprintf("%03X", frame.ID))
	}

	dlc := frame.Length
	if dlc > 8 {
		dlc = 8
	}
	sb.WriteByte('0' + dlc)
	for i := uint8(0); i < dlc; i++ {
		sb.WriteString(fmt.Sprintf("%02X", frame.Data[i]))
	}
	sb.WriteByte('\r')
	return sb.String()
}

// ParseFrame reads a t or T command without its trailing carriage return.
// Remote frames are not carried by this bus and are rejected.
func ParseFrame(line string) (can.Frame, error) {
	if line == "" {
		return can.Frame{}, errors.Wrap(ErrBadFrame, "empty line")
	}

	var idLen int
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
	default:
		return can.Frame{}, errors.Wrapf(ErrBadFrame, "unsupported command %q", line[0])
	}
	if len(line) < 1+idLen+1 {
		return can.Frame{}, errors.Wrapf(ErrBadFrame, "short frame %q", line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil || id > maxExtendedID {
		return can.Frame{}, errors.Wrapf(ErrBadFrame, "id in %q", line)
	}

	dlc := line[1+idLen] - '0'
	if dlc > 8 {
		return can.Frame{}, errors.Wrapf(ErrBadFrame, "length in %q", line)
	}

	data := line[2+idLen:]
	if len(data) != int(dlc)*2 {
		return can.Frame{}, errors.Wrapf(ErrBadFrame, "payload in %q", line)
	}

	frame := can.Frame{ID: uint32(id), Length: dlc}
	for i := 0; i < int(dlc); i++ {
		b, err := strconv.ParseUint(data[i*2:i*2+2], 16, 8)
		if err != nil {
			return can.Frame{}, errors.Wrapf(ErrBadFrame, "payload in %q", line)
		}
		frame.Data[i] = uint8(b)
	}
	return frame, nil
}
