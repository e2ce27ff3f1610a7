package slcan

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/brutella/can"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	r       io.Reader
	written bytes.Buffer
	resets  int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) ResetOutputBuffer() error    { p.resets++; return nil }

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame can.Frame
		want  string
	}{
		{"standard", can.Frame{ID: 0x002, Length: 2, Data: [8]uint8{0x7F, 0xFF}}, "t00227FFF\r"},
		{"empty", can.Frame{ID: 0x123}, "t1230\r"},
		{"extended", can.Frame{ID: 0x18DAF110, Length: 1, Data: [8]uint8{0xAB}}, "T18DAF1101AB\r"},
		{"length capped", can.Frame{ID: 1, Length: 12}, "t0018" + strings.Repeat("00", 8) + "\r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeFrame(tt.frame))
		})
	}
}

func TestParseFrame(t *testing.T) {
	frame, err := ParseFrame("t00480001000000000000")
	require.NoError(t, err)
	assert.Equal(t, can.Frame{ID: 4, Length: 8, Data: [8]uint8{0x00, 0x01}}, frame)

	frame, err = ParseFrame("T18DAF1101AB")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x18DAF110), frame.ID)
	assert.Equal(t, uint8(1), frame.Length)
	assert.Equal(t, uint8(0xAB), frame.Data[0])

	for _, bad := range []string{"", "r1230", "t12", "tXYZ0", "t0019", "t0012AB", "t0011GG"} {
		_, err := ParseFrame(bad)
		assert.ErrorIs(t, err, ErrBadFrame, bad)
	}
}

func TestParseEncodeRoundTrip(t *testing.T) {
	frame := can.Frame{ID: 0x3, Length: 8, Data: [8]uint8{1, 0x40, 0x01}}
	line := EncodeFrame(frame)
	got, err := ParseFrame(strings.TrimSuffix(line, "\r"))
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestBusInitAndPublish(t *testing.T) {
	port := &fakePort{r: strings.NewReader("")}
	log, _ := test.NewNullLogger()
	bus := New(port, log)

	require.NoError(t, bus.init())
	assert.Equal(t, "C\rS6\rO\r", port.written.String())

	port.written.Reset()
	require.NoError(t, bus.Publish(can.Frame{ID: 1, Length: 1, Data: [8]uint8{0x80}}))
	assert.Equal(t, "t001180\r", port.written.String())

	require.NoError(t, bus.Flush())
	assert.Equal(t, 1, port.resets)
}

func TestBusDispatchesFrames(t *testing.T) {
	input := "\rz\rt0021FF\r\at0030\rbogus\r"
	port := &fakePort{r: strings.NewReader(input)}
	log, _ := test.NewNullLogger()
	bus := New(port, log)

	var frames []can.Frame
	bus.SubscribeFunc(func(f can.Frame) { frames = append(frames, f) })
	require.NoError(t, bus.ConnectAndPublish())

	require.Len(t, frames, 2)
	assert.Equal(t, uint32(2), frames[0].ID)
	assert.Equal(t, uint8(0xFF), frames[0].Data[0])
	assert.Equal(t, uint32(3), frames[1].ID)
}

func TestBusDisconnect(t *testing.T) {
	port := &fakePort{r: strings.NewReader("")}
	log, _ := test.NewNullLogger()
	bus := New(port, log)

	require.NoError(t, bus.Disconnect())
	assert.True(t, port.closed)
	assert.Equal(t, "C\r", port.written.String())
	assert.ErrorIs(t, bus.Publish(can.Frame{}), ErrClosed)
	assert.ErrorIs(t, bus.Disconnect(), ErrClosed)
	assert.NoError(t, bus.ConnectAndPublish())
}
