package slcan

import (
	"io"
	"sync"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

var ErrClosed = errors.New("slcan bus closed")

const (
	readTimeout = 100 * time.Millisecond

	// adapter replies: CR is ok, BEL is an error
	ackOK    = '\r'
	ackError = '\a'
)

// Bit rate commands. S6 is 500 kbit/s.
var openCommands = []string{"C\r", "S6\r", "O\r"}

// Port is the serial port the bus runs on. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	ResetOutputBuffer() error
}

var openPort = func(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	return port, nil
}

// Bus is a CAN bus on an SLCAN adapter.
type Bus struct {
	port Port
	log  logrus.FieldLogger

	wmu sync.Mutex

	hmu      sync.RWMutex
	handlers []can.HandlerFunc

	done      chan struct{}
	closeOnce sync.Once
}

// Open opens the serial port and puts the adapter on the bus.
func Open(path string, baud int, log logrus.FieldLogger) (*Bus, error) {
	port, err := openPort(path, baud)
	if err != nil {
		return nil, err
	}
	b := New(port, log)
	if err := b.init(); err != nil {
		port.Close()
		return nil, err
	}
	log.WithField("port", path).WithField("baud", baud).Info("slcan adapter opened")
	return b, nil
}

func New(port Port, log logrus.FieldLogger) *Bus {
	return &Bus{
		port: port,
		log:  log,
		done: make(chan struct{}),
	}
}

// init closes any open channel, sets the bit rate and opens the channel.
func (b *Bus) init() error {
	for _, cmd := range openCommands {
		if err := b.write(cmd); err != nil {
			return errors.Wrapf(err, "slcan command %q", cmd[:len(cmd)-1])
		}
	}
	return nil
}

func (b *Bus) write(s string) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	_, err := io.WriteString(b.port, s)
	return err
}

func (b *Bus) SubscribeFunc(fn can.HandlerFunc) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// ConnectAndPublish reads frames from the adapter and hands them to the
// subscribers until the bus is disconnected or the port reaches EOF.
func (b *Bus) ConnectAndPublish() error {
	buf := make([]byte, 256)
	var line []byte
	for {
		select {
		case <-b.done:
			return nil
		default:
		}

		n, err := b.port.Read(buf)
		for _, c := range buf[:n] {
			switch c {
			case ackOK:
				b.handleLine(string(line))
				line = line[:0]
			case ackError:
				b.log.Debug("slcan adapter reported an error")
				line = line[:0]
			default:
				line = append(line, c)
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			select {
			case <-b.done:
				return nil
			default:
			}
			return errors.Wrap(err, "slcan read")
		}
	}
}

func (b *Bus) handleLine(line string) {
	// empty lines acknowledge commands; z and Z acknowledge transmits
	if line == "" || line[0] == 'z' || line[0] == 'Z' {
		return
	}
	frame, err := ParseFrame(line)
	if err != nil {
		b.log.WithError(err).Debug("skipping slcan line")
		return
	}

	b.hmu.RLock()
	defer b.hmu.RUnlock()
	for _, fn := range b.handlers {
		fn(frame)
	}
}

func (b *Bus) Publish(frame can.Frame) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	return errors.Wrap(b.write(EncodeFrame(frame)), "slcan publish")
}

// Flush discards frames queued in the serial output buffer.
func (b *Bus) Flush() error {
	return b.port.ResetOutputBuffer()
}

// Disconnect closes the CAN channel and the port.
func (b *Bus) Disconnect() error {
	err := ErrClosed
	b.closeOnce.Do(func() {
		close(b.done)
		if werr := b.write("C\r"); werr != nil {
			b.log.WithError(werr).Debug("slcan close command failed")
		}
		err = b.port.Close()
	})
	return err
}
