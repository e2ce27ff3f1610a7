// Package canbus adapts a CAN bus to the runner loops.
package canbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

var (
	ErrClosed  = errors.New("transport closed")
	ErrDropped = errors.New("frame dropped")
)

const DefaultQueueSize = 64

// Bus is the subset of *can.Bus the transport needs.
type Bus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

// Flusher is implemented by buses that can cancel frames still waiting to
// go out.
type Flusher interface {
	Flush() error
}

// Transport implements runner.Interface on top of a Bus.
type Transport struct {
	bus   Bus
	log   logrus.FieldLogger
	start time.Time

	rx        chan messages.Message
	closed    chan struct{}
	closeOnce sync.Once
	stopped   chan error

	// OnDrop, when set, is called for every frame abandoned after the
	// retry. It runs on the sending goroutine.
	OnDrop func(msg messages.Message, err error)

	dropped   atomic.Int64
	rxDropped atomic.Int64
	unknown   atomic.Int64
}

func New(bus Bus, log logrus.FieldLogger) *Transport {
	return newTransport(bus, log, DefaultQueueSize)
}

func newTransport(bus Bus, log logrus.FieldLogger, queueSize int) *Transport {
	return &Transport{
		bus:     bus,
		log:     log,
		start:   time.Now(),
		rx:      make(chan messages.Message, queueSize),
		closed:  make(chan struct{}),
		stopped: make(chan error, 1),
	}
}

// Start subscribes to the bus and runs its read loop in the background.
func (t *Transport) Start() {
	t.bus.SubscribeFunc(t.handleFrame)
	t.log.Info("CAN bus subscribed")

	go func() {
		err := t.bus.ConnectAndPublish()
		if err != nil {
			t.log.WithError(err).Error("CAN bus read loop stopped")
		}
		t.stopped <- err
	}()
}

// Stopped delivers the read loop's exit error once it returns.
func (t *Transport) Stopped() <-chan error {
	return t.stopped
}

func (t *Transport) Close() error {
	err := ErrClosed
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.bus.Disconnect()
	})
	return err
}

func (t *Transport) handleFrame(frame can.Frame) {
	logFrame(t.log, "RX", frame)

	msg, ok := messages.FromFrame(frame)
	if !ok {
		t.unknown.Add(1)
		t.log.WithField("canID", frame.ID).Debug("unknown canID")
		return
	}

	for {
		select {
		case t.rx <- msg:
			return
		default:
		}
		// queue full, make room by discarding the oldest message
		select {
		case <-t.rx:
			t.rxDropped.Add(1)
		default:
		}
	}
}

// Now is microseconds since the transport was created.
func (t *Transport) Now() units.Timestamp {
	return units.Micros(uint64(time.Since(t.start).Microseconds()))
}

func (t *Transport) Recv(ctx context.Context, timeout units.Duration) (messages.Message, bool) {
	timer := time.NewTimer(timeout.Std())
	defer timer.Stop()

	select {
	case msg := <-t.rx:
		return msg, true
	case <-timer.C:
	case <-ctx.Done():
	case <-t.closed:
	}
	return nil, false
}

// Send publishes msg. If the bus rejects it, pending frames are flushed when
// the bus supports it and the frame is tried once more. A second failure
// drops the frame without reporting an error.
func (t *Transport) Send(_ context.Context, msg messages.Message) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	frame := messages.Frame(msg)
	logFrame(t.log, "TX", frame)

	err := t.bus.Publish(frame)
	if err == nil {
		return nil
	}

	if f, ok := t.bus.(Flusher); ok {
		if ferr := f.Flush(); ferr != nil {
			t.log.WithError(ferr).Debug("flush failed")
		}
	}
	if err = t.bus.Publish(frame); err == nil {
		return nil
	}

	t.dropped.Add(1)
	err = errors.Wrapf(ErrDropped, "canID %d: %v", frame.ID, err)
	t.log.WithField("canID", frame.ID).WithError(err).Debug("frame dropped")
	if t.OnDrop != nil {
		t.OnDrop(msg, err)
	}
	return nil
}

func (t *Transport) Sleep(ctx context.Context, d units.Duration) {
	timer := time.NewTimer(d.Std())
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-t.closed:
	}
}

// Dropped is the number of frames abandoned on transmit.
func (t *Transport) Dropped() int64 {
	return t.dropped.Load()
}

// RxDropped is the number of received messages discarded because the queue
// was full.
func (t *Transport) RxDropped() int64 {
	return t.rxDropped.Load()
}

func (t *Transport) Unknown() int64 {
	return t.unknown.Load()
}

// logFrame logs a frame at debug level with its payload in hex.
func logFrame(log logrus.FieldLogger, direction string, frame can.Frame) {
	if l, ok := log.(*logrus.Logger); ok && !l.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	log.WithField("canID", frame.ID).Debugf("CAN %s: ID=0x%03X Len=%d Data=[%s]",
		direction, frame.ID, frame.Length, FormatData(frame))
}

// FormatData renders the used bytes of a frame as space separated hex.
func FormatData(frame can.Frame) string {
	var sb strings.Builder
	for i := uint8(0); i < frame.Length && i < 8; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", frame.Data[i])
	}
	return sb.String()
}
