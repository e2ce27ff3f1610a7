package canbus

import (
	"bufio"
	"io"
	"sync"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/messages"
)

// LineBus is a Bus carried as text lines, one frame per line in the
// messages.FormatLine form. It is used to run a unit against stdin and
// stdout.
type LineBus struct {
	r   io.Reader
	w   io.Writer
	log logrus.FieldLogger

	wmu sync.Mutex

	hmu      sync.RWMutex
	handlers []can.HandlerFunc

	done      chan struct{}
	closeOnce sync.Once
}

func NewLineBus(r io.Reader, w io.Writer, log logrus.FieldLogger) *LineBus {
	return &LineBus{
		r:    r,
		w:    w,
		log:  log,
		done: make(chan struct{}),
	}
}

func (b *LineBus) SubscribeFunc(fn can.HandlerFunc) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// ConnectAndPublish reads lines until the reader is exhausted or the bus is
// disconnected. Malformed lines are logged and skipped.
func (b *LineBus) ConnectAndPublish() error {
	scanner := bufio.NewScanner(b.r)
	for scanner.Scan() {
		select {
		case <-b.done:
			return nil
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		frame, err := messages.ParseLine(line)
		if err != nil {
			b.log.WithError(err).Warn("skipping line")
			continue
		}
		b.dispatch(frame)
	}
	return errors.Wrap(scanner.Err(), "read lines")
}

func (b *LineBus) dispatch(frame can.Frame) {
	b.hmu.RLock()
	defer b.hmu.RUnlock()
	for _, fn := range b.handlers {
		fn(frame)
	}
}

func (b *LineBus) Publish(frame can.Frame) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	_, err := io.WriteString(b.w, messages.FormatFrameLine(frame)+"\n")
	return errors.Wrap(err, "write line")
}

// Disconnect stops the read loop. The reader is closed when it is an
// io.Closer so a blocked read returns.
func (b *LineBus) Disconnect() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if c, ok := b.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
