package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// DefaultRecvTimeout bounds how long the receive loop waits for a message
// before checking for cancellation again.
const DefaultRecvTimeout = units.Duration(100)

// Interface is the I/O a unit needs from the outside world.
type Interface interface {
	// Now returns a monotonic timestamp.
	Now() units.Timestamp

	// Recv waits up to timeout for the next decoded message.
	Recv(ctx context.Context, timeout units.Duration) (messages.Message, bool)

	// Send transmits a message.
	Send(ctx context.Context, msg messages.Message) error

	// Sleep suspends the caller for d or until ctx is done.
	Sleep(ctx context.Context, d units.Duration)
}

// Unit is the controller side driven by the runner. All calls are made with
// the runner's lock held and must not block on I/O.
type Unit interface {
	ProcessMessage(msg messages.Message)

	// Broadcast returns the periodic state messages and the delay until the
	// next broadcast.
	Broadcast(now units.Timestamp) ([]messages.Message, units.Duration)

	// Tick advances the unit's control loop and returns any messages it
	// produced and the delay until the next tick.
	Tick(now units.Timestamp) ([]messages.Message, units.Duration)
}

type Stats struct {
	Sent       int64
	Received   int64
	SendFailed int64
}

// Runner drives one Unit with three loops: broadcast, tick and receive.
// The lock is only held around Unit calls, never across I/O.
type Runner struct {
	unit Unit
	io   Interface
	log  logrus.FieldLogger
	mu   sync.Mutex

	RecvTimeout units.Duration

	sent       atomic.Int64
	received   atomic.Int64
	sendFailed atomic.Int64
}

func New(unit Unit, io Interface, log logrus.FieldLogger) *Runner {
	return &Runner{
		unit:        unit,
		io:          io,
		log:         log,
		RecvTimeout: DefaultRecvTimeout,
	}
}

// Locked runs fn with the unit lock held, for callers outside the loops
// that need a consistent view of the unit.
func (r *Runner) Locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Run starts the loops and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	loops := map[string]func(context.Context){
		"broadcast": r.broadcastLoop,
		"tick":      r.tickLoop,
		"receive":   r.receiveLoop,
	}
	for name, loop := range loops {
		wg.Add(1)
		go func(name string, loop func(context.Context)) {
			defer wg.Done()
			r.log.WithField("loop", name).Debug("loop started")
			loop(ctx)
			r.log.WithField("loop", name).Debug("loop stopped")
		}(name, loop)
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) broadcastLoop(ctx context.Context) {
	for ctx.Err() == nil {
		r.io.Sleep(ctx, r.broadcastOnce(ctx))
	}
}

func (r *Runner) tickLoop(ctx context.Context) {
	for ctx.Err() == nil {
		r.io.Sleep(ctx, r.tickOnce(ctx))
	}
}

func (r *Runner) receiveLoop(ctx context.Context) {
	for ctx.Err() == nil {
		r.receiveOnce(ctx)
	}
}

func (r *Runner) broadcastOnce(ctx context.Context) units.Duration {
	now := r.io.Now()
	r.mu.Lock()
	out, next := r.unit.Broadcast(now)
	r.mu.Unlock()

	r.send(ctx, out)
	return next
}

func (r *Runner) tickOnce(ctx context.Context) units.Duration {
	now := r.io.Now()
	r.mu.Lock()
	out, next := r.unit.Tick(now)
	r.mu.Unlock()

	r.send(ctx, out)
	return next
}

func (r *Runner) receiveOnce(ctx context.Context) bool {
	msg, ok := r.io.Recv(ctx, r.RecvTimeout)
	if !ok {
		return false
	}
	r.received.Add(1)

	r.mu.Lock()
	r.unit.ProcessMessage(msg)
	r.mu.Unlock()
	return true
}

func (r *Runner) send(ctx context.Context, out []messages.Message) {
	for _, msg := range out {
		if err := r.io.Send(ctx, msg); err != nil {
			r.sendFailed.Add(1)
			r.log.WithError(err).WithField("canID", msg.ID()).Warn("send failed")
			continue
		}
		r.sent.Add(1)
	}
}

func (r *Runner) Stats() Stats {
	return Stats{
		Sent:       r.sent.Load(),
		Received:   r.received.Load(),
		SendFailed: r.sendFailed.Load(),
	}
}
