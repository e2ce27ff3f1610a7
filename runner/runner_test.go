package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/units"
)

// fakeIO is an in-memory bus with a virtual clock. Sleep advances the clock
// and yields briefly so the loops do not spin.
type fakeIO struct {
	mu      sync.Mutex
	now     units.Timestamp
	sent    []messages.Message
	inbox   chan messages.Message
	sendErr error

	onSend func(messages.Message)
}

func newFakeIO() *fakeIO {
	return &fakeIO{inbox: make(chan messages.Message, 16)}
}

func (f *fakeIO) Now() units.Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeIO) Recv(ctx context.Context, timeout units.Duration) (messages.Message, bool) {
	select {
	case m := <-f.inbox:
		return m, true
	case <-time.After(timeout.Std()):
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (f *fakeIO) Send(_ context.Context, msg messages.Message) error {
	if f.onSend != nil {
		f.onSend(msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeIO) Sleep(ctx context.Context, d units.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}
}

func (f *fakeIO) Sent() []messages.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messages.Message(nil), f.sent...)
}

type stubUnit struct {
	mu        sync.Mutex
	processed []messages.Message
	ticks     []units.Timestamp
	broadcast []messages.Message
	tickOut   []messages.Message
}

func (u *stubUnit) ProcessMessage(msg messages.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.processed = append(u.processed, msg)
}

func (u *stubUnit) Broadcast(units.Timestamp) ([]messages.Message, units.Duration) {
	return u.broadcast, units.Millis(5)
}

func (u *stubUnit) Tick(now units.Timestamp) ([]messages.Message, units.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ticks = append(u.ticks, now)
	return u.tickOut, units.Millis(2)
}

func (u *stubUnit) Processed() []messages.Message {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]messages.Message(nil), u.processed...)
}

func newTestRunner(unit Unit, io Interface) *Runner {
	log, _ := test.NewNullLogger()
	return New(unit, io, log)
}

func TestBroadcastOnceSendsOutsideLock(t *testing.T) {
	io := newFakeIO()
	unit := &stubUnit{broadcast: []messages.Message{messages.Ecu{Throttle: units.Full()}}}
	r := newTestRunner(unit, io)

	io.onSend = func(messages.Message) {
		require.True(t, r.mu.TryLock(), "lock held during send")
		r.mu.Unlock()
	}

	next := r.broadcastOnce(context.Background())
	assert.Equal(t, units.Millis(5), next)
	assert.Equal(t, []messages.Message{messages.Ecu{Throttle: units.Full()}}, io.Sent())
	assert.Equal(t, int64(1), r.Stats().Sent)
}

func TestTickOncePassesTimestamp(t *testing.T) {
	io := newFakeIO()
	io.now = units.Micros(4200)
	unit := &stubUnit{}
	r := newTestRunner(unit, io)

	next := r.tickOnce(context.Background())
	assert.Equal(t, units.Millis(2), next)
	assert.Equal(t, []units.Timestamp{units.Micros(4200)}, unit.ticks)
	assert.Empty(t, io.Sent())
}

func TestReceiveOnceTimesOut(t *testing.T) {
	io := newFakeIO()
	unit := &stubUnit{}
	r := newTestRunner(unit, io)
	r.RecvTimeout = units.Millis(1)

	assert.False(t, r.receiveOnce(context.Background()))
	assert.Empty(t, unit.Processed())

	io.inbox <- messages.ControlReq{Throttle: units.Full()}
	assert.True(t, r.receiveOnce(context.Background()))
	assert.Equal(t, []messages.Message{messages.ControlReq{Throttle: units.Full()}}, unit.Processed())
	assert.Equal(t, int64(1), r.Stats().Received)
}

func TestSendFailureIsCountedAndLogged(t *testing.T) {
	io := newFakeIO()
	io.sendErr = errors.New("bus off")
	unit := &stubUnit{tickOut: []messages.Message{
		messages.Update{Field: messages.FieldDesiredSlip},
		messages.Update{Field: messages.FieldThrottleMapMode},
	}}
	log, hook := test.NewNullLogger()
	r := New(unit, io, log)

	r.tickOnce(context.Background())
	assert.Equal(t, int64(2), r.Stats().SendFailed)
	assert.Equal(t, int64(0), r.Stats().Sent)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRunDrivesAllLoops(t *testing.T) {
	io := newFakeIO()
	unit := &stubUnit{broadcast: []messages.Message{messages.Ecu{}}}
	r := newTestRunner(unit, io)
	r.RecvTimeout = units.Millis(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	io.inbox <- messages.TireStatus{Wheel: messages.Rear, Speed: 100}

	require.Eventually(t, func() bool {
		return len(io.Sent()) >= 2 && len(unit.Processed()) == 1
	}, time.Second, time.Millisecond)

	var ticked bool
	r.Locked(func() { ticked = len(unit.ticks) > 0 })
	assert.True(t, ticked)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
