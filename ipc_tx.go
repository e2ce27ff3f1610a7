package main

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/node"
)

// IPCTx publishes unit status to redis. The runner hands it state with its
// lock held, so McuState and Show only record the latest status and a
// background loop does the writes.
type IPCTx struct {
	log   logrus.FieldLogger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context

	mcu  *McuStatus
	fcu  *FcuStatus
	wake chan struct{}

	lastMcu *McuStatus
	lastFcu *FcuStatus
}

func NewIPCTx(logger logrus.FieldLogger, redis *redis.Client) *IPCTx {
	return &IPCTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
		wake:  make(chan struct{}, 1),
	}
}

// McuState implements node.McuObserver.
func (tx *IPCTx) McuState(state controller.McuState, cfg config.Config) {
	s := NewMcuStatus(state, cfg)
	tx.mu.Lock()
	tx.mcu = &s
	tx.mu.Unlock()
	tx.notify()
}

// Show implements node.Display.
func (tx *IPCTx) Show(snap node.Snapshot) {
	s := NewFcuStatus(snap)
	tx.mu.Lock()
	tx.fcu = &s
	tx.mu.Unlock()
	tx.notify()
}

func (tx *IPCTx) notify() {
	select {
	case tx.wake <- struct{}{}:
	default:
	}
}

// Run writes pending status until ctx is done. Unchanged status is not
// written again.
func (tx *IPCTx) Run(ctx context.Context) {
	tx.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return
		case <-tx.wake:
		}

		tx.mu.Lock()
		mcu, fcu := tx.mcu, tx.fcu
		tx.mcu, tx.fcu = nil, nil
		tx.mu.Unlock()

		if mcu != nil && (tx.lastMcu == nil || *mcu != *tx.lastMcu) {
			if err := tx.SendMcuStatus(*mcu); err != nil {
				tx.log.WithError(err).Warn("failed to send mcu status")
			} else {
				tx.lastMcu = mcu
			}
		}
		if fcu != nil && (tx.lastFcu == nil || *fcu != *tx.lastFcu) {
			if err := tx.SendFcuStatus(*fcu); err != nil {
				tx.log.WithError(err).Warn("failed to send fcu status")
			} else {
				tx.lastFcu = fcu
			}
		}
	}
}

func (tx *IPCTx) SendMcuStatus(s McuStatus) error {
	pipe := tx.redis.Pipeline()
	pipe.HSet(tx.ctx, redisMcuKey, s.Fields())
	pipe.Publish(tx.ctx, redisMcuKey, "status")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return errors.Wrap(err, "send mcu status")
	}
	return nil
}

func (tx *IPCTx) SendFcuStatus(s FcuStatus) error {
	pipe := tx.redis.Pipeline()
	pipe.HSet(tx.ctx, redisFcuKey, s.Fields())
	pipe.Publish(tx.ctx, redisFcuKey, "status")

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return errors.Wrap(err, "send fcu status")
	}
	return nil
}

func (tx *IPCTx) Destroy() {}
