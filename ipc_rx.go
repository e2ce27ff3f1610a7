package main

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/node"
)

// IPCRx follows the operator inputs in the "fcu-inputs" hash. Writers
// update the hash and publish on the channel of the same name.
type IPCRx struct {
	log    logrus.FieldLogger
	redis  *redis.Client
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	inputs       node.Inputs
	subscription *redis.PubSub
}

func NewIPCRx(logger logrus.FieldLogger, redis *redis.Client) (*IPCRx, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rx := &IPCRx{
		log:    logger,
		redis:  redis,
		ctx:    ctx,
		cancel: cancel,
	}

	rx.subscription = rx.redis.Subscribe(rx.ctx, redisFcuInputsKey)
	if _, err := rx.subscription.Receive(rx.ctx); err != nil {
		rx.Destroy()
		return nil, errors.Wrap(err, "subscribe fcu-inputs")
	}
	go rx.handleSubscription()

	if err := rx.readInputs(); err != nil {
		rx.log.WithError(err).Error("failed to read initial inputs")
	}
	return rx, nil
}

func (rx *IPCRx) handleSubscription() {
	rx.log.Info("starting fcu-inputs subscription handler")

	for {
		msg, err := rx.subscription.Receive(rx.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			// closed client, panic so the supervisor restarts the service
			if err.Error() == "redis: client is closed" {
				rx.log.Error("redis connection lost on fcu-inputs subscription - restarting service")
				panic("Redis disconnected")
			}
			rx.log.WithError(err).Error("fcu-inputs subscription error")
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			rx.log.WithField("payload", m.Payload).Debug("fcu-inputs changed")
			if err := rx.readInputs(); err != nil {
				rx.log.WithError(err).Error("failed to read inputs")
			}
		case *redis.Subscription:
			rx.log.Debugf("fcu-inputs subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

func (rx *IPCRx) readInputs() error {
	fields, err := rx.redis.HGetAll(rx.ctx, redisFcuInputsKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	in := ParseInputs(fields)
	rx.mu.Lock()
	rx.inputs = in
	rx.mu.Unlock()
	return nil
}

// Read implements node.FcuInputs.
func (rx *IPCRx) Read() node.Inputs {
	rx.mu.RLock()
	defer rx.mu.RUnlock()

	in := rx.inputs
	if in.FrontSpeed != nil {
		ws := *in.FrontSpeed
		in.FrontSpeed = &ws
	}
	return in
}

func (rx *IPCRx) Destroy() {
	rx.mu.Lock()
	defer rx.mu.Unlock()

	if rx.cancel != nil {
		rx.cancel()
	}
	if rx.subscription != nil {
		rx.subscription.Close()
	}
}

// zeroInputs is used when there is no redis to read inputs from.
type zeroInputs struct{}

func (zeroInputs) Read() node.Inputs { return node.Inputs{} }
