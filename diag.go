package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/messages"
)

const (
	diagEventStream         = "events:ebike"
	diagEventStreamMaxLen   = 1000
	diagNotificationChannel = "ebike"
	diagQueueSize           = 64
)

// Diag records notable events in the redis event stream. Events come from
// the runner loops, so they are queued and written by Run.
type Diag struct {
	log   logrus.FieldLogger
	redis *redis.Client
	unit  string
	queue chan map[string]interface{}
}

func NewDiag(logger logrus.FieldLogger, redis *redis.Client, unit string) *Diag {
	return &Diag{
		log:   logger,
		redis: redis,
		unit:  unit,
		queue: make(chan map[string]interface{}, diagQueueSize),
	}
}

// ConfigUpdated implements the update half of node.McuObserver.
func (d *Diag) ConfigUpdated(u messages.Update, cfg config.Config) {
	d.log.WithField("update", u.String()).Info("config updated")
	d.emit(configUpdateEvent(d.unit, u, cfg))
}

// FrameDropped is the transport's drop hook.
func (d *Diag) FrameDropped(msg messages.Message, err error) {
	d.emit(frameDroppedEvent(d.unit, msg, err))
}

func (d *Diag) emit(values map[string]interface{}) {
	select {
	case d.queue <- values:
	default:
		d.log.WithField("kind", values["kind"]).Warn("event queue full, event lost")
	}
}

func (d *Diag) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case values := <-d.queue:
			d.report(ctx, values)
		}
	}
}

func (d *Diag) report(ctx context.Context, values map[string]interface{}) {
	pipe := d.redis.Pipeline()

	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: values,
	})
	pipe.Publish(ctx, diagNotificationChannel, values["kind"])

	if _, err := pipe.Exec(ctx); err != nil {
		d.log.WithError(err).Warn("failed to report event")
	}
}

func (d *Diag) Destroy() {}

func configUpdateEvent(unit string, u messages.Update, cfg config.Config) map[string]interface{} {
	return map[string]interface{}{
		"unit":             unit,
		"kind":             "config-update",
		"field":            u.Field.String(),
		"throttle-map":     cfg.Engine.ThrottleMapMode.String(),
		"traction-control": cfg.Engine.TractionControlMode.String(),
		"desired-slip":     cfg.Engine.DesiredSlip.Int(),
	}
}

func frameDroppedEvent(unit string, msg messages.Message, err error) map[string]interface{} {
	return map[string]interface{}{
		"unit":  unit,
		"kind":  "frame-dropped",
		"canID": fmt.Sprintf("0x%03X", msg.ID()),
		"error": err.Error(),
	}
}
