package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/brutella/can"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/canbus"
	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/display"
	"github.com/HonakerM/ebike/messages"
	"github.com/HonakerM/ebike/node"
	"github.com/HonakerM/ebike/runner"
	"github.com/HonakerM/ebike/slcan"
)

const healthCheckInterval = 30 * time.Second

type App struct {
	log    *logrus.Logger
	opts   *Options
	redis  *redis.Client
	ipcRx  *IPCRx
	ipcTx  *IPCTx
	diag   *Diag
	hub    *display.Hub
	bus    *canbus.Transport
	runner *runner.Runner
	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// mcuObserver sends MCU state to redis and config updates to the event
// stream.
type mcuObserver struct {
	tx   *IPCTx
	diag *Diag
}

func (o mcuObserver) McuState(state controller.McuState, cfg config.Config) {
	o.tx.McuState(state, cfg)
}

func (o mcuObserver) ConfigUpdated(u messages.Update, cfg config.Config) {
	o.diag.ConfigUpdated(u, cfg)
}

// logObserver stands in for redis when it is disabled.
type logObserver struct {
	log logrus.FieldLogger
}

func (o logObserver) McuState(state controller.McuState, _ config.Config) {
	o.log.WithFields(logrus.Fields{
		"throttle":     state.Throttle.String(),
		"throttle-req": state.ThrottleReq.String(),
		"brake-req":    state.BrakeReq.String(),
	}).Debug("mcu state")
}

func (o logObserver) ConfigUpdated(u messages.Update, cfg config.Config) {
	o.log.WithField("update", u.String()).
		WithField("throttle-map", cfg.Engine.ThrottleMapMode.String()).
		WithField("traction-control", cfg.Engine.TractionControlMode.String()).
		WithField("desired-slip", cfg.Engine.DesiredSlip.String()).
		Info("config updated")
}

// displays fans a snapshot out to several displays.
type displays []node.Display

func (ds displays) Show(snap node.Snapshot) {
	for _, d := range ds {
		d.Show(snap)
	}
}

func NewApp(parent context.Context, opts *Options, log *logrus.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(parent)

	app := &App{
		log:    log,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	if opts.RedisServerAddr != "" {
		if err := app.connectRedis(); err != nil {
			app.Destroy()
			return nil, err
		}
		app.ipcTx = NewIPCTx(log.WithField("component", "ipc-tx"), app.redis)
		app.diag = NewDiag(log.WithField("component", "diag"), app.redis, opts.Unit)
		app.log.Info("IPC TX and diagnostics initialized")
	} else {
		app.log.Warn("redis disabled, status is only logged")
	}

	bus, err := app.openBus()
	if err != nil {
		app.Destroy()
		return nil, err
	}
	app.bus = canbus.New(bus, log.WithField("component", "canbus"))
	if app.diag != nil {
		app.bus.OnDrop = app.diag.FrameDropped
	}

	unit, err := app.newUnit()
	if err != nil {
		app.Destroy()
		return nil, err
	}
	app.runner = runner.New(unit, app.bus, log.WithField("unit", opts.Unit))

	return app, nil
}

func (app *App) connectRedis() error {
	addr := fmt.Sprintf("%s:%d", app.opts.RedisServerAddr, app.opts.RedisServerPort)
	app.redis = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, connectCancel := context.WithTimeout(app.ctx, 5*time.Second)
	defer connectCancel()

	app.log.Infof("Connecting to Redis at %s...", addr)
	if err := app.redis.Ping(connectCtx).Err(); err != nil {
		return errors.Wrap(err, "failed to connect to Redis")
	}
	app.log.Info("Successfully connected to Redis")
	return nil
}

func (app *App) openBus() (canbus.Bus, error) {
	switch app.opts.Transport {
	case TransportSLCAN:
		return slcan.Open(app.opts.SerialPort, app.opts.SerialBaud, app.log.WithField("component", "slcan"))
	case TransportStdio:
		return canbus.NewLineBus(os.Stdin, os.Stdout, app.log.WithField("component", "stdio")), nil
	default:
		bus, err := can.NewBusForInterfaceWithName(app.opts.CANDevice)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to initialize CAN bus %s", app.opts.CANDevice)
		}
		return bus, nil
	}
}

func (app *App) newUnit() (runner.Unit, error) {
	cfg := app.opts.Config

	if app.opts.Unit == UnitMcu {
		n := node.NewMcu(controller.NewMcu(cfg))
		n.AcceptUpdates = app.opts.AcceptUpdates
		if app.ipcTx != nil {
			n.Observer = mcuObserver{tx: app.ipcTx, diag: app.diag}
		} else {
			n.Observer = logObserver{log: app.log.WithField("component", "mcu")}
		}
		app.log.WithField("acceptUpdates", n.AcceptUpdates).Info("MCU unit initialized")
		return n, nil
	}

	var inputs node.FcuInputs = zeroInputs{}
	if app.redis != nil {
		rx, err := NewIPCRx(app.log.WithField("component", "ipc-rx"), app.redis)
		if err != nil {
			return nil, err
		}
		app.ipcRx = rx
		inputs = rx
		app.log.Info("IPC RX component initialized")
	}

	n := node.NewFcu(controller.NewFcu(cfg), inputs)
	var ds displays
	if app.opts.DisplayListen != "" {
		app.hub = display.NewHub(app.log.WithField("component", "display"))
		ds = append(ds, app.hub)
	}
	if app.ipcTx != nil {
		ds = append(ds, app.ipcTx)
	}
	if len(ds) > 0 {
		n.Display = ds
	}
	app.log.Info("FCU unit initialized")
	return n, nil
}

func (app *App) goRun(name string, fn func(ctx context.Context)) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		fn(app.ctx)
		app.log.WithField("component", name).Debug("stopped")
	}()
}

// Run starts the bus and the unit and blocks until ctx is done or the bus
// read loop ends.
func (app *App) Run() error {
	app.bus.Start()

	if app.ipcTx != nil {
		app.goRun("ipc-tx", app.ipcTx.Run)
		app.goRun("diag", app.diag.Run)
		app.goRun("health", app.redisHealthCheck)
	}
	if app.hub != nil {
		app.goRun("display", func(ctx context.Context) {
			if err := app.hub.Run(ctx, app.opts.DisplayListen); err != nil {
				app.log.WithError(err).Error("display server failed")
			}
		})
	}

	runErr := make(chan error, 1)
	go func() { runErr <- app.runner.Run(app.ctx) }()

	var err error
	select {
	case <-app.ctx.Done():
	case err = <-app.bus.Stopped():
		if err == nil {
			app.log.Info("CAN bus closed")
		}
	}
	app.cancel()
	<-runErr

	stats := app.runner.Stats()
	app.log.WithFields(logrus.Fields{
		"sent":     stats.Sent,
		"received": stats.Received,
		"failed":   stats.SendFailed,
		"dropped":  app.bus.Dropped(),
	}).Info("unit stopped")
	return err
}

func (app *App) redisHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := app.redis.Ping(pingCtx).Err(); err != nil {
				app.log.WithError(err).Warn("Redis health check failed")
			}
			cancel()

			stats := app.runner.Stats()
			app.log.WithFields(logrus.Fields{
				"sent":       stats.Sent,
				"received":   stats.Received,
				"failed":     stats.SendFailed,
				"dropped":    app.bus.Dropped(),
				"rx-dropped": app.bus.RxDropped(),
			}).Debug("bus stats")
		}
	}
}

func (app *App) Destroy() {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.log.Info("Shutting down ebike application...")

	if app.cancel != nil {
		app.cancel()
	}
	app.wg.Wait()

	if app.ipcRx != nil {
		app.ipcRx.Destroy()
		app.log.Info("IPC RX shutdown complete")
	}

	if app.bus != nil {
		if err := app.bus.Close(); err != nil {
			app.log.WithError(err).Warn("Error closing CAN bus")
		} else {
			app.log.Info("CAN bus shutdown complete")
		}
	}

	if app.diag != nil {
		app.diag.Destroy()
		app.log.Info("Diagnostics shutdown complete")
	}

	if app.ipcTx != nil {
		app.ipcTx.Destroy()
		app.log.Info("IPC TX shutdown complete")
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.WithError(err).Warn("Error closing Redis connection")
		} else {
			app.log.Info("Redis connection closed")
		}
	}

	app.log.Info("ebike application shutdown complete")
}
