package main

import (
	"github.com/pkg/errors"

	"github.com/HonakerM/ebike/config"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

const (
	UnitMcu = "mcu"
	UnitFcu = "fcu"

	TransportSocketCAN = "socketcan"
	TransportSLCAN     = "slcan"
	TransportStdio     = "stdio"
)

type Options struct {
	LogLevel        LogLevel
	Unit            string
	Transport       string
	CANDevice       string
	SerialPort      string
	SerialBaud      int
	RedisServerAddr string // empty disables redis
	RedisServerPort uint16
	DisplayListen   string // empty disables the websocket display
	AcceptUpdates   bool
	Config          config.Config
}

// NewOptions validates a loaded config file and turns it into Options.
func NewOptions(f *config.File) (*Options, error) {
	if f.LogLevel < int(LogLevelNone) || f.LogLevel > int(LogLevelDebug) {
		return nil, errors.Errorf("invalid log level %d", f.LogLevel)
	}

	switch f.Unit {
	case UnitMcu, UnitFcu:
	default:
		return nil, errors.Errorf("invalid unit %q (must be 'mcu' or 'fcu')", f.Unit)
	}

	switch f.Transport {
	case TransportSocketCAN, TransportSLCAN, TransportStdio:
	default:
		return nil, errors.Errorf("invalid transport %q (must be 'socketcan', 'slcan' or 'stdio')", f.Transport)
	}

	if f.Redis.Port <= 0 || f.Redis.Port > 65535 {
		return nil, errors.Errorf("invalid redis port %d", f.Redis.Port)
	}

	cfg, err := f.Config()
	if err != nil {
		return nil, err
	}

	return &Options{
		LogLevel:        LogLevel(f.LogLevel),
		Unit:            f.Unit,
		Transport:       f.Transport,
		CANDevice:       f.CAN.Device,
		SerialPort:      f.CAN.SerialPort,
		SerialBaud:      f.CAN.SerialBaud,
		RedisServerAddr: f.Redis.Server,
		RedisServerPort: uint16(f.Redis.Port),
		DisplayListen:   f.Display.Listen,
		AcceptUpdates:   f.Mcu.AcceptUpdates,
		Config:          cfg,
	}, nil
}
