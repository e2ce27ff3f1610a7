package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/HonakerM/ebike/control"
	"github.com/HonakerM/ebike/units"
)

// File is the on-disk process configuration. It only seeds startup; updates
// received over the bus are never written back.
type File struct {
	Unit      string `yaml:"unit"`      // "mcu" or "fcu"
	Transport string `yaml:"transport"` // "socketcan", "slcan" or "stdio"
	LogLevel  int    `yaml:"log_level"`

	CAN     CANFile     `yaml:"can"`
	Redis   RedisFile   `yaml:"redis"`
	Display DisplayFile `yaml:"display"`

	Mcu    McuFile    `yaml:"mcu"`
	Fcu    FcuFile    `yaml:"fcu"`
	Engine EngineFile `yaml:"engine"`
}

type CANFile struct {
	Device     string `yaml:"device"`
	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`
}

type RedisFile struct {
	Server string `yaml:"server"` // empty disables redis
	Port   int    `yaml:"port"`
}

type DisplayFile struct {
	Listen string `yaml:"listen"` // empty disables the websocket display
}

type McuFile struct {
	EnginePollMs  uint64 `yaml:"engine_poll_ms"`
	EcuPollMs     uint64 `yaml:"ecu_poll_ms"`
	AcceptUpdates bool   `yaml:"accept_updates"`
}

type FcuFile struct {
	ControlPollMs     uint64  `yaml:"control_poll_ms"`
	UpdatePollMs      uint64  `yaml:"update_poll_ms"`
	WheelDiameterInch float32 `yaml:"wheel_diameter_inch"`
}

type EngineFile struct {
	ThrottleMap        string `yaml:"throttle_map"`
	TractionControl    string `yaml:"traction_control"`
	DesiredSlipPercent uint8  `yaml:"desired_slip_percent"`
}

// DefaultFile returns the file equivalent of Default plus process defaults.
func DefaultFile() *File {
	cfg := Default()
	return &File{
		Unit:      "mcu",
		Transport: "socketcan",
		LogLevel:  3,
		CAN: CANFile{
			Device:     "can0",
			SerialPort: "/dev/ttyACM0",
			SerialBaud: 115200,
		},
		Redis: RedisFile{
			Server: "127.0.0.1",
			Port:   6379,
		},
		Mcu: McuFile{
			EnginePollMs:  cfg.Mcu.EnginePoll.Millis(),
			EcuPollMs:     cfg.Mcu.EcuPoll.Millis(),
			AcceptUpdates: true,
		},
		Fcu: FcuFile{
			ControlPollMs:     cfg.Fcu.ControlPoll.Millis(),
			UpdatePollMs:      cfg.Fcu.UpdatePoll.Millis(),
			WheelDiameterInch: cfg.Fcu.WheelDiameterInch,
		},
		Engine: EngineFile{
			ThrottleMap:        cfg.Engine.ThrottleMapMode.String(),
			TractionControl:    cfg.Engine.TractionControlMode.String(),
			DesiredSlipPercent: cfg.Engine.DesiredSlip.Int(),
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// EBIKE_* environment variables are applied last.
func Load(path string) (*File, error) {
	f := DefaultFile()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrapf(err, "reading config %s", path)
		default:
			if err := yaml.Unmarshal(data, f); err != nil {
				return nil, errors.Wrapf(err, "parsing config %s", path)
			}
		}
	}
	f.applyEnv(os.LookupEnv)
	if _, err := f.Config(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing config %s", path)
}

// Config converts the control section of the file to a Config.
func (f *File) Config() (Config, error) {
	tmm, err := parseThrottleMap(f.Engine.ThrottleMap)
	if err != nil {
		return Config{}, err
	}
	tcm, err := parseTractionControl(f.Engine.TractionControl)
	if err != nil {
		return Config{}, err
	}
	polls := []struct {
		name string
		ms   uint64
	}{
		{"mcu engine", f.Mcu.EnginePollMs},
		{"mcu ecu", f.Mcu.EcuPollMs},
		{"fcu control", f.Fcu.ControlPollMs},
		{"fcu update", f.Fcu.UpdatePollMs},
	}
	for _, p := range polls {
		if p.ms == 0 {
			return Config{}, errors.Errorf("%s poll must be > 0", p.name)
		}
	}
	return Config{
		Mcu: McuConfig{
			EnginePoll: units.Millis(f.Mcu.EnginePollMs),
			EcuPoll:    units.Millis(f.Mcu.EcuPollMs),
		},
		Engine: EngineConfig{
			ThrottleMapMode:     tmm,
			TractionControlMode: tcm,
			DesiredSlip:         units.FromInt(f.Engine.DesiredSlipPercent),
		},
		Fcu: FcuConfig{
			ControlPoll:       units.Millis(f.Fcu.ControlPollMs),
			UpdatePoll:        units.Millis(f.Fcu.UpdatePollMs),
			WheelDiameterInch: f.Fcu.WheelDiameterInch,
		},
	}, nil
}

func parseThrottleMap(s string) (control.ThrottleMapMode, error) {
	for _, m := range []control.ThrottleMapMode{control.ThrottleMapLevel0, control.ThrottleMapLevel1, control.ThrottleMapLevel2} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown throttle map mode %q", s)
}

func parseTractionControl(s string) (control.TractionControlMode, error) {
	for _, m := range []control.TractionControlMode{control.TractionControlLevel0, control.TractionControlLevel1} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown traction control mode %q", s)
}

func (f *File) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("EBIKE_UNIT", &f.Unit)
	str("EBIKE_TRANSPORT", &f.Transport)
	str("EBIKE_CAN_DEVICE", &f.CAN.Device)
	str("EBIKE_SERIAL_PORT", &f.CAN.SerialPort)
	num("EBIKE_SERIAL_BAUD", &f.CAN.SerialBaud)
	num("EBIKE_LOG_LEVEL", &f.LogLevel)
	num("EBIKE_REDIS_PORT", &f.Redis.Port)
	str("EBIKE_DISPLAY_LISTEN", &f.Display.Listen)
	str("EBIKE_THROTTLE_MAP", &f.Engine.ThrottleMap)
	str("EBIKE_TRACTION_CONTROL", &f.Engine.TractionControl)
	// an empty value is meaningful here: it disables redis
	if v, ok := lookup("EBIKE_REDIS_SERVER"); ok {
		f.Redis.Server = v
	}
}
