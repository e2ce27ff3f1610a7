package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/config"
)

var (
	version       = flag.Bool("version", false, "Print version info")
	help          = flag.Bool("help", false, "Print help")
	logLevel      = flag.Int("log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configPath    = flag.String("config", "", "Path to YAML config file")
	unit          = flag.String("unit", UnitMcu, "Unit to run (mcu or fcu)")
	transport     = flag.String("transport", TransportSocketCAN, "CAN transport (socketcan, slcan or stdio)")
	canDevice     = flag.String("can_device", "can0", "CAN device name")
	serialPort    = flag.String("serial_port", "/dev/ttyACM0", "SLCAN serial port")
	serialBaud    = flag.Int("serial_baud", 115200, "SLCAN serial baud rate")
	redisServer   = flag.String("redis_server", "127.0.0.1", "Redis server address, empty to disable")
	redisPort     = flag.Int("redis_port", 6379, "Redis server port")
	displayListen = flag.String("display_listen", "", "Listen address for the websocket display, empty to disable")
)

const (
	ProjectName    = "ebike"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

// applyFlags overrides the config file with the flags given on the command
// line. Flags left at their default do not override the file.
func applyFlags(f *config.File, set map[string]bool) {
	if set["log"] {
		f.LogLevel = *logLevel
	}
	if set["unit"] {
		f.Unit = *unit
	}
	if set["transport"] {
		f.Transport = *transport
	}
	if set["can_device"] {
		f.CAN.Device = *canDevice
	}
	if set["serial_port"] {
		f.CAN.SerialPort = *serialPort
	}
	if set["serial_baud"] {
		f.CAN.SerialBaud = *serialBaud
	}
	if set["redis_server"] {
		f.Redis.Server = *redisServer
	}
	if set["redis_port"] {
		f.Redis.Port = *redisPort
	}
	if set["display_listen"] {
		f.Display.Listen = *displayListen
	}
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	file, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(file, set)

	opts, err := NewOptions(file)
	if err != nil {
		logrus.Fatalf("invalid options: %v", err)
	}

	log := NewLogger(opts.LogLevel)
	log.WithFields(logrus.Fields{
		"unit":      opts.Unit,
		"transport": opts.Transport,
	}).Infof("%s v%s starting", ProjectName, ProjectVersion)

	// Handle SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, opts, log)
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}
	defer app.Destroy()

	if err := app.Run(); err != nil {
		log.WithError(err).Error("app stopped")
	}
}
