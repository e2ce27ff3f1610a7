package display

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HonakerM/ebike/config"
	"github.com/HonakerM/ebike/configupdate"
	"github.com/HonakerM/ebike/controller"
	"github.com/HonakerM/ebike/node"
	"github.com/HonakerM/ebike/units"
)

func testSnapshot() node.Snapshot {
	ws := units.WheelSpeed(100)
	cfg := config.Default()
	return node.Snapshot{
		State: controller.FcuState{
			ThrottleReq: units.FromFractional(0.5),
			BrakeReq:    units.Zero(),
			Update:      configupdate.NewState(units.FromFractional(0.1), units.FromFractional(0.45)),
			FrontSpeed:  &ws,
		},
		Config: cfg,
		Ground: units.GroundSpeedFromWheel(ws, cfg.Fcu.WheelDiameterInch),
	}
}

func TestNewFrame(t *testing.T) {
	f := NewFrame(testSnapshot(), time.UnixMilli(1234))

	assert.InDelta(t, 50, f.Throttle, 0.01)
	assert.Equal(t, "DSL", f.Field)
	assert.Equal(t, "4%", f.Value)
	assert.Equal(t, "DSL 4%", f.Cursor)
	require.NotNil(t, f.FrontRPM)
	assert.InDelta(t, 100, *f.FrontRPM, 0.01)
	assert.InDelta(t, 7.73, f.SpeedMPH, 0.01)
	assert.Equal(t, "level2", f.ThrottleMap)
	assert.Equal(t, "level1", f.TractionControl)
	assert.InDelta(t, 10, f.DesiredSlip, 0.01)
	assert.Equal(t, int64(1234), f.Stamp)

	f = NewFrame(node.Snapshot{Config: config.Default()}, time.Now())
	assert.Nil(t, f.FrontRPM)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHubStreamsFrames(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub(log)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	hub.Show(testSnapshot())
	f := readFrame(t, conn)
	assert.Equal(t, "DSL 4%", f.Cursor)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestHubSendsLastFrameOnConnect(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub(log)
	hub.Show(testSnapshot())

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	f := readFrame(t, conn)
	assert.InDelta(t, 50, f.Throttle, 0.01)
}

func TestShowWithoutClients(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub(log)
	assert.NotPanics(t, func() { hub.Show(testSnapshot()) })
	assert.Equal(t, 0, hub.Clients())
}

func TestSpeedWindow(t *testing.T) {
	var w speedWindow
	assert.Equal(t, units.WheelSpeed(100), w.Average(100))
	assert.Equal(t, units.WheelSpeed(150), w.Average(200))
	assert.Equal(t, units.WheelSpeed(200), w.Average(300))
	// window full, 100 falls out
	assert.Equal(t, units.WheelSpeed(300), w.Average(400))

	assert.Equal(t, units.WheelSpeed(0), w.Average(0))
	assert.Equal(t, units.WheelSpeed(50), w.Average(50))
}

func TestSpeedWindowLargeValues(t *testing.T) {
	var w speedWindow
	for i := 0; i < windowSize+1; i++ {
		assert.Equal(t, units.WheelSpeed(65535), w.Average(65535))
	}
}

func TestHubSmoothsSpeed(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub(log)

	snap := testSnapshot()
	hub.Show(snap)
	ws := units.WheelSpeed(200)
	snap.State.FrontSpeed = &ws
	hub.Show(snap)

	var f Frame
	hub.mu.Lock()
	require.NoError(t, json.Unmarshal(hub.last, &f))
	hub.mu.Unlock()

	want := units.GroundSpeedFromWheel(150, snap.Config.Fcu.WheelDiameterInch)
	assert.InDelta(t, want.MPH(), f.SpeedMPH, 0.01)
	// RPM is the raw sample
	assert.InDelta(t, 200, *f.FrontRPM, 0.01)
}

func TestHubAveragesOverFrames(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub(log)
	snap := testSnapshot()
	diameter := snap.Config.Fcu.WheelDiameterInch

	speedOf := func() float32 {
		var f Frame
		hub.mu.Lock()
		defer hub.mu.Unlock()
		require.NoError(t, json.Unmarshal(hub.last, &f))
		return f.SpeedMPH
	}
	show := func(ws units.WheelSpeed) {
		s := snap
		s.State.FrontSpeed = &ws
		hub.Show(s)
	}

	show(100)
	show(100)
	show(200)
	// (100 + 100 + 200) / 3
	assert.InDelta(t, units.GroundSpeedFromWheel(133, diameter).MPH(), speedOf(), 0.01)

	// The same reading on later frames pushes the older ones out.
	show(200)
	show(200)
	assert.InDelta(t, units.GroundSpeedFromWheel(200, diameter).MPH(), speedOf(), 0.01)

	show(0)
	assert.InDelta(t, 0, speedOf(), 0.01)
}
