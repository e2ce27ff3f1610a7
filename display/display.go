// Package display pushes FCU snapshots to browser dashboards over websockets.
package display

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/HonakerM/ebike/node"
	"github.com/HonakerM/ebike/units"
)

const clientQueue = 64

// Frame is the JSON document sent to every client.
type Frame struct {
	Throttle float32 `json:"throttle"` // percent
	Brake    float32 `json:"brake"`    // percent

	Field  string `json:"field"`
	Value  string `json:"value"`
	Cursor string `json:"cursor"`

	FrontRPM *float32 `json:"frontRpm,omitempty"`
	SpeedMPH float32  `json:"speedMph"`
	SpeedKPH float32  `json:"speedKph"`

	ThrottleMap     string  `json:"throttleMap"`
	TractionControl string  `json:"tractionControl"`
	DesiredSlip     float32 `json:"desiredSlip"` // percent

	Stamp int64 `json:"stamp"` // Unix ms
}

func NewFrame(snap node.Snapshot, now time.Time) Frame {
	st := snap.State
	f := Frame{
		Throttle:        st.ThrottleReq.Fractional() * 100,
		Brake:           st.BrakeReq.Fractional() * 100,
		Field:           st.Update.Field.String(),
		Value:           st.Update.Value.String(),
		Cursor:          st.Update.String(),
		SpeedMPH:        snap.Ground.MPH(),
		SpeedKPH:        snap.Ground.KPH(),
		ThrottleMap:     snap.Config.Engine.ThrottleMapMode.String(),
		TractionControl: snap.Config.Engine.TractionControlMode.String(),
		DesiredSlip:     snap.Config.Engine.DesiredSlip.Fractional() * 100,
		Stamp:           now.UnixMilli(),
	}
	if st.FrontSpeed != nil {
		rpm := st.FrontSpeed.RPM()
		f.FrontRPM = &rpm
	}
	return f
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub implements node.Display. Show never blocks: clients that fall behind
// miss frames.
type Hub struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	window  speedWindow
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Show smooths the ground speed over the last windowSize frames and sends
// the frame to every connected client. The wheel reading is fed once per
// call, repeated or not, so a steady speed settles after windowSize frames.
func (h *Hub) Show(snap node.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fs := snap.State.FrontSpeed; fs != nil {
		avg := h.window.Average(*fs)
		snap.Ground = units.GroundSpeedFromWheel(avg, snap.Config.Fcu.WheelDiameterInch)
	}

	data, err := json.Marshal(NewFrame(snap, time.Now()))
	if err != nil {
		h.log.WithError(err).Warn("encode display frame")
		return
	}
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// ServeWS upgrades the request and streams frames to the client, starting
// with the most recent one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("clients", n).Info("display client connected")

	go func() {
		defer conn.Close()
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, c)
			close(c.send)
			n := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("clients", n).Info("display client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Run serves the hub on addr until ctx is done.
func (h *Hub) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	h.log.WithField("addr", addr).Info("display listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
