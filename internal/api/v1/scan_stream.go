package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 4096
)

// Message types on the scan stream
const (
	StreamMessageFrame       = "frame"
	StreamMessageDeviceError = "device_error"

	StreamEventSnapshot = "snapshot"
	StreamEventOutcome  = "outcome"
	StreamEventClosed   = "closed"
)

// StreamMessage is sent by the device. Frames carry decoded text, device
// errors carry the platform error name.
type StreamMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Format  string `json:"format,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamEvent is sent to the device
type StreamEvent struct {
	Type    string              `json:"type"`
	Outcome types.DecodeOutcome `json:"outcome,omitempty"`
	Session *scanner.Snapshot   `json:"session,omitempty"`
}

// ScanStreamHandler serves a scan session over a WebSocket. The device
// pushes decoded frames and receives a snapshot after every session change.
type ScanStreamHandler struct {
	sessions *scanner.Manager
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewScanStreamHandler(cfg *config.Configuration, sessions *scanner.Manager, log *logger.Logger) *ScanStreamHandler {
	allowed := cfg.Server.AllowedOrigins
	return &ScanStreamHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || lo.Contains(allowed, origin)
			},
		},
		log: log,
	}
}

// @Summary Stream a scan session
// @Description Upgrades to a WebSocket. Send {"type":"frame","text":...} for every decoded frame.
// @Tags Scan Sessions
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param access_token query string false "Bearer token for clients that cannot set headers"
// @Router /scan-sessions/{id}/stream [get]
func (h *ScanStreamHandler) Stream(c *gin.Context) {
	s, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the response
		h.log.Warnw("websocket upgrade failed", "session_id", s.ID(), "error", err)
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := s.Subscribe()
	defer unsubscribe()

	log := h.log.With("session_id", s.ID())
	log.Debugw("scan stream opened")

	outcomes := make(chan StreamEvent, 8)
	done := make(chan struct{})
	go h.readLoop(conn, s, outcomes, done, log)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				_ = h.write(conn, StreamEvent{Type: StreamEventClosed})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(streamWriteWait))
				log.Debugw("scan stream ended with session")
				return
			}
			if err := h.write(conn, StreamEvent{Type: StreamEventSnapshot, Session: &snap}); err != nil {
				log.Debugw("scan stream write failed", "error", err)
				return
			}
		case ev := <-outcomes:
			if err := h.write(conn, ev); err != nil {
				log.Debugw("scan stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			// an open stream counts as use even between frames
			h.sessions.Touch(s.ID())
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-done:
			log.Debugw("scan stream closed by client")
			return
		}
	}
}

// readLoop owns all reads on conn. It closes done when the client goes away.
func (h *ScanStreamHandler) readLoop(conn *websocket.Conn, s *scanner.Session, outcomes chan<- StreamEvent, done chan<- struct{}, log *logger.Logger) {
	defer close(done)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnw("scan stream read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case StreamMessageFrame:
			outcome := s.Push(msg.Text, msg.Format)
			select {
			case outcomes <- StreamEvent{Type: StreamEventOutcome, Outcome: outcome}:
			default:
				// writer is behind; the next snapshot still shows the result
			}
		case StreamMessageDeviceError:
			s.ReportDeviceError(msg.Name, msg.Message)
		default:
			log.Debugw("ignored scan stream message", "type", msg.Type)
		}
	}
}

func (h *ScanStreamHandler) write(conn *websocket.Conn, ev StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}
