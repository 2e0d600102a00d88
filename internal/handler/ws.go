package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
)

const (
	actionJoinRoom = "join_organizer_room"
	roomBuffer     = 32
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
)

// RoomHandler serves the organizer dashboard websocket and the activity
// feed.
type RoomHandler struct {
	Hub      *notify.Hub
	Feed     *notify.Feed // nil when Redis is unavailable
	Upgrader websocket.Upgrader
}

func NewRoomHandler(hub *notify.Hub, feed *notify.Feed) *RoomHandler {
	return &RoomHandler{
		Hub:  hub,
		Feed: feed,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type roomRequest struct {
	Action      string `json:"action"`
	OrganizerID uint64 `json:"organizer_id"`
}

type roomMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(m roomMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(m)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Serve upgrades the request and relays the joined organizer room to the
// client.  A client joins with {"action":"join_organizer_room",
// "organizer_id":N}; organizers may only join their own room.  Messages
// arrive as {"event":kind,"data":notification}.  A slow client loses
// messages once its buffer is full.
func (h *RoomHandler) Serve(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	raw, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	out := make(chan notify.Notification, roomBuffer)
	done := make(chan struct{})
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case n := <-out:
				if err := conn.send(roomMessage{Event: string(n.Kind), Data: n}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var unsubscribe func()
	leave := func() {
		if unsubscribe != nil {
			unsubscribe()
			unsubscribe = nil
			metrics.RoomLeft()
		}
	}
	defer func() {
		leave()
		close(done)
		writerDone.Wait()
	}()

	for {
		var req roomRequest
		if err := raw.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "user_id", a.ID, "err", err)
			}
			return nil
		}
		if req.Action != actionJoinRoom {
			_ = conn.send(roomMessage{Event: "error", Error: "unknown action"})
			continue
		}
		if !canJoin(a, req.OrganizerID) {
			_ = conn.send(roomMessage{Event: "error", Error: "forbidden"})
			continue
		}
		leave()
		unsubscribe = h.Hub.Subscribe(req.OrganizerID, func(n notify.Notification) {
			select {
			case out <- n:
			default:
				metrics.Notification("ws", "dropped")
			}
		})
		metrics.RoomJoined()
		_ = conn.send(roomMessage{Event: "joined", Data: echo.Map{"organizer_id": req.OrganizerID}})
	}
}

func canJoin(a model.Actor, organizerID uint64) bool {
	if organizerID == 0 {
		return false
	}
	return a.IsAdmin() || a.Owns(organizerID)
}

// Notifications returns the organizer's recent activity feed, newest
// first.  Admins may read any feed with ?organizer_id=.
func (h *RoomHandler) Notifications(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	orgID := a.ID
	if a.IsAdmin() {
		id, err := strconv.ParseUint(c.QueryParam("organizer_id"), 10, 64)
		if err != nil || id == 0 {
			return badRequest(c, "organizer_id required")
		}
		orgID = id
	}
	if h.Feed == nil {
		return c.JSON(http.StatusOK, echo.Map{"notifications": []notify.Notification{}})
	}
	list, err := h.Feed.Recent(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []notify.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": list})
}
