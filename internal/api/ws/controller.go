package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/avelin/quickmeet/internal/domain"
	"github.com/avelin/quickmeet/internal/relay"
	"github.com/avelin/quickmeet/lib/logger/sl"
)

const writeTimeout = 5 * time.Second

// Controller upgrades HTTP requests to websocket connections and bridges
// them onto the relay. Each connection gets a reader goroutine, which keeps
// its signaling events in order, and a writer goroutine draining the
// connection's event queue.
type Controller struct {
	relay    *relay.Relay
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewController(rl *relay.Relay, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		relay: rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

func (c *Controller) Handle(ctx *gin.Context) {
	sock, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("ws upgrade failed", sl.Err(err))
		return
	}

	conn := domain.NewConnection()
	c.relay.Register(conn)
	c.log.Info("new ws connection", "conn_id", conn.ID)

	if ev, err := domain.NewEnvelope(domain.EventConnected, domain.ConnectedPayload{ConnectionID: conn.ID}); err == nil {
		_ = conn.Enqueue(ev)
	}

	go c.writePump(sock, conn)
	c.readPump(sock, conn)
}

func (c *Controller) readPump(sock *websocket.Conn, conn *domain.Connection) {
	defer func() {
		c.relay.OnTransportClose(conn.ID)
		sock.Close()
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			c.log.Info("ws read closed", "conn_id", conn.ID, sl.Err(err))
			return
		}
		c.dispatch(conn, data)
	}
}

func (c *Controller) writePump(sock *websocket.Conn, conn *domain.Connection) {
	for ev := range conn.Events {
		if err := sock.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			c.relay.OnTransportClose(conn.ID)
			return
		}
		if err := sock.WriteJSON(ev); err != nil {
			c.log.Warn("ws write failed", "conn_id", conn.ID, sl.Err(err))
			c.relay.OnTransportClose(conn.ID)
			return
		}
	}
	// Event queue closed: the relay already unregistered this connection.
	_ = sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
	sock.Close()
}

func (c *Controller) dispatch(conn *domain.Connection, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("bad envelope", "conn_id", conn.ID, sl.Err(err))
		return
	}

	switch env.Event {
	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Warn("bad join payload", "conn_id", conn.ID, sl.Err(err))
			return
		}
		c.relay.OnJoin(conn, p.RoomID, p.UserID)
	case domain.EventLeaveRoom:
		var p domain.LeaveRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Warn("bad leave payload", "conn_id", conn.ID, sl.Err(err))
			return
		}
		c.relay.OnLeave(conn, p.RoomID, p.UserID)
	case domain.EventOffer, domain.EventAnswer, domain.EventCandidate:
		c.relay.OnForward(conn, env.Event, env.Data)
	case domain.EventSendMessage:
		c.relay.OnChat(conn, env.Data)
	default:
		c.log.Warn("unknown signal", "conn_id", conn.ID, "event", env.Event)
	}
}
