package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"
	"chat-room/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 8192
)

// Client binds one websocket connection to the room. It is the
// contract.EventSink the registry fans events out to; the read and
// write pumps run in their own goroutines so a slow socket never blocks
// the router.
type Client struct {
	log        *slog.Logger
	service    services.IChatService
	conn       *websocket.Conn
	identity   *domain.Identity
	connID     string
	send       chan outbound
	detachOnce sync.Once
}

func newClient(log *slog.Logger, service services.IChatService, conn *websocket.Conn,
	identity *domain.Identity, bufferSize int) *Client {
	return &Client{
		log:      log,
		service:  service,
		conn:     conn,
		identity: identity,
		send:     make(chan outbound, bufferSize),
	}
}

// Consume queues an event for the write pump. It blocks until the
// router's delivery deadline expires, at which point the router counts
// the drop.
func (c *Client) Consume(ctx context.Context, evt event.DomainEvent) error {
	out, ok := encodeEvent(evt)
	if !ok {
		return nil
	}
	select {
	case c.send <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump owns the socket's read side until the peer goes away. The
// request context dies with the upgrade, so commands run under their
// own context.
func (c *Client) readPump() {
	ctx := context.Background()
	defer c.detach()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket closed unexpectedly", "conn_id", c.connID, "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.sendError(errors.ErrInvalidMessage)
			continue
		}
		c.dispatch(ctx, f)
	}
}

func (c *Client) dispatch(ctx context.Context, f frame) {
	switch f.Event {
	case "join":
		if err := c.service.Join(ctx, c.connID); err != nil {
			c.sendError(err)
		}
	case "leave":
		if err := c.service.Leave(c.connID); err != nil {
			c.sendError(err)
		}
	case "send-message":
		var data sendMessageData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			c.sendError(errors.ErrInvalidMessage)
			return
		}
		if _, err := c.service.Send(ctx, c.connID, data.Body, domain.MessageKind(data.Kind)); err != nil {
			c.sendError(err)
		}
	case "delete-message":
		identity, err := c.joinedIdentity()
		if err != nil {
			c.sendError(err)
			return
		}
		var data deleteMessageData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			c.sendError(errors.ErrInvalidMessage)
			return
		}
		messageID, err := uuid.Parse(data.ID)
		if err != nil {
			c.sendError(errors.ErrInvalidMessage)
			return
		}
		if err := c.service.Delete(ctx, identity, domain.DeleteMessageCommand{MessageID: messageID}); err != nil {
			c.sendError(err)
		}
	case "typing-start":
		if err := c.service.SetTyping(c.connID, true); err != nil {
			c.sendError(err)
		}
	case "typing-stop":
		if err := c.service.SetTyping(c.connID, false); err != nil {
			c.sendError(err)
		}
	default:
		c.log.Debug("Unknown websocket event", "event", f.Event, "conn_id", c.connID)
	}
}

func (c *Client) joinedIdentity() (domain.Identity, error) {
	if c.identity == nil {
		return domain.Identity{}, errors.ErrIdentityInvalid
	}
	return *c.identity, nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.detach()
		_ = c.conn.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(err error) {
	select {
	case c.send <- outbound{Event: "error", Data: errorData{Code: errors.Code(err), Message: err.Error()}}:
	default:
		c.log.Warn("Dropping error frame, send buffer full", "conn_id", c.connID)
	}
}

// detach tells the room the connection is gone. Both pumps call it on
// exit; the once guard keeps presence bookkeeping single-shot.
func (c *Client) detach() {
	c.detachOnce.Do(func() {
		c.service.Detach(c.connID)
		_ = c.conn.Close()
	})
}
