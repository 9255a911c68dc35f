package ws

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

// PrincipalFunc returns the authenticated identity of the request, or "" for
// anonymous callers.
type PrincipalFunc func(c *gin.Context) string

type Handler struct {
	hub       *Hub
	principal PrincipalFunc
}

func NewHandler(hub *Hub, principal PrincipalFunc) *Handler {
	if principal == nil {
		principal = func(*gin.Context) string { return "" }
	}
	return &Handler{hub: hub, principal: principal}
}

type subscribeMessage struct {
	Action     string `json:"action"`
	Channel    string `json:"channel"`
	IdentityID string `json:"identityId"`
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	caller := h.principal(c)
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		go h.writer(client)
		h.reader(client, caller)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client, caller string) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		topic := subscriptionTopic(msg, caller)
		if topic == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Action)) {
		case "subscribe":
			h.hub.Subscribe(topic, client)
		case "unsubscribe":
			h.hub.Unsubscribe(topic, client)
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

// subscriptionTopic maps a subscribe request to a hub channel. Identity
// channels are private to their owner; issuer channels are public.
func subscriptionTopic(msg subscribeMessage, caller string) string {
	identityID := strings.TrimSpace(msg.IdentityID)
	if identityID == "" {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(msg.Channel)) {
	case "identity":
		if caller == "" || caller != identityID {
			return ""
		}
		return IdentityChannel(identityID)
	case "issuer":
		return IssuerChannel(identityID)
	default:
		return ""
	}
}
