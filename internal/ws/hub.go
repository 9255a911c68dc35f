package ws

import "sync"

// Hub routes notification payloads to the clients subscribed to a channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: map[string]map[*Client]struct{}{}}
}

func (h *Hub) Subscribe(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = map[*Client]struct{}{}
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	client.track(channel, true)
}

func (h *Hub) Unsubscribe(channel string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(channel, client)
	client.track(channel, false)
}

func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range client.subscriptions() {
		h.remove(channel, client)
		client.track(channel, false)
	}
}

// Publish delivers to a snapshot of the channel's subscribers taken under
// the read lock.
func (h *Hub) Publish(channel string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(payload)
	}
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) remove(channel string, client *Client) {
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}
