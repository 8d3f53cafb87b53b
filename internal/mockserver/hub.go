package mockserver

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/statesync/schema"
)

// Frame is one encoded message sent to every connected client.
type Frame struct {
	Seq       uint64
	Type      schema.MessageType
	Data      []byte
	Timestamp time.Time
}

// Hub broadcasts frames to connected clients and keeps a bounded history.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []Frame
	subs        map[chan Frame]struct{}
	historySize int
	depth       int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan Frame]struct{}),
		historySize: historySize,
		depth:       256,
		log:         logger,
	}
}

// Subscribe registers a subscriber. It returns the channel, the unsubscribe
// func and the last sequence number published before the subscription.
func (h *Hub) Subscribe() (<-chan Frame, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Frame, h.depth)
	h.subs[ch] = struct{}{}
	seq := h.seq
	h.log.Info("hub subscribe", "subs", len(h.subs), "seq", seq)
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns frames after the provided seq.
func (h *Hub) Replay(after uint64) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	frames := make([]Frame, 0, len(h.history))
	for _, frame := range h.history {
		if frame.Seq > after {
			frames = append(frames, frame)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(frames))
	return frames
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish assigns the next sequence number and fans the frame out. Full
// subscriber queues drop the frame.
func (h *Hub) Publish(msgType schema.MessageType, data []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	frame := Frame{Seq: h.seq, Type: msgType, Data: data, Timestamp: time.Now()}
	h.history = append(h.history, frame)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- frame:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn("hub frame dropped", "type", msgType, "dropped", dropped)
	}
	return frame.Seq
}
