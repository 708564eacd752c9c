package live

import (
	"context"
	"sync"

	"pkt.systems/pslog"
)

// Handler receives every message routed to the type it was registered for.
type Handler func(Message)

// Router fans decoded frames out to the handlers registered per message type.
type Router struct {
	log pslog.Logger

	mu       sync.Mutex
	handlers map[MessageType]*callbackList[Handler]
}

// NewRouter constructs an empty Router.
func NewRouter(logger pslog.Logger) *Router {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Router{
		log:      logger,
		handlers: make(map[MessageType]*callbackList[Handler]),
	}
}

// On registers h for messages of type t. Handlers for one type run in
// registration order. The returned func removes exactly this registration.
func (r *Router) On(t MessageType, h Handler) (off func()) {
	if h == nil {
		return func() {}
	}
	r.mu.Lock()
	list := r.handlers[t]
	if list == nil {
		list = &callbackList[Handler]{}
		r.handlers[t] = list
	}
	r.mu.Unlock()
	return list.add(h)
}

// HandlerCount reports how many handlers are registered for t.
func (r *Router) HandlerCount(t MessageType) int {
	r.mu.Lock()
	list := r.handlers[t]
	r.mu.Unlock()
	if list == nil {
		return 0
	}
	return list.len()
}

// Dispatch decodes one inbound frame and invokes its handlers. Malformed
// frames are logged and dropped; frames without a type are ignored.
func (r *Router) Dispatch(frame []byte) {
	msg, ok, err := decodeMessage(frame)
	if err != nil {
		r.log.Warn("websocket frame discarded", "err", err, "bytes", len(frame))
		return
	}
	if !ok {
		r.log.Trace("websocket frame without type ignored")
		return
	}

	r.mu.Lock()
	list := r.handlers[msg.Type]
	r.mu.Unlock()
	if list == nil {
		r.log.Trace("websocket message unhandled", "type", msg.Type)
		return
	}
	for _, h := range list.get() {
		h(msg)
	}
}
