package router

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/headsoccer/server/internal/connmgr"
	"github.com/headsoccer/server/internal/protocol"
	"github.com/headsoccer/server/internal/ratelimit"
)

// Handler processes one validated, sanitized event. payload is the
// re-marshaled sanitized JSON, ready for the handler to decode into its
// own typed struct via protocol.DecodePayload.
type Handler func(conn *connmgr.Connection, payload json.RawMessage)

// Stats are the observability counters of spec §4.3 ("event counters
// processed/rejected/validationErrors/rateLimit").
type Stats struct {
	Processed        uint64
	Rejected         uint64
	ValidationErrors uint64
	RateLimited      uint64
}

// Router validates, sanitizes, and dispatches ingress events (spec
// §4.3's Event Router, component I). Implements connmgr.Dispatcher.
type Router struct {
	registry *Registry
	proto    *protocol.Protocol
	limiter  *ratelimit.Limiter
	handlers map[string]Handler

	classOf func(event string) ratelimit.Class

	processed        uint64
	rejected         uint64
	validationErrors uint64
	rateLimited      uint64
}

// New creates a Router against the built-in schema table. classOf maps
// an event name to its rate-limit class (spec §4.3); the server wires
// this since the class-to-event mapping is policy, not schema. The
// limiter is set separately via SetLimiter once the connection manager
// (which owns it) exists, breaking the construction cycle between the
// two components.
func New(proto *protocol.Protocol, classOf func(event string) ratelimit.Class) *Router {
	return &Router{
		registry: NewRegistry(),
		proto:    proto,
		handlers: make(map[string]Handler),
		classOf:  classOf,
	}
}

// SetLimiter binds the shared per-connection token-bucket set used for
// rate-limit gating (spec §4.3). The connection manager owns the
// limiter itself, since rate-limit counters live with the Connection
// record (spec §5).
func (r *Router) SetLimiter(limiter *ratelimit.Limiter) {
	r.limiter = limiter
}

// On registers event's handler. Unregistered-but-schema'd events are
// accepted by validation and silently dropped, mirroring an unhandled
// message type in the teacher's switch.
func (r *Router) On(event string, h Handler) {
	r.handlers[event] = h
}

// Dispatch rate-limits, validates, sanitizes, and invokes the registered
// handler for env (spec §4.3's router rules, §4.3 rate limits).
func (r *Router) Dispatch(conn *connmgr.Connection, env protocol.Envelope) {
	if r.limiter != nil && r.classOf != nil {
		class := r.classOf(env.Type)
		if !r.limiter.Allow(conn.SocketID(), class, time.Now()) {
			atomic.AddUint64(&r.rateLimited, 1)
			conn.Send(r.proto.MustEncode(protocol.EventRateLimitExceeded, protocol.PayloadRateLimitExceeded{
				EventClass:   string(class),
				RetryAfterMs: int64(time.Minute.Milliseconds()),
			}))
			return
		}
	}

	schema, known := r.registry.Lookup(env.Type)
	if !known {
		atomic.AddUint64(&r.rejected, 1)
		r.sendError(conn, env.Type, "UNKNOWN_EVENT", "no such event")
		return
	}

	var data map[string]interface{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &data); err != nil {
			atomic.AddUint64(&r.validationErrors, 1)
			r.sendValidationError(conn, env.Type, []FieldError{{Field: "payload", Reason: "malformed JSON"}})
			return
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if errs := validate(schema, data); len(errs) > 0 {
		atomic.AddUint64(&r.validationErrors, 1)
		r.sendValidationError(conn, env.Type, errs)
		return
	}

	sanitize(data)
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = time.Now().UnixMilli()
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		atomic.AddUint64(&r.rejected, 1)
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		atomic.AddUint64(&r.rejected, 1)
		return
	}

	atomic.AddUint64(&r.processed, 1)
	handler(conn, payload)
}

func (r *Router) sendValidationError(conn *connmgr.Connection, event string, errs []FieldError) {
	wire := make([]protocol.FieldError, len(errs))
	for i, e := range errs {
		wire[i] = protocol.FieldError{Field: e.Field, Reason: e.Reason}
	}
	conn.Send(r.proto.MustEncode(protocol.EventValidationError, protocol.PayloadValidationError{
		Event:  event,
		Errors: wire,
	}))
}

func (r *Router) sendError(conn *connmgr.Connection, event, code, message string) {
	conn.Send(r.proto.MustEncode(protocol.EventErrorGeneric, protocol.PayloadEventError{
		Code:    code,
		Message: message,
	}))
}

// Snapshot returns the current observability counters.
func (r *Router) Snapshot() Stats {
	return Stats{
		Processed:        atomic.LoadUint64(&r.processed),
		Rejected:         atomic.LoadUint64(&r.rejected),
		ValidationErrors: atomic.LoadUint64(&r.validationErrors),
		RateLimited:      atomic.LoadUint64(&r.rateLimited),
	}
}
