package ocppj

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cpsim/internal/logger"
	"cpsim/internal/messages"
)

// RequestHandler produces a response (or an error, turned into a CALLERROR)
// for one inbound CALL. It is supplied by the command dispatcher; the
// transport itself knows nothing about OCPP actions beyond BootNotification,
// which it needs for the boot gate.
type RequestHandler func(action string, payload json.RawMessage) (messages.Response, error)

type pendingRequest struct {
	newResponse func() messages.Response
	request     messages.Request
	result      chan callOutcome
}

type callOutcome struct {
	response messages.Response
	request  messages.Request
	err      error
}

// Transport is the RPC transport: framing, correlation, timeouts, offline
// buffering and the boot-gated send admission rule. It owns the WebSocket
// connection exclusively; every other component talks to the socket only
// through SendRequest (outbound CALLs) and HandleInbound (inbound frames,
// whose CALLRESULT/CALLERROR replies the transport writes itself).
type Transport struct {
	chargePointId string
	timeout       time.Duration
	isRegistered  func() bool
	log           logger.LogHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	pending map[string]*pendingRequest
	queue   []queuedFrame
	handler RequestHandler

	calls chan *RawCall
}

// queuedFrame is one buffered CALL awaiting a reconnect. payloadKey is
// compared, not frame, when suppressing duplicates: the frame carries
// a fresh message id every time, so two logically identical buffered
// Heartbeats would never compare string-equal on the frame alone.
type queuedFrame struct {
	action     string
	payloadKey string
	frame      []byte
}

func NewTransport(chargePointId string, timeout time.Duration, isRegistered func() bool, log logger.LogHandler) *Transport {
	t := &Transport{
		chargePointId: chargePointId,
		timeout:       timeout,
		isRegistered:  isRegistered,
		log:           log,
		pending:       make(map[string]*pendingRequest),
		calls:         make(chan *RawCall, 32),
	}
	go t.runCallWorker()
	return t
}

// runCallWorker is the single goroutine that executes inbound CALLs, one at
// a time and in arrival order, for the lifetime of the transport. It is the
// only goroutine that ever runs a RequestHandler, so handler side effects
// never interleave for this station. It is deliberately decoupled from the
// frame-reading goroutine in serve(): a handler that itself issues an
// outbound CALL (UnlockConnector calling StopTransaction, for instance)
// blocks here waiting on the response, while the reader goroutine stays
// free to read that very response off the socket and resolve it.
func (t *Transport) runCallWorker() {
	for call := range t.calls {
		t.handleCall(call)
	}
}

func (t *Transport) SetRequestHandler(handler RequestHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// SetIsRegistered wires the boot-gate predicate after construction, since
// the session controller that owns it is built from this Transport and so
// cannot be passed into NewTransport.
func (t *Transport) SetIsRegistered(isRegistered func() bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isRegistered = isRegistered
}

// Attach installs a freshly dialed connection and drains anything left in
// the offline queue, in FIFO order.
func (t *Transport) Attach(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.open = true
	t.mu.Unlock()
	t.drainQueue()
}

func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Detach marks the transport closed. Pending requests are left to resolve
// via their own timeout; Detach does not reject them early, since a
// reconnect may still complete in time, and a spurious early rejection
// would violate "exactly one of resolved/rejected/timeout" less cleanly
// than just letting the timeout fire.
func (t *Transport) Detach() {
	t.mu.Lock()
	t.conn = nil
	t.open = false
	t.mu.Unlock()
}

// SendRequest issues a CALL and blocks until the CALLRESULT/CALLERROR
// arrives or the RPC timeout elapses. newResponse must return a fresh
// pointer of the expected response type to unmarshal into.
func (t *Transport) SendRequest(action string, payload messages.Request, newResponse func() messages.Response) (messages.Response, messages.Request, error) {
	t.mu.Lock()
	open := t.open
	isRegistered := t.isRegistered
	t.mu.Unlock()
	registered := isRegistered != nil && isRegistered()

	admitted := open && (registered || action == messages.BootNotificationFeatureName)
	if !admitted {
		if action == messages.BootNotificationFeatureName {
			return nil, nil, NewGenericError("cannot send BootNotification: socket not open")
		}
		if err := t.enqueue(action, payload); err != nil {
			return nil, nil, err
		}
		return nil, nil, NewGenericError(fmt.Sprintf("message buffered: socket not registered for %s", action))
	}

	id := uuid.NewString()
	frame, err := MarshalCall(id, action, payload)
	if err != nil {
		return nil, nil, NewGenericError(fmt.Sprintf("encoding request: %s", err))
	}

	result := make(chan callOutcome, 1)
	t.mu.Lock()
	t.pending[id] = &pendingRequest{newResponse: newResponse, request: payload, result: result}
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.deletePending(id)
		if err := t.enqueue(action, payload); err != nil {
			return nil, nil, err
		}
		return nil, nil, NewGenericError(fmt.Sprintf("message buffered: %s", action))
	}

	t.log.RawDataEvent("OUT", t.chargePointId, string(frame))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.deletePending(id)
		return nil, nil, NewGenericError(fmt.Sprintf("write failed: %s", err))
	}

	select {
	case outcome := <-result:
		return outcome.response, outcome.request, outcome.err
	case <-time.After(t.timeout):
		t.deletePending(id)
		return nil, nil, NewError(ErrorGenericError, fmt.Sprintf("timeout for message id %s", id), nil)
	}
}

func (t *Transport) deletePending(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// enqueue buffers a CALL frame for later delivery. Duplicates are
// suppressed by comparing action+canonical-payload, not the frame bytes,
// since the frame's message id is regenerated on every attempt.
func (t *Transport) enqueue(action string, payload messages.Request) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return NewGenericError(fmt.Sprintf("encoding buffered request: %s", err))
	}
	key := action + ":" + string(payloadJSON)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, queued := range t.queue {
		if queued.payloadKey == key {
			return nil
		}
	}

	id := uuid.NewString()
	frame, err := MarshalCall(id, action, payload)
	if err != nil {
		return NewGenericError(fmt.Sprintf("encoding buffered request: %s", err))
	}
	t.queue = append(t.queue, queuedFrame{action: action, payloadKey: key, frame: frame})
	return nil
}

func (t *Transport) drainQueue() {
	t.mu.Lock()
	queue := t.queue
	t.queue = nil
	conn := t.conn
	t.mu.Unlock()

	for _, queued := range queue {
		if conn == nil {
			t.mu.Lock()
			t.queue = append(t.queue, queued)
			t.mu.Unlock()
			continue
		}
		t.log.RawDataEvent("OUT", t.chargePointId, string(queued.frame))
		if err := conn.WriteMessage(websocket.TextMessage, queued.frame); err != nil {
			t.log.Error("draining offline queue", err)
			t.mu.Lock()
			t.queue = append(t.queue, queued)
			t.mu.Unlock()
			return
		}
	}
}

// HandleInbound parses one inbound text frame and routes it: a CALL goes to
// the registered RequestHandler and gets a CALLRESULT/CALLERROR back; a
// CALLRESULT/CALLERROR resolves the matching pending request.
func (t *Transport) HandleInbound(data []byte) {
	t.log.RawDataEvent("IN", t.chargePointId, string(data))

	callType, call, result, cerr, uniqueId, err := ParseFrame(data)
	if err != nil {
		t.log.Warn(fmt.Sprintf("%s: %s", t.chargePointId, err))
		// A malformed CALLERROR gets no reply: there is no well-formed
		// message type left to answer with that wouldn't risk a loop.
		if callType != CallTypeError && uniqueId != "" {
			t.replyGenericError(uniqueId, err.Error())
		}
		return
	}

	switch callType {
	case CallTypeRequest:
		t.calls <- call
	case CallTypeResult:
		t.handleResult(result)
	case CallTypeError:
		t.handleError(cerr)
	default:
		t.log.Warn(fmt.Sprintf("%s: unsupported message type in inbound frame", t.chargePointId))
	}
}

// replyGenericError sends a CALLERROR for an inbound frame this transport
// could not make sense of, addressed at whatever message id it did manage
// to read.
func (t *Transport) replyGenericError(uniqueId, description string) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}
	frame, err := MarshalCallError(uniqueId, ErrorGenericError, description, nil)
	if err != nil {
		t.log.Error("encoding generic error reply", err)
		return
	}
	t.log.RawDataEvent("OUT", t.chargePointId, string(frame))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.log.Error("sending generic error reply", err)
	}
}

func (t *Transport) handleCall(call *RawCall) {
	t.mu.Lock()
	handler := t.handler
	conn := t.conn
	t.mu.Unlock()

	if handler == nil {
		t.log.Warn(fmt.Sprintf("%s: no request handler installed, dropping %s", t.chargePointId, call.Action))
		return
	}

	response, err := handler(call.Action, call.Payload)
	var frame []byte
	var marshalErr error
	if err != nil {
		ocppErr, ok := err.(*OCPPError)
		if !ok {
			ocppErr = NewGenericError(err.Error())
		}
		frame, marshalErr = MarshalCallError(call.UniqueId, ocppErr.Code, ocppErr.Description, ocppErr.Details)
	} else {
		frame, marshalErr = MarshalCallResult(call.UniqueId, response)
	}
	if marshalErr != nil {
		t.log.Error("encoding response", marshalErr)
		return
	}
	if conn == nil {
		t.log.Warn(fmt.Sprintf("%s: socket closed, response to %s not sent", t.chargePointId, call.Action))
		return
	}
	t.log.RawDataEvent("OUT", t.chargePointId, string(frame))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.log.Error("sending response", err)
	}
}

func (t *Transport) handleResult(result *RawCallResult) {
	t.mu.Lock()
	entry, ok := t.pending[result.UniqueId]
	if ok {
		delete(t.pending, result.UniqueId)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn(fmt.Sprintf("%s: unknown message id in CALLRESULT: %s", t.chargePointId, result.UniqueId))
		return
	}

	response := entry.newResponse()
	if err := json.Unmarshal(result.Payload, response); err != nil {
		entry.result <- callOutcome{err: NewGenericError(fmt.Sprintf("decoding response: %s", err))}
		return
	}
	entry.result <- callOutcome{response: response, request: entry.request}
}

func (t *Transport) handleError(cerr *RawCallError) {
	t.mu.Lock()
	entry, ok := t.pending[cerr.UniqueId]
	if ok {
		delete(t.pending, cerr.UniqueId)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn(fmt.Sprintf("%s: unknown message id in CALLERROR: %s", t.chargePointId, cerr.UniqueId))
		return
	}

	var details interface{}
	if len(cerr.Details) > 0 {
		_ = json.Unmarshal(cerr.Details, &details)
	}
	entry.result <- callOutcome{err: NewError(cerr.Code, cerr.Description, details)}
}
