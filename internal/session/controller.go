package session

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

const (
	subProtocol      = "ocpp1.6"
	defaultHeartbeat = 600
	maxBackoff       = 5 * time.Minute
	minHandshakeGap  = 100 * time.Millisecond
)

// Controller owns the lifecycle of one station's connection: dialing,
// the boot handshake, heartbeat/ping timers, and reconnect on drop. It is
// the only component that calls Dial or Close on the underlying socket.
type Controller struct {
	stationRef *station.Station
	transport  *ocppj.Transport
	cs         *configstore.Store
	log        logger.LogHandler

	urls                    []string
	stationIndex            int
	bootRetryDelay          time.Duration
	connectionTimeout       time.Duration
	regMaxRetries           int
	autoReconnectMaxRetries int
	reconnectAttempts       int
	backoff                 *Backoff

	onDisconnect     func()
	restartHeartbeat chan struct{}
	restartPing      chan struct{}

	stop       chan struct{}
	stopOnce   sync.Once
	registered int32
}

// autoReconnectMaxRetries follows the template convention: -1 means
// unlimited, 0 disables reconnect entirely, N>0 caps the attempt count.
// connectionTimeout is the template's connectionTimeout in seconds: it
// bounds the WS handshake (0 disables the deadline, per gorilla's
// Dialer.HandshakeTimeout) and seeds the non-exponential reconnect delay.
func NewController(st *station.Station, transport *ocppj.Transport, cs *configstore.Store, log logger.LogHandler, urls []string, stationIndex int, bootRetryDelay time.Duration, connectionTimeout time.Duration, regMaxRetries, autoReconnectMaxRetries int, exponential bool) *Controller {
	return &Controller{
		stationRef:              st,
		transport:               transport,
		cs:                      cs,
		log:                     log,
		urls:                    urls,
		stationIndex:            stationIndex,
		bootRetryDelay:          bootRetryDelay,
		connectionTimeout:       connectionTimeout,
		regMaxRetries:           regMaxRetries,
		autoReconnectMaxRetries: autoReconnectMaxRetries,
		backoff:                 NewBackoff(connectionTimeout, maxBackoff, exponential),
		restartHeartbeat:        make(chan struct{}, 1),
		restartPing:             make(chan struct{}, 1),
		stop:                    make(chan struct{}),
	}
}

// SetDisconnectHook wires a callback run whenever a dial/boot attempt
// fails or the socket drops, just before sleeping for the next reconnect
// attempt — the hook a caller uses to stop the transaction generator when
// stopOnConnectionFailure applies.
func (c *Controller) SetDisconnectHook(fn func()) {
	c.onDisconnect = fn
}

// RestartHeartbeat resets the heartbeat ticker to the current
// HeartbeatInterval config value; ChangeConfiguration calls this.
func (c *Controller) RestartHeartbeat() {
	select {
	case c.restartHeartbeat <- struct{}{}:
	default:
	}
}

// RestartPing resets the WS ping ticker to the current
// WebSocketPingInterval config value, starting or stopping it as the new
// value requires; ChangeConfiguration calls this.
func (c *Controller) RestartPing() {
	select {
	case c.restartPing <- struct{}{}:
	default:
	}
}

// canReconnect reports whether another reconnect attempt is allowed under
// the configured ceiling, and advances the attempt counter when it is.
func (c *Controller) canReconnect() bool {
	if c.autoReconnectMaxRetries == 0 {
		return false
	}
	if c.autoReconnectMaxRetries > 0 && c.reconnectAttempts >= c.autoReconnectMaxRetries {
		return false
	}
	c.reconnectAttempts++
	return true
}

// supervisionURL picks the one URL this station dials, per the template's
// selection rule: a single string is shared by every station instance; a
// list is split across instances round-robin unless random assignment is
// requested.
func (c *Controller) supervisionURL(random bool) string {
	if len(c.urls) == 0 {
		return ""
	}
	if len(c.urls) == 1 {
		return c.urls[0]
	}
	if random {
		return c.urls[rand.Intn(len(c.urls))]
	}
	return c.urls[c.stationIndex%len(c.urls)]
}

// Run dials, performs the boot handshake, then services the connection
// until Stop is called or the retry budget is exhausted. It blocks the
// calling goroutine and should itself be run in one.
func (c *Controller) Run(random bool) {
	handshakeTimeout := c.connectionTimeout
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		conn, err := c.dial(c.supervisionURL(random), handshakeTimeout)
		if err != nil {
			c.log.Error("dial", err)
			if !c.canReconnect() {
				return
			}
			delay := c.retryAfterFailure()
			handshakeTimeout = reconnectHandshakeTimeout(delay)
			if !c.wait(delay) {
				return
			}
			continue
		}

		c.transport.Attach(conn)
		accepted := c.bootHandshake()
		if !accepted {
			c.transport.Detach()
			_ = conn.Close()
			if !c.canReconnect() {
				return
			}
			delay := c.retryAfterFailure()
			handshakeTimeout = reconnectHandshakeTimeout(delay)
			if !c.wait(delay) {
				return
			}
			continue
		}

		c.backoff.Reset()
		c.reconnectAttempts = 0
		handshakeTimeout = c.connectionTimeout
		atomic.StoreInt32(&c.registered, 1)
		c.stationRef.NotifyBootStatuses()
		closeCode := c.serve(conn)
		atomic.StoreInt32(&c.registered, 0)
		c.transport.Detach()

		if closeCode == websocket.CloseNormalClosure || closeCode == websocket.CloseNoStatusReceived {
			return
		}
		if !c.canReconnect() {
			return
		}
		delay := c.retryAfterFailure()
		handshakeTimeout = reconnectHandshakeTimeout(delay)
		if !c.wait(delay) {
			return
		}
	}
}

// retryAfterFailure runs the disconnect hook (if any) and returns the next
// backoff delay; exponential uses Backoff's doubling, otherwise it is a
// constant connectionTimeout * 1000ms, i.e. connectionTimeout seconds.
func (c *Controller) retryAfterFailure() time.Duration {
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
	return c.backoff.Next()
}

// reconnectHandshakeTimeout derives the per-attempt dial timeout for a
// reconnect: the reconnect delay itself minus a small safety margin, never
// negative.
func reconnectHandshakeTimeout(delay time.Duration) time.Duration {
	t := delay - minHandshakeGap
	if t < 0 {
		return 0
	}
	return t
}

func (c *Controller) dial(url string, handshakeTimeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{subProtocol},
	}
	conn, _, err := dialer.Dial(url, nil)
	return conn, err
}

// bootHandshake sends BootNotification and retries on Pending or Rejected,
// respecting the configured retry ceiling; only an exhausted retry budget
// or a lost connection fails the attempt outright.
func (c *Controller) bootHandshake() bool {
	req := c.stationRef.BootNotificationRequest()
	attempts := 0
	for {
		response, _, err := c.transport.SendRequest(messages.BootNotificationFeatureName, req, func() messages.Response { return &messages.BootNotificationResponse{} })
		if err != nil {
			c.log.Error("boot notification", err)
			return false
		}
		boot := response.(*messages.BootNotificationResponse)
		if boot.Status == messages.RegistrationStatusAccepted {
			c.applyHeartbeatInterval(boot.Interval)
			c.stationRef.SetBootResponse(boot)
			return true
		}
		if boot.Status == messages.RegistrationStatusRejected {
			c.log.Warn("boot notification rejected, retrying")
		}
		attempts++
		if c.regMaxRetries >= 0 && attempts > c.regMaxRetries {
			return false
		}
		delay := c.bootRetryDelay
		if boot.Interval > 0 {
			delay = time.Duration(boot.Interval) * time.Second
		}
		if !c.wait(delay) {
			return false
		}
	}
}

func (c *Controller) applyHeartbeatInterval(interval int) {
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	value := fmt.Sprintf("%d", interval)
	for _, key := range []string{"HeartbeatInterval", "HeartBeatInterval"} {
		if entry, ok := c.cs.Get(key, false); ok {
			c.cs.Set(entry.Key, value)
		} else {
			c.cs.Add(key, value, false, true, false)
		}
	}
}

func (c *Controller) heartbeatInterval() time.Duration {
	if entry, ok := c.cs.Get("HeartbeatInterval", false); ok {
		var n int
		fmt.Sscanf(entry.Value, "%d", &n)
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return defaultHeartbeat * time.Second
}

// pingInterval reads WebSocketPingInterval from the config store; a
// non-positive or absent value disables the WS ping timer entirely.
func (c *Controller) pingInterval() time.Duration {
	if entry, ok := c.cs.Get("WebSocketPingInterval", false); ok {
		var n int
		fmt.Sscanf(entry.Value, "%d", &n)
		if n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

// serve reads inbound frames and runs the heartbeat/ping timers until the
// socket closes or Stop is requested; it returns the WebSocket close code
// observed (or CloseAbnormalClosure if none was sent).
func (c *Controller) serve(conn *websocket.Conn) int {
	done := make(chan int, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					done <- ce.Code
				} else {
					done <- websocket.CloseAbnormalClosure
				}
				return
			}
			c.transport.HandleInbound(data)
		}
	}()

	heartbeat := time.NewTicker(c.heartbeatInterval())
	defer heartbeat.Stop()

	ping, pingC := c.newPingTicker()
	defer stopPingTicker(ping)

	for {
		select {
		case code := <-done:
			return code
		case <-c.stop:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return websocket.CloseNormalClosure
		case <-c.restartHeartbeat:
			heartbeat.Reset(c.heartbeatInterval())
		case <-c.restartPing:
			stopPingTicker(ping)
			ping, pingC = c.newPingTicker()
		case <-heartbeat.C:
			heartbeat.Reset(c.heartbeatInterval())
			go func() {
				_, _, _ = c.transport.SendRequest(messages.HeartbeatFeatureName, &messages.HeartbeatRequest{}, func() messages.Response { return &messages.HeartbeatResponse{} })
			}()
		case <-pingC:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.log.Warn(fmt.Sprintf("ping failed: %s", err))
			}
		}
	}
}

// newPingTicker starts the WS ping ticker if WebSocketPingInterval is
// positive; a nil ticker and nil channel leave the corresponding select
// case permanently blocked, which is how a disabled ping timer is
// represented rather than special-casing the loop body.
func (c *Controller) newPingTicker() (*time.Ticker, <-chan time.Time) {
	d := c.pingInterval()
	if d <= 0 {
		return nil, nil
	}
	ticker := time.NewTicker(d)
	return ticker, ticker.C
}

func stopPingTicker(ticker *time.Ticker) {
	if ticker != nil {
		ticker.Stop()
	}
}

// wait blocks for d or until Stop fires, returning false if Stop won the
// race so callers can unwind without another retry.
func (c *Controller) wait(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.stop:
		return false
	}
}

// Stop is the authoritative, idempotent shutdown: it signals Run to close
// the socket and return. Calling it more than once is a no-op.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Reopen prepares the controller for a fresh Run after Stop, used by a
// Reset that must reconnect rather than terminate the process.
func (c *Controller) Reopen() {
	c.stop = make(chan struct{})
	c.stopOnce = sync.Once{}
	c.reconnectAttempts = 0
}

// IsRegistered reports whether the last boot handshake was Accepted; the
// RPC transport consults this for its send admission rule.
func (c *Controller) IsRegistered() bool {
	return atomic.LoadInt32(&c.registered) == 1
}
