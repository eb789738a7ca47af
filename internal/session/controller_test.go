package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/ocppj"
	"cpsim/internal/station"
)

func testLog() logger.LogHandler {
	return logger.NewLogger(nil)
}

func newTestController(urls []string, stationIndex, autoReconnectMaxRetries int) *Controller {
	log := testLog()
	cs := configstore.NewStore(log)
	tmpl := &station.StationTemplate{BaseName: "CP", FixedName: true, NumberOfConnectors: station.RawNumberOrSlice{1}}
	st := station.NewStation(tmpl, stationIndex, cs, log)
	transport := ocppj.NewTransport(st.ChargingStationId, time.Second, nil, log)
	return NewController(st, transport, cs, log, urls, stationIndex, time.Second, time.Second, 0, autoReconnectMaxRetries, true)
}

func TestSupervisionURLSingleShared(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 3, -1)
	assert.Equal(t, "ws://a", c.supervisionURL(false))
}

func TestSupervisionURLRoundRobinByIndex(t *testing.T) {
	c := newTestController([]string{"ws://a", "ws://b", "ws://c"}, 4, -1)
	assert.Equal(t, "ws://b", c.supervisionURL(false)) // index 4 % 3 == 1
}

func TestSupervisionURLEmptyListYieldsEmptyString(t *testing.T) {
	c := newTestController(nil, 0, -1)
	assert.Equal(t, "", c.supervisionURL(false))
}

func TestCanReconnectUnlimitedWhenNegativeOne(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	for i := 0; i < 100; i++ {
		assert.True(t, c.canReconnect())
	}
}

func TestCanReconnectDisabledWhenZero(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, 0)
	assert.False(t, c.canReconnect())
}

func TestCanReconnectStopsAtCeiling(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, 2)
	assert.True(t, c.canReconnect())
	assert.True(t, c.canReconnect())
	assert.False(t, c.canReconnect())
}

func TestIsRegisteredDefaultsFalse(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	assert.False(t, c.IsRegistered())
}

func TestStopIsIdempotent(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	assert.NotPanics(t, func() {
		c.Stop()
		c.Stop()
	})
}

func TestPingIntervalDisabledWhenKeyAbsent(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	assert.Equal(t, time.Duration(0), c.pingInterval())
}

func TestPingIntervalDisabledWhenZero(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	c.cs.Add("WebSocketPingInterval", "0", false, true, false)
	assert.Equal(t, time.Duration(0), c.pingInterval())
}

func TestPingIntervalReadsPositiveConfiguredValue(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	c.cs.Add("WebSocketPingInterval", "45", false, true, false)
	assert.Equal(t, 45*time.Second, c.pingInterval())
}

func TestRestartHeartbeatAndRestartPingDoNotBlockWithoutAServeLoop(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	assert.NotPanics(t, func() {
		c.RestartHeartbeat()
		c.RestartHeartbeat()
		c.RestartPing()
		c.RestartPing()
	})
}

func TestReconnectHandshakeTimeoutNeverNegative(t *testing.T) {
	assert.Equal(t, time.Duration(0), reconnectHandshakeTimeout(50*time.Millisecond))
	assert.Equal(t, 900*time.Millisecond, reconnectHandshakeTimeout(time.Second))
}

func TestRetryAfterFailureRunsDisconnectHook(t *testing.T) {
	c := newTestController([]string{"ws://a"}, 0, -1)
	called := false
	c.SetDisconnectHook(func() { called = true })
	c.retryAfterFailure()
	assert.True(t, called)
}
