package atg

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cpsim/internal/configstore"
	"cpsim/internal/logger"
	"cpsim/internal/messages"
	"cpsim/internal/station"
)

func testLog() logger.LogHandler {
	return logger.NewLogger(nil)
}

type fakeTxnManager struct {
	mu      sync.Mutex
	started int32
	stopped int32
	status  messages.AuthorizationStatus
}

func (f *fakeTxnManager) StartTransaction(connectorId int, idTag string) (int, messages.AuthorizationStatus) {
	atomic.AddInt32(&f.started, 1)
	status := f.status
	if status == "" {
		status = messages.AuthorizationStatusAccepted
	}
	return 1, status
}

func (f *fakeTxnManager) StopTransaction(transactionId int, reason messages.Reason) bool {
	atomic.AddInt32(&f.stopped, 1)
	return true
}

func newTestStation(numConnectors int) *station.Station {
	log := testLog()
	cs := configstore.NewStore(log)
	tmpl := &station.StationTemplate{
		BaseName:           "CP",
		FixedName:          true,
		NumberOfConnectors: station.RawNumberOrSlice{float64(numConnectors)},
	}
	return station.NewStation(tmpl, 0, cs, log)
}

func TestGeneratorDoesNothingWhenDisabled(t *testing.T) {
	st := newTestStation(1)
	fake := &fakeTxnManager{}
	g := NewGenerator(st, station.AutomaticTransactionGeneratorTemplate{Enable: false}, fake, testLog())
	g.Start()
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.started))
}

func TestGeneratorCyclesStartAndStop(t *testing.T) {
	st := newTestStation(1)
	fake := &fakeTxnManager{}
	g := NewGenerator(st, station.AutomaticTransactionGeneratorTemplate{
		Enable:        true,
		MinDelayMs:    1,
		MaxDelayMs:    2,
		MinDurationMs: 1,
		MaxDurationMs: 2,
	}, fake, testLog())

	g.Start()
	defer g.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fake.started) > 0 && atomic.LoadInt32(&fake.stopped) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGeneratorSkipsConnectorWithActiveTransaction(t *testing.T) {
	st := newTestStation(1)
	st.BeginTransaction(1, "already-running")
	txId := 99
	st.Connector(1).TransactionId = &txId

	fake := &fakeTxnManager{}
	g := NewGenerator(st, station.AutomaticTransactionGeneratorTemplate{
		Enable:     true,
		MinDelayMs: 1,
		MaxDelayMs: 2,
	}, fake, testLog())

	g.Start()
	time.Sleep(30 * time.Millisecond)
	g.Stop()
	assert.EqualValues(t, 0, atomic.LoadInt32(&fake.started))
}

func TestGeneratorStopIsIdempotent(t *testing.T) {
	st := newTestStation(1)
	g := NewGenerator(st, station.AutomaticTransactionGeneratorTemplate{Enable: true}, &fakeTxnManager{}, testLog())
	g.Start()
	assert.NotPanics(t, func() {
		g.Stop()
		g.Stop()
	})
}

func TestRandomDurationHandlesDegenerateRange(t *testing.T) {
	g := &Generator{}
	assert.Equal(t, 5*time.Millisecond, g.randomDuration(5, 5))
	assert.Equal(t, 5*time.Millisecond, g.randomDuration(5, 3))
}
